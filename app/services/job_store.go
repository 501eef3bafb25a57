package services

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/address-geocoder/app/models"
	"go.uber.org/zap"
)

// Lỗi của job store và batch service
var (
	ErrJobNotFound   = errors.New("job không tồn tại")
	ErrJobExists     = errors.New("job đã tồn tại")
	ErrJobNotPending = errors.New("job không ở trạng thái pending")
	ErrNoAddresses   = errors.New("không có địa chỉ nào để xử lý")
	ErrTooManyRows   = errors.New("số dòng vượt quá giới hạn")
	ErrUnknownColumn = errors.New("không tìm thấy cột địa chỉ")
	ErrJobCanceled   = errors.New("job đã bị hủy")
)

// JobUpdate các trường cần merge vào job, nil nghĩa là giữ nguyên
type JobUpdate struct {
	Status         *models.JobStatus
	ProcessedCount *int
	SuccessCount   *int
	FailedCount    *int
	SkippedCount   *int
	CurrentAddress *string
	EndTime        *time.Time
	Error          *string
	Results        []models.ProcessedAddress
}

// ItemRecord kết quả một dòng để cộng dồn vào bộ đếm
type ItemRecord struct {
	Address string
	Success bool
	Reused  bool // dùng lại kết quả của dòng trùng trước đó trong cùng job
}

type jobEntry struct {
	mu  sync.Mutex
	job models.Job
}

// JobStore lưu trạng thái tiến độ của các job trong bộ nhớ. Map được bảo vệ
// bởi RWMutex, mỗi job có mutex riêng để cập nhật bộ đếm không bị mất.
type JobStore struct {
	mu                 sync.RWMutex
	jobs               map[string]*jobEntry
	checkpointInterval int
	logger             *zap.Logger
}

// NewJobStore tạo mới JobStore. checkpointInterval <= 0 dùng mặc định 100.
func NewJobStore(checkpointInterval int, logger *zap.Logger) *JobStore {
	if checkpointInterval <= 0 {
		checkpointInterval = 100
	}
	return &JobStore{
		jobs:               make(map[string]*jobEntry),
		checkpointInterval: checkpointInterval,
		logger:             logger,
	}
}

// CheckpointInterval số dòng giữa hai checkpoint
func (s *JobStore) CheckpointInterval() int {
	return s.checkpointInterval
}

// CreateJob tạo job mới ở trạng thái pending
func (s *JobStore) CreateJob(id string, totalCount int) (models.Job, error) {
	if totalCount < 0 {
		totalCount = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return models.Job{}, ErrJobExists
	}

	job := models.Job{
		ID:          id,
		Status:      models.JobStatusPending,
		TotalCount:  totalCount,
		StartTime:   time.Now(),
		Checkpoints: []models.Checkpoint{},
	}
	s.jobs[id] = &jobEntry{job: job}

	s.logger.Info("Tạo job", zap.String("job_id", id), zap.Int("total_count", totalCount))
	return snapshot(job), nil
}

// GetJob lấy snapshot của job
func (s *JobStore) GetJob(id string) (models.Job, bool) {
	entry := s.entry(id)
	if entry == nil {
		return models.Job{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return snapshot(entry.job), true
}

// UpdateJob merge các trường khác nil vào job. Không làm gì nếu job không tồn
// tại hoặc đã kết thúc (trả về false).
func (s *JobStore) UpdateJob(id string, update JobUpdate) bool {
	entry := s.entry(id)
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	job := &entry.job
	if job.Status.IsTerminal() {
		s.logger.Warn("Bỏ qua cập nhật job đã kết thúc",
			zap.String("job_id", id),
			zap.String("status", string(job.Status)))
		return false
	}

	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.ProcessedCount != nil {
		job.ProcessedCount = *update.ProcessedCount
	}
	if update.SuccessCount != nil {
		job.SuccessCount = *update.SuccessCount
	}
	if update.FailedCount != nil {
		job.FailedCount = *update.FailedCount
	}
	if update.SkippedCount != nil {
		job.SkippedCount = *update.SkippedCount
	}
	if update.CurrentAddress != nil {
		job.CurrentAddress = *update.CurrentAddress
	}
	if update.EndTime != nil {
		end := *update.EndTime
		job.EndTime = &end
	}
	if update.Error != nil {
		job.Error = *update.Error
	}
	if update.Results != nil {
		job.Results = update.Results
	}
	return true
}

// RecordItem cộng dồn kết quả một dòng và tạo checkpoint mỗi khi số dòng đã
// xử lý chia hết cho checkpoint interval. Toàn bộ nằm trong khóa của job.
func (s *JobStore) RecordItem(id string, rec ItemRecord) (models.Job, bool) {
	entry := s.entry(id)
	if entry == nil {
		return models.Job{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	job := &entry.job
	if job.Status.IsTerminal() {
		return snapshot(*job), false
	}
	if job.ProcessedCount >= job.TotalCount {
		s.logger.Error("Số dòng đã xử lý vượt quá tổng số",
			zap.String("job_id", id),
			zap.Int("processed", job.ProcessedCount),
			zap.Int("total", job.TotalCount))
		return snapshot(*job), false
	}

	job.ProcessedCount++
	if rec.Success {
		job.SuccessCount++
	} else {
		job.FailedCount++
	}
	if rec.Reused {
		job.SkippedCount++
	}
	job.CurrentAddress = rec.Address

	if job.ProcessedCount%s.checkpointInterval == 0 {
		s.appendCheckpoint(job)
	}

	return snapshot(*job), true
}

// AddCheckpoint thêm checkpoint từ bộ đếm hiện tại
func (s *JobStore) AddCheckpoint(id string) bool {
	entry := s.entry(id)
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.job.Status.IsTerminal() {
		return false
	}
	s.appendCheckpoint(&entry.job)
	return true
}

// SetArtifacts ghi trạng thái file kết quả. Đây là thay đổi duy nhất được
// phép sau khi job kết thúc.
func (s *JobStore) SetArtifacts(id string, state models.ArtifactState) bool {
	entry := s.entry(id)
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	state.Files = append([]string(nil), state.Files...)
	entry.job.Artifacts = state
	return true
}

// DeleteJob xóa job khỏi store
func (s *JobStore) DeleteJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; !exists {
		return false
	}
	delete(s.jobs, id)
	s.logger.Info("Đã xóa job", zap.String("job_id", id))
	return true
}

// ListJobIDs danh sách job ID đã sắp xếp
func (s *JobStore) ListJobIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len số job trong store
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *JobStore) entry(id string) *jobEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

func (s *JobStore) appendCheckpoint(job *models.Job) {
	cp := models.Checkpoint{
		Timestamp:      time.Now(),
		ProcessedCount: job.ProcessedCount,
		SuccessCount:   job.SuccessCount,
		FailedCount:    job.FailedCount,
	}
	job.Checkpoints = append(job.Checkpoints, cp)

	s.logger.Info("Checkpoint",
		zap.String("job_id", job.ID),
		zap.Int("processed", cp.ProcessedCount),
		zap.Int("total", job.TotalCount),
		zap.Int("success", cp.SuccessCount),
		zap.Int("failed", cp.FailedCount))
}

// snapshot bản sao để reader không nhìn thấy thay đổi sau đó. Results không
// bị sửa sau khi gán nên chỉ copy slice header.
func snapshot(job models.Job) models.Job {
	out := job
	out.Checkpoints = append([]models.Checkpoint{}, job.Checkpoints...)
	out.Artifacts.Files = append([]string(nil), job.Artifacts.Files...)
	if job.EndTime != nil {
		end := *job.EndTime
		out.EndTime = &end
	}
	return out
}
