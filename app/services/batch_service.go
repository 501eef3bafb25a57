package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/helpers/utils"
	"github.com/address-geocoder/internal/metrics"
	"github.com/address-geocoder/internal/normalizer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Thông báo lỗi hiển thị cho người dùng
const (
	MsgEmptyAddress = "주소가 비어있습니다."
	MsgCanceled     = "작업이 취소되었습니다."
	MsgNoResult     = "주소를 찾을 수 없습니다."
	msgPanicItem    = "처리 중 오류가 발생했습니다: %v"
	msgPanicJob     = "작업 처리 중 내부 오류가 발생했습니다: %v"
)

// Geocoder tra cứu tọa độ cho một địa chỉ đã chuẩn hóa
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.GeocodeResult, error)
}

// ArtifactSink ghi các file kết quả của job, trả về tên các file đã ghi
type ArtifactSink interface {
	WriteJobArtifacts(ctx context.Context, job models.Job) ([]string, error)
}

// PointIndexer index tọa độ thành công cho viewer
type PointIndexer interface {
	IndexJob(ctx context.Context, jobID string, results []models.ProcessedAddress) error
	DeleteJob(ctx context.Context, jobID string) error
}

// BatchOptions cấu hình xử lý batch
type BatchOptions struct {
	Workers           int           // 1: tuần tự theo thứ tự input; > 1: fan-out có giới hạn
	MaxRows           int           // <= 0: không giới hạn
	RequestsPerSecond float64       // dùng để ước tính thời gian xử lý
	PersistTimeout    time.Duration // thời gian tối đa cho bước ghi file/index/archive
}

// BatchOption tùy chọn collaborator cho BatchService
type BatchOption func(*BatchService)

// WithPointIndexer bật index tọa độ sau khi job hoàn thành
func WithPointIndexer(indexer PointIndexer) BatchOption {
	return func(s *BatchService) { s.indexer = indexer }
}

// WithJobArchive bật lưu snapshot job đã kết thúc
func WithJobArchive(archive JobArchive) BatchOption {
	return func(s *BatchService) { s.archive = archive }
}

// WithMetrics gắn Prometheus metrics
func WithMetrics(m *metrics.Metrics) BatchOption {
	return func(s *BatchService) { s.metrics = m }
}

// BatchService điều phối một job: chuẩn hóa → geocode (dùng lại kết quả trùng)
// → cập nhật JobStore → checkpoint → ghi kết quả
type BatchService struct {
	store      *JobStore
	normalizer *normalizer.Normalizer
	geocoder   Geocoder
	artifacts  ArtifactSink
	indexer    PointIndexer
	archive    JobArchive
	metrics    *metrics.Metrics
	opts       BatchOptions
	logger     *zap.Logger

	baseCtx context.Context
	stop    context.CancelFunc

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup

	// persistMu tuần tự hóa index/archive với Evict, job đã xóa không bị ghi lại
	persistMu sync.Mutex
}

// NewBatchService tạo mới BatchService. artifacts có thể nil (không ghi file).
func NewBatchService(store *JobStore, n *normalizer.Normalizer, geocoder Geocoder, artifacts ArtifactSink, opts BatchOptions, logger *zap.Logger, options ...BatchOption) *BatchService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 2 * time.Minute
	}

	baseCtx, stop := context.WithCancel(context.Background())
	s := &BatchService{
		store:      store,
		normalizer: n,
		geocoder:   geocoder,
		artifacts:  artifacts,
		opts:       opts,
		logger:     logger,
		baseCtx:    baseCtx,
		stop:       stop,
		running:    make(map[string]context.CancelFunc),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Store JobStore mà service ghi vào
func (s *BatchService) Store() *JobStore {
	return s.store
}

// Archive JobArchive đã cấu hình (có thể nil)
func (s *BatchService) Archive() JobArchive {
	return s.archive
}

// Validate kiểm tra input trước khi tạo job
func (s *BatchService) Validate(addresses []string) error {
	if len(addresses) == 0 {
		return ErrNoAddresses
	}
	if s.opts.MaxRows > 0 && len(addresses) > s.opts.MaxRows {
		return fmt.Errorf("%w: %d > %d", ErrTooManyRows, len(addresses), s.opts.MaxRows)
	}
	return nil
}

// Submit kiểm tra input, tạo job và chạy nền. Trả về job ID ngay lập tức.
func (s *BatchService) Submit(ctx context.Context, addresses []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.Validate(addresses); err != nil {
		return "", err
	}

	jobID := utils.NewJobID()
	if _, err := s.store.CreateJob(jobID, len(addresses)); err != nil {
		return "", err
	}

	s.Start(jobID, addresses)
	return jobID, nil
}

// EstimateProcessingSeconds ước tính thời gian xử lý theo nhịp gọi API
func (s *BatchService) EstimateProcessingSeconds(count int) int {
	rps := s.opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return int(math.Ceil(float64(count) / rps))
}

// Start chạy Process trong goroutine riêng với context có thể hủy
func (s *BatchService) Start(jobID string, addresses []string) {
	ctx, cancel := context.WithCancel(s.baseCtx)

	s.mu.Lock()
	s.running[jobID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, jobID)
			s.mu.Unlock()
			cancel()
		}()
		rows, err := s.Process(ctx, jobID, addresses)
		switch {
		case IsCanceled(err):
			s.logger.Info("Batch job đã bị hủy", zap.String("job_id", jobID), zap.Int("kept_rows", len(rows)))
		case err != nil:
			s.logger.Error("Batch job thất bại", zap.String("job_id", jobID), zap.Error(err))
		}
	}()
}

// Cancel hủy job đang chạy. Trả về false nếu job không chạy.
func (s *BatchService) Cancel(jobID string) bool {
	s.mu.Lock()
	cancel, ok := s.running[jobID]
	s.mu.Unlock()

	if ok {
		s.logger.Info("Hủy batch job", zap.String("job_id", jobID))
		cancel()
	}
	return ok
}

// IsRunning kiểm tra job có đang chạy nền không
func (s *BatchService) IsRunning(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[jobID]
	return ok
}

// Evict hủy (nếu đang chạy) và xóa job khỏi store, index và archive
func (s *BatchService) Evict(ctx context.Context, jobID string) bool {
	s.Cancel(jobID)

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	removed := s.store.DeleteJob(jobID)

	if s.indexer != nil {
		if err := s.indexer.DeleteJob(ctx, jobID); err != nil {
			s.logger.Warn("Lỗi xóa point index của job", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	if s.archive != nil {
		if err := s.archive.Delete(ctx, jobID); err != nil {
			s.logger.Warn("Lỗi xóa job archive", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	return removed
}

// Wait đợi tất cả job đang chạy kết thúc hoặc ctx hết hạn
func (s *BatchService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown hủy mọi job đang chạy và đợi chúng dừng
func (s *BatchService) Shutdown(ctx context.Context) error {
	s.stop()
	return s.Wait(ctx)
}

// Process chạy toàn bộ pipeline cho một job đang pending. Lỗi của từng dòng
// không làm dừng job. Lỗi trả về chỉ khi job không thể bắt đầu, bị hủy hoặc
// panic. Khi đó job chuyển failed và giữ các dòng đã xử lý xong, các dòng này
// cũng được trả về cùng lỗi.
func (s *BatchService) Process(ctx context.Context, jobID string, addresses []string) (out []models.ProcessedAddress, err error) {
	job, ok := s.store.GetJob(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != models.JobStatusPending {
		return nil, fmt.Errorf("%w: %s", ErrJobNotPending, job.Status)
	}
	if job.TotalCount != len(addresses) {
		err := fmt.Errorf("số địa chỉ (%d) khác tổng số của job (%d)", len(addresses), job.TotalCount)
		s.finishFailed(jobID, err.Error(), nil)
		return nil, err
	}

	processing := models.JobStatusProcessing
	s.store.UpdateJob(jobID, JobUpdate{Status: &processing})

	s.logger.Info("Bắt đầu batch job",
		zap.String("job_id", jobID),
		zap.Int("total", len(addresses)),
		zap.Int("workers", s.opts.Workers))

	rows := newRowSet(len(addresses))
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic trong batch job", zap.String("job_id", jobID), zap.Any("panic", r))
			out = rows.completed()
			err = fmt.Errorf(msgPanicJob, r)
			s.finishFailed(jobID, err.Error(), out)
		}
	}()

	normalized := s.normalizer.NormalizeBatch(addresses)

	if s.opts.Workers > 1 {
		err = s.processConcurrent(ctx, jobID, normalized, rows)
	} else {
		err = s.processSequential(ctx, jobID, normalized, rows)
	}

	if err != nil {
		partial := rows.completed()
		if ctx.Err() != nil {
			s.finishFailed(jobID, MsgCanceled, partial)
			return partial, fmt.Errorf("%w: %v", ErrJobCanceled, err)
		}
		s.finishFailed(jobID, err.Error(), partial)
		return partial, err
	}

	results := rows.all()

	completed := models.JobStatusCompleted
	end := time.Now()
	if !s.store.UpdateJob(jobID, JobUpdate{
		Status:  &completed,
		EndTime: &end,
		Results: results,
	}) {
		s.logger.Warn("Job đã bị xóa trong khi xử lý", zap.String("job_id", jobID))
		return results, nil
	}

	final, _ := s.store.GetJob(jobID)
	s.metrics.BatchJobFinished(string(completed), end.Sub(final.StartTime))
	s.logger.Info("Batch job hoàn thành",
		zap.String("job_id", jobID),
		zap.Int("processed", final.ProcessedCount),
		zap.Int("success", final.SuccessCount),
		zap.Int("failed", final.FailedCount),
		zap.Int("skipped", final.SkippedCount),
		zap.Duration("elapsed", end.Sub(final.StartTime)))

	s.persist(ctx, jobID)

	return results, nil
}

// processSequential xử lý từng dòng theo thứ tự input. Dòng đầu tiên của mỗi
// dạng chuẩn hóa gọi geocode, các dòng sau dùng lại kết quả.
func (s *BatchService) processSequential(ctx context.Context, jobID string, normalized []normalizer.NormalizedAddress, rows *rowSet) error {
	seen := make(map[string]*models.GeocodeResult)

	for i, na := range normalized {
		if err := ctx.Err(); err != nil {
			return err
		}

		var row models.ProcessedAddress
		if isBlank(na) {
			row = failedRow(i, na, MsgEmptyAddress)
		} else if prev, ok := seen[na.Normalized]; ok {
			row = combine(i, na, prev)
			row.Reused = true
		} else {
			res, err := s.lookup(ctx, i, na)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			seen[na.Normalized] = res
			row = combine(i, na, res)
		}

		rows.set(row)
		s.record(jobID, row)
	}
	return nil
}

// processConcurrent một task cho mỗi dạng chuẩn hóa, tối đa Workers task cùng
// lúc. Các dòng của một nhóm được ghi nhận khi lookup của nhóm xong.
func (s *BatchService) processConcurrent(ctx context.Context, jobID string, normalized []normalizer.NormalizedAddress, rows *rowSet) error {
	groups := normalizer.Group(normalized)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, key := range groups.Keys {
		indices := groups.IndexMap[key]
		first := normalized[indices[0]]

		if isBlank(first) {
			for _, idx := range indices {
				row := failedRow(idx, normalized[idx], MsgEmptyAddress)
				rows.set(row)
				s.record(jobID, row)
			}
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.lookup(gctx, indices[0], first)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			for n, idx := range indices {
				row := combine(idx, normalized[idx], res)
				row.Reused = n > 0
				rows.set(row)
				s.record(jobID, row)
			}
			return nil
		})
	}

	return g.Wait()
}

// lookup geocode một địa chỉ, lỗi và panic được chuyển thành kết quả failed.
// Lỗi chỉ được trả về để caller phân biệt trường hợp ctx bị hủy.
func (s *BatchService) lookup(ctx context.Context, index int, na normalizer.NormalizedAddress) (res *models.GeocodeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic khi geocode",
				zap.Int("index", index),
				zap.String("address", na.Original),
				zap.Any("panic", r))
			res = &models.GeocodeResult{
				Address: na.Normalized,
				Status:  models.GeocodeStatusFailed,
				Error:   fmt.Sprintf(msgPanicItem, r),
			}
			err = nil
		}
	}()

	res, err = s.geocoder.Geocode(ctx, na.Normalized)
	if err != nil {
		s.logger.Warn("Geocode địa chỉ thất bại",
			zap.Int("index", index),
			zap.String("address", na.Original),
			zap.Error(err))
		return &models.GeocodeResult{
			Address: na.Normalized,
			Status:  models.GeocodeStatusFailed,
			Error:   err.Error(),
		}, err
	}
	if res == nil {
		return &models.GeocodeResult{
			Address: na.Normalized,
			Status:  models.GeocodeStatusFailed,
			Error:   MsgNoResult,
		}, nil
	}
	return res, nil
}

func (s *BatchService) record(jobID string, row models.ProcessedAddress) {
	if _, ok := s.store.RecordItem(jobID, ItemRecord{
		Address: row.OriginalAddress,
		Success: row.IsSuccess(),
		Reused:  row.Reused,
	}); !ok {
		s.logger.Debug("Không ghi nhận được dòng (job đã bị xóa hoặc kết thúc)",
			zap.String("job_id", jobID),
			zap.Int("index", row.Index))
	}
	s.metrics.BatchItem(string(row.Status))
}

// finishFailed chuyển job sang failed kèm thông báo lỗi, giữ các dòng đã xử
// lý xong trong partial
func (s *BatchService) finishFailed(jobID, message string, partial []models.ProcessedAddress) {
	failed := models.JobStatusFailed
	end := time.Now()
	update := JobUpdate{Status: &failed, EndTime: &end, Error: &message}
	if partial != nil {
		update.Results = partial
	}
	if !s.store.UpdateJob(jobID, update) {
		return
	}

	if job, ok := s.store.GetJob(jobID); ok {
		s.metrics.BatchJobFinished(string(failed), end.Sub(job.StartTime))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.PersistTimeout)
	defer cancel()
	s.syncJob(ctx, jobID, false)
}

// persist ghi file kết quả, index tọa độ và archive job. Lỗi chỉ được log và
// ghi vào ArtifactState, không đổi trạng thái completed.
func (s *BatchService) persist(ctx context.Context, jobID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PersistTimeout)
	defer cancel()

	job, ok := s.store.GetJob(jobID)
	if !ok {
		return
	}

	state := models.ArtifactState{}
	if s.artifacts != nil {
		files, err := s.artifacts.WriteJobArtifacts(ctx, job)
		state.Files = files
		if err != nil {
			state.Error = err.Error()
			s.logger.Error("Lỗi ghi file kết quả",
				zap.String("job_id", jobID),
				zap.Strings("written", files),
				zap.Error(err))
		} else {
			state.Written = true
			s.logger.Info("Đã ghi file kết quả", zap.String("job_id", jobID), zap.Strings("files", files))
		}
	}
	s.store.SetArtifacts(jobID, state)

	s.syncJob(ctx, jobID, true)
}

// syncJob index tọa độ (khi index = true) và archive snapshot mới nhất của
// job. Chạy dưới persistMu, bỏ qua job đã bị Evict.
func (s *BatchService) syncJob(ctx context.Context, jobID string, index bool) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	job, ok := s.store.GetJob(jobID)
	if !ok {
		return
	}

	if index && s.indexer != nil {
		if err := s.indexer.IndexJob(ctx, jobID, job.Results); err != nil {
			s.logger.Error("Lỗi index tọa độ", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	if s.archive != nil {
		if err := s.archive.Save(ctx, job); err != nil {
			s.logger.Error("Lỗi archive job", zap.String("job_id", jobID), zap.Error(err))
		}
	}
}

// ResultsStream trả kết quả job đã hoàn thành qua channel để stream NDJSON
func (s *BatchService) ResultsStream(ctx context.Context, job models.Job) <-chan models.ProcessedAddress {
	out := make(chan models.ProcessedAddress, 100)
	go func() {
		defer close(out)
		for _, r := range job.Results {
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// FindJob tìm job trong store, fallback sang archive nếu được cấu hình
func (s *BatchService) FindJob(ctx context.Context, jobID string) (models.Job, error) {
	if job, ok := s.store.GetJob(jobID); ok {
		return job, nil
	}
	if s.archive == nil {
		return models.Job{}, ErrJobNotFound
	}
	job, err := s.archive.Load(ctx, jobID)
	if err != nil {
		return models.Job{}, err
	}
	return *job, nil
}

// rowSet kết quả theo thứ tự input, đánh dấu các dòng đã xử lý xong
type rowSet struct {
	mu   sync.Mutex
	rows []models.ProcessedAddress
	done []bool
}

func newRowSet(n int) *rowSet {
	return &rowSet{
		rows: make([]models.ProcessedAddress, n),
		done: make([]bool, n),
	}
}

func (r *rowSet) set(row models.ProcessedAddress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.Index] = row
	r.done[row.Index] = true
}

// all toàn bộ dòng, chỉ dùng khi mọi dòng đã xử lý xong
func (r *rowSet) all() []models.ProcessedAddress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// completed các dòng đã xử lý xong, giữ thứ tự input
func (r *rowSet) completed() []models.ProcessedAddress {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ProcessedAddress, 0, len(r.rows))
	for i, ok := range r.done {
		if ok {
			out = append(out, r.rows[i])
		}
	}
	return out
}

func isBlank(na normalizer.NormalizedAddress) bool {
	return strings.TrimSpace(na.Normalized) == ""
}

func failedRow(index int, na normalizer.NormalizedAddress, message string) models.ProcessedAddress {
	return models.ProcessedAddress{
		Index:             index,
		OriginalAddress:   na.Original,
		NormalizedAddress: na.Normalized,
		Confidence:        0,
		Status:            models.ProcessedFailed,
		Error:             message,
		Corrections:       na.Corrections,
	}
}

// combine ghép kết quả chuẩn hóa và geocode. Chỉ status success của geocode
// mới cho dòng success, confidence = min(chuẩn hóa, geocode).
func combine(index int, na normalizer.NormalizedAddress, res *models.GeocodeResult) models.ProcessedAddress {
	if !res.IsSuccess() {
		msg := res.Error
		if msg == "" {
			msg = MsgNoResult
		}
		row := failedRow(index, na, msg)
		row.RoadAddress = res.RoadAddress
		row.JibunAddress = res.JibunAddress
		return row
	}

	lat, lng := *res.Lat, *res.Lng
	return models.ProcessedAddress{
		Index:             index,
		OriginalAddress:   na.Original,
		NormalizedAddress: na.Normalized,
		Lat:               &lat,
		Lng:               &lng,
		Confidence:        math.Min(float64(na.Confidence), res.Confidence),
		Status:            models.ProcessedSuccess,
		RoadAddress:       res.RoadAddress,
		JibunAddress:      res.JibunAddress,
		Corrections:       na.Corrections,
	}
}

// IsCanceled kiểm tra lỗi do job bị hủy
func IsCanceled(err error) bool {
	return errors.Is(err, ErrJobCanceled)
}
