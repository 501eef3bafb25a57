package models

import "time"

// JobStatus trạng thái của một batch job
type JobStatus string

// Các trạng thái job: pending → processing → completed | failed
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal trả về true khi job đã kết thúc (không được sửa nữa)
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job một lần chạy geocoding hàng loạt
type Job struct {
	ID             string             `bson:"job_id" json:"job_id"`                             // ID của job (bất biến)
	Status         JobStatus          `bson:"status" json:"status"`                             // Trạng thái job
	TotalCount     int                `bson:"total_count" json:"total_count"`                   // Tổng số địa chỉ
	ProcessedCount int                `bson:"processed_count" json:"processed_count"`           // Số địa chỉ đã xử lý
	SuccessCount   int                `bson:"success_count" json:"success_count"`               // Số địa chỉ thành công
	FailedCount    int                `bson:"failed_count" json:"failed_count"`                 // Số địa chỉ thất bại
	SkippedCount   int                `bson:"skipped_count" json:"skipped_count"`               // Số dòng dùng lại kết quả trùng trong job
	StartTime      time.Time          `bson:"start_time" json:"start_time"`                     // Thời điểm tạo job
	EndTime        *time.Time         `bson:"end_time,omitempty" json:"end_time,omitempty"`     // Thời điểm kết thúc
	CurrentAddress string             `bson:"current_address" json:"current_address,omitempty"` // Địa chỉ vừa xử lý
	Error          string             `bson:"error,omitempty" json:"error,omitempty"`           // Lỗi khi job failed
	Checkpoints    []Checkpoint       `bson:"checkpoints" json:"checkpoints"`                   // Danh sách checkpoint
	Results        []ProcessedAddress `bson:"results,omitempty" json:"-"`                       // Kết quả từng dòng (khi completed)
	Artifacts      ArtifactState      `bson:"artifacts" json:"artifacts"`                       // Trạng thái ghi file kết quả
}

// Checkpoint snapshot bộ đếm tại một thời điểm
type Checkpoint struct {
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
	ProcessedCount int       `bson:"processed_count" json:"processed_count"`
	SuccessCount   int       `bson:"success_count" json:"success_count"`
	FailedCount    int       `bson:"failed_count" json:"failed_count"`
}

// ArtifactState trạng thái các file kết quả, tách biệt với trạng thái xử lý
type ArtifactState struct {
	Written bool     `bson:"written" json:"written"`                 // Đã ghi xong tất cả file
	Files   []string `bson:"files,omitempty" json:"files,omitempty"` // Tên các file đã ghi
	Error   string   `bson:"error,omitempty" json:"error,omitempty"` // Lỗi khi ghi file
}

// JobProgress dữ liệu tiến độ trả về cho client polling
type JobProgress struct {
	JobID                  string        `json:"job_id"`
	Status                 JobStatus     `json:"status"`
	TotalCount             int           `json:"total_count"`
	ProcessedCount         int           `json:"processed_count"`
	SuccessCount           int           `json:"success_count"`
	FailedCount            int           `json:"failed_count"`
	SkippedCount           int           `json:"skipped_count"`
	ProgressPercent        int           `json:"progress_percent"`                   // 0-100
	ProcessingSpeed        float64       `json:"processing_speed"`                   // địa chỉ/giây
	EstimatedTimeRemaining *float64      `json:"estimated_time_remaining,omitempty"` // giây, chỉ có khi speed > 0
	CurrentAddress         string        `json:"current_address,omitempty"`
	StartTime              time.Time     `json:"start_time"`
	EndTime                *time.Time    `json:"end_time,omitempty"`
	Error                  string        `json:"error,omitempty"`
	Checkpoints            int           `json:"checkpoints"`
	Artifacts              ArtifactState `json:"artifacts"`
}
