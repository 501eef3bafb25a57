package responses

import (
	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/app/services"
	"github.com/address-geocoder/internal/detect"
	"github.com/address-geocoder/internal/dispatcher"
	"github.com/address-geocoder/internal/geocode"
	"github.com/address-geocoder/internal/normalizer"
)

// CreateJobResponse response tạo batch job
type CreateJobResponse struct {
	JobID            string `json:"job_id"`                   // ID của job
	Total            int    `json:"total"`                    // Tổng số địa chỉ
	EstimatedSeconds int    `json:"estimated_seconds"`        // Thời gian ước tính (giây)
	AddressColumn    string `json:"address_column,omitempty"` // Cột địa chỉ đã dùng
	Message          string `json:"message"`                  // Thông báo
}

// JobListResponse response danh sách job
type JobListResponse struct {
	Jobs  []string `json:"jobs"`
	Total int      `json:"total"`
}

// JobResultsResponse response kết quả job
type JobResultsResponse struct {
	JobID   string                    `json:"job_id"`
	Status  models.JobStatus          `json:"status"`
	Total   int                       `json:"total"`
	Results []models.ProcessedAddress `json:"results"`
}

// PointsResponse response tọa độ cho viewer
type PointsResponse struct {
	JobID  string         `json:"job_id"`
	Query  string         `json:"query,omitempty"`
	Count  int            `json:"count"`
	Points []models.Point `json:"points"`
}

// DetectColumnResponse response phát hiện cột địa chỉ
type DetectColumnResponse struct {
	Detection  *detect.Detection  `json:"detection"`  // nil khi không tìm thấy
	Candidates []detect.Candidate `json:"candidates"` // Các cột ứng viên
}

// NormalizeResponse response chuẩn hóa địa chỉ
type NormalizeResponse struct {
	Results []normalizer.NormalizedAddress `json:"results"`
}

// CacheStatsResponse response thống kê cache và hàng đợi
type CacheStatsResponse struct {
	Cache      *services.CacheStats `json:"cache,omitempty"` // Thống kê của cache backend
	Client     geocode.CacheStats   `json:"client"`          // Hit/miss tính từ lần reset gần nhất
	Dispatcher dispatcher.Stats     `json:"dispatcher"`      // Hàng đợi gọi API
	Jobs       int                  `json:"jobs"`            // Số job trong bộ nhớ
}

// ErrorResponse response lỗi
type ErrorResponse struct {
	Error     string      `json:"error"`                // Mã lỗi
	Message   string      `json:"message"`              // Thông báo lỗi
	Details   interface{} `json:"details,omitempty"`    // Chi tiết lỗi
	Timestamp string      `json:"timestamp,omitempty"`  // Thời gian xảy ra lỗi
	RequestID string      `json:"request_id,omitempty"` // ID của request
}

// SuccessResponse response thành công
type SuccessResponse struct {
	Success   bool        `json:"success"`             // Có thành công không
	Message   string      `json:"message"`             // Thông báo
	Data      interface{} `json:"data,omitempty"`      // Dữ liệu
	Timestamp string      `json:"timestamp,omitempty"` // Thời gian
}

// HealthCheckResponse response kiểm tra sức khỏe
type HealthCheckResponse struct {
	Status    string            `json:"status"`    // Trạng thái sức khỏe
	Timestamp string            `json:"timestamp"` // Thời gian kiểm tra
	Uptime    string            `json:"uptime"`    // Thời gian hoạt động
	Version   string            `json:"version"`   // Phiên bản
	Services  map[string]string `json:"services"`  // Trạng thái các service
}
