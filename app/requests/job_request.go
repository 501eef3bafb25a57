package requests

// CreateJobRequest request tạo batch job. Gửi danh sách địa chỉ trực tiếp hoặc
// dữ liệu dạng bảng (headers + rows) kèm tên cột địa chỉ.
type CreateJobRequest struct {
	Addresses     []string            `json:"addresses,omitempty"`      // Danh sách địa chỉ
	Headers       []string            `json:"headers,omitempty"`        // Tên cột của dữ liệu bảng
	Rows          []map[string]string `json:"rows,omitempty"`           // Các dòng dữ liệu bảng
	AddressColumn string              `json:"address_column,omitempty"` // Cột địa chỉ, tự phát hiện nếu bỏ trống
}

// IsTabular request gửi dữ liệu dạng bảng
func (r CreateJobRequest) IsTabular() bool {
	return len(r.Addresses) == 0 && (len(r.Headers) > 0 || len(r.Rows) > 0)
}

// DetectColumnRequest request phát hiện cột địa chỉ
type DetectColumnRequest struct {
	Headers []string            `json:"headers" binding:"required,min=1"` // Tên cột
	Rows    []map[string]string `json:"rows" binding:"required,min=1"`    // Các dòng mẫu
}

// NormalizeRequest request chuẩn hóa địa chỉ (không geocode)
type NormalizeRequest struct {
	Addresses []string `json:"addresses" binding:"required,min=1,max=1000"` // Danh sách địa chỉ
}
