package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/address-geocoder/app/models"
)

// Thông báo lỗi hiển thị cho người dùng
const (
	MsgNotFound          = "주소를 찾을 수 없습니다."
	MsgInvalidCoordinate = "좌표 정보가 올바르지 않습니다."
	MsgOutsideKorea      = "국내 좌표 범위를 벗어났습니다."
	MsgEmptyAddress      = "주소가 비어있습니다."
)

// Phạm vi tọa độ lãnh thổ Hàn Quốc
const (
	KoreaMinLat = 33.0
	KoreaMaxLat = 43.0
	KoreaMinLng = 124.0
	KoreaMaxLng = 132.0
)

// Response response của Naver geocoding API
type Response struct {
	Status       string    `json:"status"`
	Meta         Meta      `json:"meta"`
	Addresses    []Address `json:"addresses"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Meta thông tin phân trang
type Meta struct {
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	Count      int `json:"count"`
}

// Address một kết quả khớp, sắp xếp theo độ liên quan giảm dần
type Address struct {
	RoadAddress     string                  `json:"roadAddress"`
	JibunAddress    string                  `json:"jibunAddress"`
	EnglishAddress  string                  `json:"englishAddress"`
	AddressElements []models.AddressElement `json:"addressElements"`
	X               string                  `json:"x"` // kinh độ
	Y               string                  `json:"y"` // vĩ độ
	Distance        float64                 `json:"distance"`
}

// Provider một lần gọi geocoding ra bên ngoài
type Provider interface {
	Lookup(ctx context.Context, query string) (*Response, error)
}

// Cache cache kết quả theo địa chỉ đã chuẩn hóa
type Cache interface {
	Get(ctx context.Context, key string) (*models.GeocodeResult, bool, error)
	Set(ctx context.Context, key string, result *models.GeocodeResult) error
	Clear(ctx context.Context) error
}

// StatusError lỗi HTTP không thành công từ provider
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("geocoding API trả về status %d", e.Code)
	}
	return fmt.Sprintf("geocoding API trả về status %d: %s", e.Code, e.Message)
}

// IsRetryable lỗi mạng, 5xx và 429 được retry. Các lỗi 4xx khác và lỗi hủy
// context thì không.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == 429
	}
	return true
}

// InKorea kiểm tra tọa độ nằm trong lãnh thổ Hàn Quốc
func InKorea(lat, lng float64) bool {
	return lat >= KoreaMinLat && lat <= KoreaMaxLat && lng >= KoreaMinLng && lng <= KoreaMaxLng
}

// FailedResult tạo kết quả failed với confidence 0
func FailedResult(address, message string, retryCount int) *models.GeocodeResult {
	return &models.GeocodeResult{
		Address:    address,
		Status:     models.GeocodeStatusFailed,
		Confidence: 0,
		Error:      message,
		RetryCount: retryCount,
	}
}
