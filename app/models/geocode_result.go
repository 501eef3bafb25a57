package models

// GeocodeStatus trạng thái kết quả geocode
type GeocodeStatus string

const (
	GeocodeStatusSuccess GeocodeStatus = "success"
	GeocodeStatusFailed  GeocodeStatus = "failed"
	GeocodeStatusPartial GeocodeStatus = "partial" // có tọa độ nhưng nằm ngoài phạm vi Hàn Quốc
)

// AddressElement thành phần địa chỉ do provider trả về
type AddressElement struct {
	Types     []string `bson:"types" json:"types"`
	LongName  string   `bson:"long_name" json:"longName"`
	ShortName string   `bson:"short_name" json:"shortName"`
	Code      string   `bson:"code" json:"code"`
}

// GeocodeResult kết quả một lần tra cứu địa chỉ → tọa độ
type GeocodeResult struct {
	Address         string           `bson:"address" json:"address"`                                       // Địa chỉ đã query
	Lat             *float64         `bson:"lat,omitempty" json:"lat,omitempty"`                           // Vĩ độ
	Lng             *float64         `bson:"lng,omitempty" json:"lng,omitempty"`                           // Kinh độ
	Status          GeocodeStatus    `bson:"status" json:"status"`                                         // success | failed | partial
	Confidence      float64          `bson:"confidence" json:"confidence"`                                 // 0-100
	RoadAddress     string           `bson:"road_address,omitempty" json:"road_address,omitempty"`         // Địa chỉ đường (도로명)
	JibunAddress    string           `bson:"jibun_address,omitempty" json:"jibun_address,omitempty"`       // Địa chỉ lô đất (지번)
	EnglishAddress  string           `bson:"english_address,omitempty" json:"english_address,omitempty"`   // Địa chỉ tiếng Anh
	AddressElements []AddressElement `bson:"address_elements,omitempty" json:"address_elements,omitempty"` // Thành phần địa chỉ
	Error           string           `bson:"error,omitempty" json:"error,omitempty"`                       // Thông báo lỗi
	RetryCount      int              `bson:"retry_count" json:"retry_count"`                               // Số lần retry
}

// IsSuccess kiểm tra kết quả thành công và có tọa độ
func (r *GeocodeResult) IsSuccess() bool {
	return r != nil && r.Status == GeocodeStatusSuccess && r.Lat != nil && r.Lng != nil
}

// Clone tạo bản sao độc lập (dùng khi trả về từ cache)
func (r *GeocodeResult) Clone() *GeocodeResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Lat != nil {
		lat := *r.Lat
		out.Lat = &lat
	}
	if r.Lng != nil {
		lng := *r.Lng
		out.Lng = &lng
	}
	if r.AddressElements != nil {
		out.AddressElements = make([]AddressElement, len(r.AddressElements))
		for i, el := range r.AddressElements {
			el.Types = append([]string(nil), el.Types...)
			out.AddressElements[i] = el
		}
	}
	return &out
}

// ProcessedAddressStatus trạng thái cuối cùng của một dòng
type ProcessedAddressStatus string

const (
	ProcessedSuccess ProcessedAddressStatus = "success"
	ProcessedFailed  ProcessedAddressStatus = "failed"
)

// ProcessedAddress kết quả cuối của một dòng (chuẩn hóa + geocode)
type ProcessedAddress struct {
	Index             int                    `bson:"index" json:"index"`                           // Vị trí dòng trong input
	OriginalAddress   string                 `bson:"original_address" json:"original_address"`     // Địa chỉ gốc
	NormalizedAddress string                 `bson:"normalized_address" json:"normalized_address"` // Địa chỉ đã chuẩn hóa
	Lat               *float64               `bson:"lat,omitempty" json:"lat,omitempty"`
	Lng               *float64               `bson:"lng,omitempty" json:"lng,omitempty"`
	Confidence        float64                `bson:"confidence" json:"confidence"` // min(chuẩn hóa, geocode)
	Status            ProcessedAddressStatus `bson:"status" json:"status"`         // success | failed
	Error             string                 `bson:"error,omitempty" json:"error,omitempty"`
	RoadAddress       string                 `bson:"road_address,omitempty" json:"road_address,omitempty"`
	JibunAddress      string                 `bson:"jibun_address,omitempty" json:"jibun_address,omitempty"`
	Corrections       []string               `bson:"corrections,omitempty" json:"corrections,omitempty"` // Các bước chuẩn hóa đã áp dụng
	Reused            bool                   `bson:"reused,omitempty" json:"reused,omitempty"`           // Dùng lại kết quả của dòng trùng trước đó
}

// IsSuccess dòng thành công
func (p ProcessedAddress) IsSuccess() bool {
	return p.Status == ProcessedSuccess
}
