package artifact

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/internal/aggregate"
)

// utf8BOM để Excel nhận đúng tiếng Hàn
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const unknownError = "알 수 없음"

var (
	resultsHeader       = []string{"원본주소", "정규화된주소", "위도", "경도", "신뢰도", "도로명주소", "지번주소"}
	errorsHeader        = []string{"원본주소", "에러메시지"}
	addressCountsHeader = []string{"순위", "주소", "건수", "비율(%)"}
	regionCountsHeader  = []string{"순위", "시도", "시군구", "전체명", "건수", "비율(%)"}
)

// ResultsCSV các dòng thành công theo thứ tự input
func ResultsCSV(results []models.ProcessedAddress) ([]byte, error) {
	records := [][]string{resultsHeader}
	for _, r := range results {
		if !r.IsSuccess() {
			continue
		}
		records = append(records, []string{
			r.OriginalAddress,
			r.NormalizedAddress,
			coord(r.Lat),
			coord(r.Lng),
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			r.RoadAddress,
			r.JibunAddress,
		})
	}
	return encode(records)
}

// ErrorsCSV các dòng thất bại kèm thông báo lỗi
func ErrorsCSV(results []models.ProcessedAddress) ([]byte, error) {
	records := [][]string{errorsHeader}
	for _, r := range results {
		if r.IsSuccess() {
			continue
		}
		msg := r.Error
		if msg == "" {
			msg = unknownError
		}
		records = append(records, []string{r.OriginalAddress, msg})
	}
	return encode(records)
}

// AddressCountsCSV bảng top địa chỉ trùng
func AddressCountsCSV(rows []aggregate.AddressCount) ([]byte, error) {
	records := [][]string{addressCountsHeader}
	for i, r := range rows {
		records = append(records, []string{
			strconv.Itoa(i + 1),
			r.Address,
			strconv.Itoa(r.Count),
			strconv.FormatFloat(r.Percentage, 'f', 1, 64),
		})
	}
	return encode(records)
}

// RegionCountsCSV bảng top 시군구
func RegionCountsCSV(rows []aggregate.RegionCount) ([]byte, error) {
	records := [][]string{regionCountsHeader}
	for i, r := range rows {
		records = append(records, []string{
			strconv.Itoa(i + 1),
			r.Province,
			r.City,
			r.FullName,
			strconv.Itoa(r.Count),
			strconv.FormatFloat(r.Percentage, 'f', 1, 64),
		})
	}
	return encode(records)
}

// HasFailures có ít nhất một dòng thất bại
func HasFailures(results []models.ProcessedAddress) bool {
	for _, r := range results {
		if !r.IsSuccess() {
			return true
		}
	}
	return false
}

func encode(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func coord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
