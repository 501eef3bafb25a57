// Package detect đoán cột chứa địa chỉ trong dữ liệu dạng bảng dựa trên tên
// header và mẫu giá trị.
package detect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// AutoThreshold điểm tối thiểu để tự chọn cột
	AutoThreshold = 50.0
	// CandidateThreshold điểm tối thiểu để vào danh sách gợi ý
	CandidateThreshold = 20.0

	headerWeight = 0.6
	valueWeight  = 0.4
	sampleRows   = 10
	previewRows  = 5
	minValueLen  = 3
)

type keyword struct {
	pattern string
	weight  float64
}

// thứ tự quan trọng: khớp đầu tiên thắng
var headerKeywords = []keyword{
	{"주소", 100},
	{"address", 100},
	{"도로명", 90},
	{"지번", 90},
	{"addr", 85},
	{"주소지", 80},
	{"거주지", 70},
	{"본적", 70},
	{"위치", 60},
	{"location", 60},
	{"주민", 50},
	{"고객", 30},
	{"환자", 30},
}

var partialKeywords = []keyword{
	{"주", 40},
	{"지", 30},
	{"위", 20},
}

var addressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`서울특별시|부산광역시|대구광역시|인천광역시|광주광역시|대전광역시|울산광역시|세종특별자치시|경기도|강원도|충청북도|충청남도|전라북도|전라남도|경상북도|경상남도|제주특별자치도`),
	regexp.MustCompile(`시\s|군\s|구\s|동\s|읍\s|면\s`),
	regexp.MustCompile(`로\s\d+|길\s\d+|대로\s\d+`),
	regexp.MustCompile(`\d+-\d+|\d+번지`),
	regexp.MustCompile(`아파트|빌라|상가|건물|동\s\d+호|층`),
	regexp.MustCompile(`서울|부산|대구|인천|광주|대전|울산|세종|경기|강원|충북|충남|전북|전남|경북|경남|제주`),
}

// Candidate một cột có khả năng chứa địa chỉ
type Candidate struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Detection cột được chọn và chi tiết điểm
type Detection struct {
	Column       string   `json:"column"`
	Confidence   float64  `json:"confidence"`
	HeaderMatch  float64  `json:"header_match"`
	ValueMatch   float64  `json:"value_match"`
	SampleValues []string `json:"sample_values"`
	Auto         bool     `json:"auto"` // Confidence >= AutoThreshold
}

// Detect chọn cột có điểm cao nhất. Trả về nil khi không có header, không có
// dòng hoặc không cột nào có điểm > 0.
func Detect(headers []string, rows []map[string]string) *Detection {
	if len(headers) == 0 || len(rows) == 0 {
		return nil
	}

	var best string
	bestScore := 0.0
	for _, h := range headers {
		if score := Score(h, rows); score > bestScore {
			best, bestScore = h, score
		}
	}
	if bestScore == 0 {
		return nil
	}

	var samples []string
	for _, row := range head(rows, previewRows) {
		if v := strings.TrimSpace(row[best]); v != "" {
			samples = append(samples, v)
		}
	}

	return &Detection{
		Column:       best,
		Confidence:   bestScore,
		HeaderMatch:  HeaderScore(best),
		ValueMatch:   ValueScore(rows, best),
		SampleValues: samples,
		Auto:         bestScore >= AutoThreshold,
	}
}

// Candidates các cột có điểm > CandidateThreshold, giảm dần theo điểm
func Candidates(headers []string, rows []map[string]string) []Candidate {
	var out []Candidate
	for _, h := range headers {
		score := Score(h, rows)
		if score > CandidateThreshold {
			out = append(out, Candidate{
				Name:       h,
				Confidence: score,
				Reason:     fmt.Sprintf("헤더: %s (신뢰도: %.1f%%)", h, score),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Score điểm tổng: header×0.6 + value×0.4
func Score(header string, rows []map[string]string) float64 {
	return HeaderScore(header)*headerWeight + ValueScore(rows, header)*valueWeight
}

// HeaderScore điểm theo từ khóa trong tên cột
func HeaderScore(header string) float64 {
	h := strings.ToLower(header)
	for _, k := range headerKeywords {
		if strings.Contains(h, k.pattern) {
			return k.weight
		}
	}
	for _, k := range partialKeywords {
		if strings.Contains(h, k.pattern) {
			return k.weight
		}
	}
	return 0
}

// ValueScore tỉ lệ (0-100) giá trị giống địa chỉ Hàn Quốc trong tối đa 10 dòng
// đầu. Giá trị ngắn hơn 3 ký tự bị bỏ qua.
func ValueScore(rows []map[string]string, column string) float64 {
	matches, valid := 0, 0
	for _, row := range head(rows, sampleRows) {
		v := strings.TrimSpace(row[column])
		if utf8.RuneCountInString(v) < minValueLen {
			continue
		}
		valid++
		if LooksLikeAddress(v) {
			matches++
		}
	}
	if valid == 0 {
		return 0
	}
	return float64(matches) / float64(valid) * 100
}

// LooksLikeAddress kiểm tra giá trị có mẫu địa chỉ Hàn Quốc
func LooksLikeAddress(v string) bool {
	for _, p := range addressPatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

// Column lấy giá trị của một cột theo thứ tự dòng
func Column(rows []map[string]string, column string) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row[column]
	}
	return out
}

// HasColumn kiểm tra header có tồn tại
func HasColumn(headers []string, column string) bool {
	for _, h := range headers {
		if h == column {
			return true
		}
	}
	return false
}

func head(rows []map[string]string, n int) []map[string]string {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}
