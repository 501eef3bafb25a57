// Package report dựng báo cáo Markdown cho một job đã hoàn thành.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/internal/aggregate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	noData        = "데이터가 없습니다."
	unknownError  = "알 수 없는 오류"
	maxErrorTypes = 10
	maxSamples    = 5
)

// Ngưỡng phân loại độ tin cậy
const (
	HighConfidence = 85
	MidConfidence  = 70
)

// Data dữ liệu đầu vào của báo cáo
type Data struct {
	JobID          string
	Source         string // tên file hoặc nguồn input
	GeneratedAt    time.Time
	Results        []models.ProcessedAddress
	TotalCount     int
	SuccessCount   int
	FailedCount    int
	ProcessingTime time.Duration
}

// Options tùy chọn nội dung báo cáo
type Options struct {
	TopN          int  // <= 0 dùng aggregate.DefaultTopN
	IncludeErrors bool // thêm phần tổng hợp lỗi khi có dòng thất bại
}

// DefaultOptions tùy chọn mặc định
func DefaultOptions() Options {
	return Options{TopN: aggregate.DefaultTopN, IncludeErrors: true}
}

// FileName tên file báo cáo của job
func FileName(jobID string) string {
	return fmt.Sprintf("report_%s.md", jobID)
}

// ConfidenceBands số dòng theo từng mức độ tin cậy
type ConfidenceBands struct {
	High, Mid, Low int
}

// Bands phân loại độ tin cậy: High >= 85, Mid 70-84, Low < 70
func Bands(results []models.ProcessedAddress) ConfidenceBands {
	var b ConfidenceBands
	for _, r := range results {
		switch {
		case r.Confidence >= HighConfidence:
			b.High++
		case r.Confidence >= MidConfidence:
			b.Mid++
		default:
			b.Low++
		}
	}
	return b
}

// ErrorType số dòng thất bại theo thông báo lỗi
type ErrorType struct {
	Message string
	Count   int
}

// ErrorTypes gom lỗi theo chuỗi thông báo chính xác, giảm dần theo số lần
func ErrorTypes(results []models.ProcessedAddress) []ErrorType {
	counts := make(map[string]int)
	var order []string
	for _, r := range results {
		if r.IsSuccess() {
			continue
		}
		msg := r.Error
		if msg == "" {
			msg = unknownError
		}
		if _, seen := counts[msg]; !seen {
			order = append(order, msg)
		}
		counts[msg]++
	}

	out := make([]ErrorType, 0, len(order))
	for _, msg := range order {
		out = append(out, ErrorType{Message: msg, Count: counts[msg]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Generate dựng báo cáo Markdown. Hàm thuần, không I/O.
func Generate(data Data, opts Options) string {
	topN := opts.TopN
	if topN <= 0 {
		topN = aggregate.DefaultTopN
	}
	p := message.NewPrinter(language.Korean)

	successful := aggregate.SuccessfulAddresses(data.Results)
	addrAgg := aggregate.Addresses(successful, topN)
	regionAgg := aggregate.Regions(successful, topN)
	bands := Bands(data.Results)

	var sb strings.Builder
	line := func(format string, args ...any) {
		sb.WriteString(p.Sprintf(format, args...))
		sb.WriteByte('\n')
	}

	line("# 주소 지오코딩 분석 리포트\n")
	line("**생성일시:** %s\n", data.GeneratedAt.Format("2006-01-02 15:04:05"))
	if data.Source != "" {
		line("**원본 파일:** %s\n", data.Source)
	}
	line("**작업 ID:** %s\n", data.JobID)
	line("---\n")

	line("## 📊 요약\n")
	line("- **총 건수:** %d건", data.TotalCount)
	line("- **성공:** %d건 (%s%%)", data.SuccessCount, pct(data.SuccessCount, data.TotalCount))
	line("- **실패:** %d건 (%s%%)", data.FailedCount, pct(data.FailedCount, data.TotalCount))
	line("- **처리 시간:** %.1f초", data.ProcessingTime.Seconds())
	line("- **평균 신뢰도:** %.1f점\n", averageConfidence(data.Results))

	line("## 📍 동일 주소 개수 통계 (Top %d)\n", topN)
	line("- **전체 주소 수:** %d건", addrAgg.Total)
	line("- **고유 주소 수:** %d건", addrAgg.Unique)
	line("- **중복 주소 수:** %d건\n", addrAgg.Duplicates)
	sb.WriteString(addressTable(addrAgg.Top))
	sb.WriteString("\n\n")

	line("## 🏘️ 시군구별 통계 (Top %d)\n", topN)
	line("- **집계된 시군구:** %d개", len(regionAgg.Top))
	line("- **유효 주소:** %d건\n", regionAgg.Total)
	sb.WriteString(regionTable(regionAgg.Top))
	sb.WriteString("\n\n")

	line("## 📈 신뢰도 분포\n")
	total := len(data.Results)
	line("- **높음 (≥85점):** %d건 (%s%%)", bands.High, pct(bands.High, total))
	line("- **보통 (70-84점):** %d건 (%s%%)", bands.Mid, pct(bands.Mid, total))
	line("- **낮음 (<70점):** %d건 (%s%%)\n", bands.Low, pct(bands.Low, total))

	if opts.IncludeErrors {
		writeErrors(&sb, data.Results)
	}

	line("---\n")
	sb.WriteString("*이 리포트는 주소 지오코딩 시스템에 의해 자동 생성되었습니다.*\n")

	return sb.String()
}

func writeErrors(sb *strings.Builder, results []models.ProcessedAddress) {
	var failed []models.ProcessedAddress
	for _, r := range results {
		if !r.IsSuccess() {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return
	}

	fmt.Fprintf(sb, "## ⚠️ 에러 요약\n\n")
	fmt.Fprintf(sb, "총 %d건의 에러가 발생했습니다.\n\n", len(failed))

	fmt.Fprintf(sb, "### 에러 유형별 통계\n\n")
	sb.WriteString("| 에러 유형 | 건수 |\n")
	sb.WriteString("|-----------|------|\n")
	types := ErrorTypes(results)
	if len(types) > maxErrorTypes {
		types = types[:maxErrorTypes]
	}
	for _, et := range types {
		fmt.Fprintf(sb, "| %s | %d |\n", cell(et.Message), et.Count)
	}
	sb.WriteString("\n")

	fmt.Fprintf(sb, "### 실패한 주소 샘플\n\n")
	if len(failed) > maxSamples {
		failed = failed[:maxSamples]
	}
	for i, r := range failed {
		msg := r.Error
		if msg == "" {
			msg = unknownError
		}
		fmt.Fprintf(sb, "%d. **%s**\n", i+1, r.OriginalAddress)
		fmt.Fprintf(sb, "   - 오류: %s\n\n", msg)
	}
}

func addressTable(rows []aggregate.AddressCount) string {
	if len(rows) == 0 {
		return noData
	}
	lines := []string{
		"| 순위 | 주소 | 건수 | 비율 |",
		"|------|------|------|------|",
	}
	for i, r := range rows {
		lines = append(lines, fmt.Sprintf("| %d | %s | %d | %.1f%% |", i+1, cell(r.Address), r.Count, r.Percentage))
	}
	return strings.Join(lines, "\n")
}

func regionTable(rows []aggregate.RegionCount) string {
	if len(rows) == 0 {
		return noData
	}
	lines := []string{
		"| 순위 | 시군구 | 건수 | 비율 |",
		"|------|--------|------|------|",
	}
	for i, r := range rows {
		lines = append(lines, fmt.Sprintf("| %d | %s | %d | %.1f%% |", i+1, cell(r.FullName), r.Count, r.Percentage))
	}
	return strings.Join(lines, "\n")
}

func averageConfidence(results []models.ProcessedAddress) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Confidence
	}
	return sum / float64(len(results))
}

// pct phần trăm một chữ số thập phân, 0.0 khi total = 0
func pct(n, total int) string {
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(n)/float64(total)*100)
}

// cell escape ký tự | trong ô bảng Markdown
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
