// Package artifact dựng và lưu các file kết quả của job (CSV, báo cáo Markdown).
package artifact

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/address-geocoder/internal/report"
)

var (
	ErrInvalidName = errors.New("tên file không hợp lệ")
	ErrNotFound    = errors.New("không tìm thấy file")
)

// Content type theo phần mở rộng
const (
	ContentTypeCSV      = "text/csv; charset=utf-8"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
	ContentTypeJSON     = "application/json"
	ContentTypeBinary   = "application/octet-stream"
)

// ResultsName tên file CSV các dòng thành công
func ResultsName(jobID string) string { return fmt.Sprintf("results_%s.csv", jobID) }

// ErrorsName tên file CSV các dòng thất bại
func ErrorsName(jobID string) string { return fmt.Sprintf("errors_%s.csv", jobID) }

// ReportName tên file báo cáo
func ReportName(jobID string) string { return report.FileName(jobID) }

// AddressCountsName tên file thống kê địa chỉ trùng
func AddressCountsName(jobID string) string { return fmt.Sprintf("address_counts_%s.csv", jobID) }

// RegionCountsName tên file thống kê theo 시군구
func RegionCountsName(jobID string) string { return fmt.Sprintf("region_counts_%s.csv", jobID) }

// ValidateName chặn path traversal: chỉ chấp nhận tên file đơn, không có
// dấu phân cách thư mục hay "..".
func ValidateName(name string) error {
	if name == "" || name == "." ||
		strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) ||
		strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ContentType suy ra content type từ phần mở rộng
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ContentTypeCSV
	case ".md":
		return ContentTypeMarkdown
	case ".json":
		return ContentTypeJSON
	default:
		return ContentTypeBinary
	}
}
