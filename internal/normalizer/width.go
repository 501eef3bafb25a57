package normalizer

import (
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// FoldWidth đưa ký tự full-width (khoảng trắng 　, chữ số １２３...) về half-width
// và ghép Hangul jamo rời (NFD từ macOS/Excel) thành âm tiết NFC
func FoldWidth(s string) string {
	t := transform.Chain(norm.NFC, width.Fold)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
