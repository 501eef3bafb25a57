package normalizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

const (
	fuzzyMinRunes    = 4
	fuzzyMaxDistance = 1
	fuzzyMinJaro     = 0.9
)

// correctProvinceTypo sửa lỗi chính tả cho token đầu nếu nó gần đúng một tên
// tỉnh đầy đủ (ví dụ 서울특별사 → 서울특별시). Token ngắn hoặc đã hợp lệ thì bỏ qua.
func (n *Normalizer) correctProvinceTypo(s string) (string, string, bool) {
	tokens := tokenize(s)
	if len(tokens) == 0 {
		return s, "", false
	}

	first := tokens[0].text
	firstLen := utf8.RuneCountInString(first)
	if firstLen < fuzzyMinRunes {
		return s, "", false
	}
	if _, ok := n.known[first]; ok {
		return s, "", false
	}

	best := ""
	bestScore := 0.0
	for _, province := range n.provinces {
		// chỉ xét lỗi thay thế ký tự, không xét thêm/bớt (서울특별시청 là hợp lệ)
		if utf8.RuneCountInString(province) != firstLen {
			continue
		}
		if levenshtein.ComputeDistance(first, province) > fuzzyMaxDistance {
			continue
		}
		score := smetrics.JaroWinkler(first, province, 0.7, 4)
		if score >= fuzzyMinJaro && score > bestScore {
			best = province
			bestScore = score
		}
	}
	if best == "" {
		return s, "", false
	}

	tokens[0].text = best
	return joinTokens(tokens), fmt.Sprintf(noteTypoTemplate, first, best), true
}
