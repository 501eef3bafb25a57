package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Các ghi chú correction (hiển thị cho người dùng cuối nên giữ tiếng Hàn)
const (
	NoteInvalid      = "주소가 유효하지 않습니다."
	NoteWhitespace   = "공백 및 특수문자 정리"
	NoteEmpty        = "주소가 비어있습니다."
	NoteTooShort     = "주소가 너무 짧습니다."
	NoteNoAdminArea  = "행정구역 정보가 부족합니다."
	NoteDone         = "정규화 완료"
	noteTypoTemplate = "오타 보정: %s → %s"
)

// Điểm confidence
const (
	baseConfidence       = 100
	abbreviationBonus    = 5
	shortAddressPenalty  = 20
	noAdminAreaPenalty   = 15
	minAddressRuneLength = 5
)

var (
	digitSpaceDigit = regexp.MustCompile(`(\d)\s+(\d)`)
	multiSpace      = regexp.MustCompile(`\s{2,}`)
)

// NormalizedAddress kết quả chuẩn hóa một địa chỉ
type NormalizedAddress struct {
	Original    string   `json:"original"`
	Normalized  string   `json:"normalized"`
	Confidence  int      `json:"confidence"` // 0-100
	Corrections []string `json:"corrections"`
}

// Normalizer chuẩn hóa địa chỉ Hàn Quốc. Không có state thay đổi sau khi tạo,
// an toàn khi dùng đồng thời từ nhiều goroutine.
type Normalizer struct {
	abbreviations []Abbreviation
	adminArea     *regexp.Regexp
	provinces     []string
	known         map[string]struct{}
	fuzzyProvince bool
}

// Option tùy chọn cho Normalizer
type Option func(*Normalizer)

// WithFuzzyProvince bật/tắt sửa lỗi chính tả tên tỉnh ở token đầu tiên
func WithFuzzyProvince(enabled bool) Option {
	return func(n *Normalizer) { n.fuzzyProvince = enabled }
}

// New tạo Normalizer từ rules embedded
func New(opts ...Option) (*Normalizer, error) {
	rules, err := LoadRulesConfig()
	if err != nil {
		return nil, err
	}
	return newFromRules(rules, opts...)
}

// MustNew giống New nhưng panic nếu rules embedded lỗi
func MustNew(opts ...Option) *Normalizer {
	n, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return n
}

func newFromRules(rules *RulesConfig, opts ...Option) (*Normalizer, error) {
	adminArea, err := regexp.Compile(rules.AdminAreaPattern)
	if err != nil {
		return nil, fmt.Errorf("lỗi compile admin_area_pattern: %w", err)
	}

	known := make(map[string]struct{}, len(rules.Provinces)+len(rules.Abbreviations)*2)
	for _, p := range rules.Provinces {
		known[p] = struct{}{}
	}
	for _, a := range rules.Abbreviations {
		known[a.Abbr] = struct{}{}
		known[a.Full] = struct{}{}
	}

	n := &Normalizer{
		abbreviations: rules.Abbreviations,
		adminArea:     adminArea,
		provinces:     rules.Provinces,
		known:         known,
		fuzzyProvince: true,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Normalize chuẩn hóa một địa chỉ thô. Không bao giờ trả lỗi: input rỗng
// cho kết quả confidence 0.
func (n *Normalizer) Normalize(raw string) NormalizedAddress {
	if raw == "" {
		return NormalizedAddress{
			Original:    raw,
			Normalized:  "",
			Confidence:  0,
			Corrections: []string{NoteInvalid},
		}
	}

	var corrections []string
	confidence := baseConfidence

	// 1. Khoảng trắng, full-width, số bị tách
	normalized := basicNormalize(raw)
	if normalized != raw {
		corrections = append(corrections, NoteWhitespace)
	}

	// 2. Sửa lỗi chính tả tên tỉnh
	if n.fuzzyProvince {
		if fixed, note, ok := n.correctProvinceTypo(normalized); ok {
			normalized = fixed
			corrections = append(corrections, note)
		}
	}

	// 3. Mở rộng viết tắt
	expanded, applied := n.expandAbbreviations(normalized)
	normalized = expanded
	if len(applied) > 0 {
		corrections = append(corrections, applied...)
		confidence += abbreviationBonus
	}

	// 4. Rỗng / quá ngắn / thiếu token hành chính
	if strings.TrimSpace(normalized) == "" {
		confidence = 0
		corrections = append(corrections, NoteEmpty)
	}
	if utf8.RuneCountInString(normalized) < minAddressRuneLength {
		confidence -= shortAddressPenalty
		corrections = append(corrections, NoteTooShort)
	}
	if !n.HasAdminArea(normalized) {
		confidence -= noAdminAreaPenalty
		corrections = append(corrections, NoteNoAdminArea)
	}

	if len(corrections) == 0 {
		corrections = []string{NoteDone}
	}

	return NormalizedAddress{
		Original:    raw,
		Normalized:  normalized,
		Confidence:  clamp(confidence, 0, 100),
		Corrections: corrections,
	}
}

// NormalizeBatch chuẩn hóa từng địa chỉ, không có state giữa các phần tử
func (n *Normalizer) NormalizeBatch(addresses []string) []NormalizedAddress {
	out := make([]NormalizedAddress, len(addresses))
	for i, addr := range addresses {
		out[i] = n.Normalize(addr)
	}
	return out
}

// HasAdminArea kiểm tra chuỗi có token hành chính (시/군/구/도...)
func (n *Normalizer) HasAdminArea(s string) bool {
	return n.adminArea.MatchString(s)
}

func basicNormalize(s string) string {
	out := FoldWidth(s)
	out = strings.TrimSpace(out)
	out = digitSpaceDigit.ReplaceAllString(out, "${1}-${2}")
	out = multiSpace.ReplaceAllString(out, " ")
	return out
}

// expandAbbreviations chỉ thay token đứng riêng và có khoảng trắng phía sau
// (đầu chuỗi hoặc giữa chuỗi). Token cuối và chuỗi con không bao giờ bị thay.
func (n *Normalizer) expandAbbreviations(s string) (string, []string) {
	tokens := tokenize(s)
	var applied []string

	for _, rule := range n.abbreviations {
		hit := false
		for i := range tokens {
			if tokens[i].text == rule.Abbr && tokens[i].sep != "" {
				tokens[i].text = rule.Full
				hit = true
			}
		}
		if hit {
			applied = append(applied, rule.Abbr+" → "+rule.Full)
		}
	}

	if len(applied) == 0 {
		return s, nil
	}
	return joinTokens(tokens), applied
}

type token struct {
	text string
	sep  string // khoảng trắng ngay sau token
}

func tokenize(s string) []token {
	var tokens []token
	i := 0
	for i < len(s) {
		j := i
		for j < len(s) {
			r, size := utf8.DecodeRuneInString(s[j:])
			if unicode.IsSpace(r) {
				break
			}
			j += size
		}
		k := j
		for k < len(s) {
			r, size := utf8.DecodeRuneInString(s[k:])
			if !unicode.IsSpace(r) {
				break
			}
			k += size
		}
		tokens = append(tokens, token{text: s[i:j], sep: s[j:k]})
		i = k
	}
	return tokens
}

func joinTokens(tokens []token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.text)
		b.WriteString(t.sep)
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
