// Package aggregate thống kê số lần xuất hiện của địa chỉ và của đơn vị hành
// chính (시/도 + 시/군/구) trong một job.
package aggregate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/address-geocoder/app/models"
)

// DefaultTopN số dòng mặc định của bảng top
const DefaultTopN = 20

var (
	provincePattern = regexp.MustCompile(`^([가-힣]+(?:특별시|광역시|특별자치시|특별자치도|도))`)
	cityPattern     = regexp.MustCompile(`([가-힣]+(?:시|군|구))`)
)

// AddressCount số lần xuất hiện của một địa chỉ
type AddressCount struct {
	Address    string  `json:"address"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// AddressAggregation kết quả thống kê địa chỉ trùng
type AddressAggregation struct {
	Total      int            `json:"total"`      // số địa chỉ không rỗng
	Unique     int            `json:"unique"`     // số địa chỉ khác nhau
	Duplicates int            `json:"duplicates"` // Total - Unique
	Top        []AddressCount `json:"top"`
}

// RegionCount số địa chỉ thuộc một 시/군/구
type RegionCount struct {
	Province   string  `json:"province"`  // 시/도
	City       string  `json:"city"`      // 시/군/구, rỗng nếu không tách được
	FullName   string  `json:"full_name"` // "시/도 시/군/구" hoặc chỉ 시/도
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ProvinceCount số địa chỉ thuộc một 시/도
type ProvinceCount struct {
	Province string `json:"province"`
	Count    int    `json:"count"`
}

// RegionAggregation kết quả thống kê theo đơn vị hành chính
type RegionAggregation struct {
	Total     int             `json:"total"` // số địa chỉ tách được 시/도
	Top       []RegionCount   `json:"top"`
	Provinces []ProvinceCount `json:"provinces"`
}

// Addresses đếm địa chỉ giống hệt nhau (so sánh chuỗi chính xác, bỏ qua chuỗi
// rỗng). Kết quả sắp xếp giảm dần theo số lần, cùng số lần thì giữ thứ tự
// xuất hiện đầu tiên. topN <= 0 dùng DefaultTopN.
func Addresses(addresses []string, topN int) AddressAggregation {
	if topN <= 0 {
		topN = DefaultTopN
	}

	counts := make(map[string]int)
	var order []string
	total := 0

	for _, addr := range addresses {
		if strings.TrimSpace(addr) == "" {
			continue
		}
		total++
		if _, seen := counts[addr]; !seen {
			order = append(order, addr)
		}
		counts[addr]++
	}

	all := make([]AddressCount, 0, len(order))
	for _, addr := range order {
		all = append(all, AddressCount{
			Address:    addr,
			Count:      counts[addr],
			Percentage: percent(counts[addr], total),
		})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Count > all[j].Count })

	return AddressAggregation{
		Total:      total,
		Unique:     len(order),
		Duplicates: total - len(order),
		Top:        head(all, topN),
	}
}

// Regions đếm địa chỉ theo 시/도 + 시/군/구. Địa chỉ không bắt đầu bằng tên
// 시/도 đầy đủ bị bỏ qua, phần trăm tính trên số địa chỉ tách được.
func Regions(addresses []string, topN int) RegionAggregation {
	if topN <= 0 {
		topN = DefaultTopN
	}

	regions := make(map[string]*RegionCount)
	var order []string
	provinces := make(map[string]int)
	var provinceOrder []string
	total := 0

	for _, addr := range addresses {
		province, city, ok := ExtractRegion(addr)
		if !ok {
			continue
		}
		total++

		fullName := province
		if city != "" {
			fullName = province + " " + city
		}
		rc, exists := regions[fullName]
		if !exists {
			rc = &RegionCount{Province: province, City: city, FullName: fullName}
			regions[fullName] = rc
			order = append(order, fullName)
		}
		rc.Count++

		if _, seen := provinces[province]; !seen {
			provinceOrder = append(provinceOrder, province)
		}
		provinces[province]++
	}

	all := make([]RegionCount, 0, len(order))
	for _, name := range order {
		rc := *regions[name]
		rc.Percentage = percent(rc.Count, total)
		all = append(all, rc)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Count > all[j].Count })

	provinceCounts := make([]ProvinceCount, 0, len(provinceOrder))
	for _, p := range provinceOrder {
		provinceCounts = append(provinceCounts, ProvinceCount{Province: p, Count: provinces[p]})
	}
	sort.SliceStable(provinceCounts, func(i, j int) bool { return provinceCounts[i].Count > provinceCounts[j].Count })

	return RegionAggregation{
		Total:     total,
		Top:       head(all, topN),
		Provinces: provinceCounts,
	}
}

// ExtractRegion tách 시/도 và 시/군/구 từ địa chỉ đã chuẩn hóa
func ExtractRegion(address string) (province, city string, ok bool) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", "", false
	}

	m := provincePattern.FindStringSubmatch(address)
	if m == nil {
		return "", "", false
	}
	province = m[1]

	rest := strings.TrimSpace(address[len(province):])
	if cm := cityPattern.FindStringSubmatch(rest); cm != nil {
		city = cm[1]
	}
	return province, city, true
}

// SuccessfulAddresses địa chỉ đã chuẩn hóa của các dòng thành công, theo thứ tự input
func SuccessfulAddresses(results []models.ProcessedAddress) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.IsSuccess() {
			out = append(out, r.NormalizedAddress)
		}
	}
	return out
}

func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
