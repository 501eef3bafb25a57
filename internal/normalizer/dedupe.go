package normalizer

// Groups kết quả gom nhóm địa chỉ theo dạng đã chuẩn hóa
type Groups struct {
	Unique   []string         // địa chỉ gốc đầu tiên của mỗi dạng chuẩn hóa
	Keys     []string         // Keys[i] là dạng chuẩn hóa của Unique[i]
	IndexMap map[string][]int // dạng chuẩn hóa → các index gốc (tăng dần)
}

// Deduplicate gom các địa chỉ trùng sau chuẩn hóa. Chỉ là gợi ý tối ưu:
// mỗi dòng gốc vẫn có kết quả riêng.
func (n *Normalizer) Deduplicate(addresses []string) ([]string, map[string][]int) {
	g := Group(n.NormalizeBatch(addresses))
	return g.Unique, g.IndexMap
}

// Group gom nhóm các kết quả chuẩn hóa đã có sẵn
func Group(normalized []NormalizedAddress) Groups {
	g := Groups{IndexMap: make(map[string][]int)}
	for i, na := range normalized {
		key := na.Normalized
		if _, seen := g.IndexMap[key]; !seen {
			g.Unique = append(g.Unique, na.Original)
			g.Keys = append(g.Keys, key)
		}
		g.IndexMap[key] = append(g.IndexMap[key], i)
	}
	return g
}
