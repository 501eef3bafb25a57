package models

// Point tọa độ một dòng thành công, dùng cho viewer bản đồ
type Point struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Address    string  `json:"address"`
	Original   string  `json:"original,omitempty"`
	Confidence float64 `json:"confidence"`
}

// PointsFromResults lấy tọa độ của các dòng thành công theo thứ tự input
func PointsFromResults(results []ProcessedAddress) []Point {
	points := make([]Point, 0, len(results))
	for _, r := range results {
		if !r.IsSuccess() || r.Lat == nil || r.Lng == nil {
			continue
		}
		points = append(points, Point{
			Lat:        *r.Lat,
			Lng:        *r.Lng,
			Address:    r.NormalizedAddress,
			Original:   r.OriginalAddress,
			Confidence: r.Confidence,
		})
	}
	return points
}
