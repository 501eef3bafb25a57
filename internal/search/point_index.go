package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/address-geocoder/app/models"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// DefaultIndexName tên index mặc định
const DefaultIndexName = "geocoded_points"

const batchSize = 1000

// indexAPI phần của meilisearch.IndexManager mà PointIndex dùng
type indexAPI interface {
	UpdateSettings(request *meilisearch.Settings) (*meilisearch.TaskInfo, error)
	AddDocuments(documentsPtr interface{}, primaryKey ...string) (*meilisearch.TaskInfo, error)
	DeleteDocumentsByFilter(filter interface{}) (*meilisearch.TaskInfo, error)
	Search(query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
}

// PointIndex index tọa độ thành công của từng job
type PointIndex struct {
	index     indexAPI
	indexName string
	logger    *zap.Logger
}

// NewPointIndex tạo PointIndex trên index indexName
func NewPointIndex(client meilisearch.ServiceManager, indexName string, logger *zap.Logger) *PointIndex {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return newPointIndex(client.Index(indexName), indexName, logger)
}

func newPointIndex(index indexAPI, indexName string, logger *zap.Logger) *PointIndex {
	return &PointIndex{index: index, indexName: indexName, logger: logger}
}

// EnsureIndex cấu hình các thuộc tính filter/sort của index
func (p *PointIndex) EnsureIndex() error {
	task, err := p.index.UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"address", "original"},
		FilterableAttributes: []string{"job_id", "_geo"},
		SortableAttributes:   []string{"confidence", "_geo"},
	})
	if err != nil {
		return fmt.Errorf("lỗi cấu hình index: %w", err)
	}

	p.logger.Info("Đã cấu hình index Meilisearch",
		zap.String("index", p.indexName),
		zap.Int64("task_uid", task.TaskUID))
	return nil
}

// Documents chuyển kết quả thành document Meilisearch, chỉ dòng có tọa độ
func Documents(jobID string, results []models.ProcessedAddress) []map[string]interface{} {
	var docs []map[string]interface{}
	for _, r := range results {
		if !r.IsSuccess() || r.Lat == nil || r.Lng == nil {
			continue
		}
		docs = append(docs, map[string]interface{}{
			"id":         fmt.Sprintf("%s-%d", jobID, r.Index),
			"job_id":     jobID,
			"row":        r.Index,
			"address":    r.NormalizedAddress,
			"original":   r.OriginalAddress,
			"confidence": r.Confidence,
			"_geo":       map[string]float64{"lat": *r.Lat, "lng": *r.Lng},
		})
	}
	return docs
}

// IndexJob thêm tọa độ của job theo batch 1000 document
func (p *PointIndex) IndexJob(ctx context.Context, jobID string, results []models.ProcessedAddress) error {
	docs := Documents(jobID, results)
	if len(docs) == 0 {
		return nil
	}

	for i := 0; i < len(docs); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(docs))

		task, err := p.index.AddDocuments(docs[i:end], "id")
		if err != nil {
			return fmt.Errorf("lỗi thêm documents batch %d-%d: %w", i, end, err)
		}
		p.logger.Debug("Đã thêm batch documents",
			zap.String("job_id", jobID),
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int64("task_uid", task.TaskUID))
	}

	p.logger.Info("Đã index tọa độ", zap.String("job_id", jobID), zap.Int("documents", len(docs)))
	return nil
}

// DeleteJob xóa toàn bộ document của job
func (p *PointIndex) DeleteJob(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.index.DeleteDocumentsByFilter(FilterJob(jobID)); err != nil {
		return fmt.Errorf("lỗi xóa documents của job: %w", err)
	}
	return nil
}

// Search tìm tọa độ trong một job theo từ khóa (rỗng: tất cả)
func (p *PointIndex) Search(ctx context.Context, jobID, query string, limit int) ([]models.Point, error) {
	if jobID == "" {
		return nil, errors.New("job_id không được để trống")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1000
	}

	result, err := p.index.Search(query, &meilisearch.SearchRequest{
		Limit:  int64(limit),
		Filter: FilterJob(jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("lỗi tìm kiếm Meilisearch: %w", err)
	}

	return parseHits(result.Hits), nil
}

func parseHits(hits []interface{}) []models.Point {
	points := make([]models.Point, 0, len(hits))
	for _, hit := range hits {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		geo, ok := hitMap["_geo"].(map[string]interface{})
		if !ok {
			continue
		}
		lat, okLat := geo["lat"].(float64)
		lng, okLng := geo["lng"].(float64)
		if !okLat || !okLng {
			continue
		}

		pt := models.Point{Lat: lat, Lng: lng}
		if s, ok := hitMap["address"].(string); ok {
			pt.Address = s
		}
		if s, ok := hitMap["original"].(string); ok {
			pt.Original = s
		}
		if c, ok := hitMap["confidence"].(float64); ok {
			pt.Confidence = c
		}
		points = append(points, pt)
	}
	return points
}
