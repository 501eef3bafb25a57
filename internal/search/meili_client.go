// Package search index tọa độ đã geocode vào Meilisearch cho viewer bản đồ
package search

import (
	"fmt"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// Config cấu hình kết nối Meilisearch
type Config struct {
	Host      string
	APIKey    string
	IndexName string
}

// NewClient tạo Meilisearch client và kiểm tra kết nối
func NewClient(cfg Config, logger *zap.Logger) (meilisearch.ServiceManager, error) {
	client := meilisearch.New(cfg.Host, meilisearch.WithAPIKey(cfg.APIKey))

	health, err := client.Health()
	if err != nil {
		return nil, fmt.Errorf("không thể kết nối Meilisearch: %w", err)
	}

	logger.Info("Kết nối Meilisearch thành công",
		zap.String("host", cfg.Host),
		zap.String("status", health.Status))
	return client, nil
}

// FilterJob filter theo job_id
func FilterJob(jobID string) string {
	return fmt.Sprintf("job_id = %q", jobID)
}
