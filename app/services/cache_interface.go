package services

import (
	"context"
	"time"

	"github.com/address-geocoder/app/models"
)

// CacheStats thống kê cache
type CacheStats struct {
	Driver     string  `json:"driver"`
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

// ICacheService interface cache kết quả geocode, key là địa chỉ đã chuẩn hóa
type ICacheService interface {
	// Get lấy kết quả geocode từ cache
	Get(ctx context.Context, key string) (*models.GeocodeResult, bool, error)

	// Set lưu kết quả geocode vào cache
	Set(ctx context.Context, key string, result *models.GeocodeResult) error

	// Delete xóa một key khỏi cache
	Delete(ctx context.Context, key string) error

	// Clear xóa tất cả cache
	Clear(ctx context.Context) error

	// GetStats lấy thống kê cache
	GetStats(ctx context.Context) (*CacheStats, error)

	// Exists kiểm tra key có tồn tại không
	Exists(ctx context.Context, key string) (bool, error)

	// GetTTL lấy TTL còn lại của key (0 nếu không hết hạn)
	GetTTL(ctx context.Context, key string) (time.Duration, error)

	// Close đóng kết nối (nếu cần)
	Close() error
}

func hitRate(hits, misses int64) float64 {
	if total := hits + misses; total > 0 {
		return float64(hits) / float64(total)
	}
	return 0
}
