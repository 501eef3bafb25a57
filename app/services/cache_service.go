package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/address-geocoder/app/models"
)

type memoryEntry struct {
	result   *models.GeocodeResult
	storedAt time.Time
}

// CacheService cache in-memory cho một process. ttl <= 0 nghĩa là không hết
// hạn: kết quả sống suốt vòng đời process và chỉ bị xóa khi gọi Clear/Delete.
type CacheService struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCacheService tạo mới CacheService
func NewCacheService(ttl time.Duration) *CacheService {
	return &CacheService{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Get lấy bản sao kết quả từ cache
func (cs *CacheService) Get(ctx context.Context, key string) (*models.GeocodeResult, bool, error) {
	cs.mu.RLock()
	entry, exists := cs.entries[key]
	cs.mu.RUnlock()

	if !exists || cs.expired(entry) {
		cs.misses.Add(1)
		return nil, false, nil
	}

	cs.hits.Add(1)
	return entry.result.Clone(), true, nil
}

// Set lưu bản sao kết quả vào cache
func (cs *CacheService) Set(ctx context.Context, key string, result *models.GeocodeResult) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.entries[key] = memoryEntry{result: result.Clone(), storedAt: time.Now()}
	return nil
}

// Delete xóa item khỏi cache
func (cs *CacheService) Delete(ctx context.Context, key string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.entries, key)
	return nil
}

// Clear xóa toàn bộ cache và reset thống kê
func (cs *CacheService) Clear(ctx context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.entries = make(map[string]memoryEntry)
	cs.hits.Store(0)
	cs.misses.Store(0)
	return nil
}

// Size số item trong cache
func (cs *CacheService) Size() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return len(cs.entries)
}

// GetStats lấy thống kê cache
func (cs *CacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	hits, misses := cs.hits.Load(), cs.misses.Load()
	return &CacheStats{
		Driver:     "memory",
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: int64(cs.Size()),
	}, nil
}

// CleanupExpired xóa các item hết hạn, trả về số item đã xóa
func (cs *CacheService) CleanupExpired() int {
	if cs.ttl <= 0 {
		return 0
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	removed := 0
	for key, entry := range cs.entries {
		if cs.expired(entry) {
			delete(cs.entries, key)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker chạy CleanupExpired định kỳ tới khi ctx bị hủy
func (cs *CacheService) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	if cs.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

// Exists kiểm tra key có tồn tại không
func (cs *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.entries[key]
	return exists && !cs.expired(entry), nil
}

// GetTTL lấy TTL còn lại của key
func (cs *CacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.entries[key]
	if !exists || cs.ttl <= 0 {
		return 0, nil
	}

	remaining := cs.ttl - time.Since(entry.storedAt)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Close không cần thiết cho in-memory cache
func (cs *CacheService) Close() error {
	return nil
}

func (cs *CacheService) expired(entry memoryEntry) bool {
	return cs.ttl > 0 && time.Since(entry.storedAt) > cs.ttl
}
