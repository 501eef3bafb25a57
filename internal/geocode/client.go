package geocode

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/internal/dispatcher"
	"github.com/address-geocoder/internal/metrics"
	"go.uber.org/zap"
)

// RetryConfig cấu hình retry với exponential backoff
type RetryConfig struct {
	MaxRetries  int           // số lần retry tối đa sau lần gọi đầu
	BaseBackoff time.Duration // backoff = base × 2^attempt
	MaxBackoff  time.Duration // trần backoff (0: dùng maxBackoffCeiling)
}

// DefaultRetryConfig cấu hình mặc định
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// CacheStats thống kê cache ở phía client
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Client geocode một địa chỉ với cache, admission control và retry
type Client struct {
	provider   Provider
	dispatcher *dispatcher.Dispatcher
	cache      Cache
	retry      RetryConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient tạo mới Client. cache có thể nil (không cache).
func NewClient(provider Provider, d *dispatcher.Dispatcher, cache Cache, retry RetryConfig, m *metrics.Metrics, logger *zap.Logger) *Client {
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	return &Client{
		provider:   provider,
		dispatcher: d,
		cache:      cache,
		retry:      retry,
		metrics:    m,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Geocode tra cứu tọa độ cho địa chỉ (đã chuẩn hóa). Cache hit trả về bản
// sao và không đi qua dispatcher. Lỗi transport sau khi hết retry được trả
// về dưới dạng error và không được cache.
func (c *Client) Geocode(ctx context.Context, address string) (*models.GeocodeResult, error) {
	if strings.TrimSpace(address) == "" {
		return FailedResult(address, MsgEmptyAddress, 0), nil
	}

	if cached, ok := c.lookupCache(ctx, address); ok {
		return cached, nil
	}
	c.misses.Add(1)

	var resp *Response
	attempt := 0
	for {
		var err error
		resp, err = c.call(ctx, address)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryable(err) || attempt >= c.retry.MaxRetries {
			c.metrics.GeocodeRequest(metrics.OutcomeError)
			c.logger.Warn("Geocode thất bại",
				zap.String("address", address),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return nil, fmt.Errorf("geocode %q thất bại sau %d lần thử: %w", address, attempt+1, err)
		}

		backoff := c.backoff(attempt)
		c.metrics.GeocodeRetry()
		c.logger.Info("Retry geocode",
			zap.String("address", address),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		attempt++
	}

	result := Classify(address, resp)
	result.RetryCount = attempt
	c.metrics.GeocodeRequest(string(result.Status))

	if c.cache != nil {
		if err := c.cache.Set(ctx, address, result.Clone()); err != nil {
			c.logger.Warn("Lỗi lưu cache geocode", zap.String("address", address), zap.Error(err))
		}
	}

	return result, nil
}

// GeocodeBatch xử lý tuần tự theo thứ tự input, gọi onProgress sau mỗi phần
// tử. Lỗi của từng địa chỉ được chuyển thành kết quả failed. Chỉ dừng sớm khi
// ctx bị hủy.
func (c *Client) GeocodeBatch(ctx context.Context, addresses []string, onProgress func(processed, total int)) ([]*models.GeocodeResult, error) {
	results := make([]*models.GeocodeResult, 0, len(addresses))
	for i, addr := range addresses {
		result, err := c.Geocode(ctx, addr)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			result = FailedResult(addr, err.Error(), c.retry.MaxRetries)
		}
		results = append(results, result)

		if onProgress != nil {
			onProgress(i+1, len(addresses))
		}
	}
	return results, nil
}

// CacheStats thống kê hit/miss của client
func (c *Client) CacheStats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	stats := CacheStats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// ClearCache xóa toàn bộ cache và reset bộ đếm
func (c *Client) ClearCache(ctx context.Context) error {
	c.hits.Store(0)
	c.misses.Store(0)
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx)
}

// DispatcherStats trạng thái hàng đợi của dispatcher
func (c *Client) DispatcherStats() dispatcher.Stats {
	return c.dispatcher.Stats()
}

func (c *Client) lookupCache(ctx context.Context, address string) (*models.GeocodeResult, bool) {
	if c.cache == nil {
		return nil, false
	}
	cached, found, err := c.cache.Get(ctx, address)
	if err != nil {
		c.logger.Warn("Lỗi đọc cache geocode, coi như miss", zap.String("address", address), zap.Error(err))
		return nil, false
	}
	if !found || cached == nil {
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.GeocodeCacheHit()
	c.logger.Debug("Geocode cache hit", zap.String("address", address))
	return cached.Clone(), true
}

// call một lần gọi provider trong một slot của dispatcher
func (c *Client) call(ctx context.Context, address string) (*Response, error) {
	var resp *Response
	err := c.dispatcher.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.provider.Lookup(ctx, address)
		return err
	})
	return resp, err
}

// maxBackoffCeiling trần backoff khi MaxBackoff = 0
const maxBackoffCeiling = 5 * time.Minute

// backoff = base × 2^attempt, không vượt trần và không bị tràn số
func (c *Client) backoff(attempt int) time.Duration {
	base := c.retry.BaseBackoff
	if base <= 0 {
		return 0
	}
	limit := c.retry.MaxBackoff
	if limit <= 0 {
		limit = maxBackoffCeiling
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 62 || base > limit>>uint(attempt) {
		return limit
	}
	return base << uint(attempt)
}

// Classify chuyển response của provider thành GeocodeResult. Lấy kết quả đầu
// tiên (liên quan nhất), confidence = 100 − distance×10.
func Classify(address string, resp *Response) *models.GeocodeResult {
	if resp == nil || resp.Status != "OK" || len(resp.Addresses) == 0 {
		msg := MsgNotFound
		if resp != nil && resp.ErrorMessage != "" {
			msg = resp.ErrorMessage
		}
		return FailedResult(address, msg, 0)
	}

	first := resp.Addresses[0]
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(first.Y), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(first.X), 64)
	if errLat != nil || errLng != nil || !validCoordinate(lat, lng) {
		return FailedResult(address, MsgInvalidCoordinate, 0)
	}

	result := &models.GeocodeResult{
		Address:         address,
		Lat:             &lat,
		Lng:             &lng,
		Status:          models.GeocodeStatusSuccess,
		Confidence:      math.Max(0, math.Min(100, 100-first.Distance*10)),
		RoadAddress:     first.RoadAddress,
		JibunAddress:    first.JibunAddress,
		EnglishAddress:  first.EnglishAddress,
		AddressElements: first.AddressElements,
	}

	if !InKorea(lat, lng) {
		result.Status = models.GeocodeStatusPartial
		result.Error = MsgOutsideKorea
	}

	return result
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
