package geocode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/internal/dispatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedProvider struct {
	mu    sync.Mutex
	steps []func() (*Response, error)
	calls int
}

func (p *scriptedProvider) Lookup(ctx context.Context, query string) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i >= len(p.steps) {
		i = len(p.steps) - 1
	}
	return p.steps[i]()
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]*models.GeocodeResult
	err  error
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]*models.GeocodeResult)}
}

func (c *mapCache) Get(ctx context.Context, key string) (*models.GeocodeResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	r, ok := c.data[key]
	return r, ok, nil
}

func (c *mapCache) Set(ctx context.Context, key string, r *models.GeocodeResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = r
	return nil
}

func (c *mapCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*models.GeocodeResult)
	return nil
}

func okResponse(x, y string, distance float64) func() (*Response, error) {
	return func() (*Response, error) {
		return &Response{
			Status: "OK",
			Meta:   Meta{TotalCount: 1, Page: 1, Count: 1},
			Addresses: []Address{{
				RoadAddress:  "서울특별시 강남구 테헤란로 152",
				JibunAddress: "서울특별시 강남구 역삼동 737",
				X:            x,
				Y:            y,
				Distance:     distance,
			}},
		}, nil
	}
}

func failWith(err error) func() (*Response, error) {
	return func() (*Response, error) { return nil, err }
}

func newTestClient(p Provider, cache Cache, retry RetryConfig) (*Client, *[]time.Duration) {
	d := dispatcher.New(dispatcher.Config{MaxConcurrency: 2}, nil, zap.NewNop())
	c := NewClient(p, d, cache, retry, nil, zap.NewNop())
	var sleeps []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return c, &sleeps
}

func TestClient_Success(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*Response, error){okResponse("127.0365", "37.5001", 0.5)}}
	c, _ := newTestClient(p, newMapCache(), DefaultRetryConfig())

	result, err := c.Geocode(context.Background(), "서울특별시 강남구 테헤란로 152")
	require.NoError(t, err)

	assert.Equal(t, models.GeocodeStatusSuccess, result.Status)
	require.NotNil(t, result.Lat)
	require.NotNil(t, result.Lng)
	assert.InDelta(t, 37.5001, *result.Lat, 1e-9)
	assert.InDelta(t, 127.0365, *result.Lng, 1e-9)
	assert.InDelta(t, 95.0, result.Confidence, 1e-9)
	assert.Equal(t, "서울특별시 강남구 역삼동 737", result.JibunAddress)
	assert.Equal(t, 0, result.RetryCount)
}

func TestClient_CacheHitBypassesProvider(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*Response, error){okResponse("127.0", "37.5", 0)}}
	cache := newMapCache()
	c, _ := newTestClient(p, cache, DefaultRetryConfig())

	first, err := c.Geocode(context.Background(), "부산광역시 해운대구")
	require.NoError(t, err)
	second, err := c.Geocode(context.Background(), "부산광역시 해운대구")
	require.NoError(t, err)

	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, first, second)

	// bản sao độc lập với cache
	*second.Lat = 0
	cached, _, _ := cache.Get(context.Background(), "부산광역시 해운대구")
	assert.InDelta(t, 37.5, *cached.Lat, 1e-9)

	assert.Equal(t, CacheStats{Hits: 1, Misses: 1, HitRate: 0.5}, c.CacheStats())
}

func TestClient_ZeroMatchesIsCachedFailure(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*Response, error){
		func() (*Response, error) { return &Response{Status: "OK"}, nil },
	}}
	c, _ := newTestClient(p, newMapCache(), DefaultRetryConfig())

	for i := 0; i < 2; i++ {
		result, err := c.Geocode(context.Background(), "없는 주소 123")
		require.NoError(t, err)
		assert.Equal(t, models.GeocodeStatusFailed, result.Status)
		assert.Equal(t, 0.0, result.Confidence)
		assert.Equal(t, MsgNotFound, result.Error)
		assert.Nil(t, result.Lat)
	}
	assert.Equal(t, 1, p.Calls())
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{"server error", &StatusError{Code: 503}},
		{"rate limited", &StatusError{Code: 429}},
		{"network error", errors.New("connection reset by peer")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &scriptedProvider{steps: []func() (*Response, error){
				failWith(tc.err),
				failWith(tc.err),
				okResponse("126.9780", "37.5665", 0),
			}}
			c, sleeps := newTestClient(p, newMapCache(), RetryConfig{MaxRetries: 3, BaseBackoff: time.Second, MaxBackoff: 30 * time.Second})

			result, err := c.Geocode(context.Background(), "서울특별시 중구 세종대로 110")
			require.NoError(t, err)

			assert.Equal(t, models.GeocodeStatusSuccess, result.Status)
			assert.Equal(t, 2, result.RetryCount)
			assert.Equal(t, 3, p.Calls())
			assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
		})
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*Response, error){failWith(&StatusError{Code: 401, Message: "Authentication Failed"})}}
	cache := newMapCache()
	c, sleeps := newTestClient(p, cache, DefaultRetryConfig())

	result, err := c.Geocode(context.Background(), "서울특별시 종로구")
	assert.Nil(t, result)
	require.Error(t, err)

	var se *StatusError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, 401, se.Code)
	assert.Equal(t, 1, p.Calls())
	assert.Empty(t, *sleeps)
	assert.Empty(t, cache.data, "lỗi transport không được cache")
}

func TestClient_RetriesExhausted(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*Response, error){failWith(&StatusError{Code: 500})}}
	c, sleeps := newTestClient(p, newMapCache(), RetryConfig{MaxRetries: 2, BaseBackoff: 100 * time.Millisecond, MaxBackoff: 150 * time.Millisecond})

	_, err := c.Geocode(context.Background(), "대구광역시 중구")
	require.Error(t, err)

	assert.Equal(t, 3, p.Calls())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 150 * time.Millisecond}, *sleeps)
	assert.Equal(t, dispatcher.Stats{}, c.DispatcherStats())
}

func TestClient_BackoffIsBounded(t *testing.T) {
	testCases := []struct {
		name    string
		retry   RetryConfig
		attempt int
		want    time.Duration
	}{
		{"exponential", RetryConfig{BaseBackoff: time.Second, MaxBackoff: time.Minute}, 3, 8 * time.Second},
		{"capped", RetryConfig{BaseBackoff: time.Second, MaxBackoff: 30 * time.Second}, 10, 30 * time.Second},
		{"no cap uses ceiling", RetryConfig{BaseBackoff: time.Second}, 20, maxBackoffCeiling},
		{"shift overflow", RetryConfig{BaseBackoff: time.Second}, 64, maxBackoffCeiling},
		{"huge attempt with cap", RetryConfig{BaseBackoff: time.Second, MaxBackoff: 30 * time.Second}, 1000, 30 * time.Second},
		{"zero base", RetryConfig{MaxBackoff: time.Minute}, 5, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(&scriptedProvider{}, nil, tc.retry)
			assert.Equal(t, tc.want, c.backoff(tc.attempt))
		})
	}
}

func TestClient_CacheErrorTreatedAsMiss(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*Response, error){okResponse("127.0", "37.5", 0)}}
	cache := newMapCache()
	cache.err = errors.New("redis down")
	c, _ := newTestClient(p, cache, DefaultRetryConfig())

	result, err := c.Geocode(context.Background(), "인천광역시 남동구")
	require.NoError(t, err)
	assert.True(t, result.IsSuccess())
	assert.Equal(t, 1, p.Calls())
}

func TestClient_EmptyAddress(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*Response, error){okResponse("127.0", "37.5", 0)}}
	c, _ := newTestClient(p, nil, DefaultRetryConfig())

	result, err := c.Geocode(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, models.GeocodeStatusFailed, result.Status)
	assert.Equal(t, 0, p.Calls())
}

func TestClient_GeocodeBatch(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*Response, error){
		okResponse("127.0", "37.5", 0),
		failWith(&StatusError{Code: 400, Message: "invalid query"}),
		okResponse("129.1", "35.1", 1),
	}}
	c, _ := newTestClient(p, nil, DefaultRetryConfig())

	var progress [][2]int
	results, err := c.GeocodeBatch(context.Background(), []string{"a 시", "b 시", "c 시"}, func(processed, total int) {
		progress = append(progress, [2]int{processed, total})
	})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, models.GeocodeStatusSuccess, results[0].Status)
	assert.Equal(t, models.GeocodeStatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "invalid query")
	assert.Equal(t, models.GeocodeStatusSuccess, results[2].Status)
	assert.InDelta(t, 90.0, results[2].Confidence, 1e-9)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestClient_ClearCache(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*Response, error){okResponse("127.0", "37.5", 0)}}
	cache := newMapCache()
	c, _ := newTestClient(p, cache, DefaultRetryConfig())

	_, err := c.Geocode(context.Background(), "광주광역시 북구")
	require.NoError(t, err)
	require.NoError(t, c.ClearCache(context.Background()))

	assert.Empty(t, cache.data)
	assert.Equal(t, CacheStats{}, c.CacheStats())

	_, err = c.Geocode(context.Background(), "광주광역시 북구")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Calls())
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name       string
		resp       *Response
		status     models.GeocodeStatus
		confidence float64
		errMsg     string
	}{
		{
			name:   "non OK status carries provider message",
			resp:   &Response{Status: "INVALID_REQUEST", ErrorMessage: "query is INVALID"},
			status: models.GeocodeStatusFailed,
			errMsg: "query is INVALID",
		},
		{
			name:       "large distance clamps to zero",
			resp:       &Response{Status: "OK", Addresses: []Address{{X: "127", Y: "37", Distance: 25}}},
			status:     models.GeocodeStatusSuccess,
			confidence: 0,
		},
		{
			name:   "unparsable coordinates",
			resp:   &Response{Status: "OK", Addresses: []Address{{X: "", Y: "abc"}}},
			status: models.GeocodeStatusFailed,
			errMsg: MsgInvalidCoordinate,
		},
		{
			name:   "out of range coordinates",
			resp:   &Response{Status: "OK", Addresses: []Address{{X: "200", Y: "95"}}},
			status: models.GeocodeStatusFailed,
			errMsg: MsgInvalidCoordinate,
		},
		{
			name:       "outside Korea is partial",
			resp:       &Response{Status: "OK", Addresses: []Address{{X: "139.69", Y: "35.68"}}},
			status:     models.GeocodeStatusPartial,
			confidence: 100,
			errMsg:     MsgOutsideKorea,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := Classify("q", tc.resp)
			assert.Equal(t, tc.status, result.Status)
			assert.InDelta(t, tc.confidence, result.Confidence, 1e-9)
			assert.Equal(t, tc.errMsg, result.Error)
			if tc.status == models.GeocodeStatusSuccess {
				assert.True(t, result.IsSuccess())
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(&StatusError{Code: 404}))
	assert.True(t, IsRetryable(&StatusError{Code: 502}))
	assert.True(t, IsRetryable(&StatusError{Code: 429}))
	assert.True(t, IsRetryable(errors.New("i/o timeout")))
}
