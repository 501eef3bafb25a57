package dispatcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/address-geocoder/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config cấu hình admission control cho lời gọi provider
type Config struct {
	RequestsPerSecond float64 // <= 0: không giới hạn nhịp
	MaxConcurrency    int     // <= 0: dùng 1
}

// Stats trạng thái hiện tại của dispatcher
type Stats struct {
	Queued        int64 `json:"queued"`
	Active        int64 `json:"active"`
	MinIntervalMs int64 `json:"min_interval_ms"`
}

// Dispatcher giới hạn số lời gọi đồng thời và khoảng cách tối thiểu giữa
// hai lần cấp slot. Hàng đợi là FIFO theo thứ tự gọi Acquire.
type Dispatcher struct {
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	interval time.Duration

	queued atomic.Int64
	active atomic.Int64

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New tạo mới Dispatcher
func New(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}

	d := &Dispatcher{
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		metrics: m,
		logger:  logger,
	}

	if cfg.RequestsPerSecond > 0 {
		d.interval = time.Duration(float64(time.Second) / cfg.RequestsPerSecond)
		d.limiter = rate.NewLimiter(rate.Every(d.interval), 1)
	}

	logger.Info("Khởi tạo dispatcher",
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Float64("requests_per_second", cfg.RequestsPerSecond),
		zap.Duration("min_interval", d.interval))

	return d
}

// Acquire chờ tới khi còn slot và đã qua khoảng cách tối thiểu kể từ lần
// cấp trước. Trả lỗi của ctx nếu bị hủy, khi đó slot không được giữ.
func (d *Dispatcher) Acquire(ctx context.Context) error {
	d.queued.Add(1)
	d.publish()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.queued.Add(-1)
		d.publish()
		return err
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			d.sem.Release(1)
			d.queued.Add(-1)
			d.publish()
			return err
		}
	}

	d.queued.Add(-1)
	d.active.Add(1)
	d.publish()
	return nil
}

// Release trả slot, caller chờ lâu nhất sẽ được đánh thức
func (d *Dispatcher) Release() {
	d.active.Add(-1)
	d.sem.Release(1)
	d.publish()
}

// Do chạy fn trong một slot, slot luôn được trả kể cả khi fn lỗi hoặc panic
func (d *Dispatcher) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := d.Acquire(ctx); err != nil {
		return err
	}
	defer d.Release()
	return fn(ctx)
}

// Stats lấy số caller đang chờ, đang giữ slot và nhịp cấp slot
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:        d.queued.Load(),
		Active:        d.active.Load(),
		MinIntervalMs: d.MinInterval().Milliseconds(),
	}
}

// MinInterval khoảng cách tối thiểu giữa hai lần cấp slot (0 nếu không giới hạn)
func (d *Dispatcher) MinInterval() time.Duration {
	return d.interval
}

func (d *Dispatcher) publish() {
	d.metrics.DispatcherState(d.active.Load(), d.queued.Load())
}
