package availability

import (
	"context"
	"errors"
	"time"

	"github.com/clearbrook-health/patient-portal/internal/observability/metrics"
	"github.com/clearbrook-health/patient-portal/pkg/logging"
)

// Source computes the current set of open slots.
type Source interface {
	ComputeOpenSlots(ctx context.Context) ([]Slot, error)
}

// Refresher recomputes the slot cache in the background: once at start,
// then on every tick until the context is cancelled. A failed refresh
// keeps the previous snapshot serving.
type Refresher struct {
	cache   *Cache
	source  Source
	logger  *logging.Logger
	metrics *metrics.SyncMetrics

	tick <-chan time.Time
	stop func()
}

// RefresherConfig configures a Refresher.
type RefresherConfig struct {
	Cache   *Cache
	Source  Source
	Logger  *logging.Logger
	Metrics *metrics.SyncMetrics

	// Interval drives the default ticker (default 10m). Tests inject
	// Tick/Stop instead.
	Interval time.Duration
	Tick     <-chan time.Time
	Stop     func()
}

// NewRefresher constructs a refresher.
func NewRefresher(cfg RefresherConfig) (*Refresher, error) {
	if cfg.Cache == nil {
		return nil, errors.New("availability: refresher requires cache")
	}
	if cfg.Source == nil {
		return nil, errors.New("availability: refresher requires source")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	tick := cfg.Tick
	stop := cfg.Stop
	if tick == nil {
		interval := cfg.Interval
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		ticker := time.NewTicker(interval)
		tick = ticker.C
		stop = ticker.Stop
	}

	return &Refresher{
		cache:   cfg.Cache,
		source:  cfg.Source,
		logger:  logger,
		metrics: cfg.Metrics,
		tick:    tick,
		stop:    stop,
	}, nil
}

// Start runs the refresh loop until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	if r == nil {
		return
	}
	defer func() {
		if r.stop != nil {
			r.stop()
		}
	}()

	_ = r.RefreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.tick:
			_ = r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce recomputes slots and swaps them into the cache.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	slots, err := r.source.ComputeOpenSlots(ctx)
	if err != nil {
		r.metrics.ObserveRefresh("error")
		r.logger.Warn("availability refresh failed, serving previous snapshot", "error", err)
		return err
	}

	r.cache.Replace(slots)
	r.metrics.ObserveRefresh("ok")
	r.logger.Debug("availability cache refreshed", "slots", len(slots))
	return nil
}
