package cache

import (
	"context"
	"time"

	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

// Sweeper purges expired cache entries on an interval.
type Sweeper struct {
	cache  *Cache
	logger *logging.Logger

	tick <-chan time.Time
	stop func()
}

// SweeperConfig configures a Sweeper. Tick and Stop replace the internal
// ticker when set, which lets tests drive sweeps by hand.
type SweeperConfig struct {
	Interval time.Duration
	Logger   *logging.Logger

	Tick <-chan time.Time
	Stop func()
}

// NewSweeper creates a Sweeper for c.
func NewSweeper(c *Cache, cfg SweeperConfig) *Sweeper {
	if c == nil {
		panic("cache: sweeper requires cache")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	tick, stop := cfg.Tick, cfg.Stop
	if tick == nil {
		interval := cfg.Interval
		if interval <= 0 {
			interval = time.Hour
		}
		ticker := time.NewTicker(interval)
		tick = ticker.C
		stop = ticker.Stop
	}
	return &Sweeper{cache: c, logger: logger.Component("cache_sweeper"), tick: tick, stop: stop}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	defer func() {
		if s.stop != nil {
			s.stop()
		}
	}()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.tick:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one purge pass and returns the number of removed entries.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	purged, err := s.cache.Sweep(ctx)
	if err != nil {
		s.logger.Warn("cache sweep failed", "purged", purged, "error", err)
		return purged
	}
	if purged > 0 {
		s.logger.Info("cache sweep complete", "purged", purged)
	}
	return purged
}
