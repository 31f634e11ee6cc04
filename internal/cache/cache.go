// Package cache is the time-boxed, read-through cache that fronts the PMS.
// It is advisory: booking decisions re-read live data at commit time.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

// Class selects a freshness policy.
type Class string

const (
	// ClassSchedule covers date and date-range reads.
	ClassSchedule Class = "schedule"
	// ClassRecord covers appointment and contact reads.
	ClassRecord Class = "record"
)

// Policy is the freshness window and hard purge horizon for a class.
type Policy struct {
	TTL        time.Duration
	PurgeAfter time.Duration
}

// Config sets the per-class policies. Zero values take the defaults of 24h
// for schedules, and 24h fresh / 48h purge for records.
type Config struct {
	ScheduleTTL      time.Duration
	RecordTTL        time.Duration
	RecordPurgeAfter time.Duration
	// LoadTimeout bounds one shared upstream load. Defaults to 30s.
	LoadTimeout time.Duration
}

// Recorder receives hit, miss and stale observations.
type Recorder interface {
	ObserveCache(kind, result string)
}

// Loader fetches a value from the upstream system on a miss.
type Loader func(ctx context.Context) (any, error)

// Cache layers freshness policies, read-through loading and metrics over a Store.
type Cache struct {
	store    Store
	policies map[Class]Policy
	timeout  time.Duration
	now      func() time.Time
	logger   *logging.Logger
	recorder Recorder
	group    singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Cache) { c.recorder = r }
}

// New creates a Cache over store.
func New(store Store, cfg Config, opts ...Option) *Cache {
	if store == nil {
		panic("cache: store required")
	}
	if cfg.ScheduleTTL <= 0 {
		cfg.ScheduleTTL = 24 * time.Hour
	}
	if cfg.RecordTTL <= 0 {
		cfg.RecordTTL = 24 * time.Hour
	}
	if cfg.RecordPurgeAfter < cfg.RecordTTL {
		cfg.RecordPurgeAfter = 2 * cfg.RecordTTL
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	c := &Cache{
		store: store,
		policies: map[Class]Policy{
			ClassSchedule: {TTL: cfg.ScheduleTTL, PurgeAfter: cfg.ScheduleTTL},
			ClassRecord:   {TTL: cfg.RecordTTL, PurgeAfter: cfg.RecordPurgeAfter},
		},
		timeout: cfg.LoadTimeout,
		now:     time.Now,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Component("cache")
	return c
}

// Policy returns the policy for class, falling back to the record policy.
func (c *Cache) Policy(class Class) Policy {
	if p, ok := c.policies[class]; ok {
		return p
	}
	return c.policies[ClassRecord]
}

// Get decodes the fresh entry for key into dst. Absent and stale entries
// both return ErrMiss.
func (c *Cache) Get(ctx context.Context, key string, dst any) error {
	e, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		c.observe(key, "miss")
		return ErrMiss
	}
	if err != nil {
		c.observe(key, "error")
		return err
	}
	if !e.Fresh(c.now()) {
		c.observe(key, "stale")
		return ErrMiss
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		c.observe(key, "error")
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	c.observe(key, "hit")
	return nil
}

// Put stores payload under key using the class policy.
func (c *Cache) Put(ctx context.Context, key string, class Class, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.putRaw(ctx, key, c.Policy(class), data)
}

// PutTTL stores payload with an explicit freshness window that is also its
// purge horizon.
func (c *Cache) PutTTL(ctx context.Context, key string, payload any, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.putRaw(ctx, key, Policy{TTL: ttl, PurgeAfter: ttl}, data)
}

func (c *Cache) putRaw(ctx context.Context, key string, p Policy, data []byte) error {
	return c.store.Set(ctx, key, Entry{
		Payload:    data,
		WrittenAt:  c.now(),
		TTL:        p.TTL,
		PurgeAfter: p.PurgeAfter,
	})
}

// Invalidate removes key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Sweep physically removes entries past their purge horizon.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	return c.store.Sweep(ctx, c.now())
}

// GetOrLoad serves key from the cache or, on a miss, calls load, stores its
// result under class and decodes it into dst. Concurrent misses for the same
// key share one load. The shared load is detached from any single caller's
// cancellation and bounded by the load timeout; each caller still returns
// as soon as its own ctx is done. Loader errors are returned and never
// cached. A failing store is logged and bypassed. The boolean reports a
// cache hit.
func (c *Cache) GetOrLoad(ctx context.Context, key string, class Class, dst any, load Loader) (bool, error) {
	err := c.Get(ctx, key, dst)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrMiss) {
		c.logger.Warn("cache read failed, loading from upstream", "key", key, "error", err)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		payload, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("cache: encode %s: %w", key, err)
		}
		if err := c.putRaw(loadCtx, key, c.Policy(class), data); err != nil {
			c.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return data, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return false, res.Err
	}
	if err := json.Unmarshal(res.Val.([]byte), dst); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return false, nil
}

// ScheduleRange describes one cached date-range schedule read.
type ScheduleRange struct {
	Key        string    `json:"key"`
	First      time.Time `json:"first"`
	Last       time.Time `json:"last"`
	WrittenAt  time.Time `json:"written_at"`
	FreshUntil time.Time `json:"fresh_until"`
	Fresh      bool      `json:"fresh"`
}

// Covers reports whether day falls inside the range.
func (r ScheduleRange) Covers(day time.Time) bool {
	d := midnight(day, r.First.Location())
	return !d.Before(r.First) && !d.After(r.Last)
}

// ScheduleRanges lists the stored schedule ranges, fresh or stale, with
// their days as midnight in loc, ordered by first day.
func (c *Cache) ScheduleRanges(ctx context.Context, loc *time.Location) ([]ScheduleRange, error) {
	keys, err := c.store.Keys(ctx, schedulePrefix)
	if err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]ScheduleRange, 0, len(keys))
	for _, key := range keys {
		first, last, err := ParseScheduleKey(key, loc)
		if err != nil {
			c.logger.Warn("ignoring malformed schedule key", "key", key, "error", err)
			continue
		}
		e, err := c.store.Get(ctx, key)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ScheduleRange{
			Key:        key,
			First:      first,
			Last:       last,
			WrittenAt:  e.WrittenAt,
			FreshUntil: e.WrittenAt.Add(e.TTL),
			Fresh:      e.Fresh(now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].First.Before(out[j].First) })
	return out, nil
}

// InvalidateSchedules removes every stored schedule range that covers day
// and returns how many were removed.
func (c *Cache) InvalidateSchedules(ctx context.Context, day time.Time) (int, error) {
	return c.InvalidateSchedulesBetween(ctx, day, day)
}

// InvalidateSchedulesBetween removes every stored schedule range that
// shares at least one day with first..last, inclusive.
func (c *Cache) InvalidateSchedulesBetween(ctx context.Context, first, last time.Time) (int, error) {
	loc := first.Location()
	ranges, err := c.ScheduleRanges(ctx, loc)
	if err != nil {
		return 0, err
	}
	from, to := midnight(first, loc), midnight(last, loc)
	removed := 0
	for _, r := range ranges {
		if r.Last.Before(from) || r.First.After(to) {
			continue
		}
		if err := c.store.Delete(ctx, r.Key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func (c *Cache) observe(key, result string) {
	if c.recorder == nil {
		return
	}
	kind := key
	if i := strings.IndexByte(key, ':'); i > 0 {
		kind = key[:i]
	}
	c.recorder.ObserveCache(kind, result)
}
