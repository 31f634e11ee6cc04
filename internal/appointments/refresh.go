package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/dental-booking-core/internal/cache"
	"github.com/wolfman30/dental-booking-core/internal/pms"
)

// ReadOption adjusts a cached read.
type ReadOption func(*readOptions)

type readOptions struct {
	refresh bool
}

// Refresh skips the cached copy and reloads from the PMS. The fresh result
// replaces the cached one.
func Refresh() ReadOption {
	return func(o *readOptions) { o.refresh = true }
}

// RefreshIf applies Refresh when on is true.
func RefreshIf(on bool) ReadOption {
	return func(o *readOptions) { o.refresh = o.refresh || on }
}

// WantsRefresh reports whether opts ask to skip the cache.
func WantsRefresh(opts ...ReadOption) bool {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.refresh
}

func (s *Service) readThrough(ctx context.Context, key string, class cache.Class, dst any, opts []ReadOption, load cache.Loader) error {
	if WantsRefresh(opts...) {
		s.forget(ctx, key)
	}
	_, err := s.cache.GetOrLoad(ctx, key, class, dst, load)
	return err
}

// refreshDays is how far ahead RefreshAvailability and CacheStatus look by
// default.
const refreshDays = 7

// ScheduleWindow names a run of practice days by date.
type ScheduleWindow struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// RefreshedRange is one schedule range reloaded from the PMS.
type RefreshedRange struct {
	ScheduleWindow
	Appointments int `json:"appointments"`
}

// AvailabilityRefresh reports what RefreshAvailability reloaded.
type AvailabilityRefresh struct {
	Ranges      []RefreshedRange `json:"refreshed_ranges"`
	Invalidated int              `json:"invalidated"`
	Purged      int              `json:"purged"`
	RefreshedAt time.Time        `json:"refreshed_at"`
}

// ScheduleRequest names a run of days starting at Date (YYYY-MM-DD, today
// when empty).
type ScheduleRequest struct {
	Date string
	Days int
}

// RefreshAvailability drops every cached schedule range touching the
// requested days, reloads them from the PMS in chunks of the default
// availability span so later listings hit the cache, then purges entries
// past their horizon. A failed chunk stops the refresh; chunks already
// reloaded stay cached.
func (s *Service) RefreshAvailability(ctx context.Context, req ScheduleRequest) (result *AvailabilityRefresh, err error) {
	ctx, span := s.start(ctx, "refresh_availability")
	defer func() { s.finish(span, "refresh_availability", err) }()

	first, last, err := s.dayRange(req.Date, req.Days, refreshDays)
	if err != nil {
		return nil, fmt.Errorf("refresh availability: %w", err)
	}

	result = &AvailabilityRefresh{}
	if result.Invalidated, err = s.cache.InvalidateSchedulesBetween(ctx, first, last); err != nil {
		s.logger.Warn("cache schedule invalidate failed", "first", first.Format("2006-01-02"), "last", last.Format("2006-01-02"), "error", err)
	}

	for from := first; !from.After(last); from = from.AddDate(0, 0, s.defaultDays) {
		to := from.AddDate(0, 0, s.defaultDays-1)
		if to.After(last) {
			to = last
		}
		appts, err := s.gateway.AppointmentsInRange(ctx, from, to)
		if err != nil {
			return nil, upstream("refresh availability", err)
		}
		if appts == nil {
			appts = []pms.Appointment{}
		}
		s.remember(ctx, cache.ScheduleKey(from, to), cache.ClassSchedule, appts)
		result.Ranges = append(result.Ranges, RefreshedRange{
			ScheduleWindow: ScheduleWindow{First: from.Format("2006-01-02"), Last: to.Format("2006-01-02")},
			Appointments:   len(appts),
		})
	}

	if result.Purged, err = s.cache.Sweep(ctx); err != nil {
		s.logger.Warn("cache sweep failed", "error", err)
	}
	result.RefreshedAt = s.now()
	s.logger.Info("availability cache refreshed",
		"first", first.Format("2006-01-02"),
		"last", last.Format("2006-01-02"),
		"ranges", len(result.Ranges),
		"invalidated", result.Invalidated,
		"purged", result.Purged,
	)
	return result, nil
}

// CachedRange is one stored schedule range.
type CachedRange struct {
	ScheduleWindow
	Fresh      bool      `json:"fresh"`
	WrittenAt  time.Time `json:"written_at"`
	FreshUntil time.Time `json:"fresh_until"`
}

// DayCoverage reports whether a fresh cached range covers one day.
type DayCoverage struct {
	Date   string `json:"date"`
	Cached bool   `json:"cached"`
}

// CacheStatus describes the cached schedule ranges and which of the
// requested days a fresh range covers.
type CacheStatus struct {
	Ranges    []CachedRange `json:"cached_ranges"`
	Coverage  []DayCoverage `json:"coverage"`
	CheckedAt time.Time     `json:"checked_at"`
}

// CacheStatus lists every cached schedule range and the coverage of the
// requested days.
func (s *Service) CacheStatus(ctx context.Context, req ScheduleRequest) (*CacheStatus, error) {
	first, last, err := s.dayRange(req.Date, req.Days, refreshDays)
	if err != nil {
		return nil, fmt.Errorf("cache status: %w", err)
	}
	ranges, err := s.cache.ScheduleRanges(ctx, s.location())
	if err != nil {
		return nil, fmt.Errorf("cache status: %w", err)
	}

	status := &CacheStatus{Ranges: make([]CachedRange, 0, len(ranges)), CheckedAt: s.now()}
	for _, r := range ranges {
		status.Ranges = append(status.Ranges, CachedRange{
			ScheduleWindow: ScheduleWindow{First: r.First.Format("2006-01-02"), Last: r.Last.Format("2006-01-02")},
			Fresh:          r.Fresh,
			WrittenAt:      r.WrittenAt,
			FreshUntil:     r.FreshUntil,
		})
	}
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		covered := false
		for _, r := range ranges {
			if r.Fresh && r.Covers(day) {
				covered = true
				break
			}
		}
		status.Coverage = append(status.Coverage, DayCoverage{Date: day.Format("2006-01-02"), Cached: covered})
	}
	return status, nil
}
