package bootstrap

import (
	"context"
	"fmt"
	"strings"

	appconfig "github.com/wolfman30/dental-booking-core/internal/config"
	"github.com/wolfman30/dental-booking-core/internal/directory"
	"github.com/wolfman30/dental-booking-core/internal/pms"
	"github.com/wolfman30/dental-booking-core/internal/roster"
	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

// LoadRoster reads the roster file named in config, or the built-in
// practice roster when none is set.
func LoadRoster(cfg *appconfig.Config, logger *logging.Logger) (*roster.Roster, error) {
	if logger == nil {
		logger = logging.Default()
	}
	var (
		r      *roster.Roster
		source = "builtin"
	)
	if cfg != nil && strings.TrimSpace(cfg.RosterPath) != "" {
		loaded, err := roster.Load(cfg.RosterPath)
		if err != nil {
			return nil, err
		}
		r, source = loaded, cfg.RosterPath
	} else {
		r = roster.Default()
	}
	if cfg != nil && cfg.PracticeTimezone != "" && cfg.PracticeTimezone != r.Location().String() {
		logger.Warn("roster timezone differs from PRACTICE_TIMEZONE, roster wins",
			"roster_timezone", r.Location().String(),
			"configured_timezone", cfg.PracticeTimezone,
		)
	}
	logger.Info("roster loaded", "source", source, "providers", len(r.Providers()), "timezone", r.Location().String())
	return r, nil
}

// ResourceLister lists the providers and operatories the PMS knows.
type ResourceLister interface {
	ListProviders(ctx context.Context) ([]pms.Resource, error)
	ListOperatories(ctx context.Context) ([]pms.Resource, error)
}

// CheckRosterDrift compares the roster with the PMS and logs every roster
// entry the PMS does not list. Drift is reported, not fatal.
func CheckRosterDrift(ctx context.Context, lister ResourceLister, dir *directory.Directory, logger *logging.Logger) (directory.Drift, error) {
	if logger == nil {
		logger = logging.Default()
	}
	providers, err := lister.ListProviders(ctx)
	if err != nil {
		return directory.Drift{}, fmt.Errorf("roster drift: %w", err)
	}
	operatories, err := lister.ListOperatories(ctx)
	if err != nil {
		return directory.Drift{}, fmt.Errorf("roster drift: %w", err)
	}
	drift := dir.Drift(resourceIDs(providers), resourceIDs(operatories))
	if !drift.Empty() {
		logger.Warn("roster entries missing from PMS",
			"providers", drift.MissingProviders,
			"operatories", drift.MissingOperatories,
		)
	}
	return drift, nil
}

func resourceIDs(resources []pms.Resource) []string {
	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID())
	}
	return ids
}
