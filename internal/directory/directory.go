// Package directory resolves the names a conversational agent produces into
// PMS provider and operatory identifiers.
package directory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-booking-core/internal/roster"
	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

// Tier names the rule that produced a provider match.
type Tier string

const (
	TierID          Tier = "id"
	TierDisplayName Tier = "display_name"
	TierAlias       Tier = "alias"
	TierSurname     Tier = "surname"
	TierRoster      Tier = "roster"
	TierDefault     Tier = "default"
)

// ErrResourceNotFound is returned when no provider or operatory can be bound.
var ErrResourceNotFound = errors.New("directory: resource not found")

// Recorder receives one observation per provider resolution.
type Recorder interface {
	ObserveResolution(tier string)
}

// Resolution describes how a provider name was matched.
type Resolution struct {
	Input       string
	ProviderID  string
	DisplayName string
	Kind        roster.Kind
	Tier        Tier
}

// Binding is a resolved provider plus the operatory it will be booked in.
type Binding struct {
	Resolution
	OperatoryID         string
	OperatoryOverridden bool
}

// Directory is safe for concurrent use; it holds no mutable state.
type Directory struct {
	roster   *roster.Roster
	logger   *logging.Logger
	recorder Recorder

	display map[string]string
	aliases map[string]string
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger used for resolution records.
func WithLogger(l *logging.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRecorder sets the metrics sink for resolution tiers.
func WithRecorder(r Recorder) Option {
	return func(d *Directory) { d.recorder = r }
}

// New builds a Directory over an immutable roster.
func New(r *roster.Roster, opts ...Option) *Directory {
	if r == nil {
		panic("directory: roster required")
	}
	d := &Directory{
		roster:  r,
		logger:  logging.Default(),
		display: make(map[string]string),
		aliases: make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Component("directory")

	for _, p := range r.Providers() {
		d.display[normalize(p.DisplayName)] = p.ID
		for _, a := range p.Aliases {
			key := normalize(a)
			if _, taken := d.aliases[key]; !taken {
				d.aliases[key] = p.ID
			}
		}
	}
	return d
}

// ResolveProvider maps a doctor or hygienist name to a provider. Matching
// runs exact id, exact display name, alias table, surname token, and finally
// the default provider, so it always returns a provider. An empty name
// resolves to the doctor the roster assigns to date.
func (d *Directory) ResolveProvider(name string, date time.Time) Resolution {
	res := d.match(name, date)
	res.Input = name
	d.record(res)
	return res
}

func (d *Directory) match(name string, date time.Time) Resolution {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		if res, err := d.rosterDoctor(date); err == nil {
			return res
		}
		return d.fallback()
	}

	if p, ok := d.roster.Provider(stripProviderPrefix(trimmed)); ok {
		return fromProvider(p, TierID)
	}
	key := normalize(trimmed)
	if id, ok := d.display[key]; ok {
		return d.byID(id, TierDisplayName)
	}
	if id, ok := d.aliases[key]; ok {
		return d.byID(id, TierAlias)
	}
	for _, p := range d.roster.Providers() {
		if p.SurnameToken != "" && strings.Contains(key, p.SurnameToken) {
			return fromProvider(p, TierSurname)
		}
	}
	return d.fallback()
}

// ProviderForDate returns the doctor the roster assigns to the weekday of date.
func (d *Directory) ProviderForDate(date time.Time) (Resolution, error) {
	res, err := d.rosterDoctor(date)
	if err != nil {
		return Resolution{}, err
	}
	d.record(res)
	return res, nil
}

// HygienistForDate returns the first hygienist on the roster for date.
func (d *Directory) HygienistForDate(date time.Time) (Resolution, error) {
	sched := d.roster.ScheduleFor(date)
	for _, h := range sched.Hygienists {
		if p, ok := d.roster.Provider(h.ProviderID); ok {
			res := fromProvider(p, TierRoster)
			res.Input = h.Name
			d.record(res)
			return res, nil
		}
	}
	return Resolution{}, fmt.Errorf("no hygienist rostered for %s: %w", date.Format("2006-01-02"), ErrResourceNotFound)
}

// ResolveOperatory returns the explicit override when given, otherwise the
// provider's default operatory.
func (d *Directory) ResolveOperatory(providerID, override string) (string, error) {
	if o := strings.TrimSpace(override); o != "" {
		return o, nil
	}
	p, ok := d.roster.Provider(providerID)
	if !ok {
		return "", fmt.Errorf("operatory for provider %q: %w", providerID, ErrResourceNotFound)
	}
	return p.Operatory, nil
}

// Resolve binds a name and date to a provider and operatory.
func (d *Directory) Resolve(name string, date time.Time, operatoryOverride string) (Binding, error) {
	res := d.ResolveProvider(name, date)
	return d.Bind(res, operatoryOverride)
}

// Bind attaches an operatory to an already resolved provider.
func (d *Directory) Bind(res Resolution, operatoryOverride string) (Binding, error) {
	op, err := d.ResolveOperatory(res.ProviderID, operatoryOverride)
	if err != nil {
		return Binding{}, err
	}
	return Binding{
		Resolution:          res,
		OperatoryID:         op,
		OperatoryOverridden: strings.TrimSpace(operatoryOverride) != "",
	}, nil
}

func (d *Directory) rosterDoctor(date time.Time) (Resolution, error) {
	sched := d.roster.ScheduleFor(date)
	if sched.Doctor == "" {
		return Resolution{}, fmt.Errorf("no doctor rostered for %s: %w", date.Format("2006-01-02"), ErrResourceNotFound)
	}
	res := d.match(sched.Doctor, date)
	res.Input = sched.Doctor
	// An unmatched roster name still resolves to the default provider and
	// must be reported as such.
	if res.Tier != TierDefault {
		res.Tier = TierRoster
	}
	return res, nil
}

func (d *Directory) byID(id string, tier Tier) Resolution {
	p, _ := d.roster.Provider(id)
	return fromProvider(p, tier)
}

func (d *Directory) fallback() Resolution {
	return fromProvider(d.roster.DefaultProvider(), TierDefault)
}

func (d *Directory) record(res Resolution) {
	if d.recorder != nil {
		d.recorder.ObserveResolution(string(res.Tier))
	}
	level := d.logger.Info
	if res.Tier == TierDefault {
		level = d.logger.Warn
	}
	level("provider resolved",
		"input", res.Input,
		"provider_id", res.ProviderID,
		"tier", string(res.Tier),
	)
}

func fromProvider(p roster.Provider, tier Tier) Resolution {
	return Resolution{
		ProviderID:  p.ID,
		DisplayName: p.DisplayName,
		Kind:        p.Kind,
		Tier:        tier,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// stripProviderPrefix accepts PMS resource names such as
// "resources/provider_H20" as well as bare identifiers.
func stripProviderPrefix(s string) string {
	for _, prefix := range []string{"resources/provider_", "providers/"} {
		if strings.HasPrefix(s, prefix) {
			return strings.TrimPrefix(s, prefix)
		}
	}
	return s
}

// Drift lists roster entries the PMS does not know about.
type Drift struct {
	MissingProviders   []string
	MissingOperatories []string
}

// Empty reports whether the roster matched the PMS.
func (d Drift) Empty() bool {
	return len(d.MissingProviders) == 0 && len(d.MissingOperatories) == 0
}

// Drift compares the roster against the provider and operatory ids the PMS
// lists. Bookings against a missing entry will be rejected upstream.
func (d *Directory) Drift(remoteProviders, remoteOperatories []string) Drift {
	providers := make(map[string]struct{}, len(remoteProviders))
	for _, id := range remoteProviders {
		providers[stripProviderPrefix(id)] = struct{}{}
	}
	operatories := make(map[string]struct{}, len(remoteOperatories))
	for _, id := range remoteOperatories {
		operatories[strings.TrimPrefix(id, "resources/")] = struct{}{}
	}

	var out Drift
	seenOps := make(map[string]bool)
	for _, p := range d.roster.Providers() {
		if _, ok := providers[p.ID]; !ok {
			out.MissingProviders = append(out.MissingProviders, p.ID)
		}
		if p.Operatory == "" || seenOps[p.Operatory] {
			continue
		}
		seenOps[p.Operatory] = true
		if _, ok := operatories[p.Operatory]; !ok {
			out.MissingOperatories = append(out.MissingOperatories, p.Operatory)
		}
	}
	return out
}
