package roster

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind distinguishes doctors from hygienists.
type Kind string

const (
	KindDoctor    Kind = "doctor"
	KindHygienist Kind = "hygienist"
)

var ErrUnknownProvider = errors.New("roster: unknown provider")

// Provider is a bookable clinician with exactly one default operatory.
type Provider struct {
	ID           string
	DisplayName  string // as the PMS spells it, spacing quirks included
	Kind         Kind
	Operatory    string
	Aliases      []string
	SurnameToken string
}

// Hygienist is a roster assignment for a weekday.
type Hygienist struct {
	Name       string
	ProviderID string
}

// PracticeSchedule is the operating plan for one calendar date.
type PracticeSchedule struct {
	Date         time.Time
	Open         time.Time
	Close        time.Time
	LunchStart   time.Time
	LunchEnd     time.Time
	SlotDuration time.Duration
	Closed       bool
	Doctor       string
	Hygienists   []Hygienist
}

// HasLunch reports whether the day carries a lunch break.
func (s PracticeSchedule) HasLunch() bool {
	return !s.LunchStart.IsZero() && s.LunchEnd.After(s.LunchStart)
}

type weekday struct {
	open, close          Clock
	lunchStart, lunchEnd Clock
	hasLunch             bool
	slot                 time.Duration
	closed               bool
	doctor               string
	hygienists           []Hygienist
}

// Roster is the immutable practice configuration: weekday hours, provider
// and operatory tables, aliases and the service catalog. Build one with
// Load, Parse or Default and share it freely; nothing mutates it.
type Roster struct {
	loc             *time.Location
	days            map[time.Weekday]weekday
	providers       []Provider
	byID            map[string]int
	defaultProvider string
	services        map[string]time.Duration
	defaultService  time.Duration
}

// Location is the practice time zone; all wall-clock comparisons use it.
func (r *Roster) Location() *time.Location {
	return r.loc
}

// ScheduleFor returns the schedule for the calendar day of date. Only the
// year, month and day of date are used, so callers may pass any zone.
func (r *Roster) ScheduleFor(date time.Time) PracticeSchedule {
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	w, ok := r.days[day.Weekday()]
	if !ok || w.closed {
		return PracticeSchedule{Date: day, Closed: true, Doctor: w.doctor}
	}
	s := PracticeSchedule{
		Date:         day,
		Open:         w.open.On(day, r.loc),
		Close:        w.close.On(day, r.loc),
		SlotDuration: w.slot,
		Doctor:       w.doctor,
		Hygienists:   append([]Hygienist(nil), w.hygienists...),
	}
	if w.hasLunch {
		s.LunchStart = w.lunchStart.On(day, r.loc)
		s.LunchEnd = w.lunchEnd.On(day, r.loc)
	}
	return s
}

// Providers returns a copy of the provider table ordered by ID.
func (r *Roster) Providers() []Provider {
	out := make([]Provider, len(r.providers))
	for i, p := range r.providers {
		out[i] = p.clone()
	}
	return out
}

// Provider looks up a provider by PMS identifier.
func (r *Roster) Provider(id string) (Provider, bool) {
	i, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Provider{}, false
	}
	return r.providers[i].clone(), true
}

// DefaultProvider is the provider used when no name can be resolved.
func (r *Roster) DefaultProvider() Provider {
	p, _ := r.Provider(r.defaultProvider)
	return p
}

// ServiceDuration returns the configured length of a service label, or the
// default service length for unknown labels.
func (r *Roster) ServiceDuration(label string) time.Duration {
	if d, ok := r.services[normalizeLabel(label)]; ok {
		return d
	}
	return r.defaultService
}

func (p Provider) clone() Provider {
	p.Aliases = append([]string(nil), p.Aliases...)
	return p
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func build(doc document) (*Roster, error) {
	tz := doc.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("roster: load timezone %q: %w", tz, err)
	}

	r := &Roster{
		loc:             loc,
		days:            make(map[time.Weekday]weekday, 7),
		byID:            make(map[string]int, len(doc.Providers)),
		defaultProvider: strings.TrimSpace(doc.DefaultProvider),
		services:        make(map[string]time.Duration, len(doc.Services)),
		defaultService:  time.Duration(doc.DefaultServiceMinutes) * time.Minute,
	}
	if r.defaultService <= 0 {
		r.defaultService = 30 * time.Minute
	}

	providers := append([]providerDoc(nil), doc.Providers...)
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })
	for _, p := range providers {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("roster: provider %q has no id", p.DisplayName)
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("roster: duplicate provider id %q", id)
		}
		if strings.TrimSpace(p.Operatory) == "" {
			return nil, fmt.Errorf("roster: provider %q has no operatory", id)
		}
		kind := Kind(strings.ToLower(p.Kind))
		if kind != KindHygienist {
			kind = KindDoctor
		}
		r.byID[id] = len(r.providers)
		r.providers = append(r.providers, Provider{
			ID:           id,
			DisplayName:  p.DisplayName,
			Kind:         kind,
			Operatory:    strings.TrimSpace(p.Operatory),
			Aliases:      append([]string(nil), p.Aliases...),
			SurnameToken: strings.ToLower(strings.TrimSpace(p.SurnameToken)),
		})
	}
	if _, ok := r.byID[r.defaultProvider]; !ok {
		return nil, fmt.Errorf("roster: default provider %q: %w", r.defaultProvider, ErrUnknownProvider)
	}

	for name, mins := range doc.Services {
		if mins <= 0 {
			return nil, fmt.Errorf("roster: service %q has non-positive duration", name)
		}
		r.services[normalizeLabel(name)] = time.Duration(mins) * time.Minute
	}

	for name, d := range doc.Weekdays {
		wd, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		w, err := buildWeekday(d)
		if err != nil {
			return nil, fmt.Errorf("roster: %s: %w", name, err)
		}
		for _, h := range w.hygienists {
			if _, ok := r.byID[h.ProviderID]; !ok {
				return nil, fmt.Errorf("roster: %s hygienist %q: %w", name, h.ProviderID, ErrUnknownProvider)
			}
		}
		r.days[wd] = w
	}
	return r, nil
}

func buildWeekday(d dayDoc) (weekday, error) {
	w := weekday{doctor: strings.TrimSpace(d.Doctor)}
	for _, h := range d.Hygienists {
		w.hygienists = append(w.hygienists, Hygienist{Name: h.Name, ProviderID: strings.TrimSpace(h.ProviderID)})
	}
	if strings.EqualFold(strings.TrimSpace(d.Status), "closed") {
		w.closed = true
		return w, nil
	}

	var err error
	if w.open, err = ParseClock(d.Open); err != nil {
		return w, err
	}
	if w.close, err = ParseClock(d.Close); err != nil {
		return w, err
	}
	if w.close <= w.open {
		return w, fmt.Errorf("close %s is not after open %s", w.close, w.open)
	}
	w.slot = time.Duration(d.DefaultSlotDuration) * time.Minute
	if w.slot == 0 {
		w.slot = 30 * time.Minute
	}
	if w.slot < 0 {
		return w, fmt.Errorf("negative slot duration")
	}

	if d.LunchBreak != nil && strings.TrimSpace(d.LunchBreak.Start) != "" {
		if w.lunchStart, err = ParseClock(d.LunchBreak.Start); err != nil {
			return w, err
		}
		if w.lunchEnd, err = ParseClock(d.LunchBreak.End); err != nil {
			return w, err
		}
		if w.lunchStart < w.open || w.lunchEnd > w.close || w.lunchEnd <= w.lunchStart {
			return w, fmt.Errorf("lunch %s-%s outside hours %s-%s", w.lunchStart, w.lunchEnd, w.open, w.close)
		}
		w.hasLunch = true
	}
	return w, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == key {
			return d, nil
		}
	}
	return 0, fmt.Errorf("roster: unknown weekday %q", name)
}
