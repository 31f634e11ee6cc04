package availability

import "time"

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window of length d starting at start.
func NewWindow(start time.Time, d time.Duration) Window {
	return Window{Start: start, End: start.Add(d)}
}

// Overlaps reports whether two half-open intervals intersect. A window that
// ends exactly when another starts does not overlap it.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}

// Overlaps reports whether w intersects o.
func (w Window) Overlaps(o Window) bool {
	return Overlaps(w.Start, w.End, o.Start, o.End)
}

// Contains reports whether o lies entirely inside w.
func (w Window) Contains(o Window) bool {
	return !o.Start.Before(w.Start) && !o.End.After(w.End)
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Valid reports whether the window has positive length.
func (w Window) Valid() bool {
	return w.End.After(w.Start)
}

// In normalizes both bounds to the wall clock of loc.
func (w Window) In(loc *time.Location) Window {
	return Window{Start: Normalize(w.Start, loc), End: Normalize(w.End, loc)}
}

// Normalize converts t to the practice wall clock. Instants are preserved,
// so a 14:00Z time becomes 10:00 in America/New_York during daylight time.
func Normalize(t time.Time, loc *time.Location) time.Time {
	if loc == nil || t.IsZero() {
		return t
	}
	return t.In(loc)
}
