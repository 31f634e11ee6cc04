package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want Clock
		ok   bool
	}{
		{"09:00", 9 * 60, true},
		{"9:30 AM", 9*60 + 30, true},
		{"1:00 pm", 13 * 60, true},
		{"12:30PM", 12*60 + 30, true},
		{"12:00 AM", 0, true},
		{"3 PM", 15 * 60, true},
		{"17:45", 17*60 + 45, true},
		{"", 0, false},
		{"noon", 0, false},
		{"25:00", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultRosterSchedules(t *testing.T) {
	r := Default()
	loc := r.Location()

	wed := r.ScheduleFor(time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC))
	require.False(t, wed.Closed)
	assert.Equal(t, time.Wednesday, wed.Date.Weekday())
	assert.Equal(t, time.Date(2025, 6, 18, 9, 0, 0, 0, loc), wed.Open)
	assert.Equal(t, time.Date(2025, 6, 18, 17, 0, 0, 0, loc), wed.Close)
	assert.True(t, wed.HasLunch())
	assert.Equal(t, time.Date(2025, 6, 18, 13, 0, 0, 0, loc), wed.LunchStart)
	assert.Equal(t, 30*time.Minute, wed.SlotDuration)
	assert.Equal(t, "Dr. Hanna", wed.Doctor)
	assert.Len(t, wed.Hygienists, 2)

	thu := r.ScheduleFor(time.Date(2025, 6, 19, 0, 0, 0, 0, loc))
	assert.Equal(t, "Dr. Parmar", thu.Doctor)

	sun := r.ScheduleFor(time.Date(2025, 6, 22, 0, 0, 0, 0, loc))
	assert.True(t, sun.Closed)
	assert.True(t, sun.Open.IsZero())

	sat := r.ScheduleFor(time.Date(2025, 6, 21, 0, 0, 0, 0, loc))
	assert.False(t, sat.HasLunch())
}

func TestDefaultRosterProviders(t *testing.T) {
	r := Default()
	p, ok := r.Provider("H20")
	require.True(t, ok)
	assert.Equal(t, KindHygienist, p.Kind)
	assert.Equal(t, "operatory_12", p.Operatory)

	assert.Equal(t, "001", r.DefaultProvider().ID)
	assert.Equal(t, "operatory_7", r.DefaultProvider().Operatory)

	providers := r.Providers()
	providers[0].Aliases[0] = "mutated"
	again := r.Providers()
	assert.NotEqual(t, "mutated", again[0].Aliases[0])
}

func TestServiceDuration(t *testing.T) {
	r := Default()
	assert.Equal(t, 60*time.Minute, r.ServiceDuration("Cleaning"))
	assert.Equal(t, 90*time.Minute, r.ServiceDuration("  root   CANAL "))
	assert.Equal(t, 30*time.Minute, r.ServiceDuration("something unlisted"))
}

func TestLoadYAML(t *testing.T) {
	r, err := Load("testdata/roster.yaml")
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", r.Location().String())

	wed := r.ScheduleFor(time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 8, wed.Open.Hour())
	assert.Equal(t, 12, wed.LunchStart.Hour())
	assert.Equal(t, 30, wed.LunchEnd.Minute())

	thu := r.ScheduleFor(time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 20*time.Minute, thu.SlotDuration)
	assert.False(t, thu.HasLunch())

	assert.True(t, r.ScheduleFor(time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC)).Closed)
	// weekdays missing from the document are closed
	assert.True(t, r.ScheduleFor(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)).Closed)
	assert.Equal(t, 60*time.Minute, r.ServiceDuration("cleaning"))
}

func TestLoadJSON(t *testing.T) {
	r, err := Load("testdata/roster.json")
	require.NoError(t, err)
	mon := r.ScheduleFor(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))
	assert.False(t, mon.Closed)
	assert.Equal(t, 90*time.Minute, r.ServiceDuration("root canal"))
	assert.True(t, r.ScheduleFor(time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)).Closed)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown default", `{"default_provider":"999","providers":[{"id":"001","operatory":"op"}]}`},
		{"missing operatory", `{"default_provider":"001","providers":[{"id":"001"}]}`},
		{"duplicate provider", `{"default_provider":"001","providers":[{"id":"001","operatory":"a"},{"id":"001","operatory":"b"}]}`},
		{"close before open", `{"default_provider":"001","providers":[{"id":"001","operatory":"a"}],"weekdays":{"monday":{"open":"17:00","close":"09:00"}}}`},
		{"lunch outside hours", `{"default_provider":"001","providers":[{"id":"001","operatory":"a"}],"weekdays":{"monday":{"open":"09:00","close":"12:00","lunch_break":{"start":"12:00","end":"13:00"}}}}`},
		{"bad weekday", `{"default_provider":"001","providers":[{"id":"001","operatory":"a"}],"weekdays":{"funday":{"status":"closed"}}}`},
		{"unknown hygienist", `{"default_provider":"001","providers":[{"id":"001","operatory":"a"}],"weekdays":{"monday":{"open":"09:00","close":"12:00","hygienists":[{"name":"x","provider_id":"H99"}]}}}`},
		{"unknown field", `{"default_provider":"001","providers":[{"id":"001","operatory":"a"}],"holidays":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			require.Error(t, err)
		})
	}
}
