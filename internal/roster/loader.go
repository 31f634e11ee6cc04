package roster

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Format selects the roster document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type document struct {
	Timezone              string            `json:"timezone" yaml:"timezone"`
	DefaultProvider       string            `json:"default_provider" yaml:"default_provider"`
	Providers             []providerDoc     `json:"providers" yaml:"providers"`
	Weekdays              map[string]dayDoc `json:"weekdays" yaml:"weekdays"`
	Services              map[string]int    `json:"services" yaml:"services"`
	DefaultServiceMinutes int               `json:"default_service_minutes" yaml:"default_service_minutes"`
}

type providerDoc struct {
	ID           string   `json:"id" yaml:"id"`
	DisplayName  string   `json:"display_name" yaml:"display_name"`
	Kind         string   `json:"kind" yaml:"kind"`
	Operatory    string   `json:"operatory" yaml:"operatory"`
	Aliases      []string `json:"aliases" yaml:"aliases"`
	SurnameToken string   `json:"surname_token" yaml:"surname_token"`
}

type dayDoc struct {
	Open                string         `json:"open" yaml:"open"`
	Close               string         `json:"close" yaml:"close"`
	LunchBreak          *breakDoc      `json:"lunch_break" yaml:"lunch_break"`
	DefaultSlotDuration int            `json:"default_slot_duration" yaml:"default_slot_duration"`
	Status              string         `json:"status" yaml:"status"`
	Doctor              string         `json:"doctor" yaml:"doctor"`
	Hygienists          []hygienistDoc `json:"hygienists" yaml:"hygienists"`
}

type breakDoc struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

type hygienistDoc struct {
	Name       string `json:"name" yaml:"name"`
	ProviderID string `json:"provider_id" yaml:"provider_id"`
}

// Load reads a roster document from disk. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster: read %s: %w", path, err)
	}
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return Parse(data, format)
}

// Parse decodes and validates a roster document.
func Parse(data []byte, format Format) (*Roster, error) {
	var doc document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("roster: decode yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("roster: decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("roster: unsupported format %q", format)
	}
	return build(doc)
}

// Default returns the practice roster used for local runs and tests.
func Default() *Roster {
	r, err := build(defaultDocument())
	if err != nil {
		panic(fmt.Sprintf("roster: default document invalid: %v", err))
	}
	return r
}

func defaultDocument() document {
	lunch := &breakDoc{Start: "1:00 PM", End: "2:00 PM"}
	hygienists := []hygienistDoc{
		{Name: "Nadia Khan RDH", ProviderID: "H20"},
		{Name: "Imelda Soledad RDH", ProviderID: "6"},
	}
	workday := func(doctor string) dayDoc {
		return dayDoc{
			Open:                "9:00 AM",
			Close:               "5:00 PM",
			LunchBreak:          lunch,
			DefaultSlotDuration: 30,
			Status:              "open",
			Doctor:              doctor,
			Hygienists:          hygienists,
		}
	}
	return document{
		Timezone:        "America/New_York",
		DefaultProvider: "001",
		Providers: []providerDoc{
			{ID: "001", DisplayName: "Dr. Nancy  Hanna", Kind: "doctor", Operatory: "operatory_7",
				Aliases: []string{"Dr. Hanna", "Dr. Nancy Hanna", "Nancy Hanna"}, SurnameToken: "hanna"},
			{ID: "100", DisplayName: "Dr. Yuzvyak", Kind: "doctor", Operatory: "operatory_8",
				Aliases: []string{"Dr. Yuzvyak", "Dr Yuzvyak"}, SurnameToken: "yuzvyak"},
			{ID: "101", DisplayName: "Dr. Parmar", Kind: "doctor", Operatory: "operatory_11",
				Aliases: []string{"Dr. Parmar", "Dr Parmar"}, SurnameToken: "parmar"},
			{ID: "102", DisplayName: "Dr. Lee", Kind: "doctor", Operatory: "operatory_10",
				Aliases: []string{"Dr. Lee", "Dr Lee"}, SurnameToken: "lee"},
			{ID: "H20", DisplayName: "Nadia Khan RDH", Kind: "hygienist", Operatory: "operatory_12",
				Aliases: []string{"Nadia Khan", "Nadia"}},
			{ID: "6", DisplayName: "Imelda Soledad RDH", Kind: "hygienist", Operatory: "operatory_13",
				Aliases: []string{"Imelda Soledad", "Imelda"}},
		},
		Weekdays: map[string]dayDoc{
			"monday":    workday("Dr. Hanna"),
			"tuesday":   workday("Dr. Yuzvyak"),
			"wednesday": workday("Dr. Hanna"),
			"thursday":  workday("Dr. Parmar"),
			"friday":    workday("Dr. Lee"),
			"saturday": {
				Open:                "9:00 AM",
				Close:               "1:00 PM",
				DefaultSlotDuration: 30,
				Status:              "open",
				Doctor:              "Dr. Lee",
			},
			"sunday": {Status: "Closed"},
		},
		Services: map[string]int{
			"cleaning":         60,
			"exam":             30,
			"consultation":     30,
			"filling":          60,
			"emergency":        30,
			"crown":            90,
			"root canal":       90,
			"teeth whitening":  60,
			"new patient exam": 60,
		},
		DefaultServiceMinutes: 30,
	}
}
