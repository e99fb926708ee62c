package calendar

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Name is the adapter name
const Name = "calendar"

const (
	lookbackDays  = 7
	lookaheadDays = 90
)

// WeeklyRule is a release that repeats on the same weekday
type WeeklyRule struct {
	Name     string
	Category string
	Weekday  time.Weekday
	Symbols  []string

	// 0 이면 연중. 아니면 [SeasonStart, SeasonEnd] 월에만
	SeasonStart time.Month
	SeasonEnd   time.Month
}

// WeeklyRules are the recurring releases
var WeeklyRules = []WeeklyRule{
	{Name: "USDA Crop Progress", Category: "usda", Weekday: time.Monday, Symbols: []string{"ZC", "ZS", "ZW"}, SeasonStart: time.April, SeasonEnd: time.November},
	{Name: "EIA Petroleum Status", Category: "eia", Weekday: time.Wednesday, Symbols: []string{"CL"}},
	{Name: "USDA Export Sales", Category: "usda", Weekday: time.Thursday, Symbols: []string{"ZC", "ZS", "ZW"}},
	{Name: "CFTC COT Release", Category: "cftc", Weekday: time.Friday},
}

func (r WeeklyRule) activeIn(m time.Month) bool {
	if r.SeasonStart == 0 {
		return true
	}
	return r.SeasonStart <= m && m <= r.SeasonEnd
}

// FixedEvent is one calendar.yml entry
type FixedEvent struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Impact   string   `yaml:"impact"`
	Symbols  []string `yaml:"symbols"`
	Dates    []string `yaml:"dates"`
}

// File is the calendar.yml document
type File struct {
	Year   int          `yaml:"year"`
	Events []FixedEvent `yaml:"events"`
}

// LoadFile reads and validates calendar.yml
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, &contracts.ParseError{Source: Name, Field: path, Err: err}
	}
	for _, ev := range f.Events {
		for _, d := range ev.Dates {
			if _, err := time.Parse(contracts.DateLayout, d); err != nil {
				return nil, &contracts.ParseError{Source: Name, Field: ev.Name, Err: err}
			}
		}
	}
	return &f, nil
}

// Adapter generates the market calendar around the run date.
// 외부 호출 없음. 파일이 없으면 ParseError 로 캐시 fallback
type Adapter struct {
	path   string
	logger *logger.Logger
}

// New creates the calendar adapter
func New(path string, log *logger.Logger) *Adapter {
	return &Adapter{path: path, logger: log.WithField("adapter", Name)}
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

// Fetch implements collector.Adapter
func (a *Adapter) Fetch(ctx context.Context, _ collector.Window, opts collector.Options) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := LoadFile(a.path)
	if err != nil {
		return nil, err
	}

	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	events := Build(f, asOf)

	if f.Year != asOf.Year() {
		a.logger.WithFields(map[string]interface{}{
			"file_year": f.Year,
			"run_year":  asOf.Year(),
		}).Warn("calendar file is for another year")
	}
	a.logger.WithField("events", len(events)).Info("calendar generated")

	return contracts.CalendarData{Events: events}, nil
}

// Build merges fixed and weekly events within [asOf−7d, asOf+90d], sorted by date then name
func Build(f *File, asOf time.Time) []contracts.CalendarEvent {
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	start := day.AddDate(0, 0, -lookbackDays)
	end := day.AddDate(0, 0, lookaheadDays)
	from, to := start.Format(contracts.DateLayout), end.Format(contracts.DateLayout)

	events := []contracts.CalendarEvent{}
	if f != nil {
		for _, ev := range f.Events {
			impact := ev.Impact
			if impact == "" {
				impact = "high"
			}
			for _, d := range ev.Dates {
				if d < from || d > to {
					continue
				}
				events = append(events, contracts.CalendarEvent{
					Date:     d,
					Name:     ev.Name,
					Category: ev.Category,
					Impact:   impact,
					Symbols:  ev.Symbols,
				})
			}
		}
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, r := range WeeklyRules {
			if d.Weekday() != r.Weekday || !r.activeIn(d.Month()) {
				continue
			}
			events = append(events, contracts.CalendarEvent{
				Date:      d.Format(contracts.DateLayout),
				Name:      r.Name,
				Category:  r.Category,
				Impact:    "medium",
				Recurring: true,
				Symbols:   r.Symbols,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Name < events[j].Name
	})
	return events
}
