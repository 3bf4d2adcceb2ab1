// Package officer reads the tables officers maintain by hand: the report
// list, the alt to main map, the team roster and availability overrides.
// The engine only ever reads them.
package officer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pebble/internal/domain"
	"pebble/internal/timeutil"
)

// Source loads the officer tables. There is deliberately no write side.
type Source interface {
	Load(ctx context.Context) (*Tables, error)
}

type ReportRow struct {
	Row        int    `yaml:"-"`
	URL        string `yaml:"url"`
	Status     string `yaml:"status"`
	Notes      string `yaml:"notes"`
	BreakStart string `yaml:"break_override_start"`
	BreakEnd   string `yaml:"break_override_end"`
}

// Pending reports whether the row still asks for ingestion.
func (r ReportRow) Pending() bool {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(r.Status, "‑", "-"))) {
	case "", "in-progress", "in progress":
		return true
	}
	return false
}

// BreakOverride resolves the override cells against the report start. Clock
// times land on the first matching time at or after the report start.
func (r ReportRow) BreakOverride(reportStartMS int64, loc *time.Location) (start, end *int64, err error) {
	parse := func(txt string) (*int64, error) {
		if strings.TrimSpace(txt) == "" {
			return nil, nil
		}
		ms, err := timeutil.ResolveAfter(txt, reportStartMS, loc)
		if err != nil {
			return nil, err
		}
		return &ms, nil
	}
	if start, err = parse(r.BreakStart); err != nil {
		return nil, nil, fmt.Errorf("break override start: %w", err)
	}
	if end, err = parse(r.BreakEnd); err != nil {
		return nil, nil, fmt.Errorf("break override end: %w", err)
	}
	return start, end, nil
}

type RosterRow struct {
	Alt  string `yaml:"alt"`
	Main string `yaml:"main"`
}

type TeamRow struct {
	Main      string `yaml:"main"`
	JoinDate  string `yaml:"join_date"`
	LeaveDate string `yaml:"leave_date"`
	Active    string `yaml:"active"`
	Notes     string `yaml:"notes"`
}

type OverrideRow struct {
	Night     string `yaml:"night"`
	Main      string `yaml:"main"`
	AvailPre  string `yaml:"avail_pre"`
	AvailPost string `yaml:"avail_post"`
	Reason    string `yaml:"reason"`
}

// Raw is the officer tables as typed by hand.
type Raw struct {
	Reports   []ReportRow   `yaml:"reports"`
	RosterMap []RosterRow   `yaml:"roster_map"`
	Team      []TeamRow     `yaml:"team_roster"`
	Overrides []OverrideRow `yaml:"overrides"`
}

// Tables is the parsed form handed to the engine.
type Tables struct {
	Reports   []ReportRow
	Roster    domain.RosterMap
	Team      []domain.TeamRosterEntry
	Overrides []domain.AvailabilityOverride
	// Problems are rows that were skipped, for the operator log.
	Problems []string
}

// OverridesFor returns the overrides of one night.
func (t *Tables) OverridesFor(nightID string) []domain.AvailabilityOverride {
	var out []domain.AvailabilityOverride
	for _, o := range t.Overrides {
		if o.NightID == nightID {
			out = append(out, o)
		}
	}
	return out
}

// Parse validates the raw rows. Bad rows are skipped and listed in Problems.
func Parse(raw Raw, loc *time.Location) *Tables {
	t := &Tables{Roster: make(domain.RosterMap)}

	for _, r := range raw.Reports {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		r.URL = strings.TrimSpace(r.URL)
		t.Reports = append(t.Reports, r)
	}

	for _, r := range raw.RosterMap {
		alt, main := strings.TrimSpace(r.Alt), strings.TrimSpace(r.Main)
		if alt == "" || main == "" {
			continue
		}
		t.Roster[alt] = main
	}

	for i, r := range raw.Team {
		main := strings.TrimSpace(r.Main)
		if main == "" {
			continue
		}
		e := domain.TeamRosterEntry{Main: main}
		var err error
		if e.JoinDate, err = optionalDate(r.JoinDate, loc); err != nil {
			t.Problems = append(t.Problems, fmt.Sprintf("team roster row %d (%s): join date: %v", i+1, main, err))
		}
		if e.LeaveDate, err = optionalDate(r.LeaveDate, loc); err != nil {
			t.Problems = append(t.Problems, fmt.Sprintf("team roster row %d (%s): leave date: %v", i+1, main, err))
		}
		if e.Active, err = ParseBool(r.Active); err != nil {
			t.Problems = append(t.Problems, fmt.Sprintf("team roster row %d (%s): %v", i+1, main, err))
		}
		t.Team = append(t.Team, e)
	}

	for i, r := range raw.Overrides {
		main := strings.TrimSpace(r.Main)
		if strings.TrimSpace(r.Night) == "" || main == "" {
			continue
		}
		night, err := timeutil.ParseDate(r.Night, loc)
		if err != nil {
			t.Problems = append(t.Problems, fmt.Sprintf("override row %d (%s): %v", i+1, main, err))
			continue
		}
		o := domain.AvailabilityOverride{NightID: night, Main: t.Roster.MainOf(main), Reason: strings.TrimSpace(r.Reason)}
		if o.AvailPre, err = ParseBool(r.AvailPre); err != nil {
			t.Problems = append(t.Problems, fmt.Sprintf("override row %d (%s): avail pre: %v", i+1, main, err))
		}
		if o.AvailPost, err = ParseBool(r.AvailPost); err != nil {
			t.Problems = append(t.Problems, fmt.Sprintf("override row %d (%s): avail post: %v", i+1, main, err))
		}
		t.Overrides = append(t.Overrides, o)
	}
	return t
}

func optionalDate(txt string, loc *time.Location) (string, error) {
	if strings.TrimSpace(txt) == "" {
		return "", nil
	}
	return timeutil.ParseDate(txt, loc)
}

// ParseBool reads officer yes/no cells. Blank, "-" and "na" mean unset.
func ParseBool(txt string) (*bool, error) {
	v := strings.ToLower(strings.TrimSpace(txt))
	switch v {
	case "", "-", "na", "n/a":
		return nil, nil
	case "y", "yes", "true", "1", "t", "x":
		b := true
		return &b, nil
	case "n", "no", "false", "0", "f":
		b := false
		return &b, nil
	}
	return nil, fmt.Errorf("unrecognized yes/no value %q", txt)
}
