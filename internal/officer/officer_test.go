package officer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pebble/internal/config"
)

func la(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestParseBool(t *testing.T) {
	for _, txt := range []string{"", " ", "-", "NA", "n/a"} {
		v, err := ParseBool(txt)
		require.NoError(t, err, txt)
		assert.Nil(t, v, txt)
	}
	for _, txt := range []string{"y", "Yes", "TRUE", "1", "t"} {
		v, err := ParseBool(txt)
		require.NoError(t, err, txt)
		require.NotNil(t, v, txt)
		assert.True(t, *v, txt)
	}
	for _, txt := range []string{"n", "No", "false", "0", "F"} {
		v, err := ParseBool(txt)
		require.NoError(t, err, txt)
		require.NotNil(t, v, txt)
		assert.False(t, *v, txt)
	}
	_, err := ParseBool("maybe")
	assert.Error(t, err)
}

func TestReportRowPending(t *testing.T) {
	assert.True(t, ReportRow{Status: ""}.Pending())
	assert.True(t, ReportRow{Status: "In-Progress"}.Pending())
	assert.True(t, ReportRow{Status: "in progress"}.Pending())
	assert.False(t, ReportRow{Status: "done"}.Pending())
	assert.False(t, ReportRow{Status: "error: bad link"}.Pending())
}

func TestReportRowBreakOverride(t *testing.T) {
	loc := la(t)
	start := time.Date(2025, 3, 4, 19, 0, 0, 0, loc).UnixMilli()

	row := ReportRow{BreakStart: "8:50", BreakEnd: "9:05 PM"}
	s, e, err := row.BreakOverride(start, loc)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NotNil(t, e)
	assert.Equal(t, time.Date(2025, 3, 4, 20, 50, 0, 0, loc).UnixMilli(), *s)
	assert.Equal(t, time.Date(2025, 3, 4, 21, 5, 0, 0, loc).UnixMilli(), *e)

	s, e, err = ReportRow{}.BreakOverride(start, loc)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, e)

	_, _, err = ReportRow{BreakStart: "soon"}.BreakOverride(start, loc)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	loc := la(t)
	raw := Raw{
		Reports: []ReportRow{
			{URL: " https://www.warcraftlogs.com/reports/abc123 "},
			{URL: ""},
		},
		RosterMap: []RosterRow{
			{Alt: "Altie", Main: "Mainy"},
			{Alt: "Orphan", Main: ""},
		},
		Team: []TeamRow{
			{Main: "Mainy", JoinDate: "2025-01-07", Active: "yes"},
			{Main: "Leaver", LeaveDate: "2025-02-01", Active: "no"},
			{Main: "Broken", JoinDate: "someday"},
			{Main: ""},
		},
		Overrides: []OverrideRow{
			{Night: "2025-03-04", Main: "Altie", AvailPre: "n", AvailPost: "", Reason: "late"},
			{Night: "not a date", Main: "Mainy"},
			{Night: "", Main: "Mainy"},
		},
	}

	tables := Parse(raw, loc)

	require.Len(t, tables.Reports, 1)
	assert.Equal(t, "https://www.warcraftlogs.com/reports/abc123", tables.Reports[0].URL)

	assert.Equal(t, "Mainy", tables.Roster.MainOf("Altie"))
	assert.Equal(t, "Orphan", tables.Roster.MainOf("Orphan"))

	require.Len(t, tables.Team, 3)
	assert.Equal(t, "2025-01-07", tables.Team[0].JoinDate)
	assert.True(t, tables.Team[0].IsActive())
	assert.False(t, tables.Team[1].IsActive())
	assert.Equal(t, "", tables.Team[2].JoinDate)

	require.Len(t, tables.Overrides, 1)
	o := tables.Overrides[0]
	assert.Equal(t, "Mainy", o.Main)
	assert.Equal(t, "2025-03-04", o.NightID)
	require.NotNil(t, o.AvailPre)
	assert.False(t, *o.AvailPre)
	assert.Nil(t, o.AvailPost)
	assert.Equal(t, "late", o.Reason)

	assert.Len(t, tables.Problems, 2)
	assert.Len(t, tables.OverridesFor("2025-03-04"), 1)
	assert.Empty(t, tables.OverridesFor("2025-03-05"))
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "officer.yaml")
	body := `
reports:
  - url: https://www.warcraftlogs.com/reports/abc123
    status: in-progress
    break_override_start: "20:50"
    break_override_end: "21:05"
roster_map:
  - {alt: Altie, main: Mainy}
team_roster:
  - {main: Mainy, join_date: "2025-01-07", active: "y"}
overrides:
  - {night: "2025-03-04", main: Mainy, avail_pre: "y", avail_post: "n"}
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	src := NewFileSource(path, la(t), zerolog.Nop())
	tables, err := src.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, tables.Reports, 1)
	assert.Equal(t, 1, tables.Reports[0].Row)
	assert.True(t, tables.Reports[0].Pending())
	assert.Equal(t, "20:50", tables.Reports[0].BreakStart)
	assert.Equal(t, "Mainy", tables.Roster["Altie"])
	assert.Len(t, tables.Team, 1)
	require.Len(t, tables.Overrides, 1)
	assert.True(t, *tables.Overrides[0].AvailPre)
	assert.False(t, *tables.Overrides[0].AvailPost)
}

func TestFileSourceMissing(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"), time.UTC, zerolog.Nop())
	_, err := src.Load(context.Background())
	assert.Error(t, err)
}

type fakeGrid struct {
	tabs map[string][][]string
	err  error
}

func (f fakeGrid) ReadGrid(_ context.Context, tab string) ([][]string, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.tabs[tab], 5, nil
}

func TestSheetSource(t *testing.T) {
	tabs := config.Tabs{Reports: "Reports", RosterMap: "Roster Map", TeamRoster: "Team Roster", Overrides: "Availability Overrides"}
	grid := fakeGrid{tabs: map[string][][]string{
		"Reports": {
			{"Report URL", "Status", "Notes", "Break Override Start (PT)", "Break Override End (PT)"},
			{"https://www.warcraftlogs.com/reports/abc123", "", "", "20:50", "21:05"},
			{"https://www.warcraftlogs.com/reports/def456", "done"},
		},
		"Roster Map": {
			{"Alt", "Main"},
			{"Altie", "Mainy"},
		},
		"Team Roster": {
			{"Main", "Join Date", "Leave Date", "Active?", "Notes"},
			{"Mainy", "2025-01-07", "", "Y"},
		},
		"Availability Overrides": {
			{"Night", "Main", "Avail Pre?", "Avail Post?", "Reason"},
			{"2025-03-04", "Altie", "", "N", "left early"},
		},
	}}

	src := NewSheetSource(grid, tabs, la(t), zerolog.Nop())
	tables, err := src.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, tables.Reports, 2)
	assert.Equal(t, 6, tables.Reports[0].Row)
	assert.Equal(t, "20:50", tables.Reports[0].BreakStart)
	assert.True(t, tables.Reports[0].Pending())
	assert.Equal(t, 7, tables.Reports[1].Row)
	assert.False(t, tables.Reports[1].Pending())

	require.Len(t, tables.Team, 1)
	assert.Equal(t, "Mainy", tables.Team[0].Main)

	require.Len(t, tables.Overrides, 1)
	assert.Equal(t, "Mainy", tables.Overrides[0].Main)
	assert.Nil(t, tables.Overrides[0].AvailPre)
	assert.False(t, *tables.Overrides[0].AvailPost)
}

func TestSheetSourceReadError(t *testing.T) {
	boom := errors.New("quota")
	src := NewSheetSource(fakeGrid{err: boom}, config.Tabs{Reports: "Reports"}, time.UTC, zerolog.Nop())
	_, err := src.Load(context.Background())
	assert.ErrorIs(t, err, boom)
}
