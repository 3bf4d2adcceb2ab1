package officer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pebble/internal/config"
)

// GridReader returns a tab as rows of cells, the header row first.
type GridReader interface {
	ReadGrid(ctx context.Context, tab string) (rows [][]string, firstRow int, err error)
}

// SheetSource reads the officer tabs of the team spreadsheet.
type SheetSource struct {
	reader GridReader
	tabs   config.Tabs
	loc    *time.Location
	logger zerolog.Logger
}

func NewSheetSource(reader GridReader, tabs config.Tabs, loc *time.Location, logger zerolog.Logger) *SheetSource {
	return &SheetSource{reader: reader, tabs: tabs, loc: loc, logger: logger}
}

func (s *SheetSource) Load(ctx context.Context) (*Tables, error) {
	var raw Raw

	reports, err := s.read(ctx, s.tabs.Reports)
	if err != nil {
		return nil, err
	}
	for _, r := range reports {
		raw.Reports = append(raw.Reports, ReportRow{
			Row:        r.row,
			URL:        r.get("Report URL"),
			Status:     r.get("Status"),
			Notes:      r.get("Notes"),
			BreakStart: r.get("Break Override Start (PT)", "Break Override Start"),
			BreakEnd:   r.get("Break Override End (PT)", "Break Override End"),
		})
	}

	roster, err := s.read(ctx, s.tabs.RosterMap)
	if err != nil {
		return nil, err
	}
	for _, r := range roster {
		raw.RosterMap = append(raw.RosterMap, RosterRow{Alt: r.get("Alt"), Main: r.get("Main")})
	}

	team, err := s.read(ctx, s.tabs.TeamRoster)
	if err != nil {
		return nil, err
	}
	for _, r := range team {
		raw.Team = append(raw.Team, TeamRow{
			Main:      r.get("Main"),
			JoinDate:  r.get("Join Date"),
			LeaveDate: r.get("Leave Date"),
			Active:    r.get("Active?", "Active"),
			Notes:     r.get("Notes"),
		})
	}

	overrides, err := s.read(ctx, s.tabs.Overrides)
	if err != nil {
		return nil, err
	}
	for _, r := range overrides {
		raw.Overrides = append(raw.Overrides, OverrideRow{
			Night:     r.get("Night"),
			Main:      r.get("Main"),
			AvailPre:  r.get("Avail Pre?", "Avail Pre"),
			AvailPost: r.get("Avail Post?", "Avail Post"),
			Reason:    r.get("Reason"),
		})
	}

	t := Parse(raw, s.loc)
	s.logger.Debug().
		Int("reports", len(t.Reports)).
		Int("roster_map", len(t.Roster)).
		Int("team", len(t.Team)).
		Int("overrides", len(t.Overrides)).
		Msg("officer tables loaded")
	return t, nil
}

type gridRow struct {
	row    int
	cells  []string
	header map[string]int
}

func (r gridRow) get(names ...string) string {
	for _, n := range names {
		if i, ok := r.header[n]; ok && i < len(r.cells) {
			return strings.TrimSpace(r.cells[i])
		}
	}
	return ""
}

// read maps every row under the header by column name. Rows are numbered as
// in the spreadsheet.
func (s *SheetSource) read(ctx context.Context, tab string) ([]gridRow, error) {
	grid, first, err := s.reader.ReadGrid(ctx, tab)
	if err != nil {
		return nil, fmt.Errorf("read tab %q: %w", tab, err)
	}
	if len(grid) == 0 {
		return nil, nil
	}
	header := make(map[string]int, len(grid[0]))
	for i, h := range grid[0] {
		header[strings.TrimSpace(h)] = i
	}
	out := make([]gridRow, 0, len(grid)-1)
	for i, cells := range grid[1:] {
		out = append(out, gridRow{row: first + 1 + i, cells: cells, header: header})
	}
	return out, nil
}
