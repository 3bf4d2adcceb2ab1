package engine

import (
	"sort"
	"time"

	"pebble/internal/domain"
	"pebble/internal/timeutil"
)

// WeekReset anchors the recurring periods at a weekday and local time.
type WeekReset struct {
	Weekday  time.Weekday
	Offset   time.Duration // past local midnight
	Location *time.Location
}

func (w WeekReset) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// PeriodStart returns the latest reset at or before ms.
func (w WeekReset) PeriodStart(ms int64) time.Time {
	t := timeutil.FromMS(ms).In(w.loc())
	back := (int(t.Weekday()) - int(w.Weekday) + 7) % 7
	h := int(w.Offset / time.Hour)
	m := int((w.Offset % time.Hour) / time.Minute)
	start := time.Date(t.Year(), t.Month(), t.Day()-back, h, m, 0, 0, w.loc())
	if start.After(t) {
		start = start.AddDate(0, 0, -7)
	}
	return start
}

// WeekID names a period by the local date of its reset.
func (w WeekReset) WeekID(ms int64) string {
	return w.PeriodStart(ms).Format(timeutil.DateLayout)
}

type period struct {
	id    string
	start time.Time
	end   time.Time
}

// NightSummary is one computed night as seen by the week aggregation.
type NightSummary struct {
	NightID string
	StartMS int64
	Totals  []domain.BenchNightTotal
}

type weekAcc struct {
	played, benchPre, benchPost, nights int
}

// AggregateWeeks sums night totals into periods. Every roster main whose
// membership overlaps a period gets a row, even with no nights played; mains
// off the roster are left out. Rows are ranked least-benched first.
func AggregateWeeks(nights []NightSummary, roster []domain.TeamRosterEntry, reset WeekReset) []domain.BenchWeekTotal {
	periods := make(map[string]period)
	acc := make(map[string]map[string]*weekAcc)

	for _, n := range nights {
		start := reset.PeriodStart(n.StartMS)
		id := start.Format(timeutil.DateLayout)
		if _, ok := periods[id]; !ok {
			periods[id] = period{id: id, start: start, end: start.AddDate(0, 0, 7)}
			acc[id] = make(map[string]*weekAcc)
		}
		for _, t := range n.Totals {
			a, ok := acc[id][t.Main]
			if !ok {
				a = &weekAcc{}
				acc[id][t.Main] = a
			}
			a.played += t.PlayedTotal
			a.benchPre += t.BenchPre
			a.benchPost += t.BenchPost
			if t.PlayedTotal > 0 {
				a.nights++
			}
		}
	}

	var out []domain.BenchWeekTotal
	for id, p := range periods {
		var rows []domain.BenchWeekTotal
		seen := make(map[string]bool)
		for _, e := range roster {
			if e.Main == "" || seen[e.Main] || !memberDuring(e, p, reset.loc()) {
				continue
			}
			seen[e.Main] = true
			row := domain.BenchWeekTotal{WeekID: id, Main: e.Main}
			if a, ok := acc[id][e.Main]; ok {
				row.PlayedWeek = a.played
				row.BenchPre = a.benchPre
				row.BenchPost = a.benchPost
				row.BenchWeek = a.benchPre + a.benchPost
				row.NightsPlayed = a.nights
			}
			rows = append(rows, row)
		}
		sort.SliceStable(rows, func(i, j int) bool { return domain.LessBenchWeek(rows[i], rows[j]) })
		for i := range rows {
			rows[i].Rank = i + 1
		}
		out = append(out, rows...)
	}
	sort.SliceStable(out, func(i, j int) bool { return domain.LessBenchWeek(out[i], out[j]) })
	return out
}

// memberDuring checks the roster window [join 00:00, leave+1d 00:00) against
// the period [start, end).
func memberDuring(e domain.TeamRosterEntry, p period, loc *time.Location) bool {
	if !e.IsActive() {
		return false
	}
	if e.JoinDate != "" {
		join, err := time.ParseInLocation(timeutil.DateLayout, e.JoinDate, loc)
		if err == nil && !join.Before(p.end) {
			return false
		}
	}
	if e.LeaveDate != "" {
		leave, err := time.ParseInLocation(timeutil.DateLayout, e.LeaveDate, loc)
		if err == nil && !leave.AddDate(0, 0, 1).After(p.start) {
			return false
		}
	}
	return true
}

// RankSeason totals the week rows per active roster main, least-benched
// first.
func RankSeason(weeks []domain.BenchWeekTotal, roster []domain.TeamRosterEntry) []domain.BenchRanking {
	active := make(map[string]bool)
	for _, e := range roster {
		if e.Main != "" && e.IsActive() {
			active[e.Main] = true
		}
	}

	byMain := make(map[string]*domain.BenchRanking)
	for _, w := range weeks {
		if !active[w.Main] {
			continue
		}
		r, ok := byMain[w.Main]
		if !ok {
			r = &domain.BenchRanking{Main: w.Main}
			byMain[w.Main] = r
		}
		r.BenchMinutes += w.BenchWeek
		r.PlayedMinutes += w.PlayedWeek
		r.Weeks++
	}

	out := make([]domain.BenchRanking, 0, len(byMain))
	for _, r := range byMain {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BenchMinutes != out[j].BenchMinutes {
			return out[i].BenchMinutes < out[j].BenchMinutes
		}
		return out[i].Main < out[j].Main
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
