package reportstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pebble/internal/domain"
	"pebble/internal/timeutil"
)

func NightQACodec(loc *time.Location) Codec[domain.NightQA] {
	return Codec[domain.NightQA]{
		Scope:  keyCell,
		Header: []string{
			"Night ID", "Reports Involved", "Mains Seen", "Night Start (PT)", "Night End (PT)",
			"Top-Tier Fights", "Envelope Start (PT)", "Envelope End (PT)", "Break Found?",
			"Break Start (PT)", "Break End (PT)", "Break Duration (min)", "Override Used?",
			"Pre (min)", "Post (min)", "Envelope (min)", "Largest Gap (min)",
			"Candidate Gaps (JSON)", "Needs Review?", "Warnings",
		},
		Encode: func(q domain.NightQA) []string {
			return []string{
				q.NightID, q.Reports, itoa(q.MainsSeen), msCell(q.NightStartMS, loc), msCell(q.NightEndMS, loc),
				itoa(q.TopTierFights), msCell(q.EnvelopeStartMS, loc), msCell(q.EnvelopeEndMS, loc), yn(q.HasBreak),
				msCell(q.BreakStartMS, loc), msCell(q.BreakEndMS, loc), itoa(q.BreakMinutes), yn(q.OverrideUsed),
				itoa(q.PreMinutes), itoa(q.PostMinutes), itoa(q.EnvelopeMinutes),
				strconv.FormatFloat(q.LargestGapMinutes, 'f', -1, 64),
				q.Candidates, yn(q.NeedsReview), q.Warnings,
			}
		},
		Decode: func(c []string) (domain.NightQA, error) {
			d := decoder{cells: c, loc: loc}
			q := domain.NightQA{
				NightID:           d.str(0),
				Reports:           d.str(1),
				MainsSeen:         d.num(2),
				NightStartMS:      d.ms(3),
				NightEndMS:        d.ms(4),
				TopTierFights:     d.num(5),
				EnvelopeStartMS:   d.ms(6),
				EnvelopeEndMS:     d.ms(7),
				HasBreak:          d.flag(8),
				BreakStartMS:      d.ms(9),
				BreakEndMS:        d.ms(10),
				BreakMinutes:      d.num(11),
				OverrideUsed:      d.flag(12),
				PreMinutes:        d.num(13),
				PostMinutes:       d.num(14),
				EnvelopeMinutes:   d.num(15),
				LargestGapMinutes: d.decimal(16),
				Candidates:        d.str(17),
				NeedsReview:       d.flag(18),
				Warnings:          d.str(19),
			}
			return q, d.check(q.NightID)
		},
	}
}

func BenchNightCodec() Codec[domain.BenchNightTotal] {
	return Codec[domain.BenchNightTotal]{
		Scope:  keyCell,
		Header: []string{
			"Night ID", "Main", "Played Pre (min)", "Played Post (min)", "Played Total (min)",
			"Bench Pre (min)", "Bench Post (min)", "Bench Total (min)",
			"Avail Pre?", "Avail Post?", "Status Source",
		},
		Encode: func(b domain.BenchNightTotal) []string {
			return []string{
				b.NightID, b.Main, itoa(b.PlayedPre), itoa(b.PlayedPost), itoa(b.PlayedTotal),
				itoa(b.BenchPre), itoa(b.BenchPost), itoa(b.BenchTotal),
				yn(b.AvailPre), yn(b.AvailPost), string(b.StatusSource),
			}
		},
		Decode: func(c []string) (domain.BenchNightTotal, error) {
			d := decoder{cells: c}
			b := domain.BenchNightTotal{
				NightID:      d.str(0),
				Main:         d.str(1),
				PlayedPre:    d.num(2),
				PlayedPost:   d.num(3),
				PlayedTotal:  d.num(4),
				BenchPre:     d.num(5),
				BenchPost:    d.num(6),
				BenchTotal:   d.num(7),
				AvailPre:     d.flag(8),
				AvailPost:    d.flag(9),
				StatusSource: domain.StatusSource(d.str(10)),
			}
			return b, d.check(b.NightID, b.Main)
		},
	}
}

func BenchWeekCodec() Codec[domain.BenchWeekTotal] {
	return Codec[domain.BenchWeekTotal]{
		Scope:  keyCell,
		Header: []string{
			"Game Week", "Main", "Played Week (min)", "Bench Week (min)",
			"Bench Pre (min)", "Bench Post (min)", "Nights Played", "Rank",
		},
		Encode: func(w domain.BenchWeekTotal) []string {
			return []string{
				w.WeekID, w.Main, itoa(w.PlayedWeek), itoa(w.BenchWeek),
				itoa(w.BenchPre), itoa(w.BenchPost), itoa(w.NightsPlayed), itoa(w.Rank),
			}
		},
		Decode: func(c []string) (domain.BenchWeekTotal, error) {
			d := decoder{cells: c}
			w := domain.BenchWeekTotal{
				WeekID:       d.str(0),
				Main:         d.str(1),
				PlayedWeek:   d.num(2),
				BenchWeek:    d.num(3),
				BenchPre:     d.num(4),
				BenchPost:    d.num(5),
				NightsPlayed: d.num(6),
				Rank:         d.num(7),
			}
			return w, d.check(w.WeekID, w.Main)
		},
	}
}

func RankingCodec() Codec[domain.BenchRanking] {
	return Codec[domain.BenchRanking]{
		Scope:  seasonScope,
		Header: []string{"Rank", "Main", "Bench Season-to-date (min)", "Played Season-to-date (min)", "Weeks"},
		Encode: func(r domain.BenchRanking) []string {
			return []string{itoa(r.Rank), r.Main, itoa(r.BenchMinutes), itoa(r.PlayedMinutes), itoa(r.Weeks)}
		},
		Decode: func(c []string) (domain.BenchRanking, error) {
			d := decoder{cells: c}
			r := domain.BenchRanking{
				Rank:          d.num(0),
				Main:          d.str(1),
				BenchMinutes:  d.num(2),
				PlayedMinutes: d.num(3),
				Weeks:         d.num(4),
			}
			return r, d.check(r.Main)
		},
	}
}

// keyCell reads the scope of a row keyed by its first column.
func keyCell(c []string) string { return strings.TrimSpace(cell(c, 0)) }

func seasonScope([]string) string { return domain.SeasonScope }

func itoa(v int) string { return strconv.Itoa(v) }

func yn(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}

func msCell(ms int64, loc *time.Location) string {
	if ms == 0 {
		return ""
	}
	return timeutil.FormatLocal(ms, loc)
}

// decoder reads typed cells and keeps the first error.
type decoder struct {
	cells []string
	loc   *time.Location
	err   error
}

func (d *decoder) str(i int) string {
	return strings.TrimSpace(cell(d.cells, i))
}

func (d *decoder) fail(i int, err error) {
	if d.err == nil {
		d.err = errColumn(strconv.Itoa(i+1), err)
	}
}

func (d *decoder) num(i int) int {
	txt := d.str(i)
	if txt == "" {
		return 0
	}
	v, err := strconv.Atoi(txt)
	if err != nil {
		d.fail(i, err)
	}
	return v
}

func (d *decoder) decimal(i int) float64 {
	txt := d.str(i)
	if txt == "" {
		return 0
	}
	v, err := strconv.ParseFloat(txt, 64)
	if err != nil {
		d.fail(i, err)
	}
	return v
}

func (d *decoder) flag(i int) bool {
	switch strings.ToUpper(d.str(i)) {
	case "Y", "YES", "TRUE":
		return true
	case "", "N", "NO", "FALSE":
		return false
	}
	d.fail(i, fmt.Errorf("not a yes/no value: %q", d.str(i)))
	return false
}

func (d *decoder) ms(i int) int64 {
	txt := d.str(i)
	if txt == "" {
		return 0
	}
	v, err := timeutil.ParseLocal(txt, d.loc)
	if err != nil {
		d.fail(i, err)
	}
	return v
}

// check returns the first cell error, or an error when a key cell is empty.
func (d *decoder) check(keys ...string) error {
	if d.err != nil {
		return d.err
	}
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("missing key cell")
		}
	}
	return nil
}
