package engine

import (
	"sort"
	"time"

	"pebble/internal/domain"
)

// DedupeFights collapses the same pull logged by several reports. Two fights
// are the same pull when encounter and difficulty match and both bounds are
// within tolerance. The earliest-seen copy is kept and rosters are unioned.
func DedupeFights(fights []domain.Fight, tolerance time.Duration) []domain.Fight {
	tol := tolerance.Milliseconds()
	sorted := make([]domain.Fight, len(fights))
	copy(sorted, fights)
	sortFights(sorted)

	out := make([]domain.Fight, 0, len(sorted))
	for _, f := range sorted {
		merged := false
		// duplicates sort next to each other, only look back while starts are close
		for i := len(out) - 1; i >= 0 && f.StartMS-out[i].StartMS <= tol; i-- {
			k := &out[i]
			if k.EncounterID == f.EncounterID && k.Difficulty == f.Difficulty && abs(k.EndMS-f.EndMS) <= tol {
				k.Roster = unionRoster(k.Roster, f.Roster)
				merged = true
				break
			}
		}
		if !merged {
			f.Roster = unionRoster(nil, f.Roster)
			out = append(out, f)
		}
	}
	return out
}

func sortFights(fights []domain.Fight) {
	sort.SliceStable(fights, func(i, j int) bool {
		a, b := fights[i], fights[j]
		if a.StartMS != b.StartMS {
			return a.StartMS < b.StartMS
		}
		if a.EndMS != b.EndMS {
			return a.EndMS < b.EndMS
		}
		if a.ReportID != b.ReportID {
			return a.ReportID < b.ReportID
		}
		return a.FightID < b.FightID
	})
}

func unionRoster(into, from []string) []string {
	seen := make(map[string]struct{}, len(into)+len(from))
	out := make([]string, 0, len(into)+len(from))
	for _, list := range [][]string{into, from} {
		for _, m := range list {
			if m == "" {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
