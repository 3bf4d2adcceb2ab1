package engine

import (
	"sort"

	"pebble/internal/domain"
)

// BuildParticipation emits one record per (main, top-tier fight). Alts are
// credited to their main, and a main seen twice on a pull counts once.
func BuildParticipation(nightID string, fights []domain.Fight, roster domain.RosterMap) []domain.ParticipationRecord {
	var out []domain.ParticipationRecord
	for _, f := range fights {
		if !f.IsTopTier() {
			continue
		}
		seen := make(map[string]bool, len(f.Roster))
		for _, name := range f.Roster {
			if name == "" {
				continue
			}
			main := roster.MainOf(name)
			if seen[main] {
				continue
			}
			seen[main] = true
			out = append(out, domain.ParticipationRecord{
				NightID:     nightID,
				ReportID:    f.ReportID,
				FightID:     f.FightID,
				EncounterID: f.EncounterID,
				Main:        main,
				StartMS:     f.StartMS,
				EndMS:       f.EndMS,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartMS != out[j].StartMS {
			return out[i].StartMS < out[j].StartMS
		}
		return out[i].Main < out[j].Main
	})
	return out
}
