package api

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"pebble/internal/domain"
	"pebble/internal/timeutil"
)

// absoluteMSThreshold separates report-relative fight times from epoch ms.
const absoluteMSThreshold = 1_000_000_000_000

// ExtractReportCode pulls the report code out of a warcraftlogs.com report
// URL. ok is false for anything else.
func ExtractReportCode(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "warcraftlogs.com" && !strings.HasSuffix(host, ".warcraftlogs.com") {
		return "", false
	}
	_, rest, found := strings.Cut(u.Path, "/reports/")
	if !found {
		return "", false
	}
	code, _, _ := strings.Cut(rest, "/")
	if code == "" {
		return "", false
	}
	return code, true
}

// NormalizeFightTimes returns absolute epoch ms bounds. Fight times are
// usually relative to the report start; values already past the threshold
// are kept as they are.
func NormalizeFightTimes(reportStartMS, start, end int64) (int64, int64) {
	if start < absoluteMSThreshold && end < absoluteMSThreshold {
		return reportStartMS + start, reportStartMS + end
	}
	return start, end
}

// ToDomain converts a bundle into the stored report and its fights. Rosters
// are player actor names, suffixed with the server when one is known.
func (b *ReportBundle) ToDomain(loc *time.Location) (domain.Report, []domain.Fight) {
	report := domain.Report{
		Code:    b.Code,
		Title:   b.Title,
		StartMS: b.StartTime,
		EndMS:   b.EndTime,
		NightID: timeutil.NightID(b.StartTime, loc),
	}
	if b.Owner != nil {
		report.Owner = b.Owner.Name
	}

	players := make(map[int]string)
	if b.MasterData != nil {
		for _, a := range b.MasterData.Actors {
			if !strings.EqualFold(a.Type, "player") || a.Name == "" {
				continue
			}
			name := a.Name
			if a.Server != "" {
				name += "-" + a.Server
			}
			players[a.ID] = name
		}
	}

	fights := make([]domain.Fight, 0, len(b.Fights))
	for _, f := range b.Fights {
		start, end := NormalizeFightTimes(b.StartTime, f.StartTime, f.EndTime)
		fight := domain.Fight{
			ReportID:    b.Code,
			FightID:     f.ID,
			EncounterID: f.EncounterID,
			Name:        f.Name,
			StartMS:     start,
			EndMS:       end,
		}
		if f.Difficulty != nil {
			fight.Difficulty = domain.Difficulty(*f.Difficulty)
		}
		if f.Kill != nil {
			fight.Kill = *f.Kill
		}
		seen := make(map[string]bool)
		for _, id := range f.FriendlyPlayers {
			if name, ok := players[id]; ok && !seen[name] {
				seen[name] = true
				fight.Roster = append(fight.Roster, name)
			}
		}
		sort.Strings(fight.Roster)
		fights = append(fights, fight)
	}
	return report, fights
}
