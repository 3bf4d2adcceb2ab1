package engine

import (
	"sort"

	"pebble/internal/domain"
)

// ComputeBench turns envelope, blocks and availability into per-main totals.
// A main with neither availability nor participation gets no row.
func ComputeBench(nightID string, env Envelope, blocks []domain.Block, avail []Availability) []domain.BenchNightTotal {
	played := PlayedMS(blocks)

	var out []domain.BenchNightTotal
	for _, a := range avail {
		preMS := played[a.Main][domain.HalfPre]
		postMS := played[a.Main][domain.HalfPost]
		if !a.Pre.Available && !a.Post.Available && preMS == 0 && postMS == 0 {
			continue
		}

		row := domain.BenchNightTotal{
			NightID:      nightID,
			Main:         a.Main,
			PlayedPre:    Minutes(preMS),
			PlayedPost:   Minutes(postMS),
			AvailPre:     a.Pre.Available,
			AvailPost:    a.Post.Available,
			StatusSource: a.StatusSource(),
		}
		row.BenchPre = benchMinutes(a.Pre.Available, env.PreMinutes(), row.PlayedPre)
		row.BenchPost = benchMinutes(a.Post.Available, env.PostMinutes(), row.PlayedPost)
		row.PlayedTotal = row.PlayedPre + row.PlayedPost
		row.BenchTotal = row.BenchPre + row.BenchPost
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return domain.LessBenchNight(out[i], out[j]) })
	return out
}

func benchMinutes(available bool, halfMinutes, playedMinutes int) int {
	if !available {
		return 0
	}
	if d := halfMinutes - playedMinutes; d > 0 {
		return d
	}
	return 0
}
