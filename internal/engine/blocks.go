package engine

import (
	"fmt"
	"sort"

	"pebble/internal/domain"
)

type fightRef struct {
	half  domain.Half
	index int
}

func fightKey(reportID string, fightID int) string {
	return fmt.Sprintf("%s#%d", reportID, fightID)
}

// BuildBlocks merges participation into contiguous engaged intervals per main
// per half. Consecutive top-tier pulls of a half stay in one block, downtime
// and lower-difficulty pulls in between included. Only missing a top-tier pull
// ends the block.
func BuildBlocks(nightID string, records []domain.ParticipationRecord, fights []domain.Fight, env Envelope) []domain.Block {
	halves := map[domain.Half][]domain.Fight{}
	sorted := make([]domain.Fight, len(fights))
	copy(sorted, fights)
	sortFights(sorted)

	refs := make(map[string]fightRef)
	for _, f := range sorted {
		if !f.IsTopTier() {
			continue
		}
		h := env.HalfOf(f.StartMS)
		refs[fightKey(f.ReportID, f.FightID)] = fightRef{half: h, index: len(halves[h])}
		halves[h] = append(halves[h], f)
	}

	// main -> half -> ordered fight indexes
	played := make(map[string]map[domain.Half][]int)
	for _, r := range records {
		ref, ok := refs[fightKey(r.ReportID, r.FightID)]
		if !ok {
			continue
		}
		if played[r.Main] == nil {
			played[r.Main] = make(map[domain.Half][]int)
		}
		played[r.Main][ref.half] = append(played[r.Main][ref.half], ref.index)
	}

	mains := make([]string, 0, len(played))
	for m := range played {
		mains = append(mains, m)
	}
	sort.Strings(mains)

	var out []domain.Block
	for _, main := range mains {
		for _, h := range []domain.Half{domain.HalfPre, domain.HalfPost} {
			idx := dedupeInts(played[main][h])
			list := halves[h]
			seq := 0
			var cur *domain.Block
			prev := -1
			for _, i := range idx {
				f := list[i]
				if cur != nil && i == prev+1 {
					if f.EndMS > cur.EndMS {
						cur.EndMS = f.EndMS
					}
				} else {
					if cur != nil {
						out = append(out, *cur)
					}
					seq++
					cur = &domain.Block{
						NightID:  nightID,
						Main:     main,
						Half:     h,
						Sequence: seq,
						StartMS:  f.StartMS,
						EndMS:    f.EndMS,
					}
				}
				prev = i
			}
			if cur != nil {
				out = append(out, *cur)
			}
		}
	}
	return out
}

// PlayedMS sums block durations per main per half.
func PlayedMS(blocks []domain.Block) map[string]map[domain.Half]int64 {
	out := make(map[string]map[domain.Half]int64)
	for _, b := range blocks {
		if out[b.Main] == nil {
			out[b.Main] = make(map[domain.Half]int64)
		}
		out[b.Main][b.Half] += b.DurationMS()
	}
	return out
}

func dedupeInts(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
