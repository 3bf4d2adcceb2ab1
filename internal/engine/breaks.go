package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"pebble/internal/domain"
)

type Break struct {
	StartMS int64
	EndMS   int64
}

func (b Break) DurationMS() int64 {
	return b.EndMS - b.StartMS
}

// BreakParams bounds the search for the recovery break of one night. Window
// bounds are absolute epoch ms, already resolved for the night.
type BreakParams struct {
	WindowStartMS int64
	WindowEndMS   int64
	MinLength     time.Duration
	MaxLength     time.Duration

	OverrideStartMS *int64
	OverrideEndMS   *int64
}

type BreakResult struct {
	Break        *Break
	Candidates   []domain.GapCandidate
	LargestGapMS int64
	OverrideUsed bool
	NeedsReview  bool
	Warnings     []error
}

// DetectBreak picks the largest inter-fight gap that starts inside the
// window and whose length is within bounds, earliest start winning ties.
// A complete manual override replaces detection.
func DetectBreak(fights []domain.Fight, p BreakParams) BreakResult {
	var res BreakResult

	sorted := make([]domain.Fight, len(fights))
	copy(sorted, fights)
	sortFights(sorted)

	minMS, maxMS := p.MinLength.Milliseconds(), p.MaxLength.Milliseconds()
	var best *Break
	for i := 0; i+1 < len(sorted); i++ {
		start, end := sorted[i].EndMS, sorted[i+1].StartMS
		// overlapping pulls from different logs leave no gap
		if end <= start {
			continue
		}
		if start < p.WindowStartMS || start > p.WindowEndMS {
			continue
		}
		gap := end - start
		qualifies := gap >= minMS && gap <= maxMS
		res.Candidates = append(res.Candidates, domain.GapCandidate{
			StartMS:   start,
			EndMS:     end,
			Minutes:   roundMinutes(gap),
			Qualifies: qualifies,
		})
		if gap > res.LargestGapMS {
			res.LargestGapMS = gap
		}
		if !qualifies {
			continue
		}
		if best == nil || gap > best.DurationMS() || (gap == best.DurationMS() && start < best.StartMS) {
			best = &Break{StartMS: start, EndMS: end}
		}
	}
	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].StartMS < res.Candidates[j].StartMS
	})

	switch {
	case p.OverrideStartMS != nil && p.OverrideEndMS != nil:
		if *p.OverrideEndMS > *p.OverrideStartMS {
			res.Break = &Break{StartMS: *p.OverrideStartMS, EndMS: *p.OverrideEndMS}
			res.OverrideUsed = true
			return res
		}
		res.Warnings = append(res.Warnings, fmt.Errorf("%w: end is not after start", ErrAmbiguousOverride))
	case p.OverrideStartMS != nil || p.OverrideEndMS != nil:
		res.Warnings = append(res.Warnings, ErrAmbiguousOverride)
	}

	if best == nil {
		res.NeedsReview = true
		res.Warnings = append(res.Warnings, ErrNoQualifyingBreak)
		return res
	}
	res.Break = best
	return res
}

func roundMinutes(ms int64) float64 {
	return math.Round(float64(ms)/msPerMinute*100) / 100
}
