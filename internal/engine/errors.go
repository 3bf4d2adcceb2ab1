package engine

import "errors"

var (
	// ErrNoTopTierFights marks a night whose envelope could not be built.
	ErrNoTopTierFights = errors.New("no top-tier fights")
	// ErrAmbiguousOverride marks a break override with only one bound set.
	ErrAmbiguousOverride = errors.New("break override needs both start and end")
	// ErrNoQualifyingBreak marks a night where no gap satisfied the window.
	ErrNoQualifyingBreak = errors.New("no qualifying break")
	ErrNoFights          = errors.New("night has no fights")
)

const msPerMinute = 60_000

// Minutes floors a millisecond span to whole minutes, clamping negatives to 0.
func Minutes(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int(ms / msPerMinute)
}
