package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pebble/internal/domain"
)

func windowParams(t *testing.T) BreakParams {
	return BreakParams{
		WindowStartMS: at(t, 20, 50),
		WindowEndMS:   at(t, 21, 30),
		MinLength:     8 * time.Minute,
		MaxLength:     30 * time.Minute,
	}
}

func TestDetectBreak_PicksGapInsideWindow(t *testing.T) {
	res := DetectBreak(exampleNight(t), windowParams(t))

	require.NotNil(t, res.Break)
	assert.Equal(t, at(t, 20, 58), res.Break.StartMS)
	assert.Equal(t, at(t, 21, 12), res.Break.EndMS)
	assert.False(t, res.OverrideUsed)
	assert.False(t, res.NeedsReview)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 14.0, res.Candidates[0].Minutes)
	assert.True(t, res.Candidates[0].Qualifies)
}

func TestDetectBreak_LargestWinsEarliestBreaksTies(t *testing.T) {
	fights := []domain.Fight{
		fight(1, domain.DifficultyMythic, at(t, 20, 0), at(t, 20, 50), "A"),
		fight(2, domain.DifficultyMythic, at(t, 21, 2), at(t, 21, 5), "A"),   // 12m gap
		fight(3, domain.DifficultyMythic, at(t, 21, 17), at(t, 21, 20), "A"), // 12m gap
		fight(4, domain.DifficultyMythic, at(t, 21, 25), at(t, 22, 0), "A"),  // 5m gap, too short
	}
	res := DetectBreak(fights, windowParams(t))

	require.NotNil(t, res.Break)
	assert.Equal(t, at(t, 20, 50), res.Break.StartMS)
	assert.Len(t, res.Candidates, 3)
	assert.False(t, res.Candidates[2].Qualifies)

	fights[1].EndMS = at(t, 21, 4) // second gap now 13m
	res = DetectBreak(fights, windowParams(t))
	require.NotNil(t, res.Break)
	assert.Equal(t, at(t, 21, 4), res.Break.StartMS)
}

func TestDetectBreak_GapStartOutsideWindowIgnored(t *testing.T) {
	fights := []domain.Fight{
		fight(1, domain.DifficultyMythic, at(t, 19, 30), at(t, 20, 0), "A"),
		fight(2, domain.DifficultyMythic, at(t, 20, 20), at(t, 22, 0), "A"),
	}
	res := DetectBreak(fights, windowParams(t))

	assert.Nil(t, res.Break)
	assert.True(t, res.NeedsReview)
	assert.Empty(t, res.Candidates)
	assert.ErrorIs(t, res.Warnings[0], ErrNoQualifyingBreak)
}

func TestDetectBreak_TooLongGapFlagsReview(t *testing.T) {
	fights := []domain.Fight{
		fight(1, domain.DifficultyMythic, at(t, 20, 0), at(t, 21, 0), "A"),
		fight(2, domain.DifficultyMythic, at(t, 21, 45), at(t, 22, 0), "A"),
	}
	res := DetectBreak(fights, windowParams(t))

	assert.Nil(t, res.Break)
	assert.True(t, res.NeedsReview)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int64(45*time.Minute/time.Millisecond), res.LargestGapMS)
}

func TestDetectBreak_Override(t *testing.T) {
	p := windowParams(t)
	p.OverrideStartMS = int64Ptr(at(t, 21, 0))
	p.OverrideEndMS = int64Ptr(at(t, 21, 15))

	res := DetectBreak(exampleNight(t), p)

	require.NotNil(t, res.Break)
	assert.True(t, res.OverrideUsed)
	assert.Equal(t, at(t, 21, 0), res.Break.StartMS)
	assert.Equal(t, at(t, 21, 15), res.Break.EndMS)
	// candidates are still reported for audit
	assert.Len(t, res.Candidates, 1)
}

func TestDetectBreak_HalfOverrideFallsBackToDetection(t *testing.T) {
	p := windowParams(t)
	p.OverrideStartMS = int64Ptr(at(t, 21, 0))

	res := DetectBreak(exampleNight(t), p)

	require.NotNil(t, res.Break)
	assert.False(t, res.OverrideUsed)
	assert.Equal(t, at(t, 20, 58), res.Break.StartMS)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], ErrAmbiguousOverride)
}

func TestDetectBreak_NoFights(t *testing.T) {
	res := DetectBreak(nil, windowParams(t))
	assert.Nil(t, res.Break)
	assert.True(t, res.NeedsReview)
}
