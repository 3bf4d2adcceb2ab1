package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pebble/internal/domain"
)

const testNight = "2025-10-07"

func pt(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

// at returns epoch ms for hh:mm on the test night in Los Angeles.
func at(t *testing.T, hh, mm int) int64 {
	t.Helper()
	return time.Date(2025, 10, 7, hh, mm, 0, 0, pt(t)).UnixMilli()
}

func fight(id int, diff domain.Difficulty, start, end int64, roster ...string) domain.Fight {
	return domain.Fight{
		ReportID:    "abc",
		FightID:     id,
		EncounterID: 3000 + id,
		Difficulty:  diff,
		StartMS:     start,
		EndMS:       end,
		Roster:      roster,
	}
}

func testSettings(t *testing.T) Settings {
	return Settings{
		Location:        pt(t),
		WindowStart:     20*time.Hour + 50*time.Minute,
		WindowEnd:       21*time.Hour + 30*time.Minute,
		MinBreak:        8 * time.Minute,
		MaxBreak:        30 * time.Minute,
		DedupeTolerance: 100 * time.Millisecond,
	}
}

// exampleNight: envelope 19:32-22:10 with the break at 20:58-21:12.
// A plays everything, B skips M2 and leaves at the break, C joins after it,
// E only shows on the heroic pull right before mythic.
func exampleNight(t *testing.T) []domain.Fight {
	return []domain.Fight{
		fight(1, domain.DifficultyHeroic, at(t, 19, 0), at(t, 19, 25), "A", "B", "E"),
		fight(2, domain.DifficultyMythic, at(t, 19, 32), at(t, 19, 50), "A", "B"),
		fight(3, domain.DifficultyMythic, at(t, 20, 0), at(t, 20, 30), "A", "X"),
		fight(4, domain.DifficultyMythic, at(t, 20, 40), at(t, 20, 58), "A", "B"),
		fight(5, domain.DifficultyMythic, at(t, 21, 12), at(t, 21, 40), "A", "C"),
		fight(6, domain.DifficultyMythic, at(t, 21, 50), at(t, 22, 10), "A", "C"),
	}
}

func boolPtr(v bool) *bool { return &v }

func int64Ptr(v int64) *int64 { return &v }
