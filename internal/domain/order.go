package domain

// Canonical sort orders of the published tables.

// LessNightQA orders nights ascending by night start.
func LessNightQA(a, b NightQA) bool {
	if a.NightStartMS != b.NightStartMS {
		return a.NightStartMS < b.NightStartMS
	}
	return a.NightID < b.NightID
}

// LessBenchNight orders by night, then ascending bench total, then main.
func LessBenchNight(a, b BenchNightTotal) bool {
	if a.NightID != b.NightID {
		return a.NightID < b.NightID
	}
	if a.BenchTotal != b.BenchTotal {
		return a.BenchTotal < b.BenchTotal
	}
	return a.Main < b.Main
}

// LessBenchWeek orders by period, then ascending bench, then main.
func LessBenchWeek(a, b BenchWeekTotal) bool {
	if a.WeekID != b.WeekID {
		return a.WeekID < b.WeekID
	}
	if a.BenchWeek != b.BenchWeek {
		return a.BenchWeek < b.BenchWeek
	}
	return a.Main < b.Main
}

func LessBenchRanking(a, b BenchRanking) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Main < b.Main
}
