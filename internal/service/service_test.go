package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pebble/internal/api"
	"pebble/internal/database"
	"pebble/internal/db"
	"pebble/internal/domain"
	"pebble/internal/engine"
	"pebble/internal/metrics"
	"pebble/internal/officer"
	"pebble/internal/reconcile"
	"pebble/internal/repository"
)

const testURL = "https://www.warcraftlogs.com/reports/abc123#fight=last"

func la(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

type fakeFetcher struct {
	mu      sync.Mutex
	bundles map[string]*api.ReportBundle
	err     error
	calls   int
}

func (f *fakeFetcher) FetchReport(_ context.Context, code string) (*api.ReportBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.bundles[code]
	if !ok {
		return nil, api.ErrReportNotFound
	}
	return b, nil
}

type staticSource struct {
	tables *officer.Tables
	err    error
}

func (s staticSource) Load(context.Context) (*officer.Tables, error) {
	return s.tables, s.err
}

func mythic(id, enc int, startMin, endMin int64, players ...int) api.FightData {
	diff := int(domain.DifficultyMythic)
	kill := true
	return api.FightData{
		ID:              id,
		EncounterID:     enc,
		Name:            "boss",
		Difficulty:      &diff,
		StartTime:       startMin * 60_000,
		EndTime:         endMin * 60_000,
		FriendlyPlayers: players,
		Kill:            &kill,
	}
}

// testBundle is a Tuesday raid starting 19:00 Los Angeles time with a break
// from 20:50 to 21:05. C leaves at the break and D arrives after it.
func testBundle(t *testing.T) *api.ReportBundle {
	start := time.Date(2025, 3, 4, 19, 0, 0, 0, la(t)).UnixMilli()
	b := &api.ReportBundle{
		Code:      "abc123",
		Title:     "Mythic night",
		StartTime: start,
		EndTime:   start + 3*3_600_000,
		Fights: []api.FightData{
			mythic(1, 2001, 5, 20, 1, 2, 3),
			mythic(2, 2002, 60, 110, 1, 2, 3),
			mythic(3, 2003, 125, 180, 1, 2, 4),
		},
	}
	b.MasterData = &struct {
		Actors []api.Actor `json:"actors"`
	}{Actors: []api.Actor{
		{ID: 1, Name: "A", Type: "Player"},
		{ID: 2, Name: "B", Type: "Player"},
		{ID: 3, Name: "C", Type: "Player"},
		{ID: 4, Name: "D", Type: "Player"},
	}}
	return b
}

func testTables(t *testing.T, reports ...officer.ReportRow) *officer.Tables {
	return officer.Parse(officer.Raw{
		Reports: reports,
		Team: []officer.TeamRow{
			{Main: "A"}, {Main: "B"}, {Main: "C"}, {Main: "D"},
		},
	}, la(t))
}

type harness struct {
	reports  *repository.ReportRepository
	nights   *repository.NightRepository
	syncLog  *repository.SyncLogRepository
	qa       *reconcile.MemoryTarget[domain.NightQA]
	bench    *reconcile.MemoryTarget[domain.BenchNightTotal]
	weeks    *reconcile.MemoryTarget[domain.BenchWeekTotal]
	rankings *reconcile.MemoryTarget[domain.BenchRanking]
	fetcher  *fakeFetcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "pebble.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	q := db.New(sqlDB)
	return &harness{
		reports:  repository.NewReportRepository(sqlDB, q, zerolog.Nop()),
		nights:   repository.NewNightRepository(sqlDB, q, zerolog.Nop()),
		syncLog:  repository.NewSyncLogRepository(sqlDB, q, zerolog.Nop()),
		qa:       reconcile.NewMemoryTarget[domain.NightQA](),
		bench:    reconcile.NewMemoryTarget[domain.BenchNightTotal](),
		weeks:    reconcile.NewMemoryTarget[domain.BenchWeekTotal](),
		rankings: reconcile.NewMemoryTarget[domain.BenchRanking](),
		fetcher:  &fakeFetcher{bundles: map[string]*api.ReportBundle{"abc123": testBundle(t)}},
	}
}

func (h *harness) pipeline(t *testing.T, source officer.Source) *Pipeline {
	loc := la(t)
	settings := engine.Settings{
		Location:        loc,
		WindowStart:     20*time.Hour + 45*time.Minute,
		WindowEnd:       21*time.Hour + 30*time.Minute,
		MinBreak:        10 * time.Minute,
		MaxBreak:        30 * time.Minute,
		DedupeTolerance: 100 * time.Millisecond,
	}
	reset := engine.WeekReset{Weekday: time.Tuesday, Offset: 8 * time.Hour, Location: loc}
	targets := Targets{
		NightQA:    []reconcile.Target[domain.NightQA]{h.qa},
		BenchNight: []reconcile.Target[domain.BenchNightTotal]{h.bench},
		BenchWeek:  []reconcile.Target[domain.BenchWeekTotal]{h.weeks},
		Rankings:   []reconcile.Target[domain.BenchRanking]{h.rankings},
	}
	m := metrics.New()
	rc := reconcile.New(reconcile.Options{MaxTries: 2, InitialInterval: time.Millisecond}, zerolog.Nop(), m, h.syncLog)
	ingester := NewIngester(h.fetcher, h.reports, loc, 2, zerolog.Nop())
	return NewPipeline(settings, reset, source, ingester, h.reports, h.nights, targets, rc, m, zerolog.Nop())
}

func byMain(rows []domain.BenchNightTotal) map[string]domain.BenchNightTotal {
	out := make(map[string]domain.BenchNightTotal, len(rows))
	for _, r := range rows {
		out[r.Main] = r
	}
	return out
}

func TestPipelineRunOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.pipeline(t, staticSource{tables: testTables(t, officer.ReportRow{Row: 6, URL: testURL})})

	res, err := p.RunOnce(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingest.Fetched)
	assert.Equal(t, 1, res.Nights)
	assert.Empty(t, res.FailedNights)

	qa, err := h.qa.Load(ctx, "2025-03-04")
	require.NoError(t, err)
	require.Len(t, qa, 1)
	assert.True(t, qa[0].HasBreak)
	assert.Equal(t, 105, qa[0].PreMinutes)
	assert.Equal(t, 55, qa[0].PostMinutes)
	assert.Equal(t, 4, qa[0].MainsSeen)

	bench, err := h.bench.Load(ctx, "2025-03-04")
	require.NoError(t, err)
	rows := byMain(bench)
	require.Len(t, rows, 4)
	assert.Zero(t, rows["A"].BenchTotal)
	assert.Zero(t, rows["B"].BenchTotal)
	assert.Equal(t, 55, rows["C"].BenchPost)
	assert.Equal(t, 105, rows["D"].BenchPre)
	for _, r := range bench {
		assert.Equal(t, r.BenchPre+r.BenchPost, r.BenchTotal, r.Main)
	}

	weeks, err := h.weeks.Load(ctx, "2025-03-04")
	require.NoError(t, err)
	require.Len(t, weeks, 4)
	assert.Equal(t, "D", weeks[3].Main)
	assert.Equal(t, 105, weeks[3].BenchWeek)

	ranking, err := h.rankings.Load(ctx, domain.SeasonScope)
	require.NoError(t, err)
	require.Len(t, ranking, 4)
	assert.Equal(t, "D", ranking[3].Main)

	blocks, err := h.nights.Blocks(ctx, "2025-03-04")
	require.NoError(t, err)
	assert.NotEmpty(t, blocks)

	logged, err := h.syncLog.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, logged, 4)

	// a second pass over unchanged data writes nothing
	res, err = p.RunOnce(ctx, RunOptions{SkipIngest: true})
	require.NoError(t, err)
	for _, s := range res.Synced {
		assert.Zero(t, s.Upserted, s.Table)
		assert.Zero(t, s.Deleted, s.Table)
	}
	assert.Equal(t, 1, h.bench.Writes())
	logged, err = h.syncLog.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, logged, 4)
}

func TestPipelineRosterWithoutReports(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.pipeline(t, staticSource{tables: testTables(t)})

	res, err := p.RunOnce(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Nights)
	assert.Empty(t, res.Weeks)
	assert.Zero(t, h.fetcher.calls)
}

func TestPipelineUpstreamUnavailable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fetcher.err = &api.StatusError{Code: 503}
	p := h.pipeline(t, staticSource{tables: testTables(t, officer.ReportRow{URL: testURL})})

	_, err := p.RunOnce(ctx, RunOptions{})
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	var se *api.StatusError
	assert.ErrorAs(t, err, &se)
	assert.Zero(t, h.bench.Writes())
}

func TestPipelineOfficerSourceError(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("sheet gone")
	p := h.pipeline(t, staticSource{err: boom})

	_, err := p.RunOnce(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestPipelineStaleNightDeleted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.pipeline(t, staticSource{tables: testTables(t, officer.ReportRow{URL: testURL})})

	stale := domain.BenchNightTotal{NightID: "2025-02-25", Main: "A", BenchTotal: 9, BenchPre: 9}
	require.NoError(t, h.bench.Apply(ctx, reconcile.Plan[domain.BenchNightTotal]{
		Scope:   stale.NightID,
		Ordered: []domain.BenchNightTotal{stale},
	}))

	_, err := p.RunOnce(ctx, RunOptions{})
	require.NoError(t, err)

	scopes, err := h.bench.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-04"}, scopes)
}

func TestNightOutcomeSkips(t *testing.T) {
	out := nightOutcome{
		failed:      map[string]bool{"2025-03-04": true},
		failedWeeks: map[string]bool{"2025-03-04": true},
	}
	assert.True(t, out.skipNight("2025-03-04"))
	assert.False(t, out.skipNight("2025-03-05"))
	assert.True(t, out.skipWeek("2025-03-04"))
	assert.False(t, out.skipWeek("2025-03-11"))
	assert.True(t, out.skipSeason(domain.SeasonScope))

	out.weeksUnknown = true
	assert.True(t, out.skipWeek("2025-03-11"))

	clean := nightOutcome{failed: map[string]bool{}, failedWeeks: map[string]bool{}}
	assert.False(t, clean.skipSeason(domain.SeasonScope))
}

func TestPipelineDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	row := officer.ReportRow{Row: 6, URL: testURL}
	_, err := NewIngester(h.fetcher, h.reports, la(t), 1, zerolog.Nop()).Ingest(ctx, []officer.ReportRow{row})
	require.NoError(t, err)
	require.Equal(t, 1, h.fetcher.calls)

	p := h.pipeline(t, staticSource{tables: testTables(t, row)})
	res, err := p.RunOnce(ctx, RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Nights)
	assert.Equal(t, 1, h.fetcher.calls)
	assert.Equal(t, 105, byMain(h.bench.Rows())["D"].BenchPre)

	count, err := h.nights.ParticipationCount(ctx, "2025-03-04")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkWeekDatesNightByFirstFight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.pipeline(t, staticSource{tables: testTables(t)})
	loc := la(t)

	// opened before the Tuesday 08:00 reset, first pull after it
	opened := time.Date(2025, 3, 4, 7, 50, 0, 0, loc).UnixMilli()
	pull := time.Date(2025, 3, 4, 8, 10, 0, 0, loc).UnixMilli()
	require.NoError(t, h.reports.UpsertBundle(ctx,
		domain.Report{Code: "early1", NightID: "2025-03-04", StartMS: opened, EndMS: pull + 3_600_000},
		[]domain.Fight{{FightID: 1, EncounterID: 2001, Difficulty: domain.DifficultyMythic, StartMS: pull, EndMS: pull + 600_000, Roster: []string{"A"}}},
	))

	out := nightOutcome{failed: map[string]bool{}, failedWeeks: map[string]bool{}}
	p.markWeek(ctx, "2025-03-04", &out)
	assert.False(t, out.weeksUnknown)
	assert.True(t, out.skipWeek("2025-03-04"))
	assert.False(t, out.skipWeek("2025-02-25"))

	out = nightOutcome{failed: map[string]bool{}, failedWeeks: map[string]bool{}}
	p.markWeek(ctx, "2025-03-11", &out)
	assert.True(t, out.weeksUnknown)
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	loc := la(t)
	ing := NewIngester(h.fetcher, h.reports, loc, 4, zerolog.Nop())

	res, err := ing.Ingest(ctx, []officer.ReportRow{
		{Row: 6, URL: testURL, Notes: "prog"},
		{Row: 7, URL: "https://example.com/nope"},
		{Row: 8, URL: "https://www.warcraftlogs.com/reports/missing1"},
		{Row: 9, URL: "https://www.warcraftlogs.com/reports/old999", Status: "done"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 1, res.Missing)
	assert.Equal(t, []int{7}, res.BadLinks)
	assert.Equal(t, 2, h.fetcher.calls)

	stored, err := h.reports.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "prog", stored.Notes)
	assert.Equal(t, "2025-03-04", stored.NightID)
	assert.Nil(t, stored.BreakOverrideStartMS)

	// a done row only refreshes the override
	_, err = ing.Ingest(ctx, []officer.ReportRow{
		{URL: testURL, Status: "done", BreakStart: "8:40", BreakEnd: "8:55"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, h.fetcher.calls)

	stored, err = h.reports.Get(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, stored.BreakOverrideStartMS)
	require.NotNil(t, stored.BreakOverrideEndMS)
	assert.Equal(t, time.Date(2025, 3, 4, 20, 40, 0, 0, loc).UnixMilli(), *stored.BreakOverrideStartMS)
	assert.Equal(t, time.Date(2025, 3, 4, 20, 55, 0, 0, loc).UnixMilli(), *stored.BreakOverrideEndMS)
}

type scriptedRunner struct {
	errs []error
	i    int
}

func (r *scriptedRunner) RunOnce(context.Context, RunOptions) (*RunResult, error) {
	err := r.errs[r.i%len(r.errs)]
	r.i++
	return &RunResult{}, err
}

func TestDriverOutage(t *testing.T) {
	down := fmtUpstream()
	runner := &scriptedRunner{errs: []error{down, down, down, nil}}
	var logs bytes.Buffer
	d := NewDriver(runner, time.Minute, 30*time.Minute, metrics.New(), zerolog.New(&logs))

	now := time.Date(2025, 3, 4, 19, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.Tick(context.Background())
	assert.Zero(t, d.Outage())

	now = now.Add(20 * time.Minute)
	d.Tick(context.Background())
	assert.Equal(t, 20*time.Minute, d.Outage())
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.NotContains(t, logs.String(), `"level":"error"`)

	now = now.Add(20 * time.Minute)
	d.Tick(context.Background())
	assert.Equal(t, 40*time.Minute, d.Outage())
	assert.Contains(t, logs.String(), `"level":"error"`)

	d.Tick(context.Background())
	assert.Zero(t, d.Outage())
	assert.Contains(t, logs.String(), "event log reachable again")
}

func TestDriverRunStopsOnCancel(t *testing.T) {
	runner := &scriptedRunner{errs: []error{nil}}
	d := NewDriver(runner, time.Hour, time.Hour, metrics.New(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 1, runner.i)
}

func fmtUpstream() error {
	return errors.Join(ErrUpstreamUnavailable, &api.StatusError{Code: 502})
}
