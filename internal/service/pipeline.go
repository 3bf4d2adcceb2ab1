package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pebble/internal/domain"
	"pebble/internal/engine"
	"pebble/internal/metrics"
	"pebble/internal/officer"
	"pebble/internal/reconcile"
	"pebble/internal/repository"
)

var (
	NightQATable    = reconcile.Table[domain.NightQA]{Name: "night_qa", Less: domain.LessNightQA}
	BenchNightTable = reconcile.Table[domain.BenchNightTotal]{Name: "bench_night_totals", Less: domain.LessBenchNight}
	BenchWeekTable  = reconcile.Table[domain.BenchWeekTotal]{Name: "bench_week_totals", Less: domain.LessBenchWeek}
	RankingTable    = reconcile.Table[domain.BenchRanking]{Name: "bench_rankings", Less: domain.LessBenchRanking}
)

// Targets lists where each derived table is published. Every table goes to
// all of its targets.
type Targets struct {
	NightQA    []reconcile.Target[domain.NightQA]
	BenchNight []reconcile.Target[domain.BenchNightTotal]
	BenchWeek  []reconcile.Target[domain.BenchWeekTotal]
	Rankings   []reconcile.Target[domain.BenchRanking]
}

type RunOptions struct {
	SkipIngest bool
	// DryRun computes from stored reports only and writes nothing to the
	// database; the targets decide whether anything is published.
	DryRun bool
}

type RunResult struct {
	Ingest       IngestResult
	Nights       int
	FailedNights []string
	Weeks        []domain.BenchWeekTotal
	Rankings     []domain.BenchRanking
	Synced       []domain.SyncResult
}

// Pipeline runs ingest, the per-night chain, week aggregation and
// publication, in that order.
type Pipeline struct {
	settings engine.Settings
	reset    engine.WeekReset
	source   officer.Source
	ingester *Ingester
	reports  *repository.ReportRepository
	nights   *repository.NightRepository
	targets  Targets
	rc       *reconcile.Reconciler
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewPipeline(
	settings engine.Settings,
	reset engine.WeekReset,
	source officer.Source,
	ingester *Ingester,
	reports *repository.ReportRepository,
	nights *repository.NightRepository,
	targets Targets,
	rc *reconcile.Reconciler,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		settings: settings,
		reset:    reset,
		source:   source,
		ingester: ingester,
		reports:  reports,
		nights:   nights,
		targets:  targets,
		rc:       rc,
		metrics:  m,
		logger:   logger,
	}
}

// nightOutcome tracks what publication may touch after the night loop.
type nightOutcome struct {
	failed      map[string]bool
	failedWeeks map[string]bool
	// weeksUnknown is set when a failed night has no stored start time.
	weeksUnknown bool
}

func (o nightOutcome) skipNight(scope string) bool { return o.failed[scope] }

func (o nightOutcome) skipWeek(scope string) bool {
	return o.weeksUnknown || o.failedWeeks[scope]
}

func (o nightOutcome) skipSeason(string) bool { return len(o.failed) > 0 }

func (p *Pipeline) RunOnce(ctx context.Context, opts RunOptions) (*RunResult, error) {
	started := time.Now()
	defer func() { p.metrics.ObserveRun(time.Since(started)) }()

	res := &RunResult{}

	tables, err := p.source.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load officer tables: %w", err)
	}
	for _, problem := range tables.Problems {
		p.logger.Warn().Str("problem", problem).Msg("officer table row skipped")
	}

	if !opts.SkipIngest && !opts.DryRun && p.ingester != nil {
		res.Ingest, err = p.ingester.Ingest(ctx, tables.Reports)
		if err != nil {
			return res, err
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	nightIDs, err := p.reports.Nights(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list nights: %w", err)
	}

	out := nightOutcome{failed: make(map[string]bool), failedWeeks: make(map[string]bool)}
	var (
		qa        []domain.NightQA
		totals    []domain.BenchNightTotal
		summaries []engine.NightSummary
	)
	for _, nightID := range nightIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		night, err := p.computeNight(ctx, nightID, tables, !opts.DryRun)
		if errors.Is(err, engine.ErrNoFights) {
			p.logger.Warn().Str("night_id", nightID).Msg("night has no fights")
			p.metrics.NightComputed("empty")
			continue
		}
		if err != nil {
			p.logger.Error().Err(err).Str("night_id", nightID).Msg("night skipped")
			p.metrics.NightComputed("failed")
			res.FailedNights = append(res.FailedNights, nightID)
			out.failed[nightID] = true
			p.markWeek(ctx, nightID, &out)
			continue
		}
		res.Nights++
		qa = append(qa, night.QA)
		totals = append(totals, night.Totals...)
		summaries = append(summaries, engine.NightSummary{NightID: nightID, StartMS: night.QA.NightStartMS, Totals: night.Totals})
	}

	res.Weeks = engine.AggregateWeeks(summaries, tables.Team, p.reset)
	res.Rankings = engine.RankSeason(res.Weeks, tables.Team)

	if err := ctx.Err(); err != nil {
		return res, err
	}

	var errs []error
	collect := func(synced []domain.SyncResult, err error) {
		res.Synced = append(res.Synced, synced...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	for _, t := range p.targets.NightQA {
		collect(reconcile.ReconcileAll(ctx, p.rc, NightQATable, t, qa, out.skipNight))
	}
	for _, t := range p.targets.BenchNight {
		collect(reconcile.ReconcileAll(ctx, p.rc, BenchNightTable, t, totals, out.skipNight))
	}
	for _, t := range p.targets.BenchWeek {
		collect(reconcile.ReconcileAll(ctx, p.rc, BenchWeekTable, t, res.Weeks, out.skipWeek))
	}
	for _, t := range p.targets.Rankings {
		collect(reconcile.ReconcileAll(ctx, p.rc, RankingTable, t, res.Rankings, out.skipSeason))
	}

	p.logger.Info().
		Int("nights", res.Nights).
		Int("failed_nights", len(res.FailedNights)).
		Int("weeks", len(res.Weeks)).
		Int("scopes_synced", len(res.Synced)).
		Dur("took", time.Since(started)).
		Msg("run finished")

	if len(errs) > 0 {
		return res, fmt.Errorf("publish: %w", errors.Join(errs...))
	}
	return res, nil
}

func (p *Pipeline) computeNight(ctx context.Context, nightID string, tables *officer.Tables, persist bool) (engine.NightResult, error) {
	reports, err := p.reports.ForNight(ctx, nightID)
	if err != nil {
		return engine.NightResult{}, fmt.Errorf("failed to load reports: %w", err)
	}
	fights, err := p.reports.Fights(ctx, nightID)
	if err != nil {
		return engine.NightResult{}, fmt.Errorf("failed to load fights: %w", err)
	}

	night, err := engine.ComputeNight(p.settings, engine.NightInput{
		NightID:   nightID,
		Reports:   reports,
		Fights:    fights,
		Roster:    tables.Roster,
		Overrides: tables.OverridesFor(nightID),
	})
	if err != nil {
		return night, err
	}

	log := p.logger.With().Str("night_id", nightID).Logger()
	for _, w := range night.Warnings {
		if engine.IsDegraded(w) {
			log.Warn().Err(w).Msg("night needs review")
		}
	}

	if persist {
		if err := p.nights.Replace(ctx, nightID, night.Participation, night.Blocks); err != nil {
			return night, fmt.Errorf("failed to store participation: %w", err)
		}
	}

	outcome := "ok"
	if night.QA.NeedsReview {
		outcome = "degraded"
	}
	p.metrics.NightComputed(outcome)
	log.Debug().
		Int("pre_min", night.QA.PreMinutes).
		Int("post_min", night.QA.PostMinutes).
		Int("mains", len(night.Totals)).
		Bool("needs_review", night.QA.NeedsReview).
		Msg("night computed")
	return night, nil
}

// markWeek records the week of a failed night, dated by its first fight the
// same way week aggregation dates a night. When the night cannot be dated,
// every week scope is held back.
func (p *Pipeline) markWeek(ctx context.Context, nightID string, out *nightOutcome) {
	fights, err := p.reports.Fights(ctx, nightID)
	if err != nil || len(fights) == 0 {
		out.weeksUnknown = true
		p.logger.Error().Err(fmt.Errorf("night %s: %w", nightID, ErrScopeUndetermined)).Msg("holding back all week scopes")
		return
	}
	start := engine.FirstFightStartMS(engine.DedupeFights(fights, p.settings.DedupeTolerance))
	out.failedWeeks[p.reset.WeekID(start)] = true
}
