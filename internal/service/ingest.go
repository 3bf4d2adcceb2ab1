package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pebble/internal/api"
	"pebble/internal/domain"
	"pebble/internal/officer"
	"pebble/internal/repository"
)

// ReportFetcher returns one report bundle from the event log.
type ReportFetcher interface {
	FetchReport(ctx context.Context, code string) (*api.ReportBundle, error)
}

type IngestResult struct {
	Fetched  int
	Missing  int
	BadLinks []int // sheet rows whose URL is not a report link
	Failed   int
}

// Ingester pulls the reports listed by the officers into the store.
type Ingester struct {
	fetcher ReportFetcher
	reports *repository.ReportRepository
	loc     *time.Location
	workers int
	logger  zerolog.Logger
}

func NewIngester(fetcher ReportFetcher, reports *repository.ReportRepository, loc *time.Location, workers int, logger zerolog.Logger) *Ingester {
	if workers <= 0 {
		workers = 1
	}
	return &Ingester{fetcher: fetcher, reports: reports, loc: loc, workers: workers, logger: logger}
}

// Ingest fetches every pending report and refreshes the break override of
// the ones already stored. Fetches run in parallel; one failing fetch does
// not stop the others. If any fetch failed for a reason other than the
// report not existing, the result wraps ErrUpstreamUnavailable.
func (s *Ingester) Ingest(ctx context.Context, rows []officer.ReportRow) (IngestResult, error) {
	var (
		res     IngestResult
		mu      sync.Mutex
		errs    []error
		pending []pendingReport
	)

	for _, row := range rows {
		code, ok := api.ExtractReportCode(row.URL)
		if !ok {
			s.logger.Warn().Int("row", row.Row).Str("url", row.URL).Msg("not a report link")
			res.BadLinks = append(res.BadLinks, row.Row)
			continue
		}
		if row.Pending() {
			pending = append(pending, pendingReport{code: code, row: row})
			continue
		}
		s.refreshOverride(ctx, code, row)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, p := range pending {
		g.Go(func() error {
			err := s.ingestOne(gCtx, p.code, p.row)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Fetched++
			case errors.Is(err, api.ErrReportNotFound):
				res.Missing++
				s.logger.Warn().Str("report", p.code).Int("row", p.row.Row).Msg("report not found")
			default:
				res.Failed++
				errs = append(errs, err)
				s.logger.Error().Err(err).Str("report", p.code).Msg("failed to ingest report")
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info().
		Int("fetched", res.Fetched).
		Int("missing", res.Missing).
		Int("failed", res.Failed).
		Int("bad_links", len(res.BadLinks)).
		Msg("ingest finished")

	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, errors.Join(errs...))
	}
	return res, nil
}

type pendingReport struct {
	code string
	row  officer.ReportRow
}

func (s *Ingester) ingestOne(ctx context.Context, code string, row officer.ReportRow) error {
	bundle, err := s.fetcher.FetchReport(ctx, code)
	if err != nil {
		return err
	}
	report, fights := bundle.ToDomain(s.loc)
	report.Notes = row.Notes
	s.applyOverride(&report, row)
	return s.reports.UpsertBundle(ctx, report, fights)
}

func (s *Ingester) applyOverride(report *domain.Report, row officer.ReportRow) {
	start, end, err := row.BreakOverride(report.StartMS, s.loc)
	if err != nil {
		s.logger.Warn().Err(err).Str("report", report.Code).Int("row", row.Row).Msg("ignoring unreadable break override")
		return
	}
	report.BreakOverrideStartMS, report.BreakOverrideEndMS = start, end
}

// refreshOverride lets officers fix a break on a report that is no longer
// pending without refetching it.
func (s *Ingester) refreshOverride(ctx context.Context, code string, row officer.ReportRow) {
	report, err := s.reports.Get(ctx, code)
	if err != nil {
		if !errors.Is(err, repository.ErrReportNotFound) {
			s.logger.Warn().Err(err).Str("report", code).Msg("failed to load report")
		}
		return
	}
	before := *report
	s.applyOverride(report, row)
	if equalPtr(before.BreakOverrideStartMS, report.BreakOverrideStartMS) && equalPtr(before.BreakOverrideEndMS, report.BreakOverrideEndMS) {
		return
	}
	if err := s.reports.SetOverride(ctx, code, report.BreakOverrideStartMS, report.BreakOverrideEndMS); err != nil {
		s.logger.Warn().Err(err).Str("report", code).Msg("failed to update break override")
		return
	}
	s.logger.Info().Str("report", code).Str("night_id", report.NightID).Msg("break override updated")
}

func equalPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
