package fx

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"pebble/internal/api"
	"pebble/internal/cache"
	"pebble/internal/config"
	"pebble/internal/constants"
	"pebble/internal/database"
	"pebble/internal/db"
	"pebble/internal/domain"
	"pebble/internal/metrics"
	"pebble/internal/officer"
	"pebble/internal/reconcile"
	"pebble/internal/reportstore"
	"pebble/internal/repository"
	"pebble/internal/server"
	"pebble/internal/service"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

// ProvideCache returns the redis report cache, or a no-op cache when no
// redis is configured.
func ProvideCache(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("no redis configured, report cache disabled")
		return cache.Nop{}, nil
	}
	rc, err := cache.NewRedisCache(cfg.RedisURL, constants.ReportCachePrefix, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rc.Ping(ctx); err != nil {
				logger.Warn().Err(err).Msg("redis unreachable, fetches will miss the cache")
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return rc.Close()
		},
	})
	return rc, nil
}

// ProvideSheets returns nil when no spreadsheet is configured.
func ProvideSheets(cfg *config.Config, logger zerolog.Logger) (*reportstore.Client, error) {
	if cfg.SpreadsheetID == "" {
		logger.Info().Msg("no spreadsheet configured, publishing to sqlite only")
		return nil, nil
	}
	return reportstore.NewClient(context.Background(), cfg, logger)
}

func ProvideOfficerSource(cfg *config.Config, sheets *reportstore.Client, logger zerolog.Logger) (officer.Source, error) {
	if cfg.OfficerFile != "" {
		return officer.NewFileSource(cfg.OfficerFile, cfg.Location(), logger), nil
	}
	if sheets == nil {
		return nil, reportstore.ErrNoSpreadsheet
	}
	return officer.NewSheetSource(sheets, cfg.Tabs, cfg.Location(), logger), nil
}

func ProvideReconciler(m *metrics.Metrics, syncLog *repository.SyncLogRepository, logger zerolog.Logger) *reconcile.Reconciler {
	return reconcile.New(reconcile.Options{
		MaxTries:        constants.ReconcileMaxTries,
		InitialInterval: constants.ReconcileBackoff,
		MaxInterval:     constants.ReconcileMaxDelay,
	}, logger.With().Str("component", "reconcile").Logger(), m, syncLog)
}

type targetParams struct {
	fx.In

	Config   *config.Config
	Sheets   *reportstore.Client
	NightQA  *repository.DerivedStore[domain.NightQA]
	Bench    *repository.DerivedStore[domain.BenchNightTotal]
	Weeks    *repository.DerivedStore[domain.BenchWeekTotal]
	Rankings *repository.DerivedStore[domain.BenchRanking]
	Logger   zerolog.Logger
}

// ProvideTargets publishes every table to sqlite and, when configured, to
// the spreadsheet.
func ProvideTargets(p targetParams) service.Targets {
	t := service.Targets{
		NightQA:    []reconcile.Target[domain.NightQA]{p.NightQA},
		BenchNight: []reconcile.Target[domain.BenchNightTotal]{p.Bench},
		BenchWeek:  []reconcile.Target[domain.BenchWeekTotal]{p.Weeks},
		Rankings:   []reconcile.Target[domain.BenchRanking]{p.Rankings},
	}
	if p.Sheets == nil {
		return t
	}
	tabs, loc := p.Config.Tabs, p.Config.Location()
	t.NightQA = append(t.NightQA, reportstore.NewSheetTarget(p.Sheets, tabs.NightQA, service.NightQATable, reportstore.NightQACodec(loc), p.Logger))
	t.BenchNight = append(t.BenchNight, reportstore.NewSheetTarget(p.Sheets, tabs.BenchNight, service.BenchNightTable, reportstore.BenchNightCodec(), p.Logger))
	t.BenchWeek = append(t.BenchWeek, reportstore.NewSheetTarget(p.Sheets, tabs.BenchWeek, service.BenchWeekTable, reportstore.BenchWeekCodec(), p.Logger))
	t.Rankings = append(t.Rankings, reportstore.NewSheetTarget(p.Sheets, tabs.BenchRankings, service.RankingTable, reportstore.RankingCodec(), p.Logger))
	return t
}

func ProvideIngester(cfg *config.Config, fetcher service.ReportFetcher, reports *repository.ReportRepository, logger zerolog.Logger) *service.Ingester {
	return service.NewIngester(fetcher, reports, cfg.Location(), cfg.FetchWorkers, logger.With().Str("component", "ingest").Logger())
}

type pipelineParams struct {
	fx.In

	Config     *config.Config
	Source     officer.Source
	Ingester   *service.Ingester
	Reports    *repository.ReportRepository
	Nights     *repository.NightRepository
	Targets    service.Targets
	Reconciler *reconcile.Reconciler
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

func ProvidePipeline(p pipelineParams) (*service.Pipeline, error) {
	reset, err := p.Config.Reset()
	if err != nil {
		return nil, err
	}
	return service.NewPipeline(
		p.Config.Settings(),
		reset,
		p.Source,
		p.Ingester,
		p.Reports,
		p.Nights,
		p.Targets,
		p.Reconciler,
		p.Metrics,
		p.Logger.With().Str("component", "pipeline").Logger(),
	), nil
}

func ProvideDriver(cfg *config.Config, pipeline *service.Pipeline, m *metrics.Metrics, logger zerolog.Logger) *service.Driver {
	return service.NewDriver(pipeline, cfg.PollInterval, cfg.OutageThreshold, m, logger.With().Str("component", "driver").Logger())
}

// Module expects *config.Config and zerolog.Logger to be supplied.
var Module = fx.Options(
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	fx.Provide(metrics.New),
	fx.Provide(ProvideCache),
	// repos
	fx.Provide(repository.NewReportRepository),
	fx.Provide(repository.NewNightRepository),
	fx.Provide(repository.NewSyncLogRepository),
	fx.Provide(repository.NewNightQAStore),
	fx.Provide(repository.NewBenchNightStore),
	fx.Provide(repository.NewBenchWeekStore),
	fx.Provide(repository.NewRankingStore),
	// upstream and report store
	fx.Provide(fx.Annotate(api.NewWCLClient, fx.As(new(service.ReportFetcher)))),
	fx.Provide(ProvideSheets),
	fx.Provide(ProvideOfficerSource),
	// svc
	fx.Provide(ProvideReconciler),
	fx.Provide(ProvideTargets),
	fx.Provide(ProvideIngester),
	fx.Provide(ProvidePipeline),
	fx.Provide(ProvideDriver),
	// server
	fx.Provide(server.NewReportServer),
)
