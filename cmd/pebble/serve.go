package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"pebble/internal/config"
	"pebble/internal/constants"
	fxmodules "pebble/internal/fx"
	"pebble/internal/metrics"
	"pebble/internal/middleware"
	"pebble/internal/server"
	"pebble/internal/service"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var noPoll bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report API and recompute on a timer",
		RunE: func(_ *cobra.Command, _ []string) error {
			invokes := []fx.Option{fx.Invoke(runServer)}
			if !noPoll {
				invokes = append(invokes, fx.Invoke(runDriver))
			}
			app := fx.New(append([]fx.Option{
				fx.Supply(opts.cfg, opts.logger),
				fxmodules.Module,
			}, invokes...)...)
			app.Run()
			return app.Err()
		},
	}
	cmd.Flags().BoolVar(&noPoll, "no-poll", false, "serve stored tables only, without the compute loop")
	return cmd
}

func runServer(
	lc fx.Lifecycle,
	reportServer *server.ReportServer,
	m *metrics.Metrics,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()

	path, handler := reportServer.Handler()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	requestID := middleware.RequestID(logger)
	counted := middleware.CountRequests(m)

	mux.Handle(path, counted(requestID(c.Handler(handler))))
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           mux,
		ReadHeaderTimeout: constants.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}

func runDriver(lc fx.Lifecycle, driver *service.Driver) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = driver.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
