package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"pebble/internal/config"
	fxmodules "pebble/internal/fx"
	"pebble/internal/logger"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
	logger     zerolog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pebble",
		Short: "Bench time for a raid team",
		Long: `Pebble pulls the team's combat logs, works out how long every rostered
main sat on the bench each night and week, and publishes the tables to the
team spreadsheet and a local sqlite database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			boot := logger.New()
			cfg, err := config.Load(opts.configPath, boot)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logger.SetLevel(cfg.Level())
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the yaml config (default $PEBBLE_CONFIG or ./pebble.yaml)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newComputeCommand(opts))
	cmd.AddCommand(newRankCommand(opts))
	cmd.AddCommand(newFlushCacheCommand(opts))
	return cmd
}

// runOnce starts the module graph, hands the populated values to fn and
// stops the graph again. Used by the one-shot commands.
func (o *rootOptions) runOnce(ctx context.Context, fn func(context.Context) error, extra ...fx.Option) error {
	options := []fx.Option{
		fx.Supply(o.cfg, o.logger),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
		fxmodules.Module,
	}
	app := fx.New(append(options, extra...)...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx)
	if err := app.Stop(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
