package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"pebble/internal/domain"
	"pebble/internal/reconcile"
	"pebble/internal/service"
)

func newComputeCommand(opts *rootOptions) *cobra.Command {
	var (
		skipIngest bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Run ingest, compute and publish once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var pipeline *service.Pipeline
			extra := []fx.Option{fx.Populate(&pipeline)}
			if dryRun {
				extra = append(extra, fx.Decorate(memoryTargets))
			}

			return opts.runOnce(cmd.Context(), func(ctx context.Context) error {
				res, err := pipeline.RunOnce(ctx, service.RunOptions{SkipIngest: skipIngest, DryRun: dryRun})
				if res != nil {
					printRun(cmd.OutOrStdout(), res, dryRun)
				}
				return err
			}, extra...)
		},
	}
	cmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "recompute from stored reports without fetching")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute from stored reports without writing anything; diffs go to empty in-memory targets")
	return cmd
}

// memoryTargets swaps every publication target for an empty in-memory one.
func memoryTargets(service.Targets) service.Targets {
	return service.Targets{
		NightQA:    []reconcile.Target[domain.NightQA]{reconcile.NewMemoryTarget[domain.NightQA]()},
		BenchNight: []reconcile.Target[domain.BenchNightTotal]{reconcile.NewMemoryTarget[domain.BenchNightTotal]()},
		BenchWeek:  []reconcile.Target[domain.BenchWeekTotal]{reconcile.NewMemoryTarget[domain.BenchWeekTotal]()},
		Rankings:   []reconcile.Target[domain.BenchRanking]{reconcile.NewMemoryTarget[domain.BenchRanking]()},
	}
}

func printRun(w io.Writer, res *service.RunResult, dryRun bool) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Table", "Target", "Scope", "Upserted", "Deleted"})
	for _, s := range res.Synced {
		if s.Upserted == 0 && s.Deleted == 0 {
			continue
		}
		tbl.AppendRow(table.Row{s.Table, s.Target, s.Scope, s.Upserted, s.Deleted})
	}
	footer := fmt.Sprintf("%d nights, %d failed, %d reports fetched", res.Nights, len(res.FailedNights), res.Ingest.Fetched)
	if dryRun {
		footer += " (dry run)"
	}
	tbl.AppendFooter(table.Row{footer})
	tbl.Render()
}
