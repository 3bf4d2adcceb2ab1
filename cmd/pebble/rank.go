package main

import (
	"context"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"pebble/internal/domain"
	"pebble/internal/repository"
)

func newRankCommand(opts *rootOptions) *cobra.Command {
	var (
		week  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print the season bench ranking, or one week's totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				rankings *repository.DerivedStore[domain.BenchRanking]
				weeks    *repository.DerivedStore[domain.BenchWeekTotal]
			)
			return opts.runOnce(cmd.Context(), func(ctx context.Context) error {
				if week != "" {
					rows, err := weeks.Load(ctx, week)
					if err != nil {
						return err
					}
					printWeek(cmd.OutOrStdout(), week, rows)
					return nil
				}
				rows, err := rankings.Load(ctx, domain.SeasonScope)
				if err != nil {
					return err
				}
				if limit > 0 && len(rows) > limit {
					rows = rows[:limit]
				}
				printRankings(cmd.OutOrStdout(), rows)
				return nil
			}, fx.Populate(&rankings, &weeks))
		},
	}
	cmd.Flags().StringVar(&week, "week", "", "week id (reset date, YYYY-MM-DD) to show instead of the season")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the first n mains")
	return cmd
}

func printRankings(w io.Writer, rows []domain.BenchRanking) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Rank", "Main", "Bench (min)", "Played (min)", "Weeks"})
	for _, r := range rows {
		tbl.AppendRow(table.Row{r.Rank, r.Main, r.BenchMinutes, r.PlayedMinutes, r.Weeks})
	}
	tbl.Render()
}

func printWeek(w io.Writer, week string, rows []domain.BenchWeekTotal) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("Week of " + week)
	tbl.AppendHeader(table.Row{"Rank", "Main", "Bench (min)", "Pre", "Post", "Played (min)", "Nights"})
	for _, r := range rows {
		tbl.AppendRow(table.Row{r.Rank, r.Main, r.BenchWeek, r.BenchPre, r.BenchPost, r.PlayedWeek, r.NightsPlayed})
	}
	tbl.Render()
}
