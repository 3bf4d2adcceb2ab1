package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"pebble/internal/cache"
)

func newFlushCacheCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush-cache",
		Short: "Drop every cached report bundle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var c cache.Cache
			return opts.runOnce(cmd.Context(), func(ctx context.Context) error {
				n, err := c.Flush(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached reports\n", n)
				return nil
			}, fx.Populate(&c))
		},
	}
}
