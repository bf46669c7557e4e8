package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raaihank/speller/internal/cache"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the suggestion cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "clear",
		Short:        "Delete every cached suggestion list",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, log, err := setup(cmd, *configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			c, err := cache.NewSuggestionCache(&cfg.Cache, log.WithComponent("cache").Logger)
			if err != nil {
				return err
			}
			defer c.Close()

			deleted, err := c.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cached entries\n", deleted)
			return nil
		},
	})

	return cmd
}
