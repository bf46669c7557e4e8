package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/raaihank/speller/internal/audit"
)

func newStatsCmd(configPath *string) *cobra.Command {
	var (
		top    int
		recent int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:          "stats",
		Short:        "Show statistics recorded in the audit store",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, log, err := setup(cmd, *configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := audit.NewStore(&cfg.Audit, log.WithComponent("audit").Logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			stats, err := store.GetStats(ctx, top)
			if err != nil {
				return err
			}
			runs, err := store.RecentRuns(ctx, recent)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				encoder.SetEscapeHTML(false)
				return encoder.Encode(struct {
					*audit.Stats
					RecentRuns []audit.Run `json:"recent_runs"`
				}{stats, runs})
			}

			printStats(out, stats, runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "Number of most frequent corrections to show")
	cmd.Flags().IntVar(&recent, "recent", 5, "Number of recent runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statistics as JSON")
	return cmd
}

func printStats(out io.Writer, stats *audit.Stats, runs []audit.Run) {
	fmt.Fprintf(out, "Runs: %d  Records checked: %d  Records changed: %d  Corrections: %d\n\n",
		stats.TotalRuns, stats.RecordsChecked, stats.RecordsChanged, stats.TotalCorrections)

	if len(stats.TopPairs) > 0 {
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Word", "Replacement", "Count"})
		for _, p := range stats.TopPairs {
			table.Append([]string{p.Word, p.Replacement, strconv.FormatInt(p.Count, 10)})
		}
		table.Render()
		fmt.Fprintln(out)
	}

	if len(runs) > 0 {
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Run", "Started", "Provider", "Input", "Checked", "Changed", "Corrections"})
		for _, r := range runs {
			table.Append([]string{
				r.RunID,
				r.StartedAt.Local().Format(time.DateTime),
				r.Provider,
				r.InputFile,
				strconv.FormatInt(r.RecordsChecked, 10),
				strconv.FormatInt(r.RecordsChanged, 10),
				strconv.FormatInt(r.Corrections, 10),
			})
		}
		table.Render()
	}
}
