package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"romkeep/internal/jobstore"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show recent batch job history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job history: %w", err)
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No batch jobs recorded yet.")
				return nil
			}

			headers := []string{"Job", "Status", "Progress", "Errors", "Created", "Duration"}
			var rows [][]string
			for _, rec := range records {
				rows = append(rows, []string{
					shortID(rec.JobID),
					rec.Status,
					fmt.Sprintf("%d/%d", rec.Processed, rec.Total),
					fmt.Sprintf("%d", len(rec.Errors)),
					rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					formatDuration(rec),
				})
			}
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to show")
	return cmd
}

func shortID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	return id
}

func formatDuration(rec jobstore.Record) string {
	if rec.StartedAt.IsZero() || rec.CompletedAt.IsZero() {
		return "-"
	}
	return rec.CompletedAt.Sub(rec.StartedAt).Round(time.Millisecond).String()
}
