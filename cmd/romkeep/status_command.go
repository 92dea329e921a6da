package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"romkeep/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get("http://" + cfg.Paths.APIBind + "/api/status")
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon is not reachable at %s: %v\n", cfg.Paths.APIBind, err)
				return nil
			}
			defer resp.Body.Close()

			var status api.DaemonStatus
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:    %v (pid %d)\n", status.Running, status.PID)
			fmt.Fprintf(out, "Lock file:  %s\n", status.LockFilePath)
			if status.HistoryDBPath != "" {
				fmt.Fprintf(out, "History:    %s\n", status.HistoryDBPath)
			}
			fmt.Fprintf(out, "Platforms:  %d\n", status.Platforms)
			fmt.Fprintf(out, "Live jobs:  %d\n", status.LiveJobs)
			fmt.Fprintf(out, "Plugins:    %d\n", status.Plugins)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit status as JSON")
	return cmd
}
