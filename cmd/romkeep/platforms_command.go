package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"romkeep/internal/platform"
)

func newPlatformsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "platforms",
		Short:       "List supported platforms",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			headers := []string{"ID", "Name", "Extensions", "Min Size", "BIOS"}
			var rows [][]string
			for _, def := range platform.All() {
				bios := "-"
				if len(def.RequiredBIOS) > 0 {
					bios = strings.Join(def.RequiredBIOS, ", ")
				}
				rows = append(rows, []string{
					def.ID,
					def.Name,
					strings.Join(def.Extensions, " "),
					formatBytes(def.MinSize),
					bios,
				})
			}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%d MiB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%d KiB", n>>10)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
