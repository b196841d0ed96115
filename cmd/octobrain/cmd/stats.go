package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory, vector, and lexical index statistics",
		Long: `Display counts of stored memories, indexed vectors, and lexical
documents, broken down by memory type, plus the creation dates of the
oldest and newest memory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPathFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.Manager.StatsSnapshot(ctx)
			if err != nil {
				return fmt.Errorf("failed to collect stats: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Memories:  %d\n", stats.MemoryCount)
			fmt.Fprintf(w, "Vectors:   %d\n", stats.VectorCount)
			fmt.Fprintf(w, "Lexical:   %d\n", stats.LexicalCount)
			if len(stats.ByType) > 0 {
				fmt.Fprintln(w, "By type:")
				for t, n := range stats.ByType {
					fmt.Fprintf(w, "  %s: %d\n", t, n)
				}
			}
			if !stats.OldestCreated.IsZero() {
				fmt.Fprintf(w, "Oldest:    %s\n", stats.OldestCreated.Format("2006-01-02"))
			}
			if !stats.NewestCreated.IsZero() {
				fmt.Fprintf(w, "Newest:    %s\n", stats.NewestCreated.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
