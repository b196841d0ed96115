package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octobrain/octobrain/internal/memory"
	"github.com/octobrain/octobrain/internal/store"
)

func newMemorizeCmd() *cobra.Command {
	var (
		memType      string
		tags         []string
		relatedFiles []string
		importance   float64
		gitCommit    string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "memorize <title> <content>",
		Short: "Store a new memory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPathFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			mt := store.MemoryType(memType)
			if mt == "" {
				mt = store.MemoryTypeCode
			}

			mem, err := a.Manager.Memorize(ctx, memory.MemorizeInput{
				Title:        args[0],
				Content:      args[1],
				MemoryType:   mt,
				Tags:         tags,
				RelatedFiles: relatedFiles,
				Importance:   importance,
				GitCommit:    gitCommit,
			})
			if err != nil {
				return fmt.Errorf("memorize failed: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(mem)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "memorized %s: %s\n", mem.ID, mem.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&memType, "type", "", "Memory type (default: code)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag to attach (repeatable)")
	cmd.Flags().StringSliceVar(&relatedFiles, "file", nil, "Related file path (repeatable)")
	cmd.Flags().Float64Var(&importance, "importance", memory.DefaultImportance, "Importance, 0 to 1")
	cmd.Flags().StringVar(&gitCommit, "commit", "", "Git commit hash this memory was recorded at")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
