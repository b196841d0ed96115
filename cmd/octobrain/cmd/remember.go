package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octobrain/octobrain/internal/memory"
	"github.com/octobrain/octobrain/internal/store"
)

func newRememberCmd() *cobra.Command {
	var (
		memType      string
		tags         []string
		relatedFile  string
		limit        int
		minRelevance float64
		jsonOutput   bool
		explain      bool
	)

	cmd := &cobra.Command{
		Use:   "remember <query> [query...]",
		Short: "Hybrid semantic + lexical search over stored memories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPathFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			results, err := a.Manager.Remember(ctx, args, memory.RememberOptions{
				Type:         store.MemoryType(memType),
				Tags:         tags,
				RelatedFile:  relatedFile,
				Limit:        limit,
				MinRelevance: minRelevance,
				Explain:      explain,
			})
			if err != nil {
				return fmt.Errorf("remember failed: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matching memories")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", colorScore(out, r.Relevance), r.Memory.ID, r.Memory.Title)
				if r.Explain != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "       dense=%.3f(#%d) lexical=%.3f(#%d) terms=%v\n",
						r.Explain.DenseScore, r.Explain.DenseRank, r.Explain.LexicalScore, r.Explain.LexicalRank, r.Explain.MatchedTerms)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&memType, "type", "", "Restrict to one memory type")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Require this tag (repeatable)")
	cmd.Flags().StringVar(&relatedFile, "file", "", "Restrict to memories touching this file")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().Float64Var(&minRelevance, "min-relevance", 0, "Drop results scoring below this threshold")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&explain, "explain", false, "Show the dense/lexical breakdown behind each result's score")

	return cmd
}
