package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octobrain/octobrain/internal/knowledge"
)

func newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage ingested web knowledge",
	}

	cmd.AddCommand(newKnowledgeIndexCmd())
	cmd.AddCommand(newKnowledgeSearchCmd())
	cmd.AddCommand(newKnowledgeDeleteCmd())

	return cmd
}

func newKnowledgeIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <url>",
		Short: "Fetch, extract, chunk, and embed a URL, if stale or unseen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPathFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			result, err := a.Knowledge.Index(ctx, args[0])
			if err != nil {
				return fmt.Errorf("index failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %s: %d chunks\n", args[0], result.ChunkCount)
			return nil
		},
	}
}

func newKnowledgeSearchCmd() *cobra.Command {
	var (
		url     string
		limit   int
		explain bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search ingested knowledge, optionally scoped to one source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPathFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			hits, err := a.Knowledge.Search(ctx, args[0], knowledge.SearchOptions{URL: url, Limit: limit, Explain: explain})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matching knowledge")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, h := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s#%d  %s\n", colorScore(out, h.Relevance), h.SourceURL, h.Ordinal, h.Text)
				if h.Explain != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "       dense=%.3f(#%d) lexical=%.3f(#%d) terms=%v\n",
						h.Explain.DenseScore, h.Explain.DenseRank, h.Explain.LexicalScore, h.Explain.LexicalRank, h.Explain.MatchedTerms)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Restrict to this source URL, re-indexing it first if stale")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&explain, "explain", false, "Show the dense/lexical breakdown behind each hit's score")

	return cmd
}

func newKnowledgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <url>",
		Short: "Delete a knowledge source and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPathFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Knowledge.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
