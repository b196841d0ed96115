package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octobrain/octobrain/internal/graph"
	"github.com/octobrain/octobrain/internal/store"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Manage the memory relationship graph",
	}

	cmd.AddCommand(newGraphRelateCmd())
	cmd.AddCommand(newGraphRelatedCmd())
	cmd.AddCommand(newGraphAutoLinkCmd())

	return cmd
}

func newGraphRelateCmd() *cobra.Command {
	var (
		relType  string
		strength float64
	)

	cmd := &cobra.Command{
		Use:   "relate <src-id> <target-id>",
		Short: "Create a typed edge between two memories",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPathFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Graph.Relate(ctx, args[0], args[1], store.RelationshipType(relType), strength); err != nil {
				return fmt.Errorf("relate failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "related %s -> %s (%s, %.2f)\n", args[0], args[1], relType, strength)
			return nil
		},
	}

	cmd.Flags().StringVar(&relType, "type", string(store.RelationshipRelatedTo), "Relationship type")
	cmd.Flags().Float64Var(&strength, "strength", 1.0, "Edge strength, 0 to 1")

	return cmd
}

func newGraphRelatedCmd() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "related <memory-id>",
		Short: "Traverse the relationship graph from a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPathFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			hops, err := a.Graph.Related(ctx, args[0], depth)
			if err != nil {
				return fmt.Errorf("related failed: %w", err)
			}
			for _, h := range hops {
				fmt.Fprintf(cmd.OutOrStdout(), "hop=%d strength=%.3f  %s\n", h.MinHop, h.AccumulatedStrength, h.ID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", graph.DefaultDepth, "Maximum hop depth")

	return cmd
}

func newGraphAutoLinkCmd() *cobra.Command {
	var (
		threshold float64
		maxLinks  int
	)

	cmd := &cobra.Command{
		Use:   "auto-link <memory-id>",
		Short: "Create related_to edges to the nearest neighbors above the similarity threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPathFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			links, err := a.Graph.AutoLink(ctx, args[0], threshold, maxLinks)
			if err != nil {
				return fmt.Errorf("auto-link failed: %w", err)
			}
			if len(links) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no neighbors above threshold")
				return nil
			}
			for _, l := range links {
				fmt.Fprintf(cmd.OutOrStdout(), "linked -> %s (strength %.3f)\n", l.TargetID, l.Strength)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0.75, "Minimum cosine similarity")
	cmd.Flags().IntVar(&maxLinks, "max-links", 5, "Maximum edges to create")

	return cmd
}
