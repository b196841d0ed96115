package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octobrain/octobrain/internal/ferrors"
	"github.com/octobrain/octobrain/internal/memory"
)

func newForgetCmd() *cobra.Command {
	var (
		query   string
		confirm bool
	)

	cmd := &cobra.Command{
		Use:   "forget [id]",
		Short: "Delete a memory by id, or by query with --confirm",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPathFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if len(args) == 1 {
				if err := a.Manager.Forget(ctx, args[0]); err != nil {
					return fmt.Errorf("forget failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
				return nil
			}

			if query == "" {
				return fmt.Errorf("either an id argument or --query is required")
			}
			if !confirm {
				return ferrors.New(ferrors.Ambiguous, "forgetting by query requires --confirm", nil)
			}

			results, err := a.Manager.Remember(ctx, []string{query}, memory.RememberOptions{})
			if err != nil {
				return fmt.Errorf("forget failed: %w", err)
			}
			for _, r := range results {
				if err := a.Manager.Forget(ctx, r.Memory.ID); err != nil {
					return fmt.Errorf("forget failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %s: %s\n", r.Memory.ID, r.Memory.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Forget every memory matching this query instead of a single id")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Required when forgetting by query")

	return cmd
}
