package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/octobrain/octobrain/internal/config"
	"github.com/octobrain/octobrain/internal/mcpserver"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start octobrain's MCP server, exposing memorize, remember, forget,
auto_link, memory_graph, and knowledge_search as MCP tools.

The MCP protocol requires stdout to carry nothing but JSON-RPC messages;
all diagnostic output goes to the log file instead. Use --debug or a
separate 'octobrain stats' invocation for visibility.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport to serve over (stdio)")

	return cmd
}

func runServe(cmd *cobra.Command, transport string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx, configPathFlag(cmd))
	if err != nil {
		return fmt.Errorf("failed to initialize octobrain: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("error closing workspace", slog.String("error", err.Error()))
		}
	}()

	srv, err := mcpserver.NewServer(a.Manager, a.Graph, a.Knowledge, a.cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	configPath := configPathFlag(cmd)
	if configPath == "" {
		configPath = config.UserConfigPath()
	}
	if watcher, err := config.WatchFile(configPath, a.cfg); err != nil {
		slog.Warn("config hot-reload disabled", slog.String("error", err.Error()))
	} else {
		defer func() { _ = watcher.Close() }()
	}

	slog.Info("starting octobrain MCP server", slog.String("transport", transport))
	return srv.Serve(ctx, transport)
}
