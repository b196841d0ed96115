// Package cmd provides the CLI commands for octobrain.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/octobrain/octobrain/internal/logging"
	"github.com/octobrain/octobrain/pkg/version"
)

// Debug logging flag.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the octobrain CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "octobrain",
		Short: "A single-node memory and knowledge service for AI assistants",
		Long: `Octobrain stores an AI assistant's memories and ingested web
knowledge locally, retrieves them with hybrid semantic + lexical search,
and links related memories into a typed relationship graph.

Run 'octobrain serve' to expose it over MCP, or use the memorize/
remember/forget/knowledge subcommands directly.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("octobrain version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.octobrain/logs/")
	cmd.PersistentFlags().String("config", "", "Path to config.toml (default: ~/.config/octobrain/config.toml)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMemorizeCmd())
	cmd.AddCommand(newRememberCmd())
	cmd.AddCommand(newForgetCmd())
	cmd.AddCommand(newGraphCmd())
	cmd.AddCommand(newKnowledgeCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(cmd *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func configPathFlag(cmd *cobra.Command) string {
	p, _ := cmd.Root().PersistentFlags().GetString("config")
	return p
}
