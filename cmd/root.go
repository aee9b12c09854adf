// Package cmd provides the advisor CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - migrate: apply database migrations and exit
//   - seed: load demo organization, users, and destinations
//   - version: build and configuration information
//
// All long-running commands install signal handlers and shut down
// gracefully via context cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Travel advisory service",
	Long: `Advisor is a travel advisory backend: a JSON API with JWT
authentication, an organization-scoped knowledge base with vector search,
and an AI agent that plans, verifies, and repairs trip itineraries.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG in the environment lowers the
// level; ADVISOR_LOG_JSON switches to JSON output for log shippers.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{
		Level: level,
		JSON:  os.Getenv("ADVISOR_LOG_JSON") != "",
	})
}
