package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/db"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/config"
)

var migrateDatabaseURL string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(*cobra.Command, []string) error {
		return runMigrate()
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDatabaseURL, "database-url", os.Getenv("DATABASE_URL"),
		"PostgreSQL URL (defaults to $DATABASE_URL, then config file settings)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() error {
	url := migrateDatabaseURL
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		url = cfg.PostgresURL()
	}

	logger := newLogger()
	logger.Info("applying migrations")
	if err := db.Migrate(url); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations up to date")
	return nil
}
