package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/application-tracker/internal/config"
	"github.com/jonathan/application-tracker/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate up|down",
	Short:     "Apply or roll back the database schema",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if err := config.ValidateDatabaseURL(databaseURL); err != nil {
		return err
	}

	if err := db.Migrate(args[0], databaseURL); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", args[0])
	return nil
}
