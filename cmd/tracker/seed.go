package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/application-tracker/internal/auth"
	"github.com/jonathan/application-tracker/internal/config"
	"github.com/jonathan/application-tracker/internal/db"
	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/tracker"
	"github.com/jonathan/application-tracker/internal/types"
)

// Demo account credentials created by seed.
const (
	demoName     = "Demo User"
	demoEmail    = "demo@example.com"
	demoPassword = "password123"
)

//go:embed seed.csv
var seedApplications []byte

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reset the demo account and load sample applications",
	Long:  "Delete the demo account (and its applications) if present, then recreate it with a set of sample applications.",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedStore is the account access seed needs on top of registration.
type seedStore interface {
	auth.AccountStore
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewServerConfig(0)
	if err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("seed requires STORE=%s", config.StorePostgres)
	}
	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		return fmt.Errorf("invalid password configuration: %w", err)
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	database, err := db.Connect(ctx, db.ConnectConfig{URL: cfg.DatabaseURL, Retries: cfg.ConnectRetries, Logger: logger})
	if err != nil {
		return err
	}
	defer database.Close()

	svc := tracker.NewService(database, tracker.Options{StoreTimeout: cfg.StoreTimeout, Logger: logger})
	user, result, err := seedDemo(ctx, database, auth.NewAccountService(database, passwordConfig), svc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created demo user: %s / %s\n", user.Email, demoPassword)
	fmt.Fprintf(out, "Created %d sample applications\n", len(result.Created))
	return nil
}

// seedDemo replaces the demo account and imports the embedded sample set for it.
func seedDemo(ctx context.Context, store seedStore, accounts *auth.AccountService, svc *tracker.Service) (*types.User, *tracker.ImportResult, error) {
	existing, err := store.GetAccountByEmail(ctx, demoEmail)
	switch {
	case err == nil:
		if err := store.DeleteAccount(ctx, existing.ID); err != nil {
			return nil, nil, fmt.Errorf("failed to clear demo account: %w", err)
		}
	case !errors.Is(err, types.ErrNotFound):
		return nil, nil, fmt.Errorf("failed to look up demo account: %w", err)
	}

	user, err := accounts.Register(ctx, &types.RegisterRequest{
		Name:     demoName,
		Email:    demoEmail,
		Password: demoPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create demo account: %w", err)
	}

	result, err := svc.Import(ctx, user.ID, bytes.NewReader(seedApplications))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to import sample applications: %w", err)
	}
	if len(result.Failed) > 0 {
		return nil, nil, fmt.Errorf("sample row on line %d is invalid: %v", result.Failed[0].Line, result.Failed[0].Errors)
	}
	return user, result, nil
}
