package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/auth"
	"github.com/jonathan/application-tracker/internal/config"
	"github.com/jonathan/application-tracker/internal/db"
	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/memstore"
	"github.com/jonathan/application-tracker/internal/server"
	"github.com/jonathan/application-tracker/internal/server/ratelimit"
	"github.com/jonathan/application-tracker/internal/tracker"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the account and application endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply pending migrations before serving (postgres only)")
	rootCmd.AddCommand(serveCmd)
}

// store is everything the server needs from a backend.
type store interface {
	tracker.Repository
	auth.AccountStore
	server.Pinger
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewServerConfig(servePort)
	if err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("invalid JWT configuration: %w", err)
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	limitStore, closeLimitStore := openLimitStore(ctx, cfg, logger)
	defer closeLimitStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := tracker.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register tracker metrics: %w", err)
	}

	tokens := auth.NewJWTService(jwtConfig)
	srv, err := server.New(server.Deps{
		Config:   cfg,
		Logger:   logger,
		Accounts: auth.NewAccountService(backend, passwordConfig).WithStoreTimeout(cfg.StoreTimeout),
		Guard:    auth.NewGuard(tokens, backend).WithStoreTimeout(cfg.StoreTimeout),
		Tokens:   tokens,
		Tracker: tracker.NewService(backend, tracker.Options{
			StoreTimeout: cfg.StoreTimeout,
			Logger:       logger,
			Metrics:      metrics,
		}),
		Limiter:  ratelimit.NewLimiter(ratelimit.FromServerConfig(cfg), limitStore, logger),
		Store:    backend,
		Registry: registry,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}

// openStore selects the backend named by STORE. The returned func releases it.
func openStore(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger) (store, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	if serveMigrate {
		if err := db.Migrate("up", cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		logger.Info("migrations applied")
	}

	database, err := db.Connect(ctx, db.ConnectConfig{
		URL:     cfg.DatabaseURL,
		Retries: cfg.ConnectRetries,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return database, database.Close, nil
}

// openLimitStore uses Redis when REDIS_URL is set so every instance shares one
// budget per client, and falls back to process memory otherwise.
func openLimitStore(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger) (ratelimit.Store, func()) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("invalid REDIS_URL, using in-memory rate limits", zap.Error(err))
		} else {
			client := redis.NewClient(opts)
			rs := ratelimit.NewRedisStore(client, ratelimit.DefaultKeyPrefix)
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = rs.Ping(pingCtx)
			cancel()
			if err == nil {
				logger.Info("rate limits stored in redis")
				return rs, func() { _ = client.Close() }
			}
			_ = client.Close()
			logger.Warn("redis unreachable, using in-memory rate limits", zap.Error(err))
		}
	}

	ms := ratelimit.NewMemoryStore(5 * time.Minute)
	return ms, ms.Stop
}
