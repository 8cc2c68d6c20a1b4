// Package db provides PostgreSQL storage for accounts and applications.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/types"
)

// DefaultConnectRetries is how many times Connect retries after the first failure.
const DefaultConnectRetries = 5

const maxBackoff = 32 * time.Second

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// ConnectConfig configures Connect.
type ConnectConfig struct {
	URL      string
	Retries  int
	MaxConns int32
	Logger   *zap.Logger
}

// Connect establishes a connection pool to the database, retrying with
// exponential backoff while the server is unreachable.
func Connect(ctx context.Context, cfg ConnectConfig) (*DB, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = 1 * time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Second

	for attempt := 0; ; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				log.Info("connected to database", zap.Int("attempts", attempt+1))
				return &DB{pool: pool}, nil
			}
			pool.Close()
		}
		if attempt >= cfg.Retries {
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempt+1, err)
		}

		delay := Backoff(attempt)
		log.Warn("database not reachable, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Backoff returns the wait before retry number attempt (zero based): 2s, 4s,
// 8s and so on, capped at 32s.
func Backoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return time.Duration(1<<(attempt+1)) * time.Second
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks that the database answers.
func (db *DB) Ping(ctx context.Context) error {
	return classify(db.pool.Ping(ctx))
}

// classify maps driver errors onto the store taxonomy. The original error
// stays in the chain for logging.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", types.ErrConflict, pgErr.ConstraintName)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "57P03":
			return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	return err
}
