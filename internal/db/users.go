package db

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/jonathan/application-tracker/internal/types"
)

const accountColumns = `id, name, email, password_hash, created_at, updated_at`

// CreateAccount inserts a new account. A taken email yields types.ErrConflict.
func (db *DB) CreateAccount(ctx context.Context, acc *types.Account) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO users (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		acc.ID, acc.Name, acc.Email, acc.PasswordHash, acc.CreatedAt, acc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", classify(err))
	}
	return nil
}

// GetAccount retrieves an account by ID
func (db *DB) GetAccount(ctx context.Context, id uuid.UUID) (*types.Account, error) {
	return db.getAccount(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
}

// GetAccountByEmail retrieves an account by its (normalized) email
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*types.Account, error) {
	return db.getAccount(ctx, `SELECT `+accountColumns+` FROM users WHERE email = $1`, email)
}

func (db *DB) getAccount(ctx context.Context, query string, arg any) (*types.Account, error) {
	var acc types.Account
	if err := pgxscan.Get(ctx, db.pool, &acc, query, arg); err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", classify(err))
	}
	return &acc, nil
}

// UpdatePasswordHash replaces the stored credential hash
func (db *DB) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, now time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, hash, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteAccount deletes an account; its applications go with it (ON DELETE CASCADE)
func (db *DB) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
