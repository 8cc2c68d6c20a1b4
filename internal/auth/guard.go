package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/application-tracker/internal/types"
)

// AccountStore persists accounts. Implementations return types.ErrNotFound
// for unknown ids or emails and types.ErrConflict for a taken email.
type AccountStore interface {
	CreateAccount(ctx context.Context, acc *types.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*types.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*types.Account, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, now time.Time) error
}

// DefaultStoreTimeout bounds each account store call when no timeout is
// configured.
const DefaultStoreTimeout = 5 * time.Second

// storeErr wraps a failed store call. Deadlines and unreachable stores also
// match types.ErrStoreUnavailable so callers can answer with a retryable
// error.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, types.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, types.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Guard resolves a presented session token to the identity it belongs to.
type Guard struct {
	tokens   *JWTService
	accounts AccountStore
	timeout  time.Duration
}

// NewGuard creates a Guard.
func NewGuard(tokens *JWTService, accounts AccountStore) *Guard {
	return &Guard{tokens: tokens, accounts: accounts, timeout: DefaultStoreTimeout}
}

// WithStoreTimeout bounds the account lookup. Non-positive values are ignored.
func (g *Guard) WithStoreTimeout(d time.Duration) *Guard {
	if d > 0 {
		g.timeout = d
	}
	return g
}

// Authenticate returns the caller's identity. It fails with
// ErrUnauthenticated, ErrInvalidCredential or ErrIdentityNotFound, or with a
// store error when the account lookup itself fails.
func (g *Guard) Authenticate(ctx context.Context, token string) (*types.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := g.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	acc, err := g.accounts.GetAccount(ctx, claims.UserID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, storeErr("failed to load account", err)
	}
	return acc.Public(), nil
}
