package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/application-tracker/internal/config"
	"github.com/jonathan/application-tracker/internal/types"
)

// AccountService provides business logic for account operations.
type AccountService struct {
	store          AccountStore
	passwordConfig *config.PasswordConfig
	timeout        time.Duration
	now            func() time.Time
}

// NewAccountService creates a new AccountService with the given dependencies.
func NewAccountService(store AccountStore, passwordConfig *config.PasswordConfig) *AccountService {
	return &AccountService{
		store:          store,
		passwordConfig: passwordConfig,
		timeout:        DefaultStoreTimeout,
		now:            time.Now,
	}
}

// WithStoreTimeout bounds each store call. Non-positive values are ignored.
func (s *AccountService) WithStoreTimeout(d time.Duration) *AccountService {
	if d > 0 {
		s.timeout = d
	}
	return s
}

func (s *AccountService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Register creates a new account with password authentication.
func (s *AccountService) Register(ctx context.Context, req *types.RegisterRequest) (*types.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.passwordConfig.HashPassword(req.Password)
	if errors.Is(err, config.ErrPasswordTooLong) {
		return nil, types.NewValidationError([]types.FieldError{{Field: "password", Reason: "is too long"}})
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	acc := &types.Account{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.CreateAccount(storeCtx, acc); err != nil {
		if errors.Is(err, types.ErrConflict) {
			return nil, &ErrEmailAlreadyExists{Email: req.Email}
		}
		return nil, storeErr("failed to create account", err)
	}
	return acc.Public(), nil
}

// Login authenticates by email and password. Unknown email and wrong
// password produce the same error.
func (s *AccountService) Login(ctx context.Context, req *types.LoginRequest) (*types.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	acc, err := s.store.GetAccountByEmail(storeCtx, req.Email)
	cancel()
	if errors.Is(err, types.ErrNotFound) {
		s.passwordConfig.BurnCompare(req.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeErr("failed to get account by email", err)
	}

	if !s.passwordConfig.VerifyPassword(req.Password, acc.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return acc.Public(), nil
}

// UpdatePassword replaces the password after checking the current one.
func (s *AccountService) UpdatePassword(ctx context.Context, id uuid.UUID, req *types.UpdatePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	acc, err := s.store.GetAccount(storeCtx, id)
	cancel()
	if errors.Is(err, types.ErrNotFound) {
		return ErrIdentityNotFound
	}
	if err != nil {
		return storeErr("failed to get account", err)
	}

	if !s.passwordConfig.VerifyPassword(req.CurrentPassword, acc.PasswordHash) {
		return ErrPasswordMismatch
	}

	hash, err := s.passwordConfig.HashPassword(req.NewPassword)
	if errors.Is(err, config.ErrPasswordTooLong) {
		return types.NewValidationError([]types.FieldError{{Field: "newPassword", Reason: "is too long"}})
	}
	if err != nil {
		return err
	}

	storeCtx, cancel = s.storeCtx(ctx)
	defer cancel()
	if err := s.store.UpdatePasswordHash(storeCtx, id, hash, s.now().UTC().Truncate(time.Microsecond)); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return storeErr("failed to update password", err)
	}
	return nil
}
