// Package memstore is an in-process implementation of the account and
// application stores. It backs STORE=memory and the service tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/application-tracker/internal/types"
)

// Store keeps accounts and applications in maps guarded by one RWMutex.
// Records are cloned on the way in and out so callers never share slices
// with the stored copy.
type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]types.Account
	byEmail  map[string]uuid.UUID
	apps     map[uuid.UUID]types.Application
}

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts: map[uuid.UUID]types.Account{},
		byEmail:  map[string]uuid.UUID{},
		apps:     map[uuid.UUID]types.Application{},
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CreateAccount stores a new account. The email must not be taken.
func (s *Store) CreateAccount(ctx context.Context, acc *types.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[acc.Email]; taken {
		return fmt.Errorf("email %s: %w", acc.Email, types.ErrConflict)
	}
	s.accounts[acc.ID] = *acc
	s.byEmail[acc.Email] = acc.ID
	return nil
}

// GetAccount returns the account with the given id.
func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*types.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &acc, nil
}

// GetAccountByEmail returns the account registered under email.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*types.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, types.ErrNotFound
	}
	acc := s.accounts[id]
	return &acc, nil
}

// UpdatePasswordHash replaces the credential hash of an account.
func (s *Store) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return types.ErrNotFound
	}
	acc.PasswordHash = hash
	acc.UpdatedAt = now
	s.accounts[id] = acc
	return nil
}

// DeleteAccount removes an account and every application it owns.
func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return types.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.byEmail, acc.Email)
	for appID, app := range s.apps {
		if app.OwnerID == id {
			delete(s.apps, appID)
		}
	}
	return nil
}

// CreateApplications stores every record or none of them.
func (s *Store) CreateApplications(ctx context.Context, apps []types.Application) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range apps {
		if _, exists := s.apps[apps[i].ID]; exists {
			return fmt.Errorf("application %s: %w", apps[i].ID, types.ErrConflict)
		}
	}
	for i := range apps {
		s.apps[apps[i].ID] = apps[i].Clone()
	}
	return nil
}

// GetApplication returns the record only if owner owns it.
func (s *Store) GetApplication(ctx context.Context, owner, id uuid.UUID) (*types.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.owned(owner, id)
	if !ok {
		return nil, types.ErrNotFound
	}
	out := app.Clone()
	return &out, nil
}

// MutateApplication runs fn on a private copy of the record and stores the
// result only when fn succeeds, so a failed mutation leaves no trace.
func (s *Store) MutateApplication(ctx context.Context, owner, id uuid.UUID, fn func(*types.Application) error) (*types.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.owned(owner, id)
	if !ok {
		return nil, types.ErrNotFound
	}
	working := app.Clone()
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.ID, working.OwnerID = app.ID, app.OwnerID
	s.apps[id] = working.Clone()
	return &working, nil
}

// DeleteApplication hard-deletes the record.
func (s *Store) DeleteApplication(ctx context.Context, owner, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owned(owner, id); !ok {
		return types.ErrNotFound
	}
	delete(s.apps, id)
	return nil
}

// ListApplications filters, orders and windows the owner's records.
func (s *Store) ListApplications(ctx context.Context, owner uuid.UUID, c types.ListCriteria) ([]types.Application, int, error) {
	matched, err := s.collect(ctx, owner, c.Matches)
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(matched, func(i, j int) bool { return c.Less(&matched[i], &matched[j]) })

	total := len(matched)
	start := min(c.Offset(), total)
	end := min(start+c.Limit, total)
	return matched[start:end], total, nil
}

// ListDueFollowUps returns the owner's actionable records whose follow-up
// date has passed, most overdue first.
func (s *Store) ListDueFollowUps(ctx context.Context, owner uuid.UUID, asOf time.Time) ([]types.Application, error) {
	due, err := s.collect(ctx, owner, func(a *types.Application) bool {
		return types.IsDueForFollowUp(a, asOf)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(due, func(i, j int) bool { return types.LessFollowUp(&due[i], &due[j]) })
	return due, nil
}

// ListAllApplications returns every record the owner has, newest application first.
func (s *Store) ListAllApplications(ctx context.Context, owner uuid.UUID) ([]types.Application, error) {
	all, err := s.collect(ctx, owner, func(*types.Application) bool { return true })
	if err != nil {
		return nil, err
	}
	order := types.DefaultListCriteria()
	sort.Slice(all, func(i, j int) bool { return order.Less(&all[i], &all[j]) })
	return all, nil
}

func (s *Store) collect(ctx context.Context, owner uuid.UUID, keep func(*types.Application) bool) ([]types.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []types.Application{}
	for _, app := range s.apps {
		if app.OwnerID == owner && keep(&app) {
			out = append(out, app.Clone())
		}
	}
	return out, nil
}

func (s *Store) owned(owner, id uuid.UUID) (types.Application, bool) {
	app, ok := s.apps[id]
	if !ok || app.OwnerID != owner {
		return types.Application{}, false
	}
	return app, true
}
