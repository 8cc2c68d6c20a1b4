package memstore

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/application-tracker/internal/types"
)

func newApp(owner uuid.UUID, company string, status types.Status, applied time.Time) types.Application {
	d := types.Draft{
		CompanyName:    company,
		JobTitle:       "Engineer",
		Portal:         types.PortalLinkedIn,
		EmploymentType: types.EmploymentFullTime,
		Source:         types.SourceDirect,
		Status:         status,
		DateApplied:    &types.DateTime{Time: applied},
	}
	return types.NewApplication(uuid.New(), owner, d, applied)
}

func TestStore_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	acc := &types.Account{ID: uuid.New(), Name: "A", Email: "a@example.com", PasswordHash: "h1"}

	require.NoError(t, s.CreateAccount(ctx, acc))
	err := s.CreateAccount(ctx, &types.Account{ID: uuid.New(), Email: "a@example.com"})
	assert.True(t, errors.Is(err, types.ErrConflict))

	got, err := s.GetAccountByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	require.NoError(t, s.UpdatePasswordHash(ctx, acc.ID, "h2", time.Now()))
	got, err = s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)

	require.NoError(t, s.CreateApplications(ctx, []types.Application{newApp(acc.ID, "Acme", types.StatusApplied, time.Now())}))
	require.NoError(t, s.DeleteAccount(ctx, acc.ID))
	_, err = s.GetAccount(ctx, acc.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	all, err := s.ListAllApplications(ctx, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_OwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice, bob := uuid.New(), uuid.New()
	app := newApp(alice, "Acme", types.StatusApplied, time.Now())
	require.NoError(t, s.CreateApplications(ctx, []types.Application{app}))

	_, err := s.GetApplication(ctx, bob, app.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.MutateApplication(ctx, bob, app.ID, func(*types.Application) error { return nil })
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, s.DeleteApplication(ctx, bob, app.ID), types.ErrNotFound)

	items, total, err := s.ListApplications(ctx, bob, types.DefaultListCriteria())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	_, err = s.GetApplication(ctx, alice, app.ID)
	assert.NoError(t, err)
}

func TestStore_MutateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	app := newApp(owner, "Acme", types.StatusApplied, time.Now())
	require.NoError(t, s.CreateApplications(ctx, []types.Application{app}))

	boom := errors.New("boom")
	_, err := s.MutateApplication(ctx, owner, app.ID, func(a *types.Application) error {
		next := types.StatusOffer
		a.Apply(types.Patch{Status: &next}, time.Now())
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetApplication(ctx, owner, app.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApplied, got.Status)
	assert.Len(t, got.StatusHistory, 1)
}

func TestStore_CreateApplicationsIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	existing := newApp(owner, "Acme", types.StatusApplied, time.Now())
	require.NoError(t, s.CreateApplications(ctx, []types.Application{existing}))

	fresh := newApp(owner, "Initech", types.StatusApplied, time.Now())
	err := s.CreateApplications(ctx, []types.Application{fresh, existing})
	assert.ErrorIs(t, err, types.ErrConflict)

	_, err = s.GetApplication(ctx, owner, fresh.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestStore_ListPagination(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var apps []types.Application
	for i := 0; i < 7; i++ {
		apps = append(apps, newApp(owner, "Company", types.StatusApplied, base.AddDate(0, 0, i)))
	}
	require.NoError(t, s.CreateApplications(ctx, apps))

	c := types.DefaultListCriteria()
	c.Limit = 3
	seen := map[uuid.UUID]bool{}
	for page := 1; page <= 4; page++ {
		c.Page = page
		items, total, err := s.ListApplications(ctx, owner, c)
		require.NoError(t, err)
		assert.Equal(t, 7, total)
		for _, it := range items {
			assert.False(t, seen[it.ID], "no record appears on two pages")
			seen[it.ID] = true
		}
		if page == 4 {
			assert.Empty(t, items, "page beyond the last is empty, not an error")
		}
	}
	assert.Len(t, seen, 7)
	assert.Equal(t, 3, types.PageCount(7, 3))

	c.Page, c.Limit = math.MaxInt, 2
	items, total, err := s.ListApplications(ctx, owner, c)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 7, total)
}

func TestStore_ReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	app := newApp(owner, "Acme", types.StatusApplied, time.Now())
	require.NoError(t, s.CreateApplications(ctx, []types.Application{app}))

	got, err := s.GetApplication(ctx, owner, app.ID)
	require.NoError(t, err)
	got.StatusHistory[0].Status = types.StatusRejected
	got.CompanyName = "Mutated"

	again, err := s.GetApplication(ctx, owner, app.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApplied, again.StatusHistory[0].Status)
	assert.Equal(t, "Acme", again.CompanyName)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().GetApplication(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}
