package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/application-tracker/internal/types"
)

func newTestApplication(owner uuid.UUID, company string, status types.Status, applied time.Time) types.Application {
	return types.NewApplication(uuid.New(), owner, types.Draft{
		CompanyName:    company,
		JobTitle:       "Engineer",
		Portal:         types.PortalLinkedIn,
		EmploymentType: types.EmploymentFullTime,
		Source:         types.SourceJobBoard,
		Status:         status,
		DateApplied:    &types.DateTime{Time: applied},
	}, time.Now().UTC().Truncate(time.Microsecond))
}

func TestIntegration_ApplicationLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestAccount(t, db)
	bob := createTestAccount(t, db)

	app := newTestApplication(alice.ID, "Acme", types.StatusApplied, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, db.CreateApplications(ctx, []types.Application{app}))

	got, err := db.GetApplication(ctx, alice.ID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.CompanyName, got.CompanyName)
	require.Len(t, got.StatusHistory, 1)

	_, err = db.GetApplication(ctx, bob.ID, app.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	next := types.StatusHRScreen
	updated, err := db.MutateApplication(ctx, alice.ID, app.ID, func(a *types.Application) error {
		a.Apply(types.Patch{Status: &next}, time.Now().UTC().Truncate(time.Microsecond))
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, updated.StatusHistory, 2)

	boom := errors.New("boom")
	_, err = db.MutateApplication(ctx, alice.ID, app.ID, func(a *types.Application) error {
		a.CompanyName = "Should not stick"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err = db.GetApplication(ctx, alice.ID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, types.StatusHRScreen, got.Status)
	assert.Len(t, got.StatusHistory, 2)

	_, err = db.MutateApplication(ctx, bob.ID, app.ID, func(*types.Application) error { return nil })
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, db.DeleteApplication(ctx, bob.ID, app.ID), types.ErrNotFound)

	require.NoError(t, db.DeleteApplication(ctx, alice.ID, app.ID))
	assert.ErrorIs(t, db.DeleteApplication(ctx, alice.ID, app.ID), types.ErrNotFound)
}

func TestIntegration_CreateApplicationsIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestAccount(t, db)

	ok := newTestApplication(owner.ID, "Acme", types.StatusApplied, time.Now())
	dupe := newTestApplication(owner.ID, "Globex", types.StatusApplied, time.Now())
	dupe.ID = ok.ID

	err := db.CreateApplications(ctx, []types.Application{ok, dupe})
	assert.ErrorIs(t, err, types.ErrConflict)

	all, err := db.ListAllApplications(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestIntegration_ListApplications(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestAccount(t, db)
	other := createTestAccount(t, db)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	apps := []types.Application{
		newTestApplication(owner.ID, "Google", types.StatusApplied, base),
		newTestApplication(owner.ID, "Globex", types.StatusHRScreen, base.AddDate(0, 0, 1)),
		newTestApplication(owner.ID, "100%_Real", types.StatusApplied, base.AddDate(0, 0, 2)),
		newTestApplication(other.ID, "Google", types.StatusApplied, base),
	}
	require.NoError(t, db.CreateApplications(ctx, apps))

	c := types.DefaultListCriteria()
	c.Status = types.StatusApplied
	items, total, err := db.ListApplications(ctx, owner.ID, c)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "100%_Real", items[0].CompanyName, "newest first by default")

	c = types.DefaultListCriteria()
	c.Search = "%_"
	items, total, err = db.ListApplications(ctx, owner.ID, c)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "search is literal")
	require.Len(t, items, 1)

	c = types.DefaultListCriteria()
	c.Limit = 1
	c.Page = 2
	items, total, err = db.ListApplications(ctx, owner.ID, c)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Globex", items[0].CompanyName)

	c.Page = 9
	items, total, err = db.ListApplications(ctx, owner.ID, c)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, items)
}

func TestIntegration_ListDueFollowUps(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestAccount(t, db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	yesterday := now.AddDate(0, 0, -1)
	due := newTestApplication(owner.ID, "Due", types.StatusApplied, now)
	due.FollowUpDate = &yesterday
	closed := newTestApplication(owner.ID, "Closed", types.StatusRejected, now)
	closed.FollowUpDate = &yesterday
	none := newTestApplication(owner.ID, "None", types.StatusApplied, now)
	require.NoError(t, db.CreateApplications(ctx, []types.Application{due, closed, none}))

	got, err := db.ListDueFollowUps(ctx, owner.ID, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}
