package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/teamdesk/internal/db"
	"github.com/erazemk/teamdesk/internal/model"
	"github.com/erazemk/teamdesk/internal/realtime"
	"github.com/erazemk/teamdesk/internal/store"
)

func newTestService(t *testing.T) (*Service, *realtime.Hub, int64, int64) {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner, err := store.CreateUser(ctx, database, "owner", "hash", model.RoleUser)
	require.NoError(t, err)
	other, err := store.CreateUser(ctx, database, "other", "hash", model.RoleUser)
	require.NoError(t, err)

	hub := realtime.NewHub(16)
	t.Cleanup(hub.Close)
	return &Service{DB: database, Changes: hub}, hub, owner.ID, other.ID
}

func TestServiceLifecycle(t *testing.T) {
	svc, hub, ownerID, otherID := newTestService(t)
	ctx := context.Background()
	changes, cancel := hub.Subscribe(realtime.ResourceEvents)
	defer cancel()

	owner := Actor{UserID: ownerID, Role: model.RoleUser}
	other := Actor{UserID: otherID, Role: model.RoleUser}
	admin := Actor{UserID: 0, Role: model.RoleAdmin}

	created, err := svc.Create(ctx, Input{Title: "Vacation", Category: "Holiday",
		StartDate: "2025-07-01", EndDate: "2025-07-10"}, owner)
	require.NoError(t, err)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, ownerID, *created.CreatedBy)
	assert.Equal(t, "#22c55e", created.Color)
	assert.Equal(t, realtime.OpInsert, (<-changes).Op)

	in := Input{Title: "Vacation (short)", Category: "Holiday", StartDate: "2025-07-01", EndDate: "2025-07-05"}

	_, err = svc.Update(ctx, created.ID, in, other)
	assert.ErrorIs(t, err, ErrNotCreator)
	_, err = svc.Delete(ctx, created.ID, other)
	assert.ErrorIs(t, err, ErrNotCreator)

	updated, err := svc.Update(ctx, created.ID, in, owner)
	require.NoError(t, err)
	assert.Equal(t, "Vacation (short)", updated.Title)
	assert.Equal(t, time.Date(2025, 7, 6, 0, 0, 0, 0, time.UTC), updated.End)
	assert.Equal(t, ownerID, *updated.CreatedBy)
	assert.Equal(t, realtime.OpUpdate, (<-changes).Op)

	rows, err := svc.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	deleted, err := svc.Delete(ctx, created.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	c := <-changes
	assert.Equal(t, realtime.OpDelete, c.Op)
	rows, err = Apply(rows, c)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = svc.Delete(ctx, created.ID, admin)
	assert.ErrorIs(t, err, store.ErrEventNotFound)
}

func TestServiceCreateValidation(t *testing.T) {
	svc, hub, ownerID, _ := newTestService(t)
	changes, cancel := hub.Subscribe()
	defer cancel()

	_, err := svc.Create(context.Background(), Input{Title: "", StartDate: "2025-07-01", EndDate: "2025-07-01"},
		Actor{UserID: ownerID, Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrTitleRequired)
	assert.Empty(t, changes)

	rows, err := svc.List(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestServiceWithoutPublisher(t *testing.T) {
	svc := &Service{DB: db.NewTestDB(t)}
	assert.Equal(t, realtime.Discard, svc.changes())

	created, err := svc.Create(context.Background(), Input{Title: "Standup",
		StartDate: "2025-07-01", EndDate: "2025-07-01"}, Actor{Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, created.Category)
}
