package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"formflow-backend/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Live backends run only when pointed at a disposable server:
//
//	FORMFLOW_TEST_POSTGRES_DSN=postgres://... go test ./pkg/database
//	FORMFLOW_TEST_MONGO_URI=mongodb://...     go test ./pkg/database
const (
	testPostgresDSNEnv = "FORMFLOW_TEST_POSTGRES_DSN"
	testMongoURIEnv    = "FORMFLOW_TEST_MONGO_URI"
)

func TestLocalStoreContract(t *testing.T) {
	runStoreContract(t, newLocal(t))
}

func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv(testPostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testPostgresDSNEnv)
	}
	db, err := NewPostgresDatabase(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.ApplySchema(ctx))
	missing, err := db.MissingTables(ctx)
	require.NoError(t, err)
	require.Empty(t, missing)

	runStoreContract(t, db)
}

func TestMongoStoreContract(t *testing.T) {
	uri := os.Getenv(testMongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set", testMongoURIEnv)
	}
	ctx := context.Background()
	db, err := NewMongoDatabase(ctx, uri, "formflow_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.db.Drop(context.Background())
		db.Close()
	})

	runStoreContract(t, db)
}

// runStoreContract checks the behavior every backend must share. Ids and emails
// are unique per run so a live database can be reused.
func runStoreContract(t *testing.T, db DatabaseInterface) {
	ctx := context.Background()
	run := uuid.NewString()[:8]

	owner := &models.User{Name: "Olivia", Email: "olivia-" + run + "@example.com", Password: "x"}
	require.NoError(t, db.CreateUser(ctx, owner))
	member := &models.User{Name: "Uma", Email: "uma-" + run + "@example.com", Password: "x"}
	require.NoError(t, db.CreateUser(ctx, member))

	t.Run("duplicate email", func(t *testing.T) {
		err := db.CreateUser(ctx, &models.User{Name: "Dup", Email: owner.Email, Password: "x"})
		assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

		_, err = db.GetUserByID(ctx, "missing-"+run)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("workspace compare and swap", func(t *testing.T) {
		ws := &models.Workspace{OwnerID: owner.ID}
		require.NoError(t, db.CreateWorkspace(ctx, ws))
		assert.Equal(t, int64(1), ws.Version)

		first, err := db.GetWorkspace(ctx, ws.ID)
		require.NoError(t, err)
		second, err := db.GetWorkspace(ctx, ws.ID)
		require.NoError(t, err)

		first.SharedWith.Upsert(member.ID, models.PermissionView)
		require.NoError(t, db.SaveWorkspace(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		// second still holds version 1
		second.SharedWith.Upsert(member.ID, models.PermissionEdit)
		assert.True(t, errors.Is(db.SaveWorkspace(ctx, second), ErrVersionConflict))

		stored, err := db.GetWorkspace(ctx, ws.ID)
		require.NoError(t, err)
		perm, ok := stored.SharedWith.Get(member.ID)
		require.True(t, ok)
		assert.Equal(t, models.PermissionView, perm)

		gone := &models.Workspace{ID: "missing-" + run, OwnerID: owner.ID, Version: 1}
		assert.True(t, errors.Is(db.SaveWorkspace(ctx, gone), ErrNotFound))

		found, err := db.FindWorkspaces(ctx, WorkspaceFilter{MemberID: member.ID})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, ws.ID, found[0].ID)
	})

	t.Run("invites", func(t *testing.T) {
		ws := &models.Workspace{OwnerID: owner.ID}
		require.NoError(t, db.CreateWorkspace(ctx, ws))
		now := time.Now().UTC()

		live := &models.WorkspaceInvite{Token: "live-" + run, WorkspaceID: ws.ID, Permission: models.PermissionEdit,
			OwnerName: owner.Name, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
		stale := &models.WorkspaceInvite{Token: "stale-" + run, WorkspaceID: ws.ID, Permission: models.PermissionView,
			OwnerName: owner.Name, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
		require.NoError(t, db.CreateInvite(ctx, live))
		require.NoError(t, db.CreateInvite(ctx, stale))
		assert.True(t, errors.Is(db.CreateInvite(ctx, live), ErrDuplicate))

		n, err := db.DeleteExpiredInvites(ctx, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		_, err = db.GetInviteByToken(ctx, stale.Token)
		assert.True(t, errors.Is(err, ErrNotFound))
		got, err := db.GetInviteByToken(ctx, live.Token)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionEdit, got.Permission)
		assert.WithinDuration(t, live.ExpiresAt, got.ExpiresAt, time.Second)

		require.NoError(t, db.DeleteInvite(ctx, live.Token))
		assert.True(t, errors.Is(db.DeleteInvite(ctx, live.Token), ErrNotFound))
	})
}
