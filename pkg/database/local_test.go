package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"formflow-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalDatabase {
	t.Helper()
	db, err := NewLocalDatabase(t.TempDir())
	require.NoError(t, err)
	return db
}

func TestLocalUsers(t *testing.T) {
	ctx := context.Background()
	db := newLocal(t)

	u := &models.User{Name: "Olivia", Email: "olivia@example.com"}
	require.NoError(t, db.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.NotNil(t, u.WorkspaceAccess)

	err := db.CreateUser(ctx, &models.User{Name: "Dup", Email: "OLIVIA@example.com"})
	assert.True(t, errors.Is(err, ErrDuplicate))

	got, err := db.GetUserByEmail(ctx, "Olivia@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	other := &models.User{Name: "Uma", Email: "uma@example.com"}
	require.NoError(t, db.CreateUser(ctx, other))
	other.Email = "olivia@example.com"
	assert.True(t, errors.Is(db.UpdateUser(ctx, other), ErrDuplicate))

	_, err = db.GetUserByID(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(db.UpdateUser(ctx, &models.User{ID: "missing", Email: "x@example.com"}), ErrNotFound))

	all, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLocalSaveWorkspaceVersion(t *testing.T) {
	ctx := context.Background()
	db := newLocal(t)

	ws := &models.Workspace{OwnerID: "owner"}
	require.NoError(t, db.CreateWorkspace(ctx, ws))
	assert.Equal(t, int64(1), ws.Version)

	a, err := db.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	b, err := db.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)

	a.SharedWith.Upsert("u1", models.PermissionView)
	require.NoError(t, db.SaveWorkspace(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.SharedWith.Upsert("u2", models.PermissionEdit)
	assert.True(t, errors.Is(db.SaveWorkspace(ctx, b), ErrVersionConflict))

	stored, err := db.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, stored.SharedWith.Contains("u1"))
	assert.False(t, stored.SharedWith.Contains("u2"))

	assert.True(t, errors.Is(db.SaveWorkspace(ctx, &models.Workspace{ID: "missing"}), ErrNotFound))
}

func TestLocalFindWorkspaces(t *testing.T) {
	ctx := context.Background()
	db := newLocal(t)

	mine := &models.Workspace{OwnerID: "u1"}
	shared := &models.Workspace{OwnerID: "u2", SharedWith: models.SharedWith{{UserID: "u1", Permission: models.PermissionView}}}
	other := &models.Workspace{OwnerID: "u3"}
	for _, ws := range []*models.Workspace{mine, shared, other} {
		require.NoError(t, db.CreateWorkspace(ctx, ws))
	}

	list, err := db.FindWorkspaces(ctx, WorkspaceFilter{MemberID: "u1"})
	require.NoError(t, err)
	ids := []string{}
	for _, ws := range list {
		ids = append(ids, ws.ID)
	}
	assert.ElementsMatch(t, []string{mine.ID, shared.ID}, ids)

	list, err = db.FindWorkspaces(ctx, WorkspaceFilter{OwnerID: "u3"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)
}

func TestLocalInvites(t *testing.T) {
	ctx := context.Background()
	db := newLocal(t)
	now := time.Now().UTC()

	live := &models.WorkspaceInvite{Token: "live", WorkspaceID: "w", Permission: models.PermissionView, ExpiresAt: now.Add(time.Hour)}
	stale := &models.WorkspaceInvite{Token: "stale", WorkspaceID: "w", Permission: models.PermissionEdit, ExpiresAt: now.Add(-time.Minute)}
	require.NoError(t, db.CreateInvite(ctx, live))
	require.NoError(t, db.CreateInvite(ctx, stale))
	assert.True(t, errors.Is(db.CreateInvite(ctx, live), ErrDuplicate))

	n, err := db.DeleteExpiredInvites(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetInviteByToken(ctx, "stale")
	assert.True(t, errors.Is(err, ErrNotFound))
	got, err := db.GetInviteByToken(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, models.PermissionView, got.Permission)

	require.NoError(t, db.DeleteInvite(ctx, "live"))
	assert.True(t, errors.Is(db.DeleteInvite(ctx, "live"), ErrNotFound))
}

func TestLocalFoldersAndForms(t *testing.T) {
	ctx := context.Background()
	db := newLocal(t)

	folder := &models.Folder{WorkspaceID: "w", Title: "Leads"}
	require.NoError(t, db.CreateFolder(ctx, folder))
	assert.True(t, errors.Is(db.CreateFolder(ctx, &models.Folder{WorkspaceID: "w", Title: "Leads"}), ErrDuplicate))
	require.NoError(t, db.CreateFolder(ctx, &models.Folder{WorkspaceID: "other", Title: "Leads"}))

	form := &models.Form{WorkspaceID: "w", Title: "Contact", FolderID: &folder.ID}
	require.NoError(t, db.CreateForm(ctx, form))
	folder.FormIDs = append(folder.FormIDs, form.ID)
	require.NoError(t, db.UpdateFolder(ctx, folder))

	require.NoError(t, db.IncrementVisitCount(ctx, form.ID))
	require.NoError(t, db.IncrementVisitCount(ctx, form.ID))
	got, err := db.GetForm(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.VisitCount)
	assert.True(t, errors.Is(db.IncrementVisitCount(ctx, "missing"), ErrNotFound))

	forms, err := db.ListFormsByWorkspace(ctx, "w")
	require.NoError(t, err)
	assert.Len(t, forms, 1)

	require.NoError(t, db.DeleteForm(ctx, form.ID))
	assert.True(t, errors.Is(db.DeleteForm(ctx, form.ID), ErrNotFound))
	stored, err := db.GetFolder(ctx, folder.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.FormIDs)

	folders, err := db.ListFoldersByWorkspace(ctx, "w")
	require.NoError(t, err)
	assert.Len(t, folders, 1)
}

func TestLocalResponses(t *testing.T) {
	ctx := context.Background()
	db := newLocal(t)

	r := &models.Response{FormID: "f", Status: models.ResponseIncomplete}
	require.NoError(t, db.CreateResponse(ctx, r))
	r.Status = models.ResponseCompleted
	r.Answers = []models.Answer{{Field: "name", Response: "Ada"}}
	require.NoError(t, db.UpdateResponse(ctx, r))

	got, err := db.GetResponse(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCompleted, got.Status)
	require.Len(t, got.Answers, 1)

	list, err := db.ListResponsesByForm(ctx, "f")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.True(t, errors.Is(db.UpdateResponse(ctx, &models.Response{ID: "missing"}), ErrNotFound))
}

func TestInviteOverlay(t *testing.T) {
	ctx := context.Background()
	base := newLocal(t)
	invites := newLocal(t)
	db := WithInviteStore(base, invites)

	inv := &models.WorkspaceInvite{Token: "t1", WorkspaceID: "w", Permission: models.PermissionView, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, db.CreateInvite(ctx, inv))

	_, err := base.GetInviteByToken(ctx, "t1")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = invites.GetInviteByToken(ctx, "t1")
	require.NoError(t, err)
	_, err = db.GetInviteByToken(ctx, "t1")
	require.NoError(t, err)

	// everything else goes to the base store
	u := &models.User{Email: "olivia@example.com"}
	require.NoError(t, db.CreateUser(ctx, u))
	_, err = base.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Same(t, base, unwrap(db))
}

func TestGetDatabaseReusesStore(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { CloseDatabase() })
	conf := DatabaseConfig{Backend: "local", DataDir: t.TempDir()}

	first, err := GetDatabase(ctx, conf)
	require.NoError(t, err)
	second, err := GetDatabase(ctx, conf)
	require.NoError(t, err)
	assert.Same(t, first, second)

	stats := GetConnectionStats()
	assert.Equal(t, "connected", stats["status"])
	assert.Equal(t, "local", stats["backend"])

	conf.DataDir = t.TempDir()
	third, err := GetDatabase(ctx, conf)
	require.NoError(t, err)
	assert.NotSame(t, first, third)

	require.NoError(t, CloseDatabase())
	assert.Equal(t, "no_connection", GetConnectionStats()["status"])
}

func TestNewDatabaseRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	_, err := NewDatabase(ctx, DatabaseConfig{Backend: "postgres"})
	assert.Error(t, err)
	_, err = NewDatabase(ctx, DatabaseConfig{Backend: "mongo"})
	assert.Error(t, err)
	_, err = NewDatabase(ctx, DatabaseConfig{Backend: "sqlite"})
	assert.Error(t, err)
}
