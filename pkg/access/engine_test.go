package access

import (
	"context"
	"io"
	"testing"

	"formflow-backend/pkg/database"
	"formflow-backend/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t *testing.T) *database.LocalDatabase {
	t.Helper()
	db, err := database.NewLocalDatabase(t.TempDir())
	require.NoError(t, err)
	return db
}

func createUser(t *testing.T, db database.UserStore, name, email string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, Password: "x"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func createWorkspace(t *testing.T, db database.WorkspaceStore, ownerID string) *models.Workspace {
	t.Helper()
	ws := &models.Workspace{OwnerID: ownerID}
	require.NoError(t, db.CreateWorkspace(context.Background(), ws))
	return ws
}

func TestResolvePermission(t *testing.T) {
	ws := &models.Workspace{
		ID:      "w1",
		OwnerID: "owner",
		SharedWith: models.SharedWith{
			{UserID: "owner", Permission: models.PermissionView},
			{UserID: "viewer", Permission: models.PermissionView},
			{UserID: "editor", Permission: models.PermissionEdit},
		},
	}

	tests := []struct {
		name    string
		userID  string
		want    models.Permission
		wantErr bool
	}{
		{"owner wins over stale entry", "owner", models.PermissionEdit, false},
		{"viewer", "viewer", models.PermissionView, false},
		{"editor", "editor", models.PermissionEdit, false},
		{"stranger", "stranger", "", true},
		{"empty id", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePermission(tt.userID, ws)
			if tt.wantErr {
				assert.True(t, IsKind(err, KindDenied))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	engine := NewEngine(db, quietLogger())

	owner := createUser(t, db, "Olga", "olga@example.com")
	viewer := createUser(t, db, "Vic", "vic@example.com")
	ws := createWorkspace(t, db, owner.ID)

	_, err := engine.GrantAccess(ctx, GrantRequest{ActorID: owner.ID, WorkspaceID: ws.ID, TargetUserID: viewer.ID, Permission: models.PermissionView})
	require.NoError(t, err)

	_, perm, err := engine.Authorize(ctx, viewer.ID, ws.ID, models.PermissionView)
	require.NoError(t, err)
	assert.Equal(t, models.PermissionView, perm)

	_, _, err = engine.Authorize(ctx, viewer.ID, ws.ID, models.PermissionEdit)
	assert.True(t, IsKind(err, KindDenied))

	_, _, err = engine.Authorize(ctx, owner.ID, "missing", models.PermissionView)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestGrantAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("view twice conflicts", func(t *testing.T) {
		db := newTestStore(t)
		engine := NewEngine(db, quietLogger())
		owner := createUser(t, db, "Olga", "olga@example.com")
		target := createUser(t, db, "Tom", "tom@example.com")
		ws := createWorkspace(t, db, owner.ID)

		req := GrantRequest{ActorID: owner.ID, WorkspaceID: ws.ID, TargetEmail: target.Email, Permission: models.PermissionView}
		res, err := engine.GrantAccess(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.Created)

		_, err = engine.GrantAccess(ctx, req)
		assert.True(t, IsKind(err, KindConflict))

		stored, err := db.GetWorkspace(ctx, ws.ID)
		require.NoError(t, err)
		assert.Len(t, stored.SharedWith, 1)

		u, err := db.GetUserByID(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{ws.ID}, u.WorkspaceAccess)
	})

	t.Run("view then edit updates in place", func(t *testing.T) {
		db := newTestStore(t)
		engine := NewEngine(db, quietLogger())
		owner := createUser(t, db, "Olga", "olga@example.com")
		target := createUser(t, db, "Tom", "tom@example.com")
		ws := createWorkspace(t, db, owner.ID)

		_, err := engine.GrantAccess(ctx, GrantRequest{ActorID: owner.ID, WorkspaceID: ws.ID, TargetUserID: target.ID, Permission: models.PermissionView})
		require.NoError(t, err)
		res, err := engine.GrantAccess(ctx, GrantRequest{ActorID: owner.ID, WorkspaceID: ws.ID, TargetUserID: target.ID, Permission: models.PermissionEdit})
		require.NoError(t, err)
		assert.False(t, res.Created)

		stored, err := db.GetWorkspace(ctx, ws.ID)
		require.NoError(t, err)
		require.Len(t, stored.SharedWith, 1)
		assert.Equal(t, models.SharedEntry{UserID: target.ID, Permission: models.PermissionEdit}, stored.SharedWith[0])

		u, err := db.GetUserByID(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{ws.ID}, u.WorkspaceAccess)
	})

	t.Run("rejections", func(t *testing.T) {
		db := newTestStore(t)
		engine := NewEngine(db, quietLogger())
		owner := createUser(t, db, "Olga", "olga@example.com")
		viewer := createUser(t, db, "Vic", "vic@example.com")
		target := createUser(t, db, "Tom", "tom@example.com")
		ws := createWorkspace(t, db, owner.ID)
		_, err := engine.GrantAccess(ctx, GrantRequest{ActorID: owner.ID, WorkspaceID: ws.ID, TargetUserID: viewer.ID, Permission: models.PermissionView})
		require.NoError(t, err)

		tests := []struct {
			name string
			req  GrantRequest
			kind Kind
		}{
			{"bad permission", GrantRequest{ActorID: owner.ID, WorkspaceID: ws.ID, TargetUserID: target.ID, Permission: "admin"}, KindInvalidArgument},
			{"no target", GrantRequest{ActorID: owner.ID, WorkspaceID: ws.ID, Permission: models.PermissionView}, KindInvalidArgument},
			{"unknown email", GrantRequest{ActorID: owner.ID, WorkspaceID: ws.ID, TargetEmail: "nobody@example.com", Permission: models.PermissionView}, KindNotFound},
			{"unknown workspace", GrantRequest{ActorID: owner.ID, WorkspaceID: "missing", TargetUserID: target.ID, Permission: models.PermissionView}, KindNotFound},
			{"viewer cannot share", GrantRequest{ActorID: viewer.ID, WorkspaceID: ws.ID, TargetUserID: target.ID, Permission: models.PermissionView}, KindDenied},
			{"stranger cannot share", GrantRequest{ActorID: target.ID, WorkspaceID: ws.ID, TargetUserID: target.ID, Permission: models.PermissionView}, KindDenied},
			{"owner as target", GrantRequest{ActorID: owner.ID, WorkspaceID: ws.ID, TargetUserID: owner.ID, Permission: models.PermissionView}, KindConflict},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := engine.GrantAccess(ctx, tt.req)
				require.Error(t, err)
				assert.Equal(t, tt.kind, KindOf(err), err.Error())
			})
		}

		stored, err := db.GetWorkspace(ctx, ws.ID)
		require.NoError(t, err)
		assert.Len(t, stored.SharedWith, 1)
	})

	t.Run("editor can share", func(t *testing.T) {
		db := newTestStore(t)
		engine := NewEngine(db, quietLogger())
		owner := createUser(t, db, "Olga", "olga@example.com")
		editor := createUser(t, db, "Eve", "eve@example.com")
		target := createUser(t, db, "Tom", "tom@example.com")
		ws := createWorkspace(t, db, owner.ID)

		_, err := engine.GrantAccess(ctx, GrantRequest{ActorID: owner.ID, WorkspaceID: ws.ID, TargetUserID: editor.ID, Permission: models.PermissionEdit})
		require.NoError(t, err)
		_, err = engine.GrantAccess(ctx, GrantRequest{ActorID: editor.ID, WorkspaceID: ws.ID, TargetUserID: target.ID, Permission: models.PermissionView})
		require.NoError(t, err)
	})
}

func TestGrantAccessStaleVersion(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	owner := createUser(t, db, "Olga", "olga@example.com")
	ws := createWorkspace(t, db, owner.ID)

	first, err := db.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	second, err := db.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)

	first.SharedWith.Upsert("a", models.PermissionView)
	require.NoError(t, db.SaveWorkspace(ctx, first))

	second.SharedWith.Upsert("b", models.PermissionView)
	err = db.SaveWorkspace(ctx, second)
	assert.ErrorIs(t, err, database.ErrVersionConflict)
	assert.True(t, IsKind(storeError("workspace", err), KindConflict))

	stored, err := db.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, stored.SharedWith.Contains("a"))
	assert.False(t, stored.SharedWith.Contains("b"))
}

func TestListAccessible(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	engine := NewEngine(db, quietLogger())

	alice := createUser(t, db, "Alice", "alice@example.com")
	bob := createUser(t, db, "Bob", "bob@example.com")
	carol := createUser(t, db, "Carol", "carol@example.com")

	aliceWS := createWorkspace(t, db, alice.ID)
	bobWS := createWorkspace(t, db, bob.ID)
	createWorkspace(t, db, carol.ID)

	_, err := engine.GrantAccess(ctx, GrantRequest{ActorID: bob.ID, WorkspaceID: bobWS.ID, TargetUserID: alice.ID, Permission: models.PermissionView})
	require.NoError(t, err)

	views, err := engine.ListAccessible(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	got := map[string]models.Permission{}
	for _, v := range views {
		got[v.ID] = v.Permission
	}
	assert.Equal(t, map[string]models.Permission{
		aliceWS.ID: models.PermissionEdit,
		bobWS.ID:   models.PermissionView,
	}, got)
}

func TestWorkspaceDetail(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	engine := NewEngine(db, quietLogger())

	owner := createUser(t, db, "Olga", "olga@example.com")
	stranger := createUser(t, db, "Sam", "sam@example.com")
	ws := createWorkspace(t, db, owner.ID)

	require.NoError(t, db.CreateFolder(ctx, &models.Folder{WorkspaceID: ws.ID, Title: "Leads", CreatedBy: owner.ID}))
	require.NoError(t, db.CreateForm(ctx, &models.Form{WorkspaceID: ws.ID, Title: "Signup", CreatedBy: owner.ID}))

	detail, err := engine.WorkspaceDetail(ctx, owner.ID, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PermissionEdit, detail.Workspace.Permission)
	assert.Len(t, detail.Folders, 1)
	assert.Len(t, detail.Forms, 1)

	_, err = engine.WorkspaceDetail(ctx, stranger.ID, ws.ID)
	assert.True(t, IsKind(err, KindDenied))
}

func TestReconcileUserAccess(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	engine := NewEngine(db, quietLogger())

	owner := createUser(t, db, "Olga", "olga@example.com")
	user := createUser(t, db, "Uma", "uma@example.com")
	own := createWorkspace(t, db, user.ID)
	shared := createWorkspace(t, db, owner.ID)

	// grant straight on the workspace, as if the user write had failed
	ws, err := db.GetWorkspace(ctx, shared.ID)
	require.NoError(t, err)
	ws.SharedWith.Upsert(user.ID, models.PermissionView)
	require.NoError(t, db.SaveWorkspace(ctx, ws))

	// and leave junk in the index
	u, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	u.WorkspaceAccess = []string{"gone", own.ID}
	require.NoError(t, db.UpdateUser(ctx, u))

	got, changed, err := engine.ReconcileUserAccess(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{shared.ID}, got.WorkspaceAccess)

	_, changed, err = engine.ReconcileUserAccess(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	n, err := engine.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEnsurePersonalWorkspace(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	engine := NewEngine(db, quietLogger())

	t.Run("creates when none is owned", func(t *testing.T) {
		user := createUser(t, db, "Nia", "nia@example.com")
		require.NoError(t, engine.EnsurePersonalWorkspace(ctx, user))
		require.NotEmpty(t, user.WorkspaceID)

		ws, err := db.GetWorkspace(ctx, user.WorkspaceID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, ws.OwnerID)

		stored, err := db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.WorkspaceID, stored.WorkspaceID)
	})

	t.Run("adopts an owned workspace left by an interrupted signup", func(t *testing.T) {
		user := createUser(t, db, "Ada", "ada@example.com")
		orphan := createWorkspace(t, db, user.ID)

		require.NoError(t, engine.EnsurePersonalWorkspace(ctx, user))
		assert.Equal(t, orphan.ID, user.WorkspaceID)

		require.NoError(t, engine.EnsurePersonalWorkspace(ctx, user))
		owned, err := db.FindWorkspaces(ctx, database.WorkspaceFilter{OwnerID: user.ID})
		require.NoError(t, err)
		assert.Len(t, owned, 1)
	})
}

func TestErrorKinds(t *testing.T) {
	err := wrapError(KindNotFound, "user not found", database.ErrNotFound)
	assert.True(t, IsKind(err, KindNotFound))
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.False(t, IsKind(nil, KindInternal))
	assert.Equal(t, "expired", KindExpired.String())
}
