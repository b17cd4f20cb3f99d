// Package access decides who may do what on a workspace and manages the grants that make it so.
//
// SharedWith on the workspace is the source of truth for every decision. User.WorkspaceAccess is
// an index kept in step on a best-effort basis and rebuilt by ReconcileUserAccess.
package access

import (
	"context"
	"errors"
	"strings"

	"formflow-backend/pkg/database"
	"formflow-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

// Store is what the Engine reads and writes
type Store interface {
	database.UserStore
	database.WorkspaceStore
	database.FolderStore
	database.FormStore
}

// Engine resolves permissions and mutates sharing lists
type Engine struct {
	store Store
	log   logrus.FieldLogger
}

func NewEngine(store Store, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{store: store, log: log.WithField("component", "access")}
}

// GrantRequest names the target either by id or by email; id wins when both are set
type GrantRequest struct {
	ActorID      string
	WorkspaceID  string
	TargetUserID string
	TargetEmail  string
	Permission   models.Permission
}

// GrantResult is the outcome of a successful GrantAccess
type GrantResult struct {
	Workspace *models.Workspace
	Entry     models.SharedEntry
	Created   bool
}

// WorkspaceDetail is a workspace as seen by one user, with its contents
type WorkspaceDetail struct {
	Workspace models.WorkspaceView `json:"workspace"`
	Folders   []models.Folder      `json:"folders"`
	Forms     []models.Form        `json:"forms"`
}

// ResolvePermission returns userID's effective permission on ws, or a Denied error
func ResolvePermission(userID string, ws *models.Workspace) (models.Permission, error) {
	perm, ok := ws.PermissionFor(userID)
	if !ok {
		return "", newError(KindDenied, "you do not have access to this workspace")
	}
	return perm, nil
}

// ResolvePermission loads the workspace and resolves userID's permission on it
func (e *Engine) ResolvePermission(ctx context.Context, userID, workspaceID string) (models.Permission, error) {
	ws, err := e.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	return ResolvePermission(userID, ws)
}

// Authorize fails with Denied unless userID holds at least required on the workspace
func (e *Engine) Authorize(ctx context.Context, userID, workspaceID string, required models.Permission) (*models.Workspace, models.Permission, error) {
	ws, err := e.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, "", err
	}
	perm, err := authorize(userID, ws, required)
	if err != nil {
		return nil, "", err
	}
	return ws, perm, nil
}

func authorize(userID string, ws *models.Workspace, required models.Permission) (models.Permission, error) {
	perm, err := ResolvePermission(userID, ws)
	if err != nil {
		return "", err
	}
	if !perm.Allows(required) {
		return "", newError(KindDenied, "you need "+string(required)+" permission on this workspace")
	}
	return perm, nil
}

// GrantAccess adds or updates the target's entry in the workspace's SharedWith
func (e *Engine) GrantAccess(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	if !req.Permission.Valid() {
		return nil, newError(KindInvalidArgument, "permission must be view or edit")
	}
	if strings.TrimSpace(req.TargetUserID) == "" && strings.TrimSpace(req.TargetEmail) == "" {
		return nil, newError(KindInvalidArgument, "a target user id or email is required")
	}

	var (
		target *models.User
		err    error
	)
	if req.TargetUserID != "" {
		target, err = e.store.GetUserByID(ctx, req.TargetUserID)
	} else {
		target, err = e.store.GetUserByEmail(ctx, strings.TrimSpace(req.TargetEmail))
	}
	if err != nil {
		return nil, storeError("user", err)
	}

	ws, err := e.loadWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if _, err := authorize(req.ActorID, ws, models.PermissionEdit); err != nil {
		return nil, err
	}
	if ws.IsOwner(target.ID) {
		return nil, newError(KindConflict, "user already owns this workspace")
	}
	if current, ok := ws.SharedWith.Get(target.ID); ok && current == req.Permission {
		return nil, newError(KindConflict, "user already has "+string(current)+" permission")
	}

	created := ws.SharedWith.Upsert(target.ID, req.Permission)
	if err := e.store.SaveWorkspace(ctx, ws); err != nil {
		return nil, storeError("workspace", err)
	}

	if target.AddWorkspaceAccess(ws.ID) {
		if err := e.store.UpdateUser(ctx, target); err != nil {
			// SharedWith already holds the grant; ReconcileUserAccess repairs the index
			e.log.WithError(err).WithFields(logrus.Fields{
				"workspace_id": ws.ID,
				"user_id":      target.ID,
			}).Warn("grant saved but workspace access index not updated")
			return nil, wrapError(KindInternal, "failed to update user access", err)
		}
	}

	e.log.WithFields(logrus.Fields{
		"workspace_id": ws.ID,
		"actor_id":     req.ActorID,
		"user_id":      target.ID,
		"permission":   req.Permission,
		"created":      created,
	}).Info("workspace access granted")

	return &GrantResult{
		Workspace: ws,
		Entry:     models.SharedEntry{UserID: target.ID, Permission: req.Permission},
		Created:   created,
	}, nil
}

// ListAccessible returns every workspace userID owns or is shared on, with the effective permission
func (e *Engine) ListAccessible(ctx context.Context, userID string) ([]models.WorkspaceView, error) {
	list, err := e.store.FindWorkspaces(ctx, database.WorkspaceFilter{MemberID: userID})
	if err != nil {
		return nil, storeError("workspaces", err)
	}
	views := make([]models.WorkspaceView, 0, len(list))
	for i := range list {
		perm, ok := list[i].PermissionFor(userID)
		if !ok {
			continue
		}
		views = append(views, list[i].View(perm))
	}
	return views, nil
}

// WorkspaceDetail returns the workspace with its folders and forms for a user holding at least view
func (e *Engine) WorkspaceDetail(ctx context.Context, userID, workspaceID string) (*WorkspaceDetail, error) {
	ws, perm, err := e.Authorize(ctx, userID, workspaceID, models.PermissionView)
	if err != nil {
		return nil, err
	}
	folders, err := e.store.ListFoldersByWorkspace(ctx, ws.ID)
	if err != nil {
		return nil, storeError("folders", err)
	}
	forms, err := e.store.ListFormsByWorkspace(ctx, ws.ID)
	if err != nil {
		return nil, storeError("forms", err)
	}
	if folders == nil {
		folders = []models.Folder{}
	}
	if forms == nil {
		forms = []models.Form{}
	}
	return &WorkspaceDetail{Workspace: ws.View(perm), Folders: folders, Forms: forms}, nil
}

// ReconcileUserAccess rebuilds the user's WorkspaceAccess from the SharedWith lists.
// Owned workspaces are not listed. The user is only written when the index changed.
func (e *Engine) ReconcileUserAccess(ctx context.Context, userID string) (*models.User, bool, error) {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, false, storeError("user", err)
	}
	list, err := e.store.FindWorkspaces(ctx, database.WorkspaceFilter{MemberID: userID})
	if err != nil {
		return nil, false, storeError("workspaces", err)
	}

	shared := make(map[string]bool, len(list))
	for i := range list {
		if !list[i].IsOwner(userID) && list[i].SharedWith.Contains(userID) {
			shared[list[i].ID] = true
		}
	}

	// keep existing order for ids that survive, then append the missing ones
	rebuilt := make([]string, 0, len(shared))
	seen := make(map[string]bool, len(shared))
	for _, id := range user.WorkspaceAccess {
		if shared[id] && !seen[id] {
			rebuilt = append(rebuilt, id)
			seen[id] = true
		}
	}
	for i := range list {
		if id := list[i].ID; shared[id] && !seen[id] {
			rebuilt = append(rebuilt, id)
			seen[id] = true
		}
	}

	if equalIDs(user.WorkspaceAccess, rebuilt) {
		return user, false, nil
	}
	user.WorkspaceAccess = rebuilt
	if err := e.store.UpdateUser(ctx, user); err != nil {
		return nil, false, storeError("user", err)
	}
	e.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"workspaces": len(rebuilt),
	}).Info("workspace access reconciled")
	return user, true, nil
}

// EnsurePersonalWorkspace gives user a personal workspace when WorkspaceID is unset.
// A workspace the user already owns is adopted before a new one is created, so a
// signup interrupted between its writes is completed by the next call.
func (e *Engine) EnsurePersonalWorkspace(ctx context.Context, user *models.User) error {
	if user.WorkspaceID != "" {
		return nil
	}
	owned, err := e.store.FindWorkspaces(ctx, database.WorkspaceFilter{OwnerID: user.ID})
	if err != nil {
		return storeError("workspaces", err)
	}

	var wsID string
	if len(owned) > 0 {
		wsID = owned[0].ID
	} else {
		ws := &models.Workspace{OwnerID: user.ID}
		if err := e.store.CreateWorkspace(ctx, ws); err != nil {
			return storeError("workspace", err)
		}
		wsID = ws.ID
	}

	user.WorkspaceID = wsID
	if err := e.store.UpdateUser(ctx, user); err != nil {
		user.WorkspaceID = ""
		return storeError("user", err)
	}
	e.log.WithFields(logrus.Fields{
		"user_id":      user.ID,
		"workspace_id": wsID,
		"adopted":      len(owned) > 0,
	}).Info("personal workspace assigned")
	return nil
}

// ReconcileAll runs ReconcileUserAccess for every user and returns how many changed
func (e *Engine) ReconcileAll(ctx context.Context) (int, error) {
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return 0, storeError("users", err)
	}
	changed := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		_, ok, err := e.ReconcileUserAccess(ctx, u.ID)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

func (e *Engine) loadWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	if strings.TrimSpace(id) == "" {
		return nil, newError(KindInvalidArgument, "workspace id is required")
	}
	ws, err := e.store.GetWorkspace(ctx, id)
	if err != nil {
		return nil, storeError("workspace", err)
	}
	return ws, nil
}

// storeError classifies a storage failure
func storeError(what string, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return wrapError(KindNotFound, what+" not found", err)
	case errors.Is(err, database.ErrVersionConflict):
		return wrapError(KindConflict, what+" was modified concurrently, retry", err)
	case errors.Is(err, database.ErrDuplicate):
		return wrapError(KindConflict, what+" already exists", err)
	default:
		return wrapError(KindInternal, "failed to access "+what, err)
	}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
