package handlers

import (
	"net/http"

	"formflow-backend/pkg/access"
	"formflow-backend/pkg/config"
	"formflow-backend/pkg/database"
	"formflow-backend/pkg/logging"
	"formflow-backend/pkg/models"
	"formflow-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

// WorkspaceHandler serves workspace listing, sharing and invites
type WorkspaceHandler struct {
	config  *config.Config
	db      database.DatabaseInterface
	access  *access.Engine
	invites *access.Ledger
}

func NewWorkspaceHandler(cfg *config.Config, db database.DatabaseInterface, engine *access.Engine, ledger *access.Ledger) *WorkspaceHandler {
	return &WorkspaceHandler{config: cfg, db: db, access: engine, invites: ledger}
}

// GET /api/workspace/get-all-workspaces
func (h *WorkspaceHandler) GetAllWorkspaces(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	views, err := h.access.ListAccessible(r.Context(), user.ID)
	if err != nil {
		writeAccessError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, views)
}

// GET /api/workspace/{workspaceId}/get-workspace
func (h *WorkspaceHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	detail, err := h.access.WorkspaceDetail(r.Context(), user.ID, chiRoute.URLParam(r, "workspaceId"))
	if err != nil {
		writeAccessError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, detail)
}

// AddWorkspace shares the workspace with a registered user looked up by email
// POST /api/workspace/{workspaceId}/add-workspace
func (h *WorkspaceHandler) AddWorkspace(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.AddSharedUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.access.GrantAccess(r.Context(), access.GrantRequest{
		ActorID:     user.ID,
		WorkspaceID: chiRoute.URLParam(r, "workspaceId"),
		TargetEmail: req.Email,
		Permission:  req.Permission,
	})
	if err != nil {
		writeAccessError(w, r, err)
		return
	}
	logging.LogEvent("workspace_shared", map[string]interface{}{
		"workspace_id": res.Workspace.ID,
		"actor_id":     user.ID,
		"user_id":      res.Entry.UserID,
		"permission":   string(res.Entry.Permission),
	})
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"workspace_id": res.Workspace.ID,
		"user_id":      res.Entry.UserID,
		"permission":   res.Entry.Permission,
		"created":      res.Created,
	})
}

// POST /api/workspace/{workspaceId}/generate-invite
func (h *WorkspaceHandler) GenerateInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.GenerateInviteRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	inv, err := h.invites.IssueInvite(r.Context(), user.ID, chiRoute.URLParam(r, "workspaceId"), req.Permission)
	if err != nil {
		writeAccessError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{
		"token":        inv.Token,
		"workspace_id": inv.WorkspaceID,
		"permission":   inv.Permission,
		"expires_at":   inv.ExpiresAt,
	})
}

// ValidateInvite redeems the invite for the caller
// GET /api/workspace/{inviteToken}/validate-invite
func (h *WorkspaceHandler) ValidateInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	red, err := h.invites.RedeemInvite(r.Context(), chiRoute.URLParam(r, "inviteToken"), user.ID)
	if err != nil {
		writeAccessError(w, r, err)
		return
	}
	logging.LogEvent("invite_redeemed", map[string]interface{}{
		"workspace_id": red.WorkspaceID,
		"user_id":      user.ID,
	})
	utils.WriteSuccessResponse(w, red)
}
