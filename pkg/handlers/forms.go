package handlers

import (
	"net/http"
	"strings"

	"formflow-backend/pkg/access"
	"formflow-backend/pkg/config"
	"formflow-backend/pkg/database"
	"formflow-backend/pkg/models"
	"formflow-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type FormHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	access *access.Engine
}

func NewFormHandler(cfg *config.Config, db database.DatabaseInterface, engine *access.Engine) *FormHandler {
	return &FormHandler{config: cfg, db: db, access: engine}
}

// POST /api/form/{workspaceId}/create-form
func (h *FormHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.CreateFormRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx := r.Context()
	ws, _, err := h.access.Authorize(ctx, user.ID, chiRoute.URLParam(r, "workspaceId"), models.PermissionEdit)
	if err != nil {
		writeAccessError(w, r, err)
		return
	}

	var folder *models.Folder
	if req.FolderID != "" {
		folder, err = h.db.GetFolder(ctx, req.FolderID)
		if err != nil {
			writeStoreError(w, r, "folder", err)
			return
		}
		if folder.WorkspaceID != ws.ID {
			utils.WriteBadRequestResponse(w, "Folder belongs to a different workspace")
			return
		}
	}

	fields := req.Fields
	if fields == nil {
		fields = []models.FormField{}
	}
	form := &models.Form{
		WorkspaceID: ws.ID,
		Title:       strings.TrimSpace(req.Title),
		Fields:      fields,
		Flow:        []models.FlowStep{},
		CreatedBy:   user.ID,
	}
	if folder != nil {
		form.FolderID = &folder.ID
	}
	if err := h.db.CreateForm(ctx, form); err != nil {
		writeStoreError(w, r, "form", err)
		return
	}
	if folder != nil {
		folder.FormIDs = append(folder.FormIDs, form.ID)
		if err := h.db.UpdateFolder(ctx, folder); err != nil {
			writeStoreError(w, r, "folder", err)
			return
		}
	}
	utils.WriteCreatedResponse(w, form)
}

// GET /api/form/{formId}
func (h *FormHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	form, ok := h.authorizedForm(w, r, models.PermissionView)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, form)
}

// UpdateFlow replaces the form's flow wholesale
// PUT /api/form/{formId}/update-flow
func (h *FormHandler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	var req models.SaveFlowRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	form, ok := h.authorizedForm(w, r, models.PermissionEdit)
	if !ok {
		return
	}
	form.Flow = req.Flow
	if err := h.db.UpdateForm(r.Context(), form); err != nil {
		writeStoreError(w, r, "form", err)
		return
	}
	utils.WriteSuccessResponse(w, form)
}

// DELETE /api/form/{formId}/delete-form
func (h *FormHandler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	form, ok := h.authorizedForm(w, r, models.PermissionEdit)
	if !ok {
		return
	}
	if err := h.db.DeleteForm(r.Context(), form.ID); err != nil {
		writeStoreError(w, r, "form", err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"id":      form.ID,
		"deleted": true,
	})
}

// authorizedForm loads {formId} and checks the caller holds required on its workspace
func (h *FormHandler) authorizedForm(w http.ResponseWriter, r *http.Request, required models.Permission) (*models.Form, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	form, err := h.db.GetForm(r.Context(), chiRoute.URLParam(r, "formId"))
	if err != nil {
		writeStoreError(w, r, "form", err)
		return nil, false
	}
	if _, _, err := h.access.Authorize(r.Context(), user.ID, form.WorkspaceID, required); err != nil {
		writeAccessError(w, r, err)
		return nil, false
	}
	return form, true
}
