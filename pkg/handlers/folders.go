package handlers

import (
	"errors"
	"net/http"
	"strings"

	"formflow-backend/pkg/access"
	"formflow-backend/pkg/config"
	"formflow-backend/pkg/database"
	"formflow-backend/pkg/models"
	"formflow-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type FolderHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	access *access.Engine
}

func NewFolderHandler(cfg *config.Config, db database.DatabaseInterface, engine *access.Engine) *FolderHandler {
	return &FolderHandler{config: cfg, db: db, access: engine}
}

// POST /api/folder/{workspaceId}/create-folder
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.CreateFolderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ws, _, err := h.access.Authorize(r.Context(), user.ID, chiRoute.URLParam(r, "workspaceId"), models.PermissionEdit)
	if err != nil {
		writeAccessError(w, r, err)
		return
	}

	folder := &models.Folder{
		WorkspaceID: ws.ID,
		Title:       strings.TrimSpace(req.Title),
		FormIDs:     []string{},
		CreatedBy:   user.ID,
	}
	if err := h.db.CreateFolder(r.Context(), folder); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "A folder with this title already exists in the workspace")
			return
		}
		writeStoreError(w, r, "folder", err)
		return
	}
	utils.WriteCreatedResponse(w, folder)
}

// GetFolder returns the folder with the forms filed in it
// GET /api/folder/{id}
func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	folder, err := h.db.GetFolder(ctx, chiRoute.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, "folder", err)
		return
	}
	if _, _, err := h.access.Authorize(ctx, user.ID, folder.WorkspaceID, models.PermissionView); err != nil {
		writeAccessError(w, r, err)
		return
	}

	forms := make([]models.Form, 0, len(folder.FormIDs))
	for _, id := range folder.FormIDs {
		form, err := h.db.GetForm(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			writeStoreError(w, r, "form", err)
			return
		}
		forms = append(forms, *form)
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"folder": folder,
		"forms":  forms,
	})
}

// AddForm files an existing form of the same workspace into the folder
// PUT /api/folder/{id}/add-form
func (h *FolderHandler) AddForm(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.AddFormToFolderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx := r.Context()
	folder, err := h.db.GetFolder(ctx, chiRoute.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, "folder", err)
		return
	}
	if _, _, err := h.access.Authorize(ctx, user.ID, folder.WorkspaceID, models.PermissionEdit); err != nil {
		writeAccessError(w, r, err)
		return
	}
	form, err := h.db.GetForm(ctx, req.FormID)
	if err != nil {
		writeStoreError(w, r, "form", err)
		return
	}
	if form.WorkspaceID != folder.WorkspaceID {
		utils.WriteBadRequestResponse(w, "Form belongs to a different workspace")
		return
	}
	if folder.HasForm(form.ID) {
		utils.WriteSuccessResponse(w, folder)
		return
	}

	// a form lives in at most one folder
	if form.FolderID != nil && *form.FolderID != folder.ID {
		if prev, err := h.db.GetFolder(ctx, *form.FolderID); err == nil {
			prev.FormIDs = removeID(prev.FormIDs, form.ID)
			if err := h.db.UpdateFolder(ctx, prev); err != nil {
				writeStoreError(w, r, "folder", err)
				return
			}
		}
	}

	folder.FormIDs = append(folder.FormIDs, form.ID)
	if err := h.db.UpdateFolder(ctx, folder); err != nil {
		writeStoreError(w, r, "folder", err)
		return
	}
	form.FolderID = &folder.ID
	if err := h.db.UpdateForm(ctx, form); err != nil {
		writeStoreError(w, r, "form", err)
		return
	}
	utils.WriteSuccessResponse(w, folder)
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
