package handlers

import (
	"net/http"
	"time"

	"formflow-backend/pkg/access"
	"formflow-backend/pkg/config"
	"formflow-backend/pkg/database"
	"formflow-backend/pkg/logging"
	"formflow-backend/pkg/models"
	"formflow-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

const (
	defaultResponsesPerPage = 20
	maxResponsesPerPage     = 100
)

// ResponseHandler serves respondents (public) and form editors (authenticated)
type ResponseHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	access *access.Engine
}

func NewResponseHandler(cfg *config.Config, db database.DatabaseInterface, engine *access.Engine) *ResponseHandler {
	return &ResponseHandler{config: cfg, db: db, access: engine}
}

// publicForm is what a respondent sees; workspace and authorship stay private
type publicForm struct {
	ID     string             `json:"id"`
	Title  string             `json:"title"`
	Fields []models.FormField `json:"fields"`
	Flow   []models.FlowStep  `json:"flow"`
}

// GetFlow returns the form for filling in and counts the visit
// GET /api/response/{formId}/get-flow
func (h *ResponseHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, err := h.db.GetForm(ctx, chiRoute.URLParam(r, "formId"))
	if err != nil {
		writeStoreError(w, r, "form", err)
		return
	}
	if err := h.db.IncrementVisitCount(ctx, form.ID); err != nil {
		// the visit counter is best-effort
		logging.Logger().WithError(err).WithField("form_id", form.ID).Warn("failed to count form visit")
	}
	utils.WriteSuccessResponse(w, publicForm{
		ID:     form.ID,
		Title:  form.Title,
		Fields: form.Fields,
		Flow:   form.Flow,
	})
}

// UpdateResponse creates a response, or replaces the answers of an unfinished one
// POST /api/response/update-response
func (h *ResponseHandler) UpdateResponse(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateResponseRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx := r.Context()
	if _, err := h.db.GetForm(ctx, req.FormID); err != nil {
		writeStoreError(w, r, "form", err)
		return
	}

	status := req.Status
	if status == "" {
		status = models.ResponseIncomplete
	}
	answers := req.Answers
	if answers == nil {
		answers = []models.Answer{}
	}

	if req.ResponseID == "" {
		resp := &models.Response{
			FormID:  req.FormID,
			Answers: answers,
			Status:  status,
		}
		markSubmitted(resp)
		if err := h.db.CreateResponse(ctx, resp); err != nil {
			writeStoreError(w, r, "response", err)
			return
		}
		utils.WriteCreatedResponse(w, resp)
		return
	}

	resp, err := h.db.GetResponse(ctx, req.ResponseID)
	if err != nil {
		writeStoreError(w, r, "response", err)
		return
	}
	if resp.FormID != req.FormID {
		utils.WriteBadRequestResponse(w, "Response does not belong to this form")
		return
	}
	if resp.Status == models.ResponseCompleted {
		utils.WriteConflictResponse(w, "Response has already been submitted")
		return
	}
	resp.Answers = answers
	resp.Status = status
	markSubmitted(resp)
	if err := h.db.UpdateResponse(ctx, resp); err != nil {
		writeStoreError(w, r, "response", err)
		return
	}
	utils.WriteSuccessResponse(w, resp)
}

// GET /api/response/{formId}/get-responses
func (h *ResponseHandler) GetResponses(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	form, err := h.db.GetForm(ctx, chiRoute.URLParam(r, "formId"))
	if err != nil {
		writeStoreError(w, r, "form", err)
		return
	}
	if _, _, err := h.access.Authorize(ctx, user.ID, form.WorkspaceID, models.PermissionView); err != nil {
		writeAccessError(w, r, err)
		return
	}

	list, err := h.db.ListResponsesByForm(ctx, form.ID)
	if err != nil {
		writeStoreError(w, r, "responses", err)
		return
	}
	page, perPage := utils.GetPagination(r, defaultResponsesPerPage, maxResponsesPerPage)
	start, end := pageBounds(len(list), page, perPage)
	pageItems := list[start:end]
	if pageItems == nil {
		pageItems = []models.Response{}
	}
	utils.WritePaginatedResponse(w, pageItems, page, perPage, len(list))
}

// pageBounds returns the slice range for a 1-based page, clamped to total.
// page is compared before multiplying so huge values cannot overflow.
func pageBounds(total, page, perPage int) (start, end int) {
	if page < 1 || perPage < 1 || page-1 >= (total+perPage-1)/perPage {
		return total, total
	}
	start = (page - 1) * perPage
	end = start + perPage
	if end > total {
		end = total
	}
	return start, end
}

func markSubmitted(resp *models.Response) {
	if resp.Status == models.ResponseCompleted && resp.SubmittedAt == nil {
		now := time.Now().UTC()
		resp.SubmittedAt = &now
	}
}
