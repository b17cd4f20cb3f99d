package handlers

import (
	"errors"
	"net/http"

	"formflow-backend/pkg/access"
	"formflow-backend/pkg/database"
	"formflow-backend/pkg/logging"
	"formflow-backend/pkg/middleware"
	"formflow-backend/pkg/models"
	"formflow-backend/pkg/utils"
)

// writeAccessError maps an access.Error kind to its HTTP status
func writeAccessError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *access.Error
	msg := "Internal server error"
	if errors.As(err, &ae) {
		msg = ae.Message
	}

	switch access.KindOf(err) {
	case access.KindNotFound:
		utils.WriteNotFoundResponse(w, msg)
	case access.KindDenied:
		utils.WriteForbiddenResponse(w, msg)
	case access.KindConflict:
		utils.WriteConflictResponse(w, msg)
	case access.KindExpired:
		utils.WriteGoneResponse(w, msg)
	case access.KindInvalidArgument:
		utils.WriteBadRequestResponse(w, msg)
	default:
		logging.LogError(err, "access", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		utils.WriteInternalServerErrorResponse(w, "Internal server error")
	}
}

// writeStoreError handles errors coming straight from a store
func writeStoreError(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		utils.WriteNotFoundResponse(w, what+" not found")
	case errors.Is(err, database.ErrDuplicate):
		utils.WriteConflictResponse(w, what+" already exists")
	case errors.Is(err, database.ErrVersionConflict):
		utils.WriteConflictResponse(w, what+" was modified concurrently, retry")
	default:
		logging.LogError(err, "database", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"entity": what,
		})
		utils.WriteInternalServerErrorResponse(w, "Failed to access "+what)
	}
}

// decodeRequest parses and validates a JSON body, writing the 400 itself on failure
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := utils.ParseJSONBody(r, v); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		utils.WriteValidationErrorResponse(w, "Validation failed", err.Error())
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return nil, false
	}
	return user, true
}
