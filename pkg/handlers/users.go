package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"formflow-backend/pkg/access"
	"formflow-backend/pkg/config"
	"formflow-backend/pkg/database"
	"formflow-backend/pkg/logging"
	"formflow-backend/pkg/models"
	"formflow-backend/pkg/utils"
)

// UserHandler serves signup, login and profile endpoints
type UserHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	access *access.Engine
	jwt    *utils.JWTService
}

func NewUserHandler(cfg *config.Config, db database.DatabaseInterface, engine *access.Engine) *UserHandler {
	return &UserHandler{
		config: cfg,
		db:     db,
		access: engine,
		jwt:    utils.NewJWTService(cfg.JWTSecret).WithTTLs(cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
	}
}

// Signup creates the user and their personal workspace
// POST /api/user/signup
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.UserSignupRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		logging.LogError(err, "auth", map[string]interface{}{"operation": "signup"})
		utils.WriteInternalServerErrorResponse(w, "Failed to create user")
		return
	}

	ctx := r.Context()
	user := &models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: hash,
	}
	if err := h.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "An account with this email already exists")
			return
		}
		writeStoreError(w, r, "user", err)
		return
	}

	// a failure here leaves the account without a workspace; login and get-user finish the job
	if err := h.access.EnsurePersonalWorkspace(ctx, user); err != nil {
		writeAccessError(w, r, err)
		return
	}

	logging.LogEvent("user_signup", map[string]interface{}{
		"user_id":      user.ID,
		"workspace_id": user.WorkspaceID,
	})
	h.writeSession(w, r, user, http.StatusCreated)
}

// Login exchanges email and password for a token pair
// POST /api/user/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.db.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteUnauthorizedResponse(w, "Invalid email or password")
			return
		}
		writeStoreError(w, r, "user", err)
		return
	}
	if err := utils.CheckPassword(user.Password, req.Password); err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}
	if err := h.access.EnsurePersonalWorkspace(r.Context(), user); err != nil {
		writeAccessError(w, r, err)
		return
	}
	h.writeSession(w, r, user, http.StatusOK)
}

// RefreshToken mints a new access token
// POST /api/user/refresh
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	accessToken, expiresIn, err := h.jwt.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired refresh token")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// GetUser returns the caller's profile with a freshly reconciled workspace access list
// GET /api/user/get-user
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	user, _, err := h.access.ReconcileUserAccess(r.Context(), caller.ID)
	if err != nil {
		writeAccessError(w, r, err)
		return
	}
	if err := h.access.EnsurePersonalWorkspace(r.Context(), user); err != nil {
		writeAccessError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, user)
}

// UpdateUser changes name, email or password. A new password needs the old one.
// PUT /api/user/update-user
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.UserUpdateRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx := r.Context()
	user, err := h.db.GetUserByID(ctx, caller.ID)
	if err != nil {
		writeStoreError(w, r, "user", err)
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && !strings.EqualFold(email, user.Email) {
		if existing, err := h.db.GetUserByEmail(ctx, email); err == nil && existing.ID != user.ID {
			utils.WriteConflictResponse(w, "Email is already in use")
			return
		}
		user.Email = email
	}
	if req.NewPassword != "" {
		if req.OldPassword == "" {
			utils.WriteBadRequestResponse(w, "old_password is required to set a new password")
			return
		}
		if err := utils.CheckPassword(user.Password, req.OldPassword); err != nil {
			utils.WriteUnauthorizedResponse(w, "Old password is incorrect")
			return
		}
		hash, err := utils.HashPassword(req.NewPassword)
		if err != nil {
			logging.LogError(err, "auth", map[string]interface{}{"operation": "update_password"})
			utils.WriteInternalServerErrorResponse(w, "Failed to update password")
			return
		}
		user.Password = hash
	}

	if err := h.db.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "Email is already in use")
			return
		}
		writeStoreError(w, r, "user", err)
		return
	}
	utils.WriteSuccessResponse(w, user)
}

func (h *UserHandler) writeSession(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		logging.LogError(fmt.Errorf("token pair for %s: %w", user.ID, err), "auth", map[string]interface{}{
			"path": r.URL.Path,
		})
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}
	utils.WriteJSONResponse(w, status, models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}
