package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"formflow-backend/pkg/logging"
	"formflow-backend/pkg/models"
	"formflow-backend/pkg/utils"
)

// ContextKey namespaces values stored on the request context
type ContextKey string

const (
	UserContextKey ContextKey = "user"
	userHolderKey  ContextKey = "user_holder"
)

var errNotAuthenticated = errors.New("user not authenticated")

// AuthMiddleware requires a valid access token in the Authorization header
func AuthMiddleware(jwtService *utils.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logging.Logger().WithField("path", r.URL.Path)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateAccessToken(strings.TrimSpace(tokenString))
			if err != nil {
				log.WithError(err).Debug("rejected access token")
				utils.WriteUnauthorizedResponse(w, "Invalid or expired token")
				return
			}

			user := &models.User{ID: claims.UserID, Email: claims.Email}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser stores the authenticated user on ctx
func WithUser(ctx context.Context, user *models.User) context.Context {
	if h, ok := ctx.Value(userHolderKey).(*userHolder); ok && user != nil {
		h.id = user.ID
	}
	return context.WithValue(ctx, UserContextKey, user)
}

// userHolder lets RequestLogger see who the request was authenticated as
type userHolder struct {
	id string
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderKey, h)
}

func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// RequireUser returns the authenticated user or an error
func RequireUser(ctx context.Context) (*models.User, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok || user == nil || user.ID == "" {
		return nil, errNotAuthenticated
	}
	return user, nil
}
