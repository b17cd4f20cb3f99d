package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents a user in the system
type User struct {
	ID              string    `json:"id" bson:"_id" db:"id"`
	Name            string    `json:"name" bson:"name" db:"name"`
	Email           string    `json:"email" bson:"email" db:"email"`
	Password        string    `json:"-" bson:"password_hash" db:"password_hash"` // Never return password in JSON
	WorkspaceID     string    `json:"workspace_id,omitempty" bson:"workspace_id" db:"workspace_id"`
	WorkspaceAccess []string  `json:"workspace_access" bson:"workspace_access" db:"workspace_access"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// HasWorkspaceAccess reports whether workspaceID is listed in the user's access index
func (u *User) HasWorkspaceAccess(workspaceID string) bool {
	for _, id := range u.WorkspaceAccess {
		if id == workspaceID {
			return true
		}
	}
	return false
}

// AddWorkspaceAccess appends workspaceID unless already listed
func (u *User) AddWorkspaceAccess(workspaceID string) bool {
	if u.HasWorkspaceAccess(workspaceID) {
		return false
	}
	u.WorkspaceAccess = append(u.WorkspaceAccess, workspaceID)
	return true
}

// UserSignupRequest represents the request payload for user registration
type UserSignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UserLoginRequest represents the request payload for user login
type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserUpdateRequest represents a partial profile update; empty fields are left untouched
type UserUpdateRequest struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	OldPassword string `json:"old_password,omitempty"`
	NewPassword string `json:"new_password,omitempty" validate:"omitempty,min=8"`
}

// UserLoginResponse represents the response payload for user login
type UserLoginResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshTokenRequest represents the request payload for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenClaims represents the JWT token claims
type TokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Type   string `json:"type"` // "access" or "refresh"
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// GetExpirationTime implements jwt.Claims interface
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims interface
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims interface
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims interface
func (c *TokenClaims) GetSubject() (string, error) {
	return c.UserID, nil
}

// GetAudience implements jwt.Claims interface
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}
