package models

import "time"

// WorkspaceInvite is a redeemable, expiring capability granting Permission on WorkspaceID
// to whoever presents Token.
type WorkspaceInvite struct {
	Token       string     `json:"token" bson:"_id" db:"token"`
	WorkspaceID string     `json:"workspace_id" bson:"workspace_id" db:"workspace_id"`
	Permission  Permission `json:"permission" bson:"permission" db:"permission"`
	OwnerName   string     `json:"owner_name" bson:"owner_name" db:"owner_name"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at" bson:"expires_at" db:"expires_at"`
}

// ExpiredAt reports whether the invite is no longer redeemable at now
func (inv *WorkspaceInvite) ExpiredAt(now time.Time) bool {
	return !now.Before(inv.ExpiresAt)
}

// GenerateInviteRequest is the body of POST /api/workspace/{workspaceId}/generate-invite
type GenerateInviteRequest struct {
	Permission Permission `json:"permission" validate:"required,oneof=view edit"`
}

// AddSharedUserRequest is the body of POST /api/workspace/{workspaceId}/add-workspace
type AddSharedUserRequest struct {
	Email      string     `json:"email" validate:"required,email"`
	Permission Permission `json:"permission" validate:"required,oneof=view edit"`
}
