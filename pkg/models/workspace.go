package models

import "time"

// Permission is the access level a non-owner holds on a workspace
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// Valid reports whether p is one of the recognised levels
func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

// Allows reports whether holding p satisfies required. edit covers view.
func (p Permission) Allows(required Permission) bool {
	switch p {
	case PermissionEdit:
		return required.Valid()
	case PermissionView:
		return required == PermissionView
	default:
		return false
	}
}

// SharedEntry grants one user a permission on a workspace
type SharedEntry struct {
	UserID     string     `json:"user_id" bson:"user_id"`
	Permission Permission `json:"permission" bson:"permission"`
}

// SharedWith is the ordered per-workspace collection of grants, keyed by user id.
// Mutate it through Upsert/Remove so a user never appears twice.
type SharedWith []SharedEntry

// Get returns the permission stored for userID
func (s SharedWith) Get(userID string) (Permission, bool) {
	for _, e := range s {
		if e.UserID == userID {
			return e.Permission, true
		}
	}
	return "", false
}

// Contains reports whether userID has an entry
func (s SharedWith) Contains(userID string) bool {
	_, ok := s.Get(userID)
	return ok
}

// Upsert sets userID's permission, appending a new entry when none exists.
// created is true when an entry was appended.
func (s *SharedWith) Upsert(userID string, perm Permission) (created bool) {
	for i := range *s {
		if (*s)[i].UserID == userID {
			(*s)[i].Permission = perm
			return false
		}
	}
	*s = append(*s, SharedEntry{UserID: userID, Permission: perm})
	return true
}

// Remove drops userID's entry, reporting whether one existed
func (s *SharedWith) Remove(userID string) bool {
	for i := range *s {
		if (*s)[i].UserID == userID {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

// Workspace is a tenant container owning folders and forms.
// OwnerID is immutable and never present in SharedWith.
type Workspace struct {
	ID         string     `json:"id" bson:"_id"`
	OwnerID    string     `json:"owner_id" bson:"owner_id"`
	SharedWith SharedWith `json:"shared_with" bson:"shared_with"`
	Version    int64      `json:"version" bson:"version"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

// PermissionFor resolves userID's effective permission.
// Owner status wins over any stale SharedWith entry.
func (w *Workspace) PermissionFor(userID string) (Permission, bool) {
	if userID == "" {
		return "", false
	}
	if w.OwnerID == userID {
		return PermissionEdit, true
	}
	return w.SharedWith.Get(userID)
}

// IsOwner reports whether userID owns the workspace
func (w *Workspace) IsOwner(userID string) bool {
	return userID != "" && w.OwnerID == userID
}

// WorkspaceView is the client-facing workspace shape; sharing details are withheld
type WorkspaceView struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Permission Permission `json:"permission"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// View builds the client-facing representation for a caller holding perm
func (w *Workspace) View(perm Permission) WorkspaceView {
	return WorkspaceView{
		ID:         w.ID,
		OwnerID:    w.OwnerID,
		Permission: perm,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
	}
}
