package models

import "time"

// Folder groups forms inside a workspace; Title is unique per workspace
type Folder struct {
	ID          string    `json:"id" bson:"_id" db:"id"`
	WorkspaceID string    `json:"workspace_id" bson:"workspace_id" db:"workspace_id"`
	Title       string    `json:"title" bson:"title" db:"title"`
	FormIDs     []string  `json:"form_ids" bson:"form_ids" db:"form_ids"`
	CreatedBy   string    `json:"created_by" bson:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// HasForm reports whether formID is already filed in the folder
func (f *Folder) HasForm(formID string) bool {
	for _, id := range f.FormIDs {
		if id == formID {
			return true
		}
	}
	return false
}

type CreateFolderRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type AddFormToFolderRequest struct {
	FormID string `json:"form_id" validate:"required"`
}
