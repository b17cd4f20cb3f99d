package models

import "time"

// FormField describes one question on a form
type FormField struct {
	Label    string `json:"label" bson:"label" validate:"required"`
	Type     string `json:"type" bson:"type" validate:"required"`
	Required bool   `json:"required" bson:"required"`
}

// FlowStep is one opaque step of a form's conversational flow; the editor owns its shape
type FlowStep map[string]interface{}

// Form is a questionnaire living in a workspace, optionally filed in a folder
type Form struct {
	ID          string      `json:"id" bson:"_id" db:"id"`
	WorkspaceID string      `json:"workspace_id" bson:"workspace_id" db:"workspace_id"`
	FolderID    *string     `json:"folder_id,omitempty" bson:"folder_id,omitempty" db:"folder_id"`
	Title       string      `json:"title" bson:"title" db:"title"`
	Fields      []FormField `json:"fields" bson:"fields" db:"fields"`
	Flow        []FlowStep  `json:"flow" bson:"flow" db:"flow"`
	VisitCount  int64       `json:"visit_count" bson:"visit_count" db:"visit_count"`
	CreatedBy   string      `json:"created_by" bson:"created_by" db:"created_by"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

type CreateFormRequest struct {
	Title    string      `json:"title" validate:"required,max=200"`
	FolderID string      `json:"folder_id,omitempty"`
	Fields   []FormField `json:"fields" validate:"dive"`
}

type SaveFlowRequest struct {
	Flow []FlowStep `json:"flow" validate:"required"`
}
