package models

import "time"

type ResponseStatus string

const (
	ResponseIncomplete ResponseStatus = "incomplete"
	ResponseCompleted  ResponseStatus = "completed"
)

// Answer is a respondent's reply to one field
type Answer struct {
	Field    string      `json:"field" bson:"field" validate:"required"`
	Response interface{} `json:"response" bson:"response" validate:"required"`
}

// Response is a (possibly partial) submission for a form
type Response struct {
	ID          string         `json:"id" bson:"_id" db:"id"`
	FormID      string         `json:"form_id" bson:"form_id" db:"form_id"`
	Answers     []Answer       `json:"answers" bson:"answers" db:"answers"`
	Status      ResponseStatus `json:"status" bson:"status" db:"status"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty" bson:"submitted_at,omitempty" db:"submitted_at"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// UpdateResponseRequest creates a response when ResponseID is empty, otherwise replaces its answers
type UpdateResponseRequest struct {
	ResponseID string         `json:"response_id,omitempty"`
	FormID     string         `json:"form_id" validate:"required"`
	Answers    []Answer       `json:"answers" validate:"dive"`
	Status     ResponseStatus `json:"status,omitempty" validate:"omitempty,oneof=completed incomplete"`
}
