package models

import (
	"encoding/json"
	"time"
)

// Submission is the server copy of a completed inspection. Answers and
// Metadata are stored as JSON documents.
type Submission struct {
	ID          string
	FormID      string
	UserID      string
	Metadata    json.RawMessage
	Answers     json.RawMessage
	StartedAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
