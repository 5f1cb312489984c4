package models

import "time"

// File describes an attachment whose bytes live in object storage under
// StorageKey.
type File struct {
	ID           string
	SubmissionID string
	StepID       string
	QuestionID   *string
	FileName     string
	MimeType     string
	FileSize     int64
	StorageKey   string
	CreatedAt    time.Time
}
