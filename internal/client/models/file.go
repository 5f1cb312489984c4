package models

import (
	"time"

	"github.com/google/uuid"
)

// FileAttachment is media captured for a submission. Its bytes live in the
// local byte store at LocalPath and travel inside the submission payload.
// A synced attachment always has a RemotePath.
type FileAttachment struct {
	ID           string
	SubmissionID string
	StepID       string
	// QuestionID is nil for submission-level attachments.
	QuestionID *string
	LocalPath  string
	RemotePath *string
	FileName   string
	FileSize   int64
	MimeType   string
	SyncStatus SyncStatus
	CreatedAt  time.Time
}

func NewFileAttachment(submissionID, stepID string, questionID *string, fileName, mimeType string, now time.Time) FileAttachment {
	return FileAttachment{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		StepID:       stepID,
		QuestionID:   cloneString(questionID),
		FileName:     fileName,
		MimeType:     mimeType,
		SyncStatus:   SyncStatusPending,
		CreatedAt:    now.UTC(),
	}
}

func (f FileAttachment) clone() FileAttachment {
	f.QuestionID = cloneString(f.QuestionID)
	f.RemotePath = cloneString(f.RemotePath)
	return f
}

func (f FileAttachment) MarkAsSyncing() FileAttachment {
	out := f.clone()
	out.SyncStatus = SyncStatusSyncing
	return out
}

func (f FileAttachment) MarkAsSynced(remotePath string) FileAttachment {
	out := f.clone()
	out.SyncStatus = SyncStatusSynced
	out.RemotePath = &remotePath
	return out
}

func (f FileAttachment) MarkAsFailed() FileAttachment {
	out := f.clone()
	out.SyncStatus = SyncStatusFailed
	return out
}

// Retry moves a failed attachment back to pending.
func (f FileAttachment) Retry() FileAttachment {
	if f.SyncStatus != SyncStatusFailed {
		return f.clone()
	}
	out := f.clone()
	out.SyncStatus = SyncStatusPending
	return out
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
