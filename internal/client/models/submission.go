package models

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Submission is one filled-in (or in-progress) form.
//
// CompletedAt nil means draft. Once set it never changes. SyncStatus only
// moves through the transition methods below.
type Submission struct {
	ID          string
	FormID      string
	UserID      string
	Answers     []Answer
	Metadata    map[string]any
	StartedAt   time.Time
	CompletedAt *time.Time
	SyncStatus  SyncStatus
	SyncedAt    *time.Time
	// SyncError is the message of the last failed sync attempt.
	SyncError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubmission starts a draft with a freshly minted id.
func NewSubmission(formID, userID string, now time.Time) Submission {
	now = now.UTC()
	return Submission{
		ID:         uuid.NewString(),
		FormID:     formID,
		UserID:     userID,
		Metadata:   map[string]any{},
		StartedAt:  now,
		SyncStatus: SyncStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s Submission) clone() Submission {
	answers := make([]Answer, len(s.Answers))
	for i, a := range s.Answers {
		answers[i] = a.clone()
	}
	s.Answers = answers
	s.Metadata = maps.Clone(s.Metadata)
	return s
}

func (s Submission) IsDraft() bool { return s.CompletedAt == nil }

// IsSyncEligible reports whether the submission belongs in the next sync batch.
func (s Submission) IsSyncEligible() bool {
	return s.CompletedAt != nil && (s.SyncStatus == SyncStatusPending || s.SyncStatus == SyncStatusFailed)
}

// Answer returns the answer for questionID, if any.
func (s Submission) Answer(questionID string) (Answer, bool) {
	for _, a := range s.Answers {
		if a.QuestionID == questionID {
			return a.clone(), true
		}
	}
	return Answer{}, false
}

// AddAnswer sets the answer for a.QuestionID, replacing any previous one.
// A replaced answer keeps its id so the server sees a stable identity.
func (s Submission) AddAnswer(a Answer, now time.Time) Submission {
	out := s.clone()
	a = a.clone()
	idx := slices.IndexFunc(out.Answers, func(x Answer) bool { return x.QuestionID == a.QuestionID })
	if idx >= 0 {
		a.ID = out.Answers[idx].ID
		out.Answers[idx] = a
	} else {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		out.Answers = append(out.Answers, a)
	}
	out.UpdatedAt = now.UTC()
	return out
}

// UpdateMetadata replaces the metadata map.
func (s Submission) UpdateMetadata(md map[string]any, now time.Time) Submission {
	out := s.clone()
	out.Metadata = maps.Clone(md)
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	out.UpdatedAt = now.UTC()
	return out
}

// Complete finalizes a draft. Completing twice returns s unchanged.
func (s Submission) Complete(now time.Time) Submission {
	if s.CompletedAt != nil {
		return s.clone()
	}
	out := s.clone()
	now = now.UTC()
	out.CompletedAt = &now
	out.SyncStatus = SyncStatusPending
	out.UpdatedAt = now
	return out
}

func (s Submission) MarkAsSyncing(now time.Time) Submission {
	out := s.clone()
	out.SyncStatus = SyncStatusSyncing
	out.UpdatedAt = now.UTC()
	return out
}

// MarkAsSynced stamps a fresh SyncedAt and clears the last error.
func (s Submission) MarkAsSynced(now time.Time) Submission {
	out := s.clone()
	now = now.UTC()
	out.SyncStatus = SyncStatusSynced
	out.SyncedAt = &now
	out.SyncError = ""
	out.UpdatedAt = now
	return out
}

// MarkAsFailed records reason and clears SyncedAt.
func (s Submission) MarkAsFailed(reason string, now time.Time) Submission {
	out := s.clone()
	out.SyncStatus = SyncStatusFailed
	out.SyncedAt = nil
	out.SyncError = reason
	out.UpdatedAt = now.UTC()
	return out
}

// Retry moves a failed submission back to pending. Any other state is
// returned as is.
func (s Submission) Retry(now time.Time) Submission {
	if s.SyncStatus != SyncStatusFailed {
		return s.clone()
	}
	out := s.clone()
	out.SyncStatus = SyncStatusPending
	out.UpdatedAt = now.UTC()
	return out
}
