package models

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

type EntityType string

const (
	EntitySubmission EntityType = "submission"
	EntityFile       EntityType = "file"
)

type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

const DefaultMaxAttempts = 3

// SyncQueueItem tracks delivery attempts for one entity.
type SyncQueueItem struct {
	ID          string
	Operation   Operation
	EntityType  EntityType
	EntityID    string
	Payload     json.RawMessage
	Attempts    int
	MaxAttempts int
	Status      QueueStatus
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

func NewSyncQueueItem(op Operation, et EntityType, entityID string, payload json.RawMessage, now time.Time) SyncQueueItem {
	now = now.UTC()
	return SyncQueueItem{
		ID:          uuid.NewString(),
		Operation:   op,
		EntityType:  et,
		EntityID:    entityID,
		Payload:     slices.Clone(payload),
		MaxAttempts: DefaultMaxAttempts,
		Status:      QueueStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (q SyncQueueItem) clone() SyncQueueItem {
	q.Payload = slices.Clone(q.Payload)
	if q.ProcessedAt != nil {
		t := *q.ProcessedAt
		q.ProcessedAt = &t
	}
	return q
}

// CanRetry holds for failed items that still have attempts left.
func (q SyncQueueItem) CanRetry() bool {
	return q.Status == QueueStatusFailed && q.Attempts < q.MaxAttempts
}

func (q SyncQueueItem) MarkProcessing(now time.Time) SyncQueueItem {
	out := q.clone()
	out.Status = QueueStatusProcessing
	out.UpdatedAt = now.UTC()
	return out
}

func (q SyncQueueItem) MarkCompleted(now time.Time) SyncQueueItem {
	out := q.clone()
	now = now.UTC()
	out.Status = QueueStatusCompleted
	out.Error = ""
	out.UpdatedAt = now
	out.ProcessedAt = &now
	return out
}

// MarkFailed counts one more failed execution.
func (q SyncQueueItem) MarkFailed(reason string, now time.Time) SyncQueueItem {
	out := q.clone()
	now = now.UTC()
	out.Status = QueueStatusFailed
	out.Attempts++
	out.Error = reason
	out.UpdatedAt = now
	out.ProcessedAt = &now
	return out
}

// Retry re-queues a failed item when CanRetry allows it.
func (q SyncQueueItem) Retry(now time.Time) SyncQueueItem {
	if !q.CanRetry() {
		return q.clone()
	}
	out := q.clone()
	out.Status = QueueStatusPending
	out.UpdatedAt = now.UTC()
	return out
}
