package syncqueue

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

// Repository stores retry-tracking envelopes for outbound sync work.
type Repository interface {
	Create(ctx context.Context, item *models.SyncQueueItem) error
	FindByID(ctx context.Context, id string) (*models.SyncQueueItem, error)
	// FindByEntity returns the most recent item for the entity.
	FindByEntity(ctx context.Context, entityType models.EntityType, entityID string) (*models.SyncQueueItem, error)
	FindByStatus(ctx context.Context, status models.QueueStatus) ([]*models.SyncQueueItem, error)
	// FindRetryable returns failed items that still have attempts left.
	FindRetryable(ctx context.Context) ([]*models.SyncQueueItem, error)
	Update(ctx context.Context, item *models.SyncQueueItem) error
	Delete(ctx context.Context, id string) error
	DeleteByEntity(ctx context.Context, entityType models.EntityType, entityID string) error
	// PurgeCompleted removes completed items and reports how many went.
	PurgeCompleted(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[models.QueueStatus]int, error)
}
