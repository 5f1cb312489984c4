package files

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

// Repository describes persistence of file attachment records. The bytes
// themselves live on disk at LocalPath and are not managed here.
type Repository interface {
	Create(ctx context.Context, f *models.FileAttachment) error
	FindByID(ctx context.Context, id string) (*models.FileAttachment, error)

	// FindBySubmission returns the attachments of a submission, oldest first.
	FindBySubmission(ctx context.Context, submissionID string) ([]*models.FileAttachment, error)

	// FindByQuestion returns the attachments bound to one question of a submission.
	FindByQuestion(ctx context.Context, submissionID, questionID string) ([]*models.FileAttachment, error)

	FindByStatus(ctx context.Context, status models.SyncStatus) ([]*models.FileAttachment, error)

	// FindUnsynced returns attachments in pending or failed state.
	FindUnsynced(ctx context.Context) ([]*models.FileAttachment, error)
	FindAll(ctx context.Context) ([]*models.FileAttachment, error)

	// Update overwrites the mutable columns (paths, size, sync status).
	Update(ctx context.Context, f *models.FileAttachment) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error)
}
