package submissions

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

// Repository persists submissions together with their answers.
type Repository interface {
	Create(ctx context.Context, s *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	Exists(ctx context.Context, id string) (bool, error)
	FindByUser(ctx context.Context, userID string) ([]*models.Submission, error)
	FindByForm(ctx context.Context, formID string) ([]*models.Submission, error)
	FindByStatus(ctx context.Context, status models.SyncStatus) ([]*models.Submission, error)
	// FindUnsynced returns completed submissions in pending or failed state,
	// newest created first.
	FindUnsynced(ctx context.Context) ([]*models.Submission, error)
	FindAll(ctx context.Context) ([]*models.Submission, error)

	// Update overwrites every mutable column and replaces the answer set
	// with s.Answers. Answers missing from s are deleted.
	Update(ctx context.Context, s *models.Submission) error
	// UpdateAnswer upserts a single answer keyed by (submission, question).
	UpdateAnswer(ctx context.Context, submissionID string, a models.Answer) error
	// UpdateSyncState writes only the sync columns and updated_at.
	UpdateSyncState(ctx context.Context, s *models.Submission) error

	// Delete removes the submission; answers and files go with it.
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error)
	CountDrafts(ctx context.Context) (int, error)
}
