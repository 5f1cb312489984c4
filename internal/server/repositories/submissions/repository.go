package submissions

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/server/models"
)

type Repository interface {
	// Upsert creates or replaces a submission owned by s.UserID.
	Upsert(ctx context.Context, s *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Submission, error)
}
