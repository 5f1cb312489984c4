package files

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, file *models.File) error
	ListBySubmission(ctx context.Context, submissionID string) ([]*models.File, error)
}
