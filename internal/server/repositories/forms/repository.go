package forms

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/server/models"
)

type Repository interface {
	// Upsert stores f and replaces its assignment list.
	Upsert(ctx context.Context, f *models.Form) error
	GetByID(ctx context.Context, id string) (*models.Form, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Form, error)
	ListAll(ctx context.Context) ([]*models.Form, error)
}
