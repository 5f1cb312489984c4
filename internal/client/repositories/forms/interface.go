package forms

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

// Repository stores form snapshots. A form is always written as a whole;
// there is no partial edit path.
type Repository interface {
	// Replace writes f, discarding whatever steps, questions and
	// assignments the previous snapshot had.
	Replace(ctx context.Context, f *models.Form) error
	// ReplaceAll makes the stored set equal to forms.
	ReplaceAll(ctx context.Context, forms []*models.Form) error
	FindByID(ctx context.Context, id string) (*models.Form, error)
	FindByUser(ctx context.Context, userID string) ([]*models.Form, error)
	FindAll(ctx context.Context) ([]*models.Form, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
