package users

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

// Repository caches identities that logged in on this device.
type Repository interface {
	// Save inserts the user or refreshes its cached profile.
	Save(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// First returns the earliest cached user.
	First(ctx context.Context) (*models.User, error)
	FindAll(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, id string) error
}
