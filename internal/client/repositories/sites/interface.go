package sites

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

// Repository caches the sites and their equipment inventory pulled from the
// server. The whole cache is swapped on every sync.
type Repository interface {
	ReplaceAll(ctx context.Context, bundle models.SiteBundle) error
	FindAll(ctx context.Context) ([]*models.Site, error)
	FindByID(ctx context.Context, id string) (*models.Site, error)
	FindByCode(ctx context.Context, code string) (*models.Site, error)
	Inventory(ctx context.Context, siteID string, kind models.InventoryKind) ([]*models.InventoryItem, error)
	Count(ctx context.Context) (int, error)
}
