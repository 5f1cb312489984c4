package sites

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/server/models"
)

type Repository interface {
	// ReplaceAll swaps the whole site catalog for sites and items.
	ReplaceAll(ctx context.Context, sites []*models.Site, items []*models.InventoryItem) error
	ListSites(ctx context.Context) ([]*models.Site, error)
	ListInventory(ctx context.Context, kind string) ([]*models.InventoryItem, error)
}
