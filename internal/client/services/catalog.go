package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/forms"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/sites"
)

// CatalogSyncer refreshes the cached forms and sites from the backend.
type CatalogSyncer interface {
	SyncForms(ctx context.Context) (int, error)
	SyncSites(ctx context.Context) (int, int, error)
}

// CatalogService exposes the read-only reference data: forms and sites.
type CatalogService interface {
	SyncForms(ctx context.Context) (int, error)
	SyncSites(ctx context.Context) (sites int, inventory int, err error)
	// ListForms returns the forms assigned to the current user, or every
	// cached form when nobody is logged in.
	ListForms(ctx context.Context) ([]*models.Form, error)
	GetForm(ctx context.Context, id string) (*models.Form, error)
	ListSites(ctx context.Context) ([]*models.Site, error)
	FindSite(ctx context.Context, code string) (*models.Site, error)
	Inventory(ctx context.Context, siteID string, kind models.InventoryKind) ([]*models.InventoryItem, error)
}

type catalogService struct {
	syncer CatalogSyncer
	db     *sql.DB
}

func NewCatalogService(syncer CatalogSyncer, db *sql.DB) CatalogService {
	return &catalogService{syncer: syncer, db: db}
}

func (c *catalogService) SyncForms(ctx context.Context) (int, error) {
	n, err := c.syncer.SyncForms(ctx)
	if err != nil {
		return 0, fmt.Errorf("forms sync error: %w", err)
	}
	return n, nil
}

func (c *catalogService) SyncSites(ctx context.Context) (int, int, error) {
	s, i, err := c.syncer.SyncSites(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("sites sync error: %w", err)
	}
	return s, i, nil
}

func (c *catalogService) ListForms(ctx context.Context) ([]*models.Form, error) {
	repo := forms.NewSQLiteRepository(c.db)

	u, err := currentUser(ctx, c.db)
	if errors.Is(err, ErrNotLoggedIn) {
		out, err := repo.FindAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list forms: %w", err)
		}
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	out, err := repo.FindByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	return out, nil
}

func (c *catalogService) GetForm(ctx context.Context, id string) (*models.Form, error) {
	f, err := forms.NewSQLiteRepository(c.db).FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", id, err)
	}
	return f, nil
}

func (c *catalogService) ListSites(ctx context.Context) ([]*models.Site, error) {
	out, err := sites.NewSQLiteRepository(c.db).FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return out, nil
}

func (c *catalogService) FindSite(ctx context.Context, code string) (*models.Site, error) {
	s, err := sites.NewSQLiteRepository(c.db).FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", code, err)
	}
	return s, nil
}

func (c *catalogService) Inventory(ctx context.Context, siteID string, kind models.InventoryKind) ([]*models.InventoryItem, error) {
	out, err := sites.NewSQLiteRepository(c.db).Inventory(ctx, siteID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	return out, nil
}
