package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

// CatalogService publishes forms and the site catalog to clients and lets
// admins replace them.
type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewCatalogService(db *sql.DB, m repomanager.RepositoryManager) *CatalogService {
	return &CatalogService{db: db, repomanager: m, now: time.Now}
}

// FormsForUser lists forms assigned to userID. Admins see every form.
func (s *CatalogService) FormsForUser(ctx context.Context, userID, role string) ([]wire.Form, error) {
	repo := s.repomanager.Forms(s.db)

	var (
		list []*models.Form
		err  error
	)
	if role == models.RoleAdmin {
		list, err = repo.ListAll(ctx)
	} else {
		list, err = repo.ListForUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	out := make([]wire.Form, 0, len(list))
	for _, f := range list {
		w, err := toWireForm(f)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// PutForms upserts all forms in one transaction.
func (s *CatalogService) PutForms(ctx context.Context, forms []wire.Form) error {
	list := make([]*models.Form, 0, len(forms))
	for _, f := range forms {
		m, err := s.formModel(f)
		if err != nil {
			return err
		}
		list = append(list, m)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Forms(tx)
		for _, f := range list {
			if err := repo.Upsert(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *CatalogService) formModel(f wire.Form) (*models.Form, error) {
	if f.ID == "" || f.Name == "" {
		return nil, fmt.Errorf("%w: form id and name are required", common.ErrValidation)
	}

	seen := map[string]bool{}
	for _, st := range f.Steps {
		for _, q := range st.Questions {
			if q.ID == "" {
				return nil, fmt.Errorf("%w: form %s: question without id", common.ErrValidation, f.ID)
			}
			if seen[q.ID] {
				return nil, fmt.Errorf("%w: form %s: duplicate question %s", common.ErrValidation, f.ID, q.ID)
			}
			seen[q.ID] = true
		}
	}

	steps := f.Steps
	if steps == nil {
		steps = []wire.Step{}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("%w: form %s steps: %v", common.ErrValidation, f.ID, err)
	}

	updated := s.now().UTC()
	if f.UpdatedAt != "" {
		if updated, err = common.ParseTime(f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: form %s updatedAt: %v", common.ErrValidation, f.ID, err)
		}
	}

	version := f.Version
	if version <= 0 {
		version = 1
	}

	return &models.Form{
		ID:              f.ID,
		Name:            f.Name,
		Description:     f.Description,
		Version:         version,
		Steps:           raw,
		AssignedUserIDs: f.AssignedUserIDs,
		UpdatedAt:       updated,
	}, nil
}

// Pending returns the whole site catalog with both inventory kinds.
func (s *CatalogService) Pending(ctx context.Context) (wire.Pending, error) {
	repo := s.repomanager.Sites(s.db)

	sites, err := repo.ListSites(ctx)
	if err != nil {
		return wire.Pending{}, err
	}
	ee, err := repo.ListInventory(ctx, models.InventoryElectrical)
	if err != nil {
		return wire.Pending{}, err
	}
	ep, err := repo.ListInventory(ctx, models.InventoryPassive)
	if err != nil {
		return wire.Pending{}, err
	}

	out := wire.Pending{
		Sites:       make([]wire.Site, 0, len(sites)),
		InventoryEE: toWireInventory(ee),
		InventoryEP: toWireInventory(ep),
	}
	for _, site := range sites {
		out.Sites = append(out.Sites, toWireSite(site))
	}
	return out, nil
}

// PutSites replaces the site catalog with p.
func (s *CatalogService) PutSites(ctx context.Context, p wire.Pending) error {
	now := s.now().UTC()
	known := map[string]bool{}

	sites := make([]*models.Site, 0, len(p.Sites))
	for _, w := range p.Sites {
		if w.ID == "" || w.Code == "" {
			return fmt.Errorf("%w: site id and code are required", common.ErrValidation)
		}
		updated := now
		if w.UpdatedAt != "" {
			t, err := common.ParseTime(w.UpdatedAt)
			if err != nil {
				return fmt.Errorf("%w: site %s updatedAt: %v", common.ErrValidation, w.ID, err)
			}
			updated = t
		}
		known[w.ID] = true
		sites = append(sites, &models.Site{
			ID: w.ID, Code: w.Code, Name: w.Name, Address: w.Address,
			Latitude: w.Latitude, Longitude: w.Longitude, UpdatedAt: updated,
		})
	}

	var items []*models.InventoryItem
	add := func(kind string, list []wire.InventoryItem) error {
		for _, w := range list {
			if !known[w.SiteID] {
				return fmt.Errorf("%w: inventory %s references unknown site %s", common.ErrValidation, w.ID, w.SiteID)
			}
			items = append(items, &models.InventoryItem{
				ID: w.ID, SiteID: w.SiteID, Kind: kind, Name: w.Name,
				Model: w.Model, SerialNumber: w.SerialNumber, Quantity: w.Quantity,
			})
		}
		return nil
	}
	if err := add(models.InventoryElectrical, p.InventoryEE); err != nil {
		return err
	}
	if err := add(models.InventoryPassive, p.InventoryEP); err != nil {
		return err
	}

	return s.repomanager.Sites(s.db).ReplaceAll(ctx, sites, items)
}
