package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/api"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/forms"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/sites"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

type CatalogRemote interface {
	FetchForms(ctx context.Context) ([]wire.Form, error)
	FetchPending(ctx context.Context) (*wire.Pending, error)
}

// CatalogSyncer replaces the cached forms and sites with the server's copy.
// A payload that fails to convert leaves the local copy untouched.
type CatalogSyncer struct {
	forms  forms.Repository
	sites  sites.Repository
	meta   metadata.Repository
	remote CatalogRemote

	now   func() time.Time
	guard Guard
	log   logging.Logger
}

func NewCatalogSyncer(formsRepo forms.Repository, sitesRepo sites.Repository, meta metadata.Repository, remote CatalogRemote, log logging.Logger) *CatalogSyncer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CatalogSyncer{
		forms:  formsRepo,
		sites:  sitesRepo,
		meta:   meta,
		remote: remote,
		now:    time.Now,
		log:    log.With("module", "catalog-syncer"),
	}
}

func (c *CatalogSyncer) IsSyncing() bool { return c.guard.IsSyncing() }

func (c *CatalogSyncer) Sync(ctx context.Context) (CatalogResult, error) {
	if !c.guard.TryAcquire() {
		return CatalogResult{}, ErrSyncInProgress
	}
	defer c.guard.Release()

	var res CatalogResult
	n, err := c.syncForms(ctx)
	if err != nil {
		return res, err
	}
	res.Forms = n

	res.Sites, res.Inventory, err = c.syncSites(ctx)
	return res, err
}

func (c *CatalogSyncer) SyncForms(ctx context.Context) (int, error) {
	if !c.guard.TryAcquire() {
		return 0, ErrSyncInProgress
	}
	defer c.guard.Release()
	return c.syncForms(ctx)
}

func (c *CatalogSyncer) SyncSites(ctx context.Context) (int, int, error) {
	if !c.guard.TryAcquire() {
		return 0, 0, ErrSyncInProgress
	}
	defer c.guard.Release()
	return c.syncSites(ctx)
}

func (c *CatalogSyncer) syncForms(ctx context.Context) (int, error) {
	remote, err := c.remote.FetchForms(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch forms: %w", err)
	}

	out := make([]*models.Form, 0, len(remote))
	for _, rf := range remote {
		f, err := api.FormFromWire(rf)
		if err != nil {
			return 0, fmt.Errorf("form %s: %w", rf.ID, err)
		}
		out = append(out, &f)
	}

	if err := c.forms.ReplaceAll(ctx, out); err != nil {
		return 0, fmt.Errorf("failed to store forms: %w", err)
	}
	c.stamp(ctx, metadata.KeyFormsSyncedAt)

	c.log.Info(ctx, "forms synced", "count", len(out))
	return len(out), nil
}

func (c *CatalogSyncer) syncSites(ctx context.Context) (int, int, error) {
	pending, err := c.remote.FetchPending(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch sites: %w", err)
	}

	bundle, err := api.BundleFromWire(*pending)
	if err != nil {
		return 0, 0, err
	}
	if err := c.sites.ReplaceAll(ctx, bundle); err != nil {
		return 0, 0, fmt.Errorf("failed to store sites: %w", err)
	}
	c.stamp(ctx, metadata.KeySitesSyncedAt)

	c.log.Info(ctx, "sites synced", "sites", len(bundle.Sites), "inventory", len(bundle.Inventory))
	return len(bundle.Sites), len(bundle.Inventory), nil
}

func (c *CatalogSyncer) stamp(ctx context.Context, key string) {
	if c.meta == nil {
		return
	}
	if err := c.meta.SetTime(ctx, key, c.now()); err != nil {
		c.log.Warn(ctx, "failed to record sync time", "key", key, "error", err)
	}
}
