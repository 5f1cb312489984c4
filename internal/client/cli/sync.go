package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/syncer"
)

// Sync runs catalog refresh, push and pull in one go.
func (a *App) Sync(ctx context.Context, _ []string) error {
	sum, err := a.syncer.SyncAll(ctx)
	printCatalog(sum.Catalog)
	printPush(sum.Push)
	printPull(sum.Pull)
	return err
}

func (a *App) Push(ctx context.Context, _ []string) error {
	res, err := a.syncer.SyncSubmissions(ctx)
	if err != nil {
		return err
	}
	printPush(res)
	return nil
}

func (a *App) Pull(ctx context.Context, _ []string) error {
	res, err := a.syncer.FetchRemote(ctx)
	if err != nil {
		return err
	}
	printPull(res)
	return nil
}

func (a *App) Catalog(ctx context.Context, _ []string) error {
	res, err := a.syncer.SyncCatalog(ctx)
	if err != nil {
		return err
	}
	printCatalog(res)
	return nil
}

func (a *App) Status(ctx context.Context, _ []string) error {
	st := a.syncer.Status()

	printlnFn("Mode:", a.mode())
	if st.SubmissionsSyncing {
		printlnFn("Submission sync in progress")
	}
	if st.CatalogSyncing {
		printlnFn("Catalog sync in progress")
	}

	c, err := a.submissionService.Counts(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Drafts: %d  pending: %d  syncing: %d  synced: %d  failed: %d",
		c.Drafts,
		c.ByStatus[models.SyncStatusPending],
		c.ByStatus[models.SyncStatusSyncing],
		c.ByStatus[models.SyncStatusSynced],
		c.ByStatus[models.SyncStatusFailed]))
	printlnFn(fmt.Sprintf("Queue: %d pending, %d processing, %d failed",
		c.Queue[models.QueueStatusPending],
		c.Queue[models.QueueStatusProcessing],
		c.Queue[models.QueueStatusFailed]))

	if st.LastResult != nil {
		printlnFn("Last push at", st.LastResult.FinishedAt.Local().Format(shortTime))
		printPush(*st.LastResult)
	}
	return nil
}

func printPush(r syncer.SyncResult) {
	printlnFn(fmt.Sprintf("Pushed: %d synced, %d failed", r.SyncedCount, r.FailedCount))
	for _, e := range r.Errors {
		printlnFn("  ", e.SubmissionID+":", e.Error)
	}
}

func printPull(r syncer.FetchResult) {
	printlnFn(fmt.Sprintf("Pulled: %d new, %d updated, %d unchanged", r.Created, r.Updated, r.Skipped))
	for _, e := range r.Errors {
		printlnFn("  ", e.SubmissionID+":", e.Error)
	}
}

func printCatalog(r syncer.CatalogResult) {
	printlnFn(fmt.Sprintf("Catalog: %d forms, %d sites, %d inventory items", r.Forms, r.Sites, r.Inventory))
}
