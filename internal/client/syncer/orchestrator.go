package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/api"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/google/uuid"
)

// Status is a snapshot for display.
type Status struct {
	SubmissionsSyncing bool
	CatalogSyncing     bool
	Online             bool
	LastResult         *SyncResult
	LastFetch          *FetchResult
}

// Summary is the outcome of SyncAll.
type Summary struct {
	Catalog CatalogResult
	Push    SyncResult
	Pull    FetchResult
}

type Orchestrator struct {
	submissions *SubmissionSyncer
	catalog     *CatalogSyncer
	meta        metadata.Repository
	prober      api.Prober
	log         logging.Logger

	mu        sync.RWMutex
	online    bool
	last      *SyncResult
	lastFetch *FetchResult
}

// NewOrchestrator wires the syncers together. prober may be nil, in which
// case the backend is assumed reachable.
func NewOrchestrator(sub *SubmissionSyncer, cat *CatalogSyncer, meta metadata.Repository, prober api.Prober, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Orchestrator{
		submissions: sub,
		catalog:     cat,
		meta:        meta,
		prober:      prober,
		online:      prober == nil,
		log:         log.With("module", "orchestrator"),
	}
}

// Restore resets work a previous process left in syncing and loads the last
// persisted sync result so Status has something to show before the first run
// in this process.
func (o *Orchestrator) Restore(ctx context.Context) error {
	n, err := o.submissions.RecoverInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted sync: %w", err)
	}
	if n > 0 {
		o.log.Info(ctx, "recovered submissions left in syncing", "count", n)
	}

	if o.meta == nil {
		return nil
	}
	var r SyncResult
	ok, err := metadata.LoadJSON(ctx, o.meta, metadata.KeyLastSyncResult, &r)
	if err != nil {
		return fmt.Errorf("failed to load last sync result: %w", err)
	}
	if !ok {
		return nil
	}
	o.mu.Lock()
	o.last = &r
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st := Status{
		SubmissionsSyncing: o.submissions.IsSyncing(),
		CatalogSyncing:     o.catalog.IsSyncing(),
		Online:             o.online,
	}
	if o.last != nil {
		r := *o.last
		st.LastResult = &r
	}
	if o.lastFetch != nil {
		f := *o.lastFetch
		st.LastFetch = &f
	}
	return st
}

// Ping probes the backend and records whether it answered.
func (o *Orchestrator) Ping(ctx context.Context) error {
	if o.prober == nil {
		return nil
	}
	err := o.prober.Ping(ctx)
	o.mu.Lock()
	o.online = err == nil
	o.mu.Unlock()
	return err
}

func (o *Orchestrator) SyncSubmissions(ctx context.Context) (SyncResult, error) {
	ctx = logging.ContextWith(ctx, "sync_run", uuid.NewString())
	res, err := o.submissions.Sync(ctx)
	if err != nil {
		return res, err
	}

	o.mu.Lock()
	o.last = &res
	o.mu.Unlock()

	if o.meta != nil {
		if err := metadata.StoreJSON(context.WithoutCancel(ctx), o.meta, metadata.KeyLastSyncResult, res); err != nil {
			o.log.Warn(ctx, "failed to persist sync result", "error", err)
		}
	}
	return res, nil
}

func (o *Orchestrator) FetchRemote(ctx context.Context) (FetchResult, error) {
	res, err := o.submissions.FetchRemote(ctx)
	if err != nil {
		return res, err
	}
	o.mu.Lock()
	o.lastFetch = &res
	o.mu.Unlock()

	if o.meta != nil {
		if err := o.meta.SetTime(ctx, metadata.KeyRemoteFetchAt, time.Now()); err != nil {
			o.log.Warn(ctx, "failed to record fetch time", "error", err)
		}
	}
	return res, nil
}

func (o *Orchestrator) SyncCatalog(ctx context.Context) (CatalogResult, error) {
	return o.catalog.Sync(ctx)
}

// SyncAll refreshes the catalog, pushes local work and pulls remote
// submissions, in that order. A failing step does not stop the next one; all
// step errors are joined.
func (o *Orchestrator) SyncAll(ctx context.Context) (Summary, error) {
	if err := o.Ping(ctx); err != nil {
		return Summary{}, fmt.Errorf("backend not reachable: %w", err)
	}

	var (
		sum  Summary
		errs []error
		err  error
	)
	if sum.Catalog, err = o.SyncCatalog(ctx); err != nil {
		errs = append(errs, fmt.Errorf("catalog: %w", err))
	}
	if sum.Push, err = o.SyncSubmissions(ctx); err != nil {
		errs = append(errs, fmt.Errorf("push: %w", err))
	}
	if sum.Pull, err = o.FetchRemote(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pull: %w", err))
	}
	return sum, errors.Join(errs...)
}

// Watch probes the backend every interval and pushes pending submissions
// whenever it comes back online. It returns when ctx is done.
func (o *Orchestrator) Watch(ctx context.Context, interval time.Duration) error {
	if o.prober == nil || interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		o.mu.RLock()
		wasOnline := o.online
		o.mu.RUnlock()

		if err := o.Ping(ctx); err != nil {
			if wasOnline {
				o.log.Info(ctx, "backend went offline", "error", err)
			}
			continue
		}
		if wasOnline {
			continue
		}

		o.log.Info(ctx, "backend back online, pushing pending submissions")
		res, err := o.SyncSubmissions(ctx)
		switch {
		case errors.Is(err, ErrSyncInProgress):
		case err != nil:
			o.log.Warn(ctx, "background sync failed", "error", err)
		default:
			o.log.Info(ctx, "background sync done", "synced", res.SyncedCount, "failed", res.FailedCount)
		}
	}
}
