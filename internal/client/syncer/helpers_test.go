package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/files"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/forms"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/sites"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/syncqueue"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

type fakeRemote struct {
	mu sync.Mutex

	syncFn    func(req wire.SyncRequest) (*wire.SyncResponse, error)
	fetchFn   func() ([]wire.RemoteSubmission, error)
	fetchRaw  func() ([]json.RawMessage, error)
	formsFn   func() ([]wire.Form, error)
	pendingFn func() (*wire.Pending, error)

	syncCalls []wire.SyncRequest
}

func (f *fakeRemote) Sync(_ context.Context, req wire.SyncRequest) (*wire.SyncResponse, error) {
	f.mu.Lock()
	f.syncCalls = append(f.syncCalls, req)
	f.mu.Unlock()
	if f.syncFn == nil {
		ids := make([]string, 0, len(req.Submissions))
		for _, s := range req.Submissions {
			ids = append(ids, s.ID)
		}
		return &wire.SyncResponse{SyncedSubmissions: ids}, nil
	}
	return f.syncFn(req)
}

func (f *fakeRemote) FetchSubmissions(context.Context) ([]json.RawMessage, error) {
	if f.fetchRaw != nil {
		return f.fetchRaw()
	}
	if f.fetchFn == nil {
		return nil, nil
	}
	subs, err := f.fetchFn()
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(subs))
	for _, s := range subs {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRemote) FetchForms(context.Context) ([]wire.Form, error) {
	if f.formsFn == nil {
		return nil, nil
	}
	return f.formsFn()
}

func (f *fakeRemote) FetchPending(context.Context) (*wire.Pending, error) {
	if f.pendingFn == nil {
		return &wire.Pending{}, nil
	}
	return f.pendingFn()
}

func (f *fakeRemote) calls() []wire.SyncRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wire.SyncRequest(nil), f.syncCalls...)
}

type env struct {
	db          *sql.DB
	submissions *submissions.SQLiteRepository
	files       *files.SQLiteRepository
	queue       *syncqueue.SQLiteRepository
	forms       *forms.SQLiteRepository
	sites       *sites.SQLiteRepository
	meta        *metadata.SQLiteRepository
	remote      *fakeRemote
	syncer      *SubmissionSyncer
	catalog     *CatalogSyncer
	dir         string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{
		db:          db,
		submissions: submissions.NewSQLiteRepository(db),
		files:       files.NewSQLiteRepository(db),
		queue:       syncqueue.NewSQLiteRepository(db),
		forms:       forms.NewSQLiteRepository(db),
		sites:       sites.NewSQLiteRepository(db),
		meta:        metadata.NewSQLiteRepository(db),
		remote:      &fakeRemote{},
		dir:         t.TempDir(),
	}
	clock := base
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	e.syncer = NewSubmissionSyncer(e.submissions, e.files, e.queue, e.forms, e.remote, nil)
	e.syncer.now = now
	e.catalog = NewCatalogSyncer(e.forms, e.sites, e.meta, e.remote, nil)
	e.catalog.now = now
	return e
}

// completed stores a completed submission created at base+offset.
func (e *env) completed(t *testing.T, id string, offset time.Duration, answers ...models.Answer) models.Submission {
	t.Helper()
	at := base.Add(offset)
	s := models.NewSubmission("form-1", "user-1", at)
	s.ID = id
	for _, a := range answers {
		s = s.AddAnswer(a, at)
	}
	s = s.Complete(at)
	require.NoError(t, e.submissions.Create(context.Background(), &s))
	return s
}

// attach adds a file to submission id. A nil content leaves the local path
// dangling.
func (e *env) attach(t *testing.T, submissionID, name string, content []byte) models.FileAttachment {
	t.Helper()
	f := models.NewFileAttachment(submissionID, "step-1", nil, name, "image/jpeg", base)
	f.LocalPath = filepath.Join(e.dir, f.ID+"_"+name)
	if content != nil {
		require.NoError(t, os.WriteFile(f.LocalPath, content, 0o600))
		f.FileSize = int64(len(content))
	}
	require.NoError(t, e.files.Create(context.Background(), &f))
	return f
}

func (e *env) enqueue(t *testing.T, submissionID string) models.SyncQueueItem {
	t.Helper()
	item := models.NewSyncQueueItem(models.OperationCreate, models.EntitySubmission, submissionID, nil, base)
	require.NoError(t, e.queue.Create(context.Background(), &item))
	return item
}

func (e *env) load(t *testing.T, id string) *models.Submission {
	t.Helper()
	s, err := e.submissions.FindByID(context.Background(), id)
	require.NoError(t, err)
	return s
}
