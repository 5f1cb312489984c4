package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/files"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/forms"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/sites"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/submissions"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// fakeRepoManager hands out in-memory repositories regardless of the DBTX.
type fakeRepoManager struct {
	repomanager.RepositoryManager
	users       *fakeUsersRepo
	forms       *fakeFormsRepo
	submissions *fakeSubmissionsRepo
	files       *fakeFilesRepo
	sites       *fakeSitesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:       &fakeUsersRepo{byEmail: map[string]*models.User{}},
		forms:       &fakeFormsRepo{byID: map[string]*models.Form{}},
		submissions: &fakeSubmissionsRepo{byID: map[string]*models.Submission{}},
		files:       &fakeFilesRepo{},
		sites:       &fakeSitesRepo{},
	}
}

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.users }
func (m *fakeRepoManager) Forms(dbx.DBTX) forms.Repository             { return m.forms }
func (m *fakeRepoManager) Submissions(dbx.DBTX) submissions.Repository { return m.submissions }
func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository             { return m.files }
func (m *fakeRepoManager) Sites(dbx.DBTX) sites.Repository             { return m.sites }

type fakeUsersRepo struct {
	byEmail map[string]*models.User
	getErr  error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, common.ErrAlreadyExists
	}
	u.ID = "user-" + u.Email
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

type fakeFormsRepo struct {
	byID      map[string]*models.Form
	upserted  []*models.Form
	upsertErr error
}

func (f *fakeFormsRepo) Upsert(_ context.Context, form *models.Form) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, form)
	f.byID[form.ID] = form
	return nil
}

func (f *fakeFormsRepo) GetByID(_ context.Context, id string) (*models.Form, error) {
	if form, ok := f.byID[id]; ok {
		return form, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeFormsRepo) ListForUser(_ context.Context, userID string) ([]*models.Form, error) {
	var out []*models.Form
	for _, form := range f.byID {
		for _, uid := range form.AssignedUserIDs {
			if uid == userID {
				out = append(out, form)
			}
		}
	}
	return out, nil
}

func (f *fakeFormsRepo) ListAll(_ context.Context) ([]*models.Form, error) {
	var out []*models.Form
	for _, form := range f.byID {
		out = append(out, form)
	}
	return out, nil
}

type fakeSubmissionsRepo struct {
	byID map[string]*models.Submission
	err  error
}

func (f *fakeSubmissionsRepo) Upsert(_ context.Context, s *models.Submission) error {
	if f.err != nil {
		return f.err
	}
	if prev, ok := f.byID[s.ID]; ok && prev.UserID != s.UserID {
		return common.ErrAlreadyExists
	}
	f.byID[s.ID] = s
	return nil
}

func (f *fakeSubmissionsRepo) GetByID(_ context.Context, id string) (*models.Submission, error) {
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeSubmissionsRepo) ListByUser(_ context.Context, userID string) ([]*models.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Submission
	for _, s := range f.byID {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeFilesRepo struct {
	stored []*models.File
}

func (f *fakeFilesRepo) Upsert(_ context.Context, file *models.File) error {
	f.stored = append(f.stored, file)
	return nil
}

func (f *fakeFilesRepo) ListBySubmission(_ context.Context, submissionID string) ([]*models.File, error) {
	var out []*models.File
	for _, file := range f.stored {
		if file.SubmissionID == submissionID {
			out = append(out, file)
		}
	}
	return out, nil
}

type fakeSitesRepo struct {
	sites []*models.Site
	items []*models.InventoryItem
}

func (f *fakeSitesRepo) ReplaceAll(_ context.Context, s []*models.Site, items []*models.InventoryItem) error {
	f.sites, f.items = s, items
	return nil
}

func (f *fakeSitesRepo) ListSites(context.Context) ([]*models.Site, error) { return f.sites, nil }

func (f *fakeSitesRepo) ListInventory(_ context.Context, kind string) ([]*models.InventoryItem, error) {
	var out []*models.InventoryItem
	for _, it := range f.items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out, nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = body
	s.types[key] = contentType
	return nil
}

func (s *fakeStore) PresignGet(_ context.Context, key string) (string, error) {
	return "http://minio.local/" + key + "?sig=1", nil
}
