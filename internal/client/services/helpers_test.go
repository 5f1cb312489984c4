package services

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/forms"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/users"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	now := base
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func seedUser(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	ctx := context.Background()
	u := &models.User{ID: id, Email: id + "@example.com", Name: id, Role: "inspector", CreatedAt: base}
	require.NoError(t, users.NewSQLiteRepository(db).Save(ctx, u))
	require.NoError(t, metadata.NewSQLiteRepository(db).SetString(ctx, metadata.KeyCurrentUserID, id))
}

func towerForm() *models.Form {
	return &models.Form{
		ID: "form-1", Name: "Tower audit", Version: 1,
		AssignedUserIDs: []string{"user-1"},
		Steps: []models.Step{
			{ID: "step-1", StepNumber: 1, Title: "Mast", Questions: []models.Question{
				{ID: "q-height", QuestionText: "Height (m)", Type: models.QuestionNumber, IsRequired: true, OrderNumber: 1},
				{ID: "q-state", QuestionText: "Condition", Type: models.QuestionSingleChoice, Options: []string{"ok", "rust"}, OrderNumber: 2},
				{ID: "q-photo", QuestionText: "Photo", Type: models.QuestionFileUpload, OrderNumber: 3},
			}},
			{ID: "step-2", StepNumber: 2, Title: "Notes", Questions: []models.Question{
				{ID: "q-note", QuestionText: "Notes", Type: models.QuestionText, OrderNumber: 1},
			}},
		},
	}
}

func seedForm(t *testing.T, db *sql.DB) {
	t.Helper()
	require.NoError(t, forms.NewSQLiteRepository(db).Replace(context.Background(), towerForm()))
}

// fakeClient stubs the gateway methods used by auth and export.
type fakeClient struct {
	LoginResp *wire.LoginResponse
	LoginErr  error
	LastToken string

	ExportResp  *wire.Export
	ExportErr   error
	DownloadErr error
	Artifact    string
	LastURL     string
}

func (f *fakeClient) Login(_ context.Context, _, _ string) (*wire.LoginResponse, error) {
	return f.LoginResp, f.LoginErr
}

func (f *fakeClient) SetAccessToken(token string) { f.LastToken = token }

func (f *fakeClient) RequestExport(_ context.Context, _ string) (*wire.Export, error) {
	return f.ExportResp, f.ExportErr
}

func (f *fakeClient) Download(_ context.Context, rawURL string, w io.Writer) (int64, error) {
	f.LastURL = rawURL
	if f.DownloadErr != nil {
		return 0, f.DownloadErr
	}
	n, err := io.Copy(w, strings.NewReader(f.Artifact))
	return n, err
}

type fakeProber struct{ err error }

func (p fakeProber) Ping(context.Context) error { return p.err }
