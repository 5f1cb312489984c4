package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/inspectsync/internal/filex"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

type ExportClient interface {
	RequestExport(ctx context.Context, submissionID string) (*wire.Export, error)
	Download(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// ExportService asks the server to build an artifact for a synced
// submission and saves it into the exports directory.
type ExportService interface {
	Export(ctx context.Context, submissionID string) (string, error)
}

type exportService struct {
	client ExportClient
	db     *sql.DB
	dir    string
	log    logging.Logger
}

func NewExportService(client ExportClient, db *sql.DB, dir string, log logging.Logger) ExportService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &exportService{client: client, db: db, dir: dir, log: log.With("module", "exports")}
}

// Export returns the local path of the downloaded artifact.
func (e *exportService) Export(ctx context.Context, submissionID string) (string, error) {
	sub, err := submissions.NewSQLiteRepository(e.db).FindByID(ctx, submissionID)
	if err != nil {
		return "", fmt.Errorf("submission %s: %w", submissionID, err)
	}
	if sub.SyncStatus != models.SyncStatusSynced {
		return "", fmt.Errorf("submission %s: %w", submissionID, ErrNotSynced)
	}

	exp, err := e.client.RequestExport(ctx, submissionID)
	if err != nil {
		return "", fmt.Errorf("export request error: %w", err)
	}

	dir, err := filex.EnsureDir(e.dir)
	if err != nil {
		return "", fmt.Errorf("failed to prepare exports dir: %w", err)
	}
	target := filepath.Join(dir, artifactName(exp.FileName, submissionID))

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = filex.RemoveIfExists(tmp.Name()) }()

	n, err := e.client.Download(ctx, exp.URL, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("download error: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to save export: %w", err)
	}

	e.log.Info(ctx, "export saved", "submission", submissionID, "path", target, "size", n)
	return target, nil
}

// artifactName keeps only the base name the server suggested.
func artifactName(name, submissionID string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == "" {
		return submissionID + ".zip"
	}
	return base
}
