package services

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/inspectsync/internal/server/storage"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

// ExportService packs a submission into a zip archive and hands out a
// presigned link to it.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.ObjectStore
	now         func() time.Time
}

func NewExportService(db *sql.DB, m repomanager.RepositoryManager, store storage.ObjectStore) *ExportService {
	return &ExportService{db: db, repomanager: m, store: store, now: time.Now}
}

type exportedFile struct {
	ID         string  `json:"id"`
	StepID     string  `json:"stepId"`
	QuestionID *string `json:"questionId,omitempty"`
	FileName   string  `json:"fileName"`
	MimeType   string  `json:"mimeType"`
	FileSize   int64   `json:"fileSize"`
	RemotePath string  `json:"remotePath"`
}

// ExportSubmission builds the archive for submissionID. Inspectors may only
// export their own submissions.
func (s *ExportService) ExportSubmission(ctx context.Context, userID, role, submissionID string) (wire.Export, error) {
	sub, err := s.repomanager.Submissions(s.db).GetByID(ctx, submissionID)
	if err != nil {
		return wire.Export{}, err
	}
	if role != models.RoleAdmin && sub.UserID != userID {
		return wire.Export{}, common.ErrNotFound
	}

	files, err := s.repomanager.Files(s.db).ListBySubmission(ctx, submissionID)
	if err != nil {
		return wire.Export{}, err
	}

	archive, err := buildArchive(sub, files)
	if err != nil {
		return wire.Export{}, err
	}

	fileName := fmt.Sprintf("submission-%s.zip", sub.ID)
	key := fmt.Sprintf("exports/%s/%d/%s", sub.ID, s.now().Unix(), fileName)
	if err := s.store.Put(ctx, key, archive, "application/zip"); err != nil {
		return wire.Export{}, err
	}

	url, err := s.store.PresignGet(ctx, key)
	if err != nil {
		return wire.Export{}, err
	}
	return wire.Export{URL: url, FileName: fileName}, nil
}

func buildArchive(sub *models.Submission, files []*models.File) ([]byte, error) {
	ws, err := toWireSubmission(sub)
	if err != nil {
		return nil, err
	}

	list := make([]exportedFile, 0, len(files))
	for _, f := range files {
		list = append(list, exportedFile{
			ID: f.ID, StepID: f.StepID, QuestionID: f.QuestionID, FileName: f.FileName,
			MimeType: f.MimeType, FileSize: f.FileSize, RemotePath: f.StorageKey,
		})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := writeJSON(zw, "submission.json", ws); err != nil {
		return nil, err
	}
	if err := writeJSON(zw, "files.json", list); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(zw *zip.Writer, name string, v any) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Join(fmt.Errorf("write %s", name), err)
	}
	return nil
}
