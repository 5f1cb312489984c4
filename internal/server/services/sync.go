package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/inspectsync/internal/server/storage"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

// SyncService accepts batches of completed submissions from field clients.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.ObjectStore
	log         logging.Logger
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, store storage.ObjectStore, log logging.Logger) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: m,
		store:       store,
		log:         log.With("module", "sync"),
	}
}

// StorageKey is the object key of an attachment.
func StorageKey(submissionID, fileID, fileName string) string {
	return fmt.Sprintf("submissions/%s/%s/%s", submissionID, fileID, path.Base("/"+fileName))
}

// Sync stores every submission of req independently. A failing submission
// is reported in the response and never aborts the rest of the batch.
func (s *SyncService) Sync(ctx context.Context, userID string, req wire.SyncRequest) wire.SyncResponse {
	resp := wire.SyncResponse{
		SyncedSubmissions: []string{},
		SyncedFiles:       []wire.SyncedFile{},
		Errors:            []wire.SyncError{},
	}

	for _, sub := range req.Submissions {
		files, err := s.syncOne(ctx, userID, sub)
		if err != nil {
			s.log.Warn(ctx, "submission rejected", "submission", sub.ID, "error", err)
			resp.Errors = append(resp.Errors, wire.SyncError{SubmissionID: sub.ID, Error: err.Error()})
			continue
		}
		resp.SyncedSubmissions = append(resp.SyncedSubmissions, sub.ID)
		resp.SyncedFiles = append(resp.SyncedFiles, files...)
	}

	resp.HasErrors = len(resp.Errors) > 0
	s.log.Info(ctx, "sync batch processed",
		"user", userID, "synced", len(resp.SyncedSubmissions), "failed", len(resp.Errors))
	return resp
}

type decodedFile struct {
	model *models.File
	data  []byte
}

func (s *SyncService) syncOne(ctx context.Context, userID string, in wire.Submission) ([]wire.SyncedFile, error) {
	sub, err := s.toModel(userID, in)
	if err != nil {
		return nil, err
	}

	if _, err := s.repomanager.Forms(s.db).GetByID(ctx, sub.FormID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown form %s", common.ErrValidation, sub.FormID)
		}
		return nil, err
	}

	files := make([]decodedFile, 0, len(in.Files))
	for _, f := range in.Files {
		df, err := decodeFile(sub.ID, f)
		if err != nil {
			return nil, err
		}
		files = append(files, df)
	}

	// Object keys are deterministic, so a retried batch overwrites the
	// same objects.
	for _, f := range files {
		if err := s.store.Put(ctx, f.model.StorageKey, f.data, f.model.MimeType); err != nil {
			return nil, fmt.Errorf("file %s upload failed: %w", f.model.ID, err)
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Submissions(tx).Upsert(ctx, sub); err != nil {
			if errors.Is(err, common.ErrAlreadyExists) {
				return fmt.Errorf("submission id %s belongs to another user: %w", sub.ID, err)
			}
			return err
		}
		fileRepo := s.repomanager.Files(tx)
		for _, f := range files {
			if err := fileRepo.Upsert(ctx, f.model); err != nil {
				return fmt.Errorf("file %s: %w", f.model.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	synced := make([]wire.SyncedFile, 0, len(files))
	for _, f := range files {
		synced = append(synced, wire.SyncedFile{ID: f.model.ID, RemotePath: f.model.StorageKey})
	}
	return synced, nil
}

func (s *SyncService) toModel(userID string, in wire.Submission) (*models.Submission, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("%w: submission id is required", common.ErrValidation)
	}
	if in.FormID == "" {
		return nil, fmt.Errorf("%w: formId is required", common.ErrValidation)
	}
	if in.UserID != "" && in.UserID != userID {
		return nil, fmt.Errorf("%w: submission owned by another user", common.ErrValidation)
	}

	started, err := common.ParseTime(in.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: startedAt: %v", common.ErrValidation, err)
	}
	completed, err := common.ParseTimePtr(in.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: completedAt: %v", common.ErrValidation, err)
	}

	meta := in.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", common.ErrValidation, err)
	}

	answers := in.Answers
	if answers == nil {
		answers = []wire.Answer{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("%w: answers: %v", common.ErrValidation, err)
	}

	return &models.Submission{
		ID:          in.ID,
		FormID:      in.FormID,
		UserID:      userID,
		Metadata:    metaJSON,
		Answers:     answersJSON,
		StartedAt:   started,
		CompletedAt: completed,
	}, nil
}

func decodeFile(submissionID string, f wire.File) (decodedFile, error) {
	if f.ID == "" || f.FileName == "" {
		return decodedFile{}, fmt.Errorf("%w: file id and name are required", common.ErrValidation)
	}
	data, err := base64.StdEncoding.DecodeString(f.FileData)
	if err != nil {
		return decodedFile{}, fmt.Errorf("%w: file %s: bad base64 data", common.ErrValidation, f.ID)
	}
	if f.FileSize > 0 && f.FileSize != int64(len(data)) {
		return decodedFile{}, fmt.Errorf("%w: file %s: size %d does not match data (%d bytes)",
			common.ErrValidation, f.ID, f.FileSize, len(data))
	}

	mime := f.MimeType
	if mime == "" {
		mime = http.DetectContentType(data)
	}

	return decodedFile{
		model: &models.File{
			ID:           f.ID,
			SubmissionID: submissionID,
			StepID:       f.StepID,
			QuestionID:   f.QuestionID,
			FileName:     f.FileName,
			MimeType:     mime,
			FileSize:     int64(len(data)),
			StorageKey:   StorageKey(submissionID, f.ID, f.FileName),
		},
		data: data,
	}, nil
}

// ListSubmissions returns the caller's submissions, newest first.
func (s *SyncService) ListSubmissions(ctx context.Context, userID string) ([]wire.RemoteSubmission, error) {
	list, err := s.repomanager.Submissions(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]wire.RemoteSubmission, 0, len(list))
	for _, sub := range list {
		w, err := toWireSubmission(sub)
		if err != nil {
			s.log.Error(ctx, "skipping unreadable submission", "submission", sub.ID, "error", err)
			continue
		}
		out = append(out, w)
	}
	return out, nil
}
