package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/files"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/forms"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/syncqueue"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/filex"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
)

type SubmissionService interface {
	Start(ctx context.Context, formID string, md map[string]any) (*models.Submission, error)
	Get(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context) ([]*models.Submission, error)
	ListByStatus(ctx context.Context, status models.SyncStatus) ([]*models.Submission, error)
	AddAnswer(ctx context.Context, id, questionID string, value models.AnswerValue) (*models.Submission, error)
	UpdateMetadata(ctx context.Context, id string, md map[string]any) (*models.Submission, error)
	// Complete finalizes a draft and queues it for upload. Completing a
	// completed submission returns it unchanged.
	Complete(ctx context.Context, id string) (*models.Submission, error)
	// Retry moves a failed submission back to pending.
	Retry(ctx context.Context, id string) (*models.Submission, error)
	// Delete removes the submission, its attachments and their bytes.
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (Counts, error)
}

type Counts struct {
	Drafts   int
	ByStatus map[models.SyncStatus]int
	Queue    map[models.QueueStatus]int
}

type submissionService struct {
	db  *sql.DB
	now func() time.Time
	log logging.Logger
}

func NewSubmissionService(db *sql.DB, log logging.Logger) SubmissionService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &submissionService{db: db, now: time.Now, log: log.With("module", "submissions")}
}

// queuePayload is stored with every queued submission upload.
type queuePayload struct {
	SubmissionID string `json:"submissionId"`
	FormID       string `json:"formId"`
}

func (s *submissionService) Start(ctx context.Context, formID string, md map[string]any) (*models.Submission, error) {
	if formID == "" {
		return nil, fmt.Errorf("%w: form id is required", common.ErrValidation)
	}

	u, err := currentUser(ctx, s.db)
	if err != nil {
		return nil, err
	}

	if _, err := forms.NewSQLiteRepository(s.db).FindByID(ctx, formID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("form %s: %w", formID, ErrFormNotCached)
		}
		return nil, fmt.Errorf("failed to load form: %w", err)
	}

	now := s.now()
	sub := models.NewSubmission(formID, u.ID, now)
	if md != nil {
		sub = sub.UpdateMetadata(md, now)
	}
	if err := submissions.NewSQLiteRepository(s.db).Create(ctx, &sub); err != nil {
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}
	s.log.Info(ctx, "submission started", "submission", sub.ID, "form", formID)
	return &sub, nil
}

func (s *submissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := submissions.NewSQLiteRepository(s.db).FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("submission %s: %w", id, err)
	}
	return sub, nil
}

func (s *submissionService) List(ctx context.Context) ([]*models.Submission, error) {
	out, err := submissions.NewSQLiteRepository(s.db).FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return out, nil
}

func (s *submissionService) ListByStatus(ctx context.Context, status models.SyncStatus) ([]*models.Submission, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrValidation, status)
	}
	out, err := submissions.NewSQLiteRepository(s.db).FindByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return out, nil
}

// loadDraft returns the submission and its form, refusing completed ones.
// The form is nil when it is no longer cached.
func (s *submissionService) loadDraft(ctx context.Context, db dbx.DBTX, id string) (*models.Submission, *models.Form, error) {
	sub, err := submissions.NewSQLiteRepository(db).FindByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("submission %s: %w", id, err)
	}
	if !sub.IsDraft() {
		return nil, nil, fmt.Errorf("submission %s: %w", id, ErrSubmissionCompleted)
	}
	form, err := forms.NewSQLiteRepository(db).FindByID(ctx, sub.FormID)
	if errors.Is(err, common.ErrNotFound) {
		return sub, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load form: %w", err)
	}
	return sub, form, nil
}

func (s *submissionService) AddAnswer(ctx context.Context, id, questionID string, value models.AnswerValue) (*models.Submission, error) {
	sub, form, err := s.loadDraft(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if form != nil {
		q, _, ok := form.Question(questionID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownQuestion, questionID)
		}
		if err := q.Accepts(value); err != nil {
			return nil, err
		}
	}

	a, _ := sub.Answer(questionID)
	a.QuestionID = questionID
	a.Value = value
	next := sub.AddAnswer(a, s.now())
	stored, _ := next.Answer(questionID)

	if err := submissions.NewSQLiteRepository(s.db).UpdateAnswer(ctx, id, stored); err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}
	return &next, nil
}

func (s *submissionService) UpdateMetadata(ctx context.Context, id string, md map[string]any) (*models.Submission, error) {
	sub, _, err := s.loadDraft(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	next := sub.UpdateMetadata(md, s.now())
	if err := submissions.NewSQLiteRepository(s.db).Update(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}
	return &next, nil
}

func (s *submissionService) Complete(ctx context.Context, id string) (*models.Submission, error) {
	var out models.Submission
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		subRepo := submissions.NewSQLiteRepository(tx)
		sub, err := subRepo.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("submission %s: %w", id, err)
		}
		if !sub.IsDraft() {
			out = *sub
			return nil
		}

		form, err := forms.NewSQLiteRepository(tx).FindByID(ctx, sub.FormID)
		switch {
		case err == nil:
			if missing := form.MissingRequired(*sub); len(missing) > 0 {
				return fmt.Errorf("%w: %s", ErrSubmissionIncomplete, strings.Join(missing, ", "))
			}
		case !errors.Is(err, common.ErrNotFound):
			return fmt.Errorf("failed to load form: %w", err)
		}

		now := s.now()
		out = sub.Complete(now)
		if err := subRepo.Update(ctx, &out); err != nil {
			return fmt.Errorf("failed to save submission: %w", err)
		}

		payload, err := json.Marshal(queuePayload{SubmissionID: out.ID, FormID: out.FormID})
		if err != nil {
			return err
		}
		item := models.NewSyncQueueItem(models.OperationCreate, models.EntitySubmission, out.ID, payload, now)
		if err := syncqueue.NewSQLiteRepository(tx).Create(ctx, &item); err != nil {
			return fmt.Errorf("failed to queue submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "submission completed", "submission", out.ID)
	return &out, nil
}

func (s *submissionService) Retry(ctx context.Context, id string) (*models.Submission, error) {
	var out models.Submission
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		subRepo := submissions.NewSQLiteRepository(tx)
		sub, err := subRepo.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("submission %s: %w", id, err)
		}
		if sub.SyncStatus != models.SyncStatusFailed {
			return fmt.Errorf("submission %s is %s: %w", id, sub.SyncStatus, common.ErrInvalidState)
		}

		now := s.now()
		out = sub.Retry(now)
		if err := subRepo.UpdateSyncState(ctx, &out); err != nil {
			return fmt.Errorf("failed to save submission: %w", err)
		}

		fileRepo := files.NewSQLiteRepository(tx)
		attachments, err := fileRepo.FindBySubmission(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load attachments: %w", err)
		}
		for _, f := range attachments {
			if f.SyncStatus != models.SyncStatusFailed {
				continue
			}
			nf := f.Retry()
			if err := fileRepo.Update(ctx, &nf); err != nil {
				return fmt.Errorf("failed to reset attachment: %w", err)
			}
		}

		return s.requeue(ctx, tx, out, now)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// requeue resets the upload item of sub. An exhausted or missing item is
// replaced by a fresh one since a manual retry always gets another attempt.
func (s *submissionService) requeue(ctx context.Context, tx dbx.DBTX, sub models.Submission, now time.Time) error {
	queueRepo := syncqueue.NewSQLiteRepository(tx)
	item, err := queueRepo.FindByEntity(ctx, models.EntitySubmission, sub.ID)
	switch {
	case err == nil && item.CanRetry():
		next := item.Retry(now)
		return queueRepo.Update(ctx, &next)
	case err == nil && item.Status == models.QueueStatusPending:
		return nil
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return fmt.Errorf("failed to load queue item: %w", err)
	}

	payload, err := json.Marshal(queuePayload{SubmissionID: sub.ID, FormID: sub.FormID})
	if err != nil {
		return err
	}
	fresh := models.NewSyncQueueItem(models.OperationCreate, models.EntitySubmission, sub.ID, payload, now)
	return queueRepo.Create(ctx, &fresh)
}

func (s *submissionService) Delete(ctx context.Context, id string) error {
	var paths []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		attachments, err := files.NewSQLiteRepository(tx).FindBySubmission(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load attachments: %w", err)
		}
		for _, f := range attachments {
			paths = append(paths, f.LocalPath)
		}
		if err := submissions.NewSQLiteRepository(tx).Delete(ctx, id); err != nil {
			return fmt.Errorf("submission %s: %w", id, err)
		}
		return syncqueue.NewSQLiteRepository(tx).DeleteByEntity(ctx, models.EntitySubmission, id)
	})
	if err != nil {
		return err
	}

	for _, p := range paths {
		if err := filex.RemoveIfExists(p); err != nil {
			s.log.Warn(ctx, "failed to remove attachment bytes", "path", p, "error", err)
		}
	}
	return nil
}

func (s *submissionService) Counts(ctx context.Context) (Counts, error) {
	subRepo := submissions.NewSQLiteRepository(s.db)
	var (
		c   Counts
		err error
	)
	if c.Drafts, err = subRepo.CountDrafts(ctx); err != nil {
		return Counts{}, fmt.Errorf("failed to count drafts: %w", err)
	}
	if c.ByStatus, err = subRepo.CountByStatus(ctx); err != nil {
		return Counts{}, fmt.Errorf("failed to count submissions: %w", err)
	}
	if c.Queue, err = syncqueue.NewSQLiteRepository(s.db).CountByStatus(ctx); err != nil {
		return Counts{}, fmt.Errorf("failed to count queue: %w", err)
	}
	return c, nil
}
