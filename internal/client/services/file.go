package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/files"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/forms"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/filex"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
)

// FileService manages attachment bytes in the local byte store.
// Deleting an attachment never reaches the server.
type FileService interface {
	Add(ctx context.Context, submissionID, stepID string, questionID *string, srcPath string) (*models.FileAttachment, error)
	List(ctx context.Context, submissionID string) ([]*models.FileAttachment, error)
	Delete(ctx context.Context, id string) error
}

type fileService struct {
	db  *sql.DB
	dir string
	now func() time.Time
	log logging.Logger
}

// NewFileService stores copied attachments under dir, one folder per
// submission.
func NewFileService(db *sql.DB, dir string, log logging.Logger) FileService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &fileService{db: db, dir: dir, now: time.Now, log: log.With("module", "files")}
}

func (s *fileService) Add(ctx context.Context, submissionID, stepID string, questionID *string, srcPath string) (*models.FileAttachment, error) {
	sub, err := submissions.NewSQLiteRepository(s.db).FindByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("submission %s: %w", submissionID, err)
	}
	if !sub.IsDraft() {
		return nil, fmt.Errorf("submission %s: %w", submissionID, ErrSubmissionCompleted)
	}
	if err := s.checkTarget(ctx, sub.FormID, stepID, questionID); err != nil {
		return nil, err
	}

	name := filepath.Base(srcPath)
	mimeType, err := detectMime(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", srcPath, err)
	}

	f := models.NewFileAttachment(submissionID, stepID, questionID, name, mimeType, s.now())

	dir, err := filex.EnsureDir(filepath.Join(s.dir, submissionID))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare file store: %w", err)
	}
	f.LocalPath = filepath.Join(dir, f.ID+strings.ToLower(filepath.Ext(name)))

	n, err := filex.CopyFile(srcPath, f.LocalPath)
	if err != nil {
		_ = filex.RemoveIfExists(f.LocalPath)
		return nil, fmt.Errorf("failed to copy attachment: %w", err)
	}
	f.FileSize = n

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := files.NewSQLiteRepository(tx).Create(ctx, &f); err != nil {
			return err
		}
		if questionID == nil {
			return nil
		}
		return s.linkAnswer(ctx, tx, *sub, *questionID, f.ID)
	})
	if err != nil {
		_ = filex.RemoveIfExists(f.LocalPath)
		return nil, fmt.Errorf("failed to save attachment: %w", err)
	}

	s.log.Info(ctx, "attachment added", "submission", submissionID, "file", f.ID, "size", n)
	return &f, nil
}

// checkTarget validates step and question against the cached form, if any.
func (s *fileService) checkTarget(ctx context.Context, formID, stepID string, questionID *string) error {
	if stepID == "" {
		return fmt.Errorf("%w: step id is required", common.ErrValidation)
	}
	form, err := forms.NewSQLiteRepository(s.db).FindByID(ctx, formID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load form: %w", err)
	}

	if !slices.ContainsFunc(form.Steps, func(st models.Step) bool { return st.ID == stepID }) {
		return fmt.Errorf("%w: unknown step %s", common.ErrValidation, stepID)
	}
	if questionID == nil {
		return nil
	}
	_, st, ok := form.Question(*questionID)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownQuestion, *questionID)
	}
	if st.ID != stepID {
		return fmt.Errorf("%w: question %s is not on step %s", common.ErrValidation, *questionID, stepID)
	}
	return nil
}

func (s *fileService) linkAnswer(ctx context.Context, tx dbx.DBTX, sub models.Submission, questionID, fileID string) error {
	a, _ := sub.Answer(questionID)
	a.QuestionID = questionID
	a.FileIDs = append(a.FileIDs, fileID)
	next := sub.AddAnswer(a, s.now())
	stored, _ := next.Answer(questionID)
	return submissions.NewSQLiteRepository(tx).UpdateAnswer(ctx, sub.ID, stored)
}

func (s *fileService) List(ctx context.Context, submissionID string) ([]*models.FileAttachment, error) {
	out, err := files.NewSQLiteRepository(s.db).FindBySubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return out, nil
}

func (s *fileService) Delete(ctx context.Context, id string) error {
	var path string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		fileRepo := files.NewSQLiteRepository(tx)
		f, err := fileRepo.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", id, err)
		}
		path = f.LocalPath

		if f.QuestionID != nil {
			subRepo := submissions.NewSQLiteRepository(tx)
			sub, err := subRepo.FindByID(ctx, f.SubmissionID)
			if err != nil {
				return fmt.Errorf("submission %s: %w", f.SubmissionID, err)
			}
			if a, ok := sub.Answer(*f.QuestionID); ok && slices.Contains(a.FileIDs, id) {
				a.FileIDs = slices.DeleteFunc(a.FileIDs, func(x string) bool { return x == id })
				if err := subRepo.UpdateAnswer(ctx, sub.ID, a); err != nil {
					return fmt.Errorf("failed to unlink attachment: %w", err)
				}
			}
		}
		return fileRepo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if err := filex.RemoveIfExists(path); err != nil {
		s.log.Warn(ctx, "failed to remove attachment bytes", "path", path, "error", err)
	}
	return nil
}

// detectMime guesses from the extension first and sniffs the content
// otherwise.
func detectMime(path string) (string, error) {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
