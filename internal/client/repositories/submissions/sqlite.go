package submissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const submissionColumns = `id, form_id, user_id, metadata, started_at, completed_at,
	sync_status, synced_at, sync_error, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, s *models.Submission) error {
	md, err := encodeMetadata(s.Metadata)
	if err != nil {
		return err
	}
	return dbx.RunInTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO submissions (`+submissionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.FormID, s.UserID, md,
			common.FormatTime(s.StartedAt), common.FormatTimePtr(s.CompletedAt),
			string(s.SyncStatus), common.FormatTimePtr(s.SyncedAt), s.SyncError,
			common.FormatTime(s.CreatedAt), common.FormatTime(s.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert submission: %w", err)
		}
		return insertAnswers(ctx, tx, s.ID, s.Answers)
	})
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	s, err := scanSubmission(row)
	if err != nil {
		return nil, err
	}
	if s.Answers, err = r.loadAnswers(ctx, s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SQLiteRepository) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check submission %s: %w", id, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) FindByUser(ctx context.Context, userID string) ([]*models.Submission, error) {
	return r.findMany(ctx, `WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
}

func (r *SQLiteRepository) FindByForm(ctx context.Context, formID string) ([]*models.Submission, error) {
	return r.findMany(ctx, `WHERE form_id = ? ORDER BY created_at DESC, id`, formID)
}

func (r *SQLiteRepository) FindByStatus(ctx context.Context, status models.SyncStatus) ([]*models.Submission, error) {
	return r.findMany(ctx, `WHERE sync_status = ? ORDER BY created_at DESC, id`, string(status))
}

func (r *SQLiteRepository) FindUnsynced(ctx context.Context) ([]*models.Submission, error) {
	return r.findMany(ctx, `WHERE completed_at IS NOT NULL AND sync_status IN (?, ?)
		ORDER BY created_at DESC, id`, string(models.SyncStatusPending), string(models.SyncStatusFailed))
}

func (r *SQLiteRepository) FindAll(ctx context.Context) ([]*models.Submission, error) {
	return r.findMany(ctx, `ORDER BY created_at DESC, id`)
}

func (r *SQLiteRepository) findMany(ctx context.Context, where string, args ...any) ([]*models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+submissionColumns+` FROM submissions `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting submissions: %w", err)
	}

	var result []*models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range result {
		if s.Answers, err = r.loadAnswers(ctx, s.ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, s *models.Submission) error {
	md, err := encodeMetadata(s.Metadata)
	if err != nil {
		return err
	}
	return dbx.RunInTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `UPDATE submissions SET
				form_id = ?, user_id = ?, metadata = ?, started_at = ?, completed_at = ?,
				sync_status = ?, synced_at = ?, sync_error = ?, updated_at = ?
			WHERE id = ?`,
			s.FormID, s.UserID, md, common.FormatTime(s.StartedAt), common.FormatTimePtr(s.CompletedAt),
			string(s.SyncStatus), common.FormatTimePtr(s.SyncedAt), s.SyncError, common.FormatTime(s.UpdatedAt),
			s.ID)
		if err != nil {
			return fmt.Errorf("failed to update submission: %w", err)
		}
		if err := dbx.ExpectOne(res, common.ErrNotFound); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE submission_id = ?`, s.ID); err != nil {
			return fmt.Errorf("failed to clear answers: %w", err)
		}
		return insertAnswers(ctx, tx, s.ID, s.Answers)
	})
}

func (r *SQLiteRepository) UpdateAnswer(ctx context.Context, submissionID string, a models.Answer) error {
	value, fileIDs, err := encodeAnswer(a)
	if err != nil {
		return err
	}
	return dbx.RunInTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `UPDATE submissions SET updated_at = ? WHERE id = ?`,
			common.FormatTime(nowUTC()), submissionID)
		if err != nil {
			return fmt.Errorf("failed to touch submission: %w", err)
		}
		if err := dbx.ExpectOne(res, common.ErrNotFound); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO answers (id, submission_id, question_id, value, file_ids) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(submission_id, question_id) DO UPDATE SET
				value = excluded.value, file_ids = excluded.file_ids`,
			a.ID, submissionID, a.QuestionID, value, fileIDs)
		if err != nil {
			return fmt.Errorf("failed to upsert answer: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) UpdateSyncState(ctx context.Context, s *models.Submission) error {
	res, err := r.db.ExecContext(ctx, `UPDATE submissions SET
			sync_status = ?, synced_at = ?, sync_error = ?, updated_at = ?
		WHERE id = ?`,
		string(s.SyncStatus), common.FormatTimePtr(s.SyncedAt), s.SyncError, common.FormatTime(s.UpdatedAt), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	return dbx.ExpectOne(res, common.ErrNotFound)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	return dbx.ExpectOne(res, common.ErrNotFound)
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM submissions GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	defer rows.Close()

	out := make(map[models.SyncStatus]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[models.SyncStatus(st)] = n
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CountDrafts(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions WHERE completed_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count drafts: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) loadAnswers(ctx context.Context, submissionID string) ([]models.Answer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, question_id, value, file_ids FROM answers WHERE submission_id = ? ORDER BY rowid`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers of %s: %w", submissionID, err)
	}
	defer rows.Close()

	var out []models.Answer
	for rows.Next() {
		var a models.Answer
		var value, fileIDs string
		if err := rows.Scan(&a.ID, &a.QuestionID, &value, &fileIDs); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		if err := json.Unmarshal([]byte(value), &a.Value); err != nil {
			return nil, fmt.Errorf("answer %s value: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(fileIDs), &a.FileIDs); err != nil {
			return nil, fmt.Errorf("answer %s file ids: %w", a.ID, err)
		}
		if len(a.FileIDs) == 0 {
			a.FileIDs = nil
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func insertAnswers(ctx context.Context, tx dbx.DBTX, submissionID string, answers []models.Answer) error {
	for _, a := range answers {
		value, fileIDs, err := encodeAnswer(a)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO answers (id, submission_id, question_id, value, file_ids) VALUES (?, ?, ?, ?, ?)`,
			a.ID, submissionID, a.QuestionID, value, fileIDs)
		if err != nil {
			return fmt.Errorf("failed to insert answer for %s: %w", a.QuestionID, err)
		}
	}
	return nil
}

func encodeAnswer(a models.Answer) (string, string, error) {
	if a.ID == "" || a.QuestionID == "" {
		return "", "", fmt.Errorf("%w: answer needs id and question id", common.ErrValidation)
	}
	v, err := json.Marshal(a.Value)
	if err != nil {
		return "", "", fmt.Errorf("encode answer value: %w", err)
	}
	ids := a.FileIDs
	if ids == nil {
		ids = []string{}
	}
	f, err := json.Marshal(ids)
	if err != nil {
		return "", "", fmt.Errorf("encode file ids: %w", err)
	}
	return string(v), string(f), nil
}

func encodeMetadata(md map[string]any) (string, error) {
	if md == nil {
		return "{}", nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(sc scanner) (*models.Submission, error) {
	var s models.Submission
	var md, startedAt, status, createdAt, updatedAt string
	var completedAt, syncedAt sql.NullString

	err := sc.Scan(&s.ID, &s.FormID, &s.UserID, &md, &startedAt, &completedAt,
		&status, &syncedAt, &s.SyncError, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	s.SyncStatus = models.SyncStatus(status)
	if err := json.Unmarshal([]byte(md), &s.Metadata); err != nil {
		return nil, fmt.Errorf("submission %s metadata: %w", s.ID, err)
	}
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	if s.StartedAt, err = common.ParseTime(startedAt); err != nil {
		return nil, fmt.Errorf("submission %s started_at: %w", s.ID, err)
	}
	if s.CreatedAt, err = common.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("submission %s created_at: %w", s.ID, err)
	}
	if s.UpdatedAt, err = common.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("submission %s updated_at: %w", s.ID, err)
	}
	if s.CompletedAt, err = common.ParseTimePtr(nullString(completedAt)); err != nil {
		return nil, fmt.Errorf("submission %s completed_at: %w", s.ID, err)
	}
	if s.SyncedAt, err = common.ParseTimePtr(nullString(syncedAt)); err != nil {
		return nil, fmt.Errorf("submission %s synced_at: %w", s.ID, err)
	}
	return &s, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

var nowUTC = func() time.Time { return time.Now().UTC() }
