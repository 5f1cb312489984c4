package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const fileColumns = `id, submission_id, step_id, question_id, local_path, remote_path,
	file_name, file_size, mime_type, sync_status, created_at`

func (r *SQLiteRepository) Create(ctx context.Context, f *models.FileAttachment) error {
	query := `INSERT INTO files (` + fileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.SubmissionID, f.StepID, f.QuestionID, f.LocalPath, f.RemotePath,
		f.FileName, f.FileSize, f.MimeType, string(f.SyncStatus), common.FormatTime(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.FileAttachment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	return scanFile(row)
}

func (r *SQLiteRepository) FindBySubmission(ctx context.Context, submissionID string) ([]*models.FileAttachment, error) {
	return r.findMany(ctx, `WHERE submission_id = ? ORDER BY created_at, id`, submissionID)
}

func (r *SQLiteRepository) FindByQuestion(ctx context.Context, submissionID, questionID string) ([]*models.FileAttachment, error) {
	return r.findMany(ctx, `WHERE submission_id = ? AND question_id = ? ORDER BY created_at, id`, submissionID, questionID)
}

func (r *SQLiteRepository) FindByStatus(ctx context.Context, status models.SyncStatus) ([]*models.FileAttachment, error) {
	return r.findMany(ctx, `WHERE sync_status = ? ORDER BY created_at, id`, string(status))
}

func (r *SQLiteRepository) FindUnsynced(ctx context.Context) ([]*models.FileAttachment, error) {
	return r.findMany(ctx, `WHERE sync_status IN (?, ?) ORDER BY created_at, id`,
		string(models.SyncStatusPending), string(models.SyncStatusFailed))
}

func (r *SQLiteRepository) FindAll(ctx context.Context) ([]*models.FileAttachment, error) {
	return r.findMany(ctx, `ORDER BY created_at, id`)
}

func (r *SQLiteRepository) findMany(ctx context.Context, where string, args ...any) ([]*models.FileAttachment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileAttachment
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, f *models.FileAttachment) error {
	query := `UPDATE files SET local_path = ?, remote_path = ?, file_name = ?, file_size = ?,
		mime_type = ?, sync_status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		f.LocalPath, f.RemotePath, f.FileName, f.FileSize, f.MimeType, string(f.SyncStatus), f.ID)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}
	return dbx.ExpectOne(res, common.ErrNotFound)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return dbx.ExpectOne(res, common.ErrNotFound)
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM files GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(sc scanner) (*models.FileAttachment, error) {
	var f models.FileAttachment
	var questionID, remotePath sql.NullString
	var status, createdAt string

	err := sc.Scan(&f.ID, &f.SubmissionID, &f.StepID, &questionID, &f.LocalPath, &remotePath,
		&f.FileName, &f.FileSize, &f.MimeType, &status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}

	if questionID.Valid {
		f.QuestionID = &questionID.String
	}
	if remotePath.Valid {
		f.RemotePath = &remotePath.String
	}
	f.SyncStatus = models.SyncStatus(status)
	if f.CreatedAt, err = common.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("file %s created_at: %w", f.ID, err)
	}
	return &f, nil
}
