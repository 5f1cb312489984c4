package files

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
)

// PostgresRepository implements attachment metadata storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert stores file by id. A row with the same id that belongs to another
// submission is left untouched and common.ErrAlreadyExists is returned.
func (r *PostgresRepository) Upsert(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (id, submission_id, step_id, question_id, file_name, mime_type, file_size, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET
			step_id = EXCLUDED.step_id,
			question_id = EXCLUDED.question_id,
			file_name = EXCLUDED.file_name,
			mime_type = EXCLUDED.mime_type,
			file_size = EXCLUDED.file_size,
			storage_key = EXCLUDED.storage_key
			WHERE files.submission_id = EXCLUDED.submission_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		file.ID, file.SubmissionID, file.StepID, file.QuestionID,
		file.FileName, file.MimeType, file.FileSize, file.StorageKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res, common.ErrAlreadyExists)
}

func (r *PostgresRepository) ListBySubmission(ctx context.Context, submissionID string) ([]*models.File, error) {
	query := `
		SELECT id, submission_id, step_id, question_id, file_name, mime_type, file_size, storage_key, created_at
		  FROM files
		 WHERE submission_id = $1
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		var item models.File
		if err := rows.Scan(&item.ID, &item.SubmissionID, &item.StepID, &item.QuestionID,
			&item.FileName, &item.MimeType, &item.FileSize, &item.StorageKey, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
