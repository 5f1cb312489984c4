// Package submissions stores completed inspections received from clients.
package submissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectSubmissions = `
	SELECT id, form_id, user_id, metadata, answers, started_at, completed_at, created_at, updated_at
	  FROM submissions`

// Upsert inserts or overwrites s. Resending an id owned by another user
// changes nothing and yields common.ErrAlreadyExists.
func (r *PostgresRepository) Upsert(ctx context.Context, s *models.Submission) error {
	query := `
		INSERT INTO submissions (id, form_id, user_id, metadata, answers, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			form_id = EXCLUDED.form_id,
			metadata = EXCLUDED.metadata,
			answers = EXCLUDED.answers,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = now()
			WHERE submissions.user_id = EXCLUDED.user_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		s.ID, s.FormID, s.UserID, jsonOr(s.Metadata, "{}"), jsonOr(s.Answers, "[]"), s.StartedAt, s.CompletedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res, common.ErrAlreadyExists)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, selectSubmissions+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, selectSubmissions+` WHERE user_id = $1 ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(sc scanner) (*models.Submission, error) {
	var (
		s             models.Submission
		meta, answers []byte
	)
	err := sc.Scan(&s.ID, &s.FormID, &s.UserID, &meta, &answers,
		&s.StartedAt, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Metadata = json.RawMessage(meta)
	s.Answers = json.RawMessage(answers)
	return &s, nil
}

func jsonOr(v json.RawMessage, def string) []byte {
	if len(v) == 0 {
		return []byte(def)
	}
	return []byte(v)
}
