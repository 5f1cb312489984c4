// Package forms stores published form definitions and their assignments.
package forms

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

const selectForms = `
	SELECT f.id, f.name, f.description, f.version, f.steps, f.updated_at,
	       COALESCE((SELECT json_agg(a.user_id ORDER BY a.user_id)
	                   FROM form_assignments a WHERE a.form_id = f.id), '[]')
	  FROM forms f`

// Upsert is not atomic on its own; run it inside a transaction.
func (r *PostgresRepository) Upsert(ctx context.Context, f *models.Form) error {
	steps := f.Steps
	if len(steps) == 0 {
		steps = json.RawMessage("[]")
	}

	query := `
		INSERT INTO forms (id, name, description, version, steps, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			version = EXCLUDED.version,
			steps = EXCLUDED.steps,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query,
		f.ID, f.Name, f.Description, f.Version, []byte(steps), f.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM form_assignments WHERE form_id = $1`, f.ID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, uid := range f.AssignedUserIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO form_assignments (form_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			f.ID, uid); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Form, error) {
	row := r.db.QueryRowContext(ctx, selectForms+` WHERE f.id = $1`, id)

	f, err := scanForm(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*models.Form, error) {
	query := selectForms + `
		WHERE EXISTS (SELECT 1 FROM form_assignments x WHERE x.form_id = f.id AND x.user_id = $1)
		ORDER BY f.name, f.id`
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Form, error) {
	return r.list(ctx, selectForms+` ORDER BY f.name, f.id`)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Form, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanForm(s scanner) (*models.Form, error) {
	var (
		f        models.Form
		steps    []byte
		assigned []byte
	)
	if err := s.Scan(&f.ID, &f.Name, &f.Description, &f.Version, &steps, &f.UpdatedAt, &assigned); err != nil {
		return nil, err
	}
	f.Steps = json.RawMessage(steps)
	if err := json.Unmarshal(assigned, &f.AssignedUserIDs); err != nil {
		return nil, fmt.Errorf("assignments: %w", err)
	}
	return &f, nil
}
