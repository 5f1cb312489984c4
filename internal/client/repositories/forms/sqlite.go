package forms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

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

func (r *SQLiteRepository) Replace(ctx context.Context, f *models.Form) error {
	return dbx.RunInTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		return replace(ctx, tx, f)
	})
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, forms []*models.Form) error {
	return dbx.RunInTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		keep := make([]any, 0, len(forms))
		for _, f := range forms {
			if err := replace(ctx, tx, f); err != nil {
				return err
			}
			keep = append(keep, f.ID)
		}

		query := `DELETE FROM forms`
		if len(keep) > 0 {
			query += ` WHERE id NOT IN (` + placeholders(len(keep)) + `)`
		}
		if _, err := tx.ExecContext(ctx, query, keep...); err != nil {
			return fmt.Errorf("failed to prune forms: %w", err)
		}
		return nil
	})
}

func replace(ctx context.Context, tx dbx.DBTX, f *models.Form) error {
	if err := f.Validate(); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO forms (id, name, description, version, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description,
			version = excluded.version, updated_at = excluded.updated_at`,
		f.ID, f.Name, f.Description, f.Version, common.FormatTime(f.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert form %s: %w", f.ID, err)
	}

	// Questions go with their steps through the cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM form_steps WHERE form_id = ?`, f.ID); err != nil {
		return fmt.Errorf("failed to clear steps of %s: %w", f.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM form_assignments WHERE form_id = ?`, f.ID); err != nil {
		return fmt.Errorf("failed to clear assignments of %s: %w", f.ID, err)
	}

	for _, s := range f.Steps {
		_, err := tx.ExecContext(ctx, `INSERT INTO form_steps (id, form_id, step_number, title) VALUES (?, ?, ?, ?)`,
			s.ID, f.ID, s.StepNumber, s.Title)
		if err != nil {
			return fmt.Errorf("failed to insert step %d of %s: %w", s.StepNumber, f.ID, err)
		}
		for _, q := range s.Questions {
			options, err := encodeOptional(q.Options)
			if err != nil {
				return fmt.Errorf("question %s options: %w", q.ID, err)
			}
			md, err := encodeOptional(q.Metadata)
			if err != nil {
				return fmt.Errorf("question %s metadata: %w", q.ID, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO questions (id, step_id, question_text, type, options, is_required, order_number, metadata)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				q.ID, s.ID, q.QuestionText, string(q.Type), options, q.IsRequired, q.OrderNumber, md)
			if err != nil {
				return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
			}
		}
	}

	for _, uid := range f.AssignedUserIDs {
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO form_assignments (form_id, user_id) VALUES (?, ?)`, f.ID, uid)
		if err != nil {
			return fmt.Errorf("failed to assign %s to %s: %w", f.ID, uid, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.Form, error) {
	var f models.Form
	var updatedAt string
	err := r.db.QueryRowContext(ctx, `SELECT id, name, description, version, updated_at FROM forms WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &f.Description, &f.Version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get form %s: %w", id, err)
	}
	if f.UpdatedAt, err = common.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("form %s updated_at: %w", id, err)
	}

	if f.Steps, err = r.loadSteps(ctx, id); err != nil {
		return nil, err
	}
	if f.AssignedUserIDs, err = r.loadAssignments(ctx, id); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *SQLiteRepository) loadSteps(ctx context.Context, formID string) ([]models.Step, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.step_number, s.title,
			q.id, q.question_text, q.type, q.options, q.is_required, q.order_number, q.metadata
		FROM form_steps s
		LEFT JOIN questions q ON q.step_id = s.id
		WHERE s.form_id = ?
		ORDER BY s.step_number, q.order_number`, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of %s: %w", formID, err)
	}
	defer rows.Close()

	var steps []models.Step
	for rows.Next() {
		var s models.Step
		var qID, qText, qType, qOptions, qMeta sql.NullString
		var qRequired sql.NullBool
		var qOrder sql.NullInt64
		if err := rows.Scan(&s.ID, &s.StepNumber, &s.Title,
			&qID, &qText, &qType, &qOptions, &qRequired, &qOrder, &qMeta); err != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", err)
		}

		if n := len(steps); n == 0 || steps[n-1].ID != s.ID {
			steps = append(steps, s)
		}
		if !qID.Valid {
			continue
		}

		q := models.Question{
			ID:           qID.String,
			QuestionText: qText.String,
			Type:         models.QuestionType(qType.String),
			IsRequired:   qRequired.Bool,
			OrderNumber:  int(qOrder.Int64),
		}
		if err := decodeOptional(qOptions, &q.Options); err != nil {
			return nil, fmt.Errorf("question %s options: %w", q.ID, err)
		}
		if err := decodeOptional(qMeta, &q.Metadata); err != nil {
			return nil, fmt.Errorf("question %s metadata: %w", q.ID, err)
		}
		last := &steps[len(steps)-1]
		last.Questions = append(last.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *SQLiteRepository) loadAssignments(ctx context.Context, formID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM form_assignments WHERE form_id = ? ORDER BY user_id`, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments of %s: %w", formID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindByUser(ctx context.Context, userID string) ([]*models.Form, error) {
	return r.findIDs(ctx, `
		SELECT f.id FROM forms f
		JOIN form_assignments fa ON fa.form_id = f.id
		WHERE fa.user_id = ?
		ORDER BY f.name, f.id`, userID)
}

func (r *SQLiteRepository) FindAll(ctx context.Context) ([]*models.Form, error) {
	return r.findIDs(ctx, `SELECT id FROM forms ORDER BY name, id`)
}

// findIDs collects ids first; the single connection cannot serve the nested
// loads while the outer rows are open.
func (r *SQLiteRepository) findIDs(ctx context.Context, query string, args ...any) ([]*models.Form, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting forms: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]*models.Form, 0, len(ids))
	for _, id := range ids {
		f, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM forms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	return dbx.ExpectOne(res, common.ErrNotFound)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count forms: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// encodeOptional stores nil slices and maps as SQL NULL.
func encodeOptional[T any](v T) (*string, error) {
	switch x := any(v).(type) {
	case []string:
		if x == nil {
			return nil, nil
		}
	case map[string]any:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func decodeOptional[T any](s sql.NullString, dst *T) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}
