package syncqueue

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

const itemColumns = `id, operation, entity_type, entity_id, payload, attempts, max_attempts,
	status, error, created_at, updated_at, processed_at`

func (r *SQLiteRepository) Create(ctx context.Context, q *models.SyncQueueItem) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sync_queue (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, string(q.Operation), string(q.EntityType), q.EntityID, payloadArg(q.Payload),
		q.Attempts, q.MaxAttempts, string(q.Status), q.Error,
		common.FormatTime(q.CreatedAt), common.FormatTime(q.UpdatedAt), common.FormatTimePtr(q.ProcessedAt))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s: %w", q.EntityType, q.EntityID, err)
	}
	return nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.SyncQueueItem, error) {
	return scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM sync_queue WHERE id = ?`, id))
}

func (r *SQLiteRepository) FindByEntity(ctx context.Context, et models.EntityType, entityID string) (*models.SyncQueueItem, error) {
	return scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM sync_queue
		WHERE entity_type = ? AND entity_id = ? ORDER BY created_at DESC, id LIMIT 1`, string(et), entityID))
}

func (r *SQLiteRepository) FindByStatus(ctx context.Context, status models.QueueStatus) ([]*models.SyncQueueItem, error) {
	return r.findMany(ctx, `WHERE status = ? ORDER BY created_at, id`, string(status))
}

func (r *SQLiteRepository) FindRetryable(ctx context.Context) ([]*models.SyncQueueItem, error) {
	return r.findMany(ctx, `WHERE status = ? AND attempts < max_attempts ORDER BY created_at, id`,
		string(models.QueueStatusFailed))
}

func (r *SQLiteRepository) findMany(ctx context.Context, where string, args ...any) ([]*models.SyncQueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM sync_queue `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting queue items: %w", err)
	}
	defer rows.Close()

	var result []*models.SyncQueueItem
	for rows.Next() {
		q, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, q *models.SyncQueueItem) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sync_queue SET
			payload = ?, attempts = ?, max_attempts = ?, status = ?, error = ?, updated_at = ?, processed_at = ?
		WHERE id = ?`,
		payloadArg(q.Payload), q.Attempts, q.MaxAttempts, string(q.Status), q.Error,
		common.FormatTime(q.UpdatedAt), common.FormatTimePtr(q.ProcessedAt), q.ID)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	return dbx.ExpectOne(res, common.ErrNotFound)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return dbx.ExpectOne(res, common.ErrNotFound)
}

func (r *SQLiteRepository) DeleteByEntity(ctx context.Context, et models.EntityType, entityID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE entity_type = ? AND entity_id = ?`, string(et), entityID)
	if err != nil {
		return fmt.Errorf("failed to delete queue items of %s: %w", entityID, err)
	}
	return nil
}

func (r *SQLiteRepository) PurgeCompleted(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE status = ?`, string(models.QueueStatusCompleted))
	if err != nil {
		return 0, fmt.Errorf("failed to purge queue: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[models.QueueStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}
	defer rows.Close()

	out := make(map[models.QueueStatus]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[models.QueueStatus(st)] = n
	}
	return out, rows.Err()
}

func payloadArg(p []byte) any {
	if p == nil {
		return nil
	}
	return string(p)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (*models.SyncQueueItem, error) {
	var q models.SyncQueueItem
	var op, et, status, createdAt, updatedAt string
	var payload, processedAt sql.NullString

	err := sc.Scan(&q.ID, &op, &et, &q.EntityID, &payload, &q.Attempts, &q.MaxAttempts,
		&status, &q.Error, &createdAt, &updatedAt, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue item: %w", err)
	}

	q.Operation = models.Operation(op)
	q.EntityType = models.EntityType(et)
	q.Status = models.QueueStatus(status)
	if payload.Valid {
		q.Payload = []byte(payload.String)
	}
	if q.CreatedAt, err = common.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("queue item %s created_at: %w", q.ID, err)
	}
	if q.UpdatedAt, err = common.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("queue item %s updated_at: %w", q.ID, err)
	}
	if processedAt.Valid {
		t, err := common.ParseTime(processedAt.String)
		if err != nil {
			return nil, fmt.Errorf("queue item %s processed_at: %w", q.ID, err)
		}
		q.ProcessedAt = &t
	}
	return &q, nil
}
