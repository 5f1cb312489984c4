package syncqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateFindUpdate(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	q := models.NewSyncQueueItem(models.OperationCreate, models.EntitySubmission, "s1", json.RawMessage(`{"formId":"f"}`), base)
	require.NoError(t, r.Create(ctx, &q))

	got, err := r.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.EntityID, got.EntityID)
	assert.JSONEq(t, `{"formId":"f"}`, string(got.Payload))
	assert.Equal(t, models.QueueStatusPending, got.Status)
	assert.Nil(t, got.ProcessedAt)

	failed := got.MarkProcessing(base).MarkFailed("timeout", base.Add(time.Minute))
	require.NoError(t, r.Update(ctx, &failed))

	got, err = r.FindByEntity(ctx, models.EntitySubmission, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "timeout", got.Error)
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, base.Add(time.Minute), *got.ProcessedAt)

	_, err = r.FindByEntity(ctx, models.EntityFile, "s1")
	require.ErrorIs(t, err, common.ErrNotFound)

	ghost := models.NewSyncQueueItem(models.OperationCreate, models.EntityFile, "x", nil, base)
	require.ErrorIs(t, r.Update(ctx, &ghost), common.ErrNotFound)
}

func TestFindRetryableAndCounts(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	retryable := models.NewSyncQueueItem(models.OperationCreate, models.EntitySubmission, "a", nil, base).MarkFailed("x", base)
	exhausted := models.NewSyncQueueItem(models.OperationCreate, models.EntitySubmission, "b", nil, base.Add(time.Second))
	exhausted.MaxAttempts = 1
	exhausted = exhausted.MarkFailed("x", base)
	done := models.NewSyncQueueItem(models.OperationCreate, models.EntitySubmission, "c", nil, base.Add(2*time.Second)).MarkCompleted(base)
	for _, q := range []models.SyncQueueItem{retryable, exhausted, done} {
		require.NoError(t, r.Create(ctx, &q))
	}

	got, err := r.FindRetryable(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].EntityID)

	failed, err := r.FindByStatus(ctx, models.QueueStatusFailed)
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	counts, err := r.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.QueueStatus]int{models.QueueStatusFailed: 2, models.QueueStatusCompleted: 1}, counts)

	n, err := r.PurgeCompleted(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, r.DeleteByEntity(ctx, models.EntitySubmission, "a"))
	require.NoError(t, r.Delete(ctx, exhausted.ID))
	require.ErrorIs(t, r.Delete(ctx, exhausted.ID), common.ErrNotFound)

	counts, err = r.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
