package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/files"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/syncqueue"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubmissionService(t *testing.T) (*submissionService, context.Context) {
	t.Helper()
	db := setupDB(t)
	seedUser(t, db, "user-1")
	seedForm(t, db)
	svc := NewSubmissionService(db, nil).(*submissionService)
	svc.now = fixedClock()
	return svc, context.Background()
}

func TestSubmission_StartRequiresCachedForm(t *testing.T) {
	svc, ctx := newSubmissionService(t)

	_, err := svc.Start(ctx, "nope", nil)
	require.ErrorIs(t, err, ErrFormNotCached)

	sub, err := svc.Start(ctx, "form-1", map[string]any{"site": "TW-1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub.UserID)
	assert.True(t, sub.IsDraft())

	got, err := svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "TW-1", got.Metadata["site"])
}

func TestSubmission_StartWithoutUser(t *testing.T) {
	db := setupDB(t)
	seedForm(t, db)
	_, err := NewSubmissionService(db, nil).Start(context.Background(), "form-1", nil)
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestSubmission_AddAnswerValidatesAndUpserts(t *testing.T) {
	svc, ctx := newSubmissionService(t)
	sub, err := svc.Start(ctx, "form-1", nil)
	require.NoError(t, err)

	_, err = svc.AddAnswer(ctx, sub.ID, "q-ghost", models.TextValue("x"))
	require.ErrorIs(t, err, models.ErrUnknownQuestion)

	_, err = svc.AddAnswer(ctx, sub.ID, "q-height", models.TextValue("tall"))
	require.ErrorIs(t, err, models.ErrInvalidAnswer)

	_, err = svc.AddAnswer(ctx, sub.ID, "q-state", models.ChoiceValue("melted"))
	require.ErrorIs(t, err, models.ErrInvalidAnswer)

	first, err := svc.AddAnswer(ctx, sub.ID, "q-height", models.NumericValue(30))
	require.NoError(t, err)
	a1, _ := first.Answer("q-height")

	_, err = svc.AddAnswer(ctx, sub.ID, "q-height", models.NumericValue(31.5))
	require.NoError(t, err)

	got, err := svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, 1)
	a2, ok := got.Answer("q-height")
	require.True(t, ok)
	assert.Equal(t, a1.ID, a2.ID)
	n, _ := a2.Value.Number()
	assert.Equal(t, 31.5, n)
}

func TestSubmission_CompleteEnqueuesOnce(t *testing.T) {
	svc, ctx := newSubmissionService(t)
	sub, err := svc.Start(ctx, "form-1", nil)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, sub.ID)
	require.ErrorIs(t, err, ErrSubmissionIncomplete)
	assert.Contains(t, err.Error(), "q-height")

	_, err = svc.AddAnswer(ctx, sub.ID, "q-height", models.NumericValue(40))
	require.NoError(t, err)

	done, err := svc.Complete(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, models.SyncStatusPending, done.SyncStatus)

	again, err := svc.Complete(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, done.CompletedAt.Equal(*again.CompletedAt))

	queue := syncqueue.NewSQLiteRepository(svc.db)
	counts, err := queue.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.QueueStatusPending])

	item, err := queue.FindByEntity(ctx, models.EntitySubmission, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationCreate, item.Operation)
	var p queuePayload
	require.NoError(t, json.Unmarshal(item.Payload, &p))
	assert.Equal(t, sub.ID, p.SubmissionID)

	_, err = svc.AddAnswer(ctx, sub.ID, "q-note", models.TextValue("late"))
	require.ErrorIs(t, err, ErrSubmissionCompleted)
	_, err = svc.UpdateMetadata(ctx, sub.ID, map[string]any{"x": 1.0})
	require.ErrorIs(t, err, ErrSubmissionCompleted)

	unsynced, err := submissions.NewSQLiteRepository(svc.db).FindUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
}

func TestSubmission_Retry(t *testing.T) {
	svc, ctx := newSubmissionService(t)
	sub, err := svc.Start(ctx, "form-1", nil)
	require.NoError(t, err)
	_, err = svc.AddAnswer(ctx, sub.ID, "q-height", models.NumericValue(40))
	require.NoError(t, err)
	done, err := svc.Complete(ctx, sub.ID)
	require.NoError(t, err)

	_, err = svc.Retry(ctx, sub.ID)
	require.ErrorIs(t, err, common.ErrInvalidState)

	// simulate three failed runs, exhausting the queue item
	subRepo := submissions.NewSQLiteRepository(svc.db)
	queue := syncqueue.NewSQLiteRepository(svc.db)
	failed := done.MarkAsFailed("timeout", svc.now())
	require.NoError(t, subRepo.UpdateSyncState(ctx, &failed))
	item, err := queue.FindByEntity(ctx, models.EntitySubmission, sub.ID)
	require.NoError(t, err)
	for i := 0; i < models.DefaultMaxAttempts; i++ {
		next := item.MarkFailed("timeout", svc.now())
		item = &next
	}
	require.NoError(t, queue.Update(ctx, item))
	require.False(t, item.CanRetry())

	retried, err := svc.Retry(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusPending, retried.SyncStatus)

	latest, err := queue.FindByEntity(ctx, models.EntitySubmission, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, latest.Status)
	assert.Zero(t, latest.Attempts)
}

func TestSubmission_DeleteRemovesBytesAndQueue(t *testing.T) {
	svc, ctx := newSubmissionService(t)
	sub, err := svc.Start(ctx, "form-1", nil)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "mast.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg"), 0o600))
	fs := NewFileService(svc.db, t.TempDir(), nil)
	att, err := fs.Add(ctx, sub.ID, "step-1", nil, src)
	require.NoError(t, err)

	_, err = svc.AddAnswer(ctx, sub.ID, "q-height", models.NumericValue(40))
	require.NoError(t, err)
	_, err = svc.Complete(ctx, sub.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sub.ID))

	_, err = svc.Get(ctx, sub.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = files.NewSQLiteRepository(svc.db).FindByID(ctx, att.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = os.Stat(att.LocalPath)
	assert.True(t, os.IsNotExist(err))
	_, err = syncqueue.NewSQLiteRepository(svc.db).FindByEntity(ctx, models.EntitySubmission, sub.ID)
	require.ErrorIs(t, err, common.ErrNotFound)

	require.ErrorIs(t, svc.Delete(ctx, sub.ID), common.ErrNotFound)
}

func TestSubmission_Counts(t *testing.T) {
	svc, ctx := newSubmissionService(t)
	_, err := svc.Start(ctx, "form-1", nil)
	require.NoError(t, err)
	s2, err := svc.Start(ctx, "form-1", nil)
	require.NoError(t, err)
	_, err = svc.AddAnswer(ctx, s2.ID, "q-height", models.NumericValue(1))
	require.NoError(t, err)
	_, err = svc.Complete(ctx, s2.ID)
	require.NoError(t, err)

	c, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Drafts)
	assert.Equal(t, 2, c.ByStatus[models.SyncStatusPending])
	assert.Equal(t, 1, c.Queue[models.QueueStatusPending])

	list, err := svc.ListByStatus(ctx, models.SyncStatusPending)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	_, err = svc.ListByStatus(ctx, "weird")
	require.ErrorIs(t, err, common.ErrValidation)
}
