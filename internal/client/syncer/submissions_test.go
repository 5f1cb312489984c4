package syncer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/inspectsync/internal/client/api"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchIDs(req wire.SyncRequest) []string {
	ids := make([]string, 0, len(req.Submissions))
	for _, s := range req.Submissions {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestSync_NoCandidatesSkipsNetwork(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := models.NewSubmission("form-1", "user-1", base)
	require.NoError(t, e.submissions.Create(ctx, &d))

	res, err := e.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.SyncedCount)
	assert.Zero(t, res.FailedCount)
	assert.Empty(t, e.remote.calls())
}

func TestSync_GuardRefusesSecondRun(t *testing.T) {
	e := newEnv(t)
	require.True(t, e.syncer.guard.TryAcquire())

	_, err := e.syncer.Sync(context.Background())
	require.ErrorIs(t, err, ErrSyncInProgress)
	_, err = e.syncer.FetchRemote(context.Background())
	require.ErrorIs(t, err, ErrSyncInProgress)

	e.syncer.guard.Release()
	_, err = e.syncer.Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, e.syncer.IsSyncing())
}

func TestSync_BatchIsolation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.completed(t, "s-old", 0, models.Answer{QuestionID: "q1", Value: models.ChoiceValue("a", "b")})
	e.completed(t, "s-bad", 1)
	e.completed(t, "s-new", 2, models.Answer{QuestionID: "q1", Value: models.NumericValue(12.5)})

	photo := []byte("jpeg bytes")
	good := e.attach(t, "s-new", "mast.jpg", photo)
	bad := e.attach(t, "s-bad", "gone.jpg", nil)

	e.remote.syncFn = func(req wire.SyncRequest) (*wire.SyncResponse, error) {
		return &wire.SyncResponse{
			SyncedSubmissions: batchIDs(req),
			SyncedFiles:       []wire.SyncedFile{{ID: good.ID, RemotePath: "submissions/s-new/" + good.ID + "/mast.jpg"}},
		}, nil
	}

	res, err := e.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SyncedCount)
	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "s-bad", res.Errors[0].SubmissionID)

	calls := e.remote.calls()
	require.Len(t, calls, 1)
	// newest created first
	assert.Equal(t, []string{"s-new", "s-old"}, batchIDs(calls[0]))

	sent := calls[0].Submissions[0]
	require.Len(t, sent.Files, 1)
	decoded, err := base64.StdEncoding.DecodeString(sent.Files[0].FileData)
	require.NoError(t, err)
	assert.Equal(t, photo, decoded)
	require.Len(t, sent.Answers, 1)
	assert.Equal(t, "12.5", *sent.Answers[0].AnswerText)
	assert.Equal(t, []string{"a", "b"}, calls[0].Submissions[1].Answers[0].AnswerValue)

	failed := e.load(t, "s-bad")
	assert.Equal(t, models.SyncStatusFailed, failed.SyncStatus)
	assert.Contains(t, failed.SyncError, "failed to read attachment")
	assert.Nil(t, failed.SyncedAt)

	for _, id := range []string{"s-new", "s-old"} {
		s := e.load(t, id)
		assert.Equal(t, models.SyncStatusSynced, s.SyncStatus, id)
		assert.NotNil(t, s.SyncedAt, id)
	}

	gf, err := e.files.FindByID(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, gf.SyncStatus)
	require.NotNil(t, gf.RemotePath)
	assert.Equal(t, "submissions/s-new/"+good.ID+"/mast.jpg", *gf.RemotePath)

	bf, err := e.files.FindByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, bf.SyncStatus)
	assert.Nil(t, bf.RemotePath)
}

func TestSync_CallFailureFailsWholeBatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.completed(t, "s1", 0)
	e.completed(t, "s2", 1)
	e.completed(t, "s-bad", 2)
	e.attach(t, "s-bad", "missing.jpg", nil)

	e.remote.syncFn = func(wire.SyncRequest) (*wire.SyncResponse, error) {
		return nil, fmt.Errorf("%w: 503", api.ErrUnavailable)
	}

	res, err := e.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.SyncedCount)
	assert.Equal(t, 3, res.FailedCount)

	calls := e.remote.calls()
	require.Len(t, calls, 1)
	assert.ElementsMatch(t, []string{"s1", "s2"}, batchIDs(calls[0]))

	for _, id := range []string{"s1", "s2"} {
		s := e.load(t, id)
		assert.Equal(t, models.SyncStatusFailed, s.SyncStatus)
		assert.Contains(t, s.SyncError, "server unavailable")
	}
	bad := e.load(t, "s-bad")
	assert.Equal(t, models.SyncStatusFailed, bad.SyncStatus)
	assert.Contains(t, bad.SyncError, "failed to read attachment")

	all, err := e.submissions.FindByStatus(ctx, models.SyncStatusSynced)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSync_ServerRejectsOne(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.completed(t, "ok", 0)
	e.completed(t, "nope", 1)
	e.remote.syncFn = func(req wire.SyncRequest) (*wire.SyncResponse, error) {
		return &wire.SyncResponse{
			SyncedSubmissions: []string{"ok"},
			Errors:            []wire.SyncError{{SubmissionID: "nope", Error: "form version mismatch"}},
			HasErrors:         true,
		}, nil
	}

	res, err := e.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SyncedCount)
	assert.Equal(t, []ItemError{{SubmissionID: "nope", Error: "form version mismatch"}}, res.Errors)

	assert.Equal(t, models.SyncStatusSynced, e.load(t, "ok").SyncStatus)
	n := e.load(t, "nope")
	assert.Equal(t, models.SyncStatusFailed, n.SyncStatus)
	assert.Equal(t, "form version mismatch", n.SyncError)

	// failed submissions are picked up again on the next run
	e.remote.syncFn = nil
	res, err = e.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SyncedCount)
	assert.Equal(t, models.SyncStatusSynced, e.load(t, "nope").SyncStatus)
}

func TestSync_FallbackRemotePath(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.completed(t, "s1", 0)
	f := e.attach(t, "s1", "a.png", []byte("png"))

	_, err := e.syncer.Sync(ctx)
	require.NoError(t, err)

	got, err := e.files.FindByID(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RemotePath)
	assert.Equal(t, RemoteFileKey("s1", f.ID), *got.RemotePath)
}

func TestSync_SettlesQueueItems(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.completed(t, "ok", 0)
	e.completed(t, "bad", 1)
	okItem := e.enqueue(t, "ok")
	badItem := e.enqueue(t, "bad")

	e.remote.syncFn = func(req wire.SyncRequest) (*wire.SyncResponse, error) {
		return &wire.SyncResponse{Errors: []wire.SyncError{{SubmissionID: "bad", Error: "rejected"}}, HasErrors: true}, nil
	}
	_, err := e.syncer.Sync(ctx)
	require.NoError(t, err)

	got, err := e.queue.FindByID(ctx, okItem.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)

	got, err = e.queue.FindByID(ctx, badItem.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "rejected", got.Error)
	assert.True(t, got.CanRetry())
}

func TestSync_CanceledCallerStillSettles(t *testing.T) {
	e := newEnv(t)
	e.completed(t, "s1", 0)

	ctx, cancel := context.WithCancel(context.Background())
	e.remote.syncFn = func(wire.SyncRequest) (*wire.SyncResponse, error) {
		cancel()
		return nil, context.Canceled
	}

	res, err := e.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, models.SyncStatusFailed, e.load(t, "s1").SyncStatus)
}

// failSyncedWrites refuses to record the synced state and passes everything
// else through.
type failSyncedWrites struct {
	submissions.Repository
}

func (f failSyncedWrites) UpdateSyncState(ctx context.Context, s *models.Submission) error {
	if s.SyncStatus == models.SyncStatusSynced {
		return errors.New("disk full")
	}
	return f.Repository.UpdateSyncState(ctx, s)
}

func TestSync_FailedResultWriteLeavesSubmissionRetryable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.completed(t, "s1", 0)
	f := e.attach(t, "s1", "a.png", []byte("png"))
	item := e.enqueue(t, "s1")

	e.syncer.submissions = failSyncedWrites{e.submissions}
	res, err := e.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.SyncedCount)
	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error, "disk full")

	got := e.load(t, "s1")
	assert.Equal(t, models.SyncStatusFailed, got.SyncStatus)
	assert.Contains(t, got.SyncError, "failed to record sync result")

	file, err := e.files.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, file.SyncStatus)

	q, err := e.queue.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, q.Status)

	unsynced, err := e.submissions.FindUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)

	e.syncer.submissions = e.submissions
	res, err = e.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SyncedCount)
	assert.Equal(t, models.SyncStatusSynced, e.load(t, "s1").SyncStatus)
}

func TestSync_AttachmentsAreSyncingDuringCall(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.completed(t, "s1", 0)
	f := e.attach(t, "s1", "a.png", []byte("png"))

	var during models.SyncStatus
	e.remote.syncFn = func(req wire.SyncRequest) (*wire.SyncResponse, error) {
		got, err := e.files.FindByID(ctx, f.ID)
		require.NoError(t, err)
		during = got.SyncStatus
		return &wire.SyncResponse{SyncedSubmissions: batchIDs(req)}, nil
	}

	_, err := e.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSyncing, during)

	got, err := e.files.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
}

// leaveSyncing puts s1 and one attachment in the state a killed run leaves
// behind.
func (e *env) leaveSyncing(t *testing.T) (models.FileAttachment, models.SyncQueueItem) {
	t.Helper()
	ctx := context.Background()

	e.completed(t, "s1", 0)
	sub := e.load(t, "s1").MarkAsSyncing(base)
	require.NoError(t, e.submissions.UpdateSyncState(ctx, &sub))

	f := e.attach(t, "s1", "a.png", []byte("png"))
	f = f.MarkAsSyncing()
	require.NoError(t, e.files.Update(ctx, &f))

	item := e.enqueue(t, "s1")
	item = item.MarkProcessing(base)
	require.NoError(t, e.queue.Update(ctx, &item))
	return f, item
}

func TestRecoverInterrupted_ResetsStuckWork(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f, item := e.leaveSyncing(t)

	unsynced, err := e.submissions.FindUnsynced(ctx)
	require.NoError(t, err)
	require.Empty(t, unsynced)

	n, err := e.syncer.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := e.load(t, "s1")
	assert.Equal(t, models.SyncStatusFailed, got.SyncStatus)
	assert.Equal(t, interruptedReason, got.SyncError)

	file, err := e.files.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, file.SyncStatus)

	q, err := e.queue.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, q.Status)

	res, err := e.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SyncedCount)
	assert.Equal(t, models.SyncStatusSynced, e.load(t, "s1").SyncStatus)

	n, err = e.syncer.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecoverInterrupted_RespectsGuard(t *testing.T) {
	e := newEnv(t)
	require.True(t, e.syncer.guard.TryAcquire())
	defer e.syncer.guard.Release()

	_, err := e.syncer.RecoverInterrupted(context.Background())
	require.ErrorIs(t, err, ErrSyncInProgress)
}

func strp(s string) *string { return &s }

func TestFetchRemote_InsertsAsSyncedAndRoundTrips(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.remote.fetchFn = func() ([]wire.RemoteSubmission, error) {
		return []wire.RemoteSubmission{{
			ID: "remote-1", FormID: "form-1", UserID: "other",
			StartedAt:   "2025-06-30T10:00:00Z",
			CompletedAt: strp("2025-06-30T10:20:00Z"),
			CreatedAt:   "2025-06-30T10:00:00Z",
			UpdatedAt:   "2025-06-30T10:21:00Z",
			Metadata:    map[string]any{"site": "TW-7"},
			Answers: []wire.Answer{
				{ID: "a1", QuestionID: "q-multi", AnswerValue: []string{"rust", "crack"}},
				{ID: "a2", QuestionID: "q-note", AnswerText: strp("all good")},
			},
		}}, nil
	}

	res, err := e.syncer.FetchRemote(ctx)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Created: 1}, res)

	got := e.load(t, "remote-1")
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	require.NotNil(t, got.SyncedAt)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, "TW-7", got.Metadata["site"])

	multi, ok := got.Answer("q-multi")
	require.True(t, ok)
	choices, ok := multi.Value.Choices()
	require.True(t, ok)
	assert.Equal(t, []string{"rust", "crack"}, choices)

	note, ok := got.Answer("q-note")
	require.True(t, ok)
	text, ok := note.Value.Text()
	require.True(t, ok)
	assert.Equal(t, "all good", text)

	// and back out again in the same shapes
	out := api.AnswerToWire(multi)
	assert.Equal(t, []string{"rust", "crack"}, out.AnswerValue)
	assert.Nil(t, out.AnswerText)
	out = api.AnswerToWire(note)
	assert.Equal(t, "all good", *out.AnswerText)
	assert.Nil(t, out.AnswerValue)
}

func TestFetchRemote_NeverOverwritesLocal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	remote := []wire.RemoteSubmission{
		{ID: "shared", FormID: "form-1", UserID: "u", StartedAt: "2025-06-30T10:00:00Z",
			Answers: []wire.Answer{{ID: "a", QuestionID: "q", AnswerText: strp("first")}}},
		{ID: "local-draft", FormID: "form-1", UserID: "u", StartedAt: "2025-06-30T10:00:00Z"},
	}
	e.remote.fetchFn = func() ([]wire.RemoteSubmission, error) { return remote, nil }

	d := models.NewSubmission("form-1", "user-1", base)
	d.ID = "local-draft"
	d = d.AddAnswer(models.Answer{QuestionID: "q", Value: models.TextValue("mine")}, base)
	require.NoError(t, e.submissions.Create(ctx, &d))

	res, err := e.syncer.FetchRemote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)

	before := e.load(t, "shared")

	remote[0].Answers[0].AnswerText = strp("second")
	remote[0].UpdatedAt = "2025-07-02T00:00:00Z"
	res, err = e.syncer.FetchRemote(ctx)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Skipped: 1, Updated: 1}, res)

	after := e.load(t, "shared")
	assert.Equal(t, before, after)

	draft := e.load(t, "local-draft")
	a, ok := draft.Answer("q")
	require.True(t, ok)
	txt, _ := a.Value.Text()
	assert.Equal(t, "mine", txt)
	assert.Equal(t, models.SyncStatusPending, draft.SyncStatus)
}

func TestFetchRemote_PerItemErrors(t *testing.T) {
	e := newEnv(t)
	e.remote.fetchFn = func() ([]wire.RemoteSubmission, error) {
		return []wire.RemoteSubmission{
			{ID: "broken", FormID: "form-1", StartedAt: "not a time"},
			{ID: "", FormID: "form-1"},
			{ID: "fine", FormID: "form-1", StartedAt: "2025-06-30T10:00:00Z"},
		}, nil
	}

	res, err := e.syncer.FetchRemote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "broken", res.Errors[0].SubmissionID)
}

func TestFetchRemote_MalformedRecordDoesNotStopOthers(t *testing.T) {
	e := newEnv(t)
	e.remote.fetchRaw = func() ([]json.RawMessage, error) {
		return []json.RawMessage{
			json.RawMessage(`{"id":"bad-shape","formId":"form-1","startedAt":"2025-06-30T10:00:00Z",` +
				`"answers":[{"id":"a","questionId":"q","answerValue":[1,2]}]}`),
			json.RawMessage(`{"id":"good","formId":"form-1","startedAt":"2025-06-30T10:00:00Z","answers":[]}`),
			json.RawMessage(`"not an object"`),
		}, nil
	}

	res, err := e.syncer.FetchRemote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "bad-shape", res.Errors[0].SubmissionID)
	assert.Contains(t, res.Errors[0].Error, "malformed remote submission")
	assert.Empty(t, res.Errors[1].SubmissionID)

	assert.Equal(t, models.SyncStatusSynced, e.load(t, "good").SyncStatus)
	_, err = e.submissions.FindByID(context.Background(), "bad-shape")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFetchRemote_NumberQuestionsBecomeNumeric(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	form := &models.Form{ID: "form-1", Name: "Tower", Version: 1, Steps: []models.Step{{
		ID: "step-1", StepNumber: 1, Title: "Mast",
		Questions: []models.Question{{ID: "q-height", QuestionText: "Height", Type: models.QuestionNumber}},
	}}}
	require.NoError(t, e.forms.Replace(ctx, form))

	e.remote.fetchFn = func() ([]wire.RemoteSubmission, error) {
		return []wire.RemoteSubmission{{ID: "r", FormID: "form-1", StartedAt: "2025-06-30T10:00:00Z",
			Answers: []wire.Answer{{ID: "a", QuestionID: "q-height", AnswerText: strp("42.5")}}}}, nil
	}
	_, err := e.syncer.FetchRemote(ctx)
	require.NoError(t, err)

	a, ok := e.load(t, "r").Answer("q-height")
	require.True(t, ok)
	n, ok := a.Value.Number()
	require.True(t, ok)
	assert.Equal(t, 42.5, n)
}

func TestFetchRemote_CallFailure(t *testing.T) {
	e := newEnv(t)
	e.remote.fetchFn = func() ([]wire.RemoteSubmission, error) { return nil, api.ErrUnavailable }
	_, err := e.syncer.FetchRemote(context.Background())
	require.ErrorIs(t, err, api.ErrUnavailable)

	_, err = e.submissions.FindByID(context.Background(), "anything")
	require.ErrorIs(t, err, common.ErrNotFound)
}
