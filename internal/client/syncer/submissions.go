package syncer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/api"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/files"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/forms"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/syncqueue"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/filex"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

// SubmissionRemote is the part of the backend the submission syncer talks to.
type SubmissionRemote interface {
	Sync(ctx context.Context, req wire.SyncRequest) (*wire.SyncResponse, error)
	FetchSubmissions(ctx context.Context) ([]json.RawMessage, error)
}

// FileReader loads the bytes of a locally stored attachment.
type FileReader func(path string) ([]byte, error)

type SubmissionSyncer struct {
	submissions submissions.Repository
	files       files.Repository
	queue       syncqueue.Repository
	forms       forms.Repository
	remote      SubmissionRemote

	readFile FileReader
	now      func() time.Time
	guard    Guard
	log      logging.Logger
}

func NewSubmissionSyncer(
	submissionsRepo submissions.Repository,
	filesRepo files.Repository,
	queueRepo syncqueue.Repository,
	formsRepo forms.Repository,
	remote SubmissionRemote,
	log logging.Logger,
) *SubmissionSyncer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &SubmissionSyncer{
		submissions: submissionsRepo,
		files:       filesRepo,
		queue:       queueRepo,
		forms:       formsRepo,
		remote:      remote,
		readFile:    filex.ReadLocalFile,
		now:         time.Now,
		log:         log.With("module", "submission-syncer"),
	}
}

func (s *SubmissionSyncer) IsSyncing() bool { return s.guard.IsSyncing() }

// buildResult is the outcome of turning one submission into its upload shape.
// err is set instead of dto when any attachment could not be read.
type buildResult struct {
	submission models.Submission
	files      []*models.FileAttachment
	dto        wire.Submission
	err        error
}

// Sync pushes every completed, not yet synced submission in one batch and
// reconciles each one against the server reply. Per submission failures end
// up in the result, only a failure to load the candidates is returned as an
// error.
func (s *SubmissionSyncer) Sync(ctx context.Context) (SyncResult, error) {
	if !s.guard.TryAcquire() {
		return SyncResult{}, ErrSyncInProgress
	}
	defer s.guard.Release()

	candidates, err := s.submissions.FindUnsynced(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to load unsynced submissions: %w", err)
	}
	if len(candidates) == 0 {
		return SyncResult{FinishedAt: s.now().UTC()}, nil
	}

	s.log.Info(ctx, "submission sync started", "candidates", len(candidates))

	// Local bookkeeping must finish even if the caller goes away, otherwise
	// submissions would stay in syncing.
	local := context.WithoutCancel(ctx)

	var res SyncResult
	marked := make([]models.Submission, 0, len(candidates))
	for _, c := range candidates {
		sub := c.MarkAsSyncing(s.now())
		if err := s.submissions.UpdateSyncState(local, &sub); err != nil {
			s.log.Error(ctx, "failed to mark submission syncing", "submission", sub.ID, "error", err)
			res.addFailure(sub.ID, err.Error())
			continue
		}
		s.settleQueue(local, sub.ID, models.QueueStatusProcessing, "")
		marked = append(marked, sub)
	}

	var batch []buildResult
	for _, sub := range marked {
		br := s.build(local, sub)
		if br.err != nil {
			s.log.Warn(ctx, "submission excluded from batch", "submission", sub.ID, "error", br.err)
			s.fail(local, br, br.err.Error())
			res.addFailure(sub.ID, br.err.Error())
			continue
		}
		batch = append(batch, br)
	}

	if len(batch) > 0 {
		s.send(ctx, local, batch, &res)
	}

	res.FinishedAt = s.now().UTC()
	s.log.Info(ctx, "submission sync finished", "synced", res.SyncedCount, "failed", res.FailedCount)
	return res, nil
}

func (s *SubmissionSyncer) send(ctx, local context.Context, batch []buildResult, res *SyncResult) {
	req := wire.SyncRequest{Submissions: make([]wire.Submission, 0, len(batch))}
	for _, br := range batch {
		req.Submissions = append(req.Submissions, br.dto)
	}

	resp, err := s.remote.Sync(ctx, req)
	if err != nil {
		s.log.Warn(ctx, "sync call failed", "batch", len(batch), "error", err)
		for _, br := range batch {
			s.fail(local, br, err.Error())
			res.addFailure(br.submission.ID, err.Error())
		}
		return
	}

	rejected := make(map[string]string, len(resp.Errors))
	for _, e := range resp.Errors {
		rejected[e.SubmissionID] = e.Error
	}
	remotePaths := make(map[string]string, len(resp.SyncedFiles))
	for _, f := range resp.SyncedFiles {
		remotePaths[f.ID] = f.RemotePath
	}

	for _, br := range batch {
		if reason, ok := rejected[br.submission.ID]; ok {
			s.fail(local, br, reason)
			res.addFailure(br.submission.ID, reason)
			continue
		}
		if err := s.succeed(local, br, remotePaths); err != nil {
			s.log.Error(ctx, "failed to record synced submission", "submission", br.submission.ID, "error", err)
			reason := fmt.Sprintf("failed to record sync result: %v", err)
			s.fail(local, br, reason)
			res.addFailure(br.submission.ID, reason)
			continue
		}
		res.SyncedCount++
	}
}

func (s *SubmissionSyncer) build(ctx context.Context, sub models.Submission) buildResult {
	br := buildResult{submission: sub}

	attachments, err := s.files.FindBySubmission(ctx, sub.ID)
	if err != nil {
		br.err = fmt.Errorf("failed to list attachments: %w", err)
		return br
	}
	for i, f := range attachments {
		nf := f.MarkAsSyncing()
		if err := s.files.Update(ctx, &nf); err != nil {
			br.err = fmt.Errorf("failed to mark attachment %s syncing: %w", f.ID, err)
			br.files = attachments[:i]
			return br
		}
		attachments[i] = &nf
	}
	br.files = attachments

	encoded := make([]wire.File, 0, len(attachments))
	for _, f := range attachments {
		data, err := s.readFile(f.LocalPath)
		if err != nil {
			br.err = fmt.Errorf("failed to read attachment %s (%s): %w", f.ID, f.FileName, err)
			return br
		}
		encoded = append(encoded, wire.File{
			ID:         f.ID,
			StepID:     f.StepID,
			QuestionID: f.QuestionID,
			FileName:   f.FileName,
			FileData:   base64.StdEncoding.EncodeToString(data),
			MimeType:   f.MimeType,
			FileSize:   int64(len(data)),
		})
	}
	br.dto = api.SubmissionToWire(sub, encoded)
	return br
}

func (s *SubmissionSyncer) fail(ctx context.Context, br buildResult, reason string) {
	sub := br.submission.MarkAsFailed(reason, s.now())
	if err := s.submissions.UpdateSyncState(ctx, &sub); err != nil {
		s.log.Error(ctx, "failed to mark submission failed", "submission", sub.ID, "error", err)
	}
	for _, f := range br.files {
		nf := f.MarkAsFailed()
		if err := s.files.Update(ctx, &nf); err != nil {
			s.log.Error(ctx, "failed to mark attachment failed", "file", f.ID, "error", err)
		}
	}
	s.settleQueue(ctx, sub.ID, models.QueueStatusFailed, reason)
}

func (s *SubmissionSyncer) succeed(ctx context.Context, br buildResult, remotePaths map[string]string) error {
	sub := br.submission.MarkAsSynced(s.now())
	if err := s.submissions.UpdateSyncState(ctx, &sub); err != nil {
		return err
	}
	for _, f := range br.files {
		path, ok := remotePaths[f.ID]
		if !ok || path == "" {
			path = RemoteFileKey(sub.ID, f.ID)
		}
		nf := f.MarkAsSynced(path)
		if err := s.files.Update(ctx, &nf); err != nil {
			s.log.Error(ctx, "failed to mark attachment synced", "file", f.ID, "error", err)
		}
	}
	s.settleQueue(ctx, sub.ID, models.QueueStatusCompleted, "")
	return nil
}

// interruptedReason is recorded on work a previous run left in syncing.
const interruptedReason = "sync interrupted before completion"

// RecoverInterrupted fails submissions and attachments that a run which never
// finished (crash, kill) left in syncing, so the next Sync or a manual retry
// picks them up again. It reports how many submissions were recovered.
func (s *SubmissionSyncer) RecoverInterrupted(ctx context.Context) (int, error) {
	if !s.guard.TryAcquire() {
		return 0, ErrSyncInProgress
	}
	defer s.guard.Release()

	stuck, err := s.submissions.FindByStatus(ctx, models.SyncStatusSyncing)
	if err != nil {
		return 0, fmt.Errorf("failed to load syncing submissions: %w", err)
	}
	for _, sub := range stuck {
		s.log.Warn(ctx, "recovering interrupted submission", "submission", sub.ID)
		s.fail(ctx, buildResult{submission: *sub}, interruptedReason)
	}

	leftover, err := s.files.FindByStatus(ctx, models.SyncStatusSyncing)
	if err != nil {
		return len(stuck), fmt.Errorf("failed to load syncing attachments: %w", err)
	}
	for _, f := range leftover {
		nf := f.MarkAsFailed()
		if err := s.files.Update(ctx, &nf); err != nil {
			return len(stuck), fmt.Errorf("failed to recover attachment %s: %w", f.ID, err)
		}
	}
	return len(stuck), nil
}

// settleQueue moves the submission's queue item, if there is one, to status.
func (s *SubmissionSyncer) settleQueue(ctx context.Context, submissionID string, status models.QueueStatus, reason string) {
	if s.queue == nil {
		return
	}
	item, err := s.queue.FindByEntity(ctx, models.EntitySubmission, submissionID)
	if errors.Is(err, common.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Error(ctx, "failed to load queue item", "submission", submissionID, "error", err)
		return
	}

	var next models.SyncQueueItem
	switch status {
	case models.QueueStatusProcessing:
		next = item.MarkProcessing(s.now())
	case models.QueueStatusCompleted:
		next = item.MarkCompleted(s.now())
	case models.QueueStatusFailed:
		next = item.MarkFailed(reason, s.now())
	default:
		return
	}
	if err := s.queue.Update(ctx, &next); err != nil {
		s.log.Error(ctx, "failed to update queue item", "item", item.ID, "error", err)
	}
}

// RemoteFileKey is the object key used for an attachment when the server
// did not report one.
func RemoteFileKey(submissionID, fileID string) string {
	return "submissions/" + submissionID + "/" + fileID
}

// FetchRemote pulls the server's submissions. Unknown ones are stored as
// synced. Known ones are never overwritten: a synced local copy is skipped
// and an unsynced one is only counted as updated.
func (s *SubmissionSyncer) FetchRemote(ctx context.Context) (FetchResult, error) {
	if !s.guard.TryAcquire() {
		return FetchResult{}, ErrSyncInProgress
	}
	defer s.guard.Release()

	remote, err := s.remote.FetchSubmissions(ctx)
	if err != nil {
		return FetchResult{}, fmt.Errorf("failed to fetch remote submissions: %w", err)
	}

	var res FetchResult
	formCache := map[string]*models.Form{}
	for _, raw := range remote {
		if id, err := s.ingest(ctx, raw, formCache, &res); err != nil {
			s.log.Warn(ctx, "remote submission skipped", "submission", id, "error", err)
			res.Errors = append(res.Errors, ItemError{SubmissionID: id, Error: err.Error()})
		}
	}

	s.log.Info(ctx, "remote fetch finished", "created", res.Created, "updated", res.Updated, "skipped", res.Skipped, "failed", len(res.Errors))
	return res, nil
}

// ingest stores one remote record. The returned id is the record's id as far
// as it could be read, for error reporting.
func (s *SubmissionSyncer) ingest(ctx context.Context, raw json.RawMessage, formCache map[string]*models.Form, res *FetchResult) (string, error) {
	var r wire.RemoteSubmission
	if err := json.Unmarshal(raw, &r); err != nil {
		return remoteID(raw), fmt.Errorf("%w: malformed remote submission: %v", common.ErrValidation, err)
	}
	if r.ID == "" {
		return "", fmt.Errorf("%w: remote submission without id", common.ErrValidation)
	}
	return r.ID, s.store(ctx, r, formCache, res)
}

// remoteID digs the id out of a record that failed to decode as a whole.
func remoteID(raw json.RawMessage) string {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.ID
}

func (s *SubmissionSyncer) store(ctx context.Context, r wire.RemoteSubmission, formCache map[string]*models.Form, res *FetchResult) error {

	local, err := s.submissions.FindByID(ctx, r.ID)
	switch {
	case err == nil:
		if local.SyncStatus == models.SyncStatusSynced {
			res.Skipped++
		} else {
			res.Updated++
		}
		return nil
	case !errors.Is(err, common.ErrNotFound):
		return fmt.Errorf("failed to look up local copy: %w", err)
	}

	form, err := s.cachedForm(ctx, r.FormID, formCache)
	if err != nil {
		return err
	}
	sub, err := api.SubmissionFromRemote(r, form, s.now())
	if err != nil {
		return err
	}
	if err := s.submissions.Create(ctx, &sub); err != nil {
		return fmt.Errorf("failed to store remote submission: %w", err)
	}
	res.Created++
	return nil
}

func (s *SubmissionSyncer) cachedForm(ctx context.Context, formID string, cache map[string]*models.Form) (*models.Form, error) {
	if f, ok := cache[formID]; ok {
		return f, nil
	}
	if s.forms == nil {
		return nil, nil
	}
	f, err := s.forms.FindByID(ctx, formID)
	if errors.Is(err, common.ErrNotFound) {
		cache[formID] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load form %s: %w", formID, err)
	}
	cache[formID] = f
	return f, nil
}

func (r *SyncResult) addFailure(submissionID, reason string) {
	r.FailedCount++
	r.Errors = append(r.Errors, ItemError{SubmissionID: submissionID, Error: reason})
}
