package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

// AnswerToWire renders a value in the two-field wire shape. Choice goes to
// answerValue, every other non-empty value is stringified into answerText.
func AnswerToWire(a models.Answer) wire.Answer {
	out := wire.Answer{ID: a.ID, QuestionID: a.QuestionID}
	if len(a.FileIDs) > 0 {
		out.FileIDs = append([]string(nil), a.FileIDs...)
	}
	switch a.Value.Kind() {
	case models.ValueEmpty:
	case models.ValueChoice:
		choices, _ := a.Value.Choices()
		if choices == nil {
			choices = []string{}
		}
		out.AnswerValue = choices
	default:
		s := a.Value.String()
		out.AnswerText = &s
	}
	return out
}

// AnswerFromWire is the inverse of AnswerToWire. qt is the type of the
// question the answer belongs to, or "" when unknown; a number question turns
// a parseable answerText back into a numeric value.
func AnswerFromWire(a wire.Answer, qt models.QuestionType) models.Answer {
	out := models.Answer{ID: a.ID, QuestionID: a.QuestionID}
	if len(a.FileIDs) > 0 {
		out.FileIDs = append([]string(nil), a.FileIDs...)
	}
	switch {
	case a.AnswerValue != nil:
		out.Value = models.ChoiceValue(a.AnswerValue...)
	case a.AnswerText != nil:
		if qt == models.QuestionNumber {
			if f, err := strconv.ParseFloat(*a.AnswerText, 64); err == nil {
				out.Value = models.NumericValue(f)
				break
			}
		}
		out.Value = models.TextValue(*a.AnswerText)
	default:
		out.Value = models.EmptyValue()
	}
	return out
}

// SubmissionToWire builds the upload shape of s. files are already encoded.
func SubmissionToWire(s models.Submission, files []wire.File) wire.Submission {
	out := wire.Submission{
		ID:          s.ID,
		FormID:      s.FormID,
		UserID:      s.UserID,
		Metadata:    s.Metadata,
		StartedAt:   common.FormatTime(s.StartedAt),
		CompletedAt: common.FormatTimePtr(s.CompletedAt),
		Answers:     make([]wire.Answer, 0, len(s.Answers)),
		Files:       files,
	}
	if out.Files == nil {
		out.Files = []wire.File{}
	}
	for _, a := range s.Answers {
		out.Answers = append(out.Answers, AnswerToWire(a))
	}
	return out
}

// SubmissionFromRemote converts a server copy into a local submission that
// is already synced. form may be nil when the form is not cached.
func SubmissionFromRemote(r wire.RemoteSubmission, form *models.Form, now time.Time) (models.Submission, error) {
	if r.ID == "" || r.FormID == "" {
		return models.Submission{}, fmt.Errorf("%w: remote submission without id or form id", common.ErrValidation)
	}
	started, err := common.ParseTime(r.StartedAt)
	if err != nil {
		return models.Submission{}, fmt.Errorf("submission %s: bad startedAt: %w", r.ID, err)
	}
	completed, err := common.ParseTimePtr(r.CompletedAt)
	if err != nil {
		return models.Submission{}, fmt.Errorf("submission %s: bad completedAt: %w", r.ID, err)
	}
	created, err := parseOr(r.CreatedAt, started)
	if err != nil {
		return models.Submission{}, fmt.Errorf("submission %s: bad createdAt: %w", r.ID, err)
	}
	updated, err := parseOr(r.UpdatedAt, created)
	if err != nil {
		return models.Submission{}, fmt.Errorf("submission %s: bad updatedAt: %w", r.ID, err)
	}

	syncedAt := now.UTC()
	md := r.Metadata
	if md == nil {
		md = map[string]any{}
	}
	out := models.Submission{
		ID:          r.ID,
		FormID:      r.FormID,
		UserID:      r.UserID,
		Metadata:    md,
		StartedAt:   started,
		CompletedAt: completed,
		SyncStatus:  models.SyncStatusSynced,
		SyncedAt:    &syncedAt,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	seen := make(map[string]bool, len(r.Answers))
	for _, a := range r.Answers {
		if seen[a.QuestionID] {
			continue
		}
		seen[a.QuestionID] = true
		var qt models.QuestionType
		if form != nil {
			if q, _, ok := form.Question(a.QuestionID); ok {
				qt = q.Type
			}
		}
		out.Answers = append(out.Answers, AnswerFromWire(a, qt))
	}
	return out, nil
}

func FormFromWire(f wire.Form) (models.Form, error) {
	updated, err := parseOr(f.UpdatedAt, time.Time{})
	if err != nil {
		return models.Form{}, fmt.Errorf("form %s: bad updatedAt: %w", f.ID, err)
	}
	out := models.Form{
		ID:              f.ID,
		Name:            f.Name,
		Description:     f.Description,
		Version:         f.Version,
		AssignedUserIDs: append([]string(nil), f.AssignedUserIDs...),
		UpdatedAt:       updated,
	}
	for _, st := range f.Steps {
		step := models.Step{ID: st.ID, StepNumber: st.StepNumber, Title: st.Title}
		for _, q := range st.Questions {
			step.Questions = append(step.Questions, models.Question{
				ID:           q.ID,
				QuestionText: q.QuestionText,
				Type:         models.QuestionType(q.Type),
				Options:      q.Options,
				IsRequired:   q.IsRequired,
				OrderNumber:  q.OrderNumber,
				Metadata:     q.Metadata,
			})
		}
		out.Steps = append(out.Steps, step)
	}
	out = out.Normalize()
	if err := out.Validate(); err != nil {
		return models.Form{}, err
	}
	return out, nil
}

func UserFromWire(u wire.User) (models.User, error) {
	created, err := parseOr(u.CreatedAt, time.Time{})
	if err != nil {
		return models.User{}, fmt.Errorf("user %s: bad createdAt: %w", u.ID, err)
	}
	if u.ID == "" {
		return models.User{}, fmt.Errorf("%w: user without id", common.ErrValidation)
	}
	return models.User{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: created}, nil
}

// BundleFromWire flattens the pending payload into one SiteBundle.
func BundleFromWire(p wire.Pending) (models.SiteBundle, error) {
	var out models.SiteBundle
	for _, s := range p.Sites {
		updated, err := parseOr(s.UpdatedAt, time.Time{})
		if err != nil {
			return models.SiteBundle{}, fmt.Errorf("site %s: bad updatedAt: %w", s.ID, err)
		}
		out.Sites = append(out.Sites, models.Site{
			ID: s.ID, Code: s.Code, Name: s.Name, Address: s.Address,
			Latitude: s.Latitude, Longitude: s.Longitude, UpdatedAt: updated,
		})
	}
	add := func(items []wire.InventoryItem, kind models.InventoryKind) {
		for _, it := range items {
			out.Inventory = append(out.Inventory, models.InventoryItem{
				ID: it.ID, SiteID: it.SiteID, Kind: kind, Name: it.Name,
				Model: it.Model, SerialNumber: it.SerialNumber, Quantity: it.Quantity,
			})
		}
	}
	add(p.InventoryEE, models.InventoryElectrical)
	add(p.InventoryEP, models.InventoryPassive)
	return out, nil
}

func parseOr(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return common.ParseTime(s)
}
