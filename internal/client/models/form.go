package models

import (
	"fmt"
	"slices"
	"time"
)

// QuestionType enumerates the input kinds a form can ask for.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionNumber         QuestionType = "number"
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFileUpload     QuestionType = "file_upload"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionNumber, QuestionSingleChoice, QuestionMultipleChoice, QuestionFileUpload:
		return true
	}
	return false
}

// Form is an immutable snapshot pulled from the server. It is only ever
// replaced as a whole.
type Form struct {
	ID              string
	Name            string
	Description     string
	Version         int
	Steps           []Step
	AssignedUserIDs []string
	UpdatedAt       time.Time
}

type Step struct {
	ID         string
	StepNumber int
	Title      string
	Questions  []Question
}

type Question struct {
	ID           string
	QuestionText string
	Type         QuestionType
	// Options is nil when the question has no option list.
	Options     []string
	IsRequired  bool
	OrderNumber int
	Metadata    map[string]any
}

// Normalize orders steps by StepNumber and questions by OrderNumber.
func (f Form) Normalize() Form {
	steps := make([]Step, len(f.Steps))
	for i, s := range f.Steps {
		qs := slices.Clone(s.Questions)
		slices.SortStableFunc(qs, func(a, b Question) int { return a.OrderNumber - b.OrderNumber })
		s.Questions = qs
		steps[i] = s
	}
	slices.SortStableFunc(steps, func(a, b Step) int { return a.StepNumber - b.StepNumber })
	f.Steps = steps
	f.AssignedUserIDs = slices.Clone(f.AssignedUserIDs)
	return f
}

// Validate checks the structural invariants of a snapshot: step numbers are
// unique, question ids are unique across the form and types are known.
func (f Form) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidForm)
	}
	steps := make(map[int]struct{}, len(f.Steps))
	questions := make(map[string]struct{})
	for _, s := range f.Steps {
		if _, dup := steps[s.StepNumber]; dup {
			return fmt.Errorf("%w: duplicate step number %d", ErrInvalidForm, s.StepNumber)
		}
		steps[s.StepNumber] = struct{}{}
		for _, q := range s.Questions {
			if _, dup := questions[q.ID]; dup {
				return fmt.Errorf("%w: duplicate question id %s", ErrInvalidForm, q.ID)
			}
			questions[q.ID] = struct{}{}
			if !q.Type.Valid() {
				return fmt.Errorf("%w: question %s has unknown type %q", ErrInvalidForm, q.ID, q.Type)
			}
		}
	}
	return nil
}

// Question finds a question and the step that holds it.
func (f Form) Question(id string) (Question, Step, bool) {
	for _, s := range f.Steps {
		for _, q := range s.Questions {
			if q.ID == id {
				return q, s, true
			}
		}
	}
	return Question{}, Step{}, false
}

// QuestionCount is the number of questions over all steps.
func (f Form) QuestionCount() int {
	n := 0
	for _, s := range f.Steps {
		n += len(s.Questions)
	}
	return n
}

// Accepts reports whether v is an acceptable answer for q. Empty is always
// accepted so that drafts can hold partial input; required questions are
// enforced by MissingRequired at completion time.
func (q Question) Accepts(v AnswerValue) error {
	if v.IsEmpty() {
		return nil
	}
	switch q.Type {
	case QuestionText:
		if v.Kind() != ValueText {
			return fmt.Errorf("%w: %s expects text, got %s", ErrInvalidAnswer, q.ID, v.Kind())
		}
	case QuestionNumber:
		if v.Kind() != ValueNumeric {
			return fmt.Errorf("%w: %s expects a number, got %s", ErrInvalidAnswer, q.ID, v.Kind())
		}
	case QuestionSingleChoice, QuestionMultipleChoice:
		choices, ok := v.Choices()
		if !ok {
			return fmt.Errorf("%w: %s expects a choice, got %s", ErrInvalidAnswer, q.ID, v.Kind())
		}
		if q.Type == QuestionSingleChoice && len(choices) > 1 {
			return fmt.Errorf("%w: %s accepts one option", ErrInvalidAnswer, q.ID)
		}
		if q.Options != nil {
			for _, c := range choices {
				if !slices.Contains(q.Options, c) {
					return fmt.Errorf("%w: %q is not an option of %s", ErrInvalidAnswer, c, q.ID)
				}
			}
		}
	case QuestionFileUpload:
		if v.Kind() != ValueText {
			return fmt.Errorf("%w: %s expects a caption, got %s", ErrInvalidAnswer, q.ID, v.Kind())
		}
	}
	return nil
}

// MissingRequired lists required questions that have neither a value nor an
// attached file in s.
func (f Form) MissingRequired(s Submission) []string {
	var missing []string
	for _, st := range f.Steps {
		for _, q := range st.Questions {
			if !q.IsRequired {
				continue
			}
			a, ok := s.Answer(q.ID)
			if !ok || (a.Value.IsEmpty() && len(a.FileIDs) == 0) {
				missing = append(missing, q.ID)
			}
		}
	}
	return missing
}
