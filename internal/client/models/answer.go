package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// ValueKind tags the variant held by an AnswerValue.
type ValueKind int

const (
	ValueEmpty ValueKind = iota
	ValueText
	ValueNumeric
	ValueChoice
)

func (k ValueKind) String() string {
	switch k {
	case ValueText:
		return "text"
	case ValueNumeric:
		return "numeric"
	case ValueChoice:
		return "choice"
	default:
		return "empty"
	}
}

// AnswerValue is what the user entered for one question: nothing, free text,
// a number, or a list of selected options. The zero value is Empty.
type AnswerValue struct {
	kind    ValueKind
	text    string
	number  float64
	choices []string
}

func EmptyValue() AnswerValue { return AnswerValue{} }

func TextValue(s string) AnswerValue { return AnswerValue{kind: ValueText, text: s} }

func NumericValue(f float64) AnswerValue { return AnswerValue{kind: ValueNumeric, number: f} }

// ChoiceValue holds selected options. A nil or empty list is still a Choice,
// it stays an array on the wire.
func ChoiceValue(choices ...string) AnswerValue {
	c := make([]string, len(choices))
	copy(c, choices)
	return AnswerValue{kind: ValueChoice, choices: c}
}

func (v AnswerValue) Kind() ValueKind { return v.kind }

func (v AnswerValue) IsEmpty() bool { return v.kind == ValueEmpty }

// Text returns the raw string of a Text value.
func (v AnswerValue) Text() (string, bool) {
	return v.text, v.kind == ValueText
}

// Number returns the float of a Numeric value.
func (v AnswerValue) Number() (float64, bool) {
	return v.number, v.kind == ValueNumeric
}

// Choices returns a copy of the selected options of a Choice value.
func (v AnswerValue) Choices() ([]string, bool) {
	if v.kind != ValueChoice {
		return nil, false
	}
	return slices.Clone(v.choices), true
}

// String renders scalars the way they travel as answerText. Numbers use the
// shortest representation that parses back to the same float.
func (v AnswerValue) String() string {
	switch v.kind {
	case ValueText:
		return v.text
	case ValueNumeric:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case ValueChoice:
		return fmt.Sprint(v.choices)
	default:
		return ""
	}
}

func (v AnswerValue) Equal(o AnswerValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueText:
		return v.text == o.text
	case ValueNumeric:
		return v.number == o.number
	case ValueChoice:
		return slices.Equal(v.choices, o.choices)
	default:
		return true
	}
}

// MarshalJSON stores the value untagged: null, a string, a number or an array
// of strings.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueText:
		return json.Marshal(v.text)
	case ValueNumeric:
		return json.Marshal(v.number)
	case ValueChoice:
		if v.choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.choices)
	default:
		return []byte("null"), nil
	}
}

func (v *AnswerValue) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ValueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueFromAny converts a decoded JSON value into an AnswerValue. Arrays must
// hold strings only; booleans and objects are rejected.
func ValueFromAny(raw any) (AnswerValue, error) {
	switch x := raw.(type) {
	case nil:
		return EmptyValue(), nil
	case string:
		return TextValue(x), nil
	case float64:
		return NumericValue(x), nil
	case []string:
		return ChoiceValue(x...), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return AnswerValue{}, fmt.Errorf("%w: choice entries must be strings, got %T", ErrInvalidAnswer, item)
			}
			out = append(out, s)
		}
		return ChoiceValue(out...), nil
	default:
		return AnswerValue{}, fmt.Errorf("%w: unsupported value type %T", ErrInvalidAnswer, raw)
	}
}

// Answer is the response to one question inside a submission.
type Answer struct {
	ID         string
	QuestionID string
	Value      AnswerValue
	FileIDs    []string
}

func (a Answer) clone() Answer {
	a.FileIDs = slices.Clone(a.FileIDs)
	return a
}
