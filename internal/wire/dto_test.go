package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswer_MarshalShapes(t *testing.T) {
	text := "3"
	tests := []struct {
		name string
		in   Answer
		want string
	}{
		{"text", Answer{ID: "a", QuestionID: "q", AnswerText: &text}, `{"id":"a","questionId":"q","answerText":"3"}`},
		{"choice", Answer{ID: "a", QuestionID: "q", AnswerValue: []string{"x"}}, `{"id":"a","questionId":"q","answerValue":["x"]}`},
		{"empty choice", Answer{ID: "a", QuestionID: "q", AnswerValue: []string{}}, `{"id":"a","questionId":"q","answerValue":[]}`},
		{"no value", Answer{ID: "a", QuestionID: "q"}, `{"id":"a","questionId":"q"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestAnswer_UnmarshalKeepsEmptyArray(t *testing.T) {
	var a Answer
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","questionId":"q","answerValue":[]}`), &a))
	require.NotNil(t, a.AnswerValue)
	assert.Empty(t, a.AnswerValue)
	assert.Nil(t, a.AnswerText)
}

func TestEnvelope(t *testing.T) {
	b, err := json.Marshal(Envelope[Export]{Data: Export{URL: "u", FileName: "f.zip"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"url":"u","fileName":"f.zip"}}`, string(b))

	var e Envelope[*Export]
	require.NoError(t, json.Unmarshal([]byte(`{"data":null,"error":"nope"}`), &e))
	assert.Nil(t, e.Data)
	assert.Equal(t, "nope", e.Error)
}
