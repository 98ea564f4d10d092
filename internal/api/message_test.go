package api_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/api"
	"github.com/victornm/quizroom/internal/errors"
)

func TestDecodeIntent(t *testing.T) {
	tests := map[string]struct {
		input  string
		assert func(t *testing.T, got api.Intent, err error)
	}{
		"start quiz": {
			input: `{"type":"start-quiz","data":{"quizId":"q1"}}`,
			assert: func(t *testing.T, got api.Intent, err error) {
				require.NoError(t, err)
				require.Equal(t, api.StartQuiz{QuizID: "q1"}, got)
			},
		},

		"submit answer keeps a zero answer": {
			input: `{"type":"submit-answer","data":{"sessionId":"s","participantId":"p","answer":0}}`,
			assert: func(t *testing.T, got api.Intent, err error) {
				require.NoError(t, err)
				in := got.(api.SubmitAnswer)
				require.NotNil(t, in.Answer)
				require.Equal(t, 0, *in.Answer)
			},
		},

		"submit answer without an answer is rejected": {
			input: `{"type":"submit-answer","data":{"sessionId":"s","participantId":"p"}}`,
			assert: func(t *testing.T, _ api.Intent, err error) {
				require.True(t, errors.Is(err, errors.CodeInvalidArgument))
			},
		},

		"join with both a name and a participant is rejected": {
			input: `{"type":"join-quiz","data":{"sessionId":"s","name":"n","participantId":"p"}}`,
			assert: func(t *testing.T, _ api.Intent, err error) {
				require.True(t, errors.Is(err, errors.CodeInvalidArgument))
			},
		},

		"unknown fields are rejected": {
			input: `{"type":"next-question","data":{"sessionId":"s","extra":1}}`,
			assert: func(t *testing.T, _ api.Intent, err error) {
				require.True(t, errors.Is(err, errors.CodeInvalidArgument))
			},
		},

		"unknown types are rejected": {
			input: `{"type":"dance","data":{}}`,
			assert: func(t *testing.T, _ api.Intent, err error) {
				require.True(t, errors.Is(err, errors.CodeInvalidArgument))
				require.Contains(t, errors.Convert(err).Details[0], "dance")
			},
		},

		"missing data is rejected": {
			input: `{"type":"reveal-answer"}`,
			assert: func(t *testing.T, _ api.Intent, err error) {
				require.True(t, errors.Is(err, errors.CodeInvalidArgument))
			},
		},

		"malformed JSON is rejected": {
			input: `not json`,
			assert: func(t *testing.T, _ api.Intent, err error) {
				require.True(t, errors.Is(err, errors.CodeInvalidArgument))
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := api.DecodeIntent([]byte(tc.input))
			tc.assert(t, got, err)
		})
	}
}
