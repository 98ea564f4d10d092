package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

// Inbound intents.
const (
	IntentStartQuiz       = "start-quiz"
	IntentJoinQuiz        = "join-quiz"
	IntentJoinQuizHost    = "join-quiz-host"
	IntentNextQuestion    = "next-question"
	IntentRevealAnswer    = "reveal-answer"
	IntentSubmitAnswer    = "submit-answer"
	IntentRetrieveWinners = "retrieve-winners"
)

// Replies sent only to the caller. Broadcast types are the domain event names.
const (
	ReplyAck   = "ack"
	ReplyError = "error"
)

// Envelope is the wire form of every message, in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Intent is one of the closed set of inbound messages.
type Intent interface {
	Type() string
	validate() error
}

type (
	StartQuiz struct {
		QuizID string `json:"quizId"`
	}

	// JoinQuiz subscribes the connection to a session room. With a name it also registers a new
	// participant; with a participant ID it resumes an existing one.
	JoinQuiz struct {
		SessionID     string `json:"sessionId"`
		Name          string `json:"name,omitempty"`
		ParticipantID string `json:"participantId,omitempty"`
	}

	JoinQuizHost struct {
		SessionID string `json:"sessionId"`
	}

	NextQuestion struct {
		SessionID string `json:"sessionId"`
	}

	RevealAnswer struct {
		SessionID string `json:"sessionId"`
	}

	SubmitAnswer struct {
		SessionID     string `json:"sessionId"`
		ParticipantID string `json:"participantId"`
		Answer        *int   `json:"answer"`
	}

	RetrieveWinners struct {
		SessionID string `json:"sessionId"`
	}
)

func (StartQuiz) Type() string { return IntentStartQuiz }
func (JoinQuiz) Type() string { return IntentJoinQuiz }
func (JoinQuizHost) Type() string { return IntentJoinQuizHost }
func (NextQuestion) Type() string { return IntentNextQuestion }
func (RevealAnswer) Type() string { return IntentRevealAnswer }
func (SubmitAnswer) Type() string { return IntentSubmitAnswer }
func (RetrieveWinners) Type() string { return IntentRetrieveWinners }

func (m StartQuiz) validate() error { return required("quizId", m.QuizID) }
func (m JoinQuizHost) validate() error { return required("sessionId", m.SessionID) }
func (m NextQuestion) validate() error { return required("sessionId", m.SessionID) }
func (m RevealAnswer) validate() error { return required("sessionId", m.SessionID) }
func (m RetrieveWinners) validate() error { return required("sessionId", m.SessionID) }

func (m JoinQuiz) validate() error {
	if err := required("sessionId", m.SessionID); err != nil {
		return err
	}
	if m.Name != "" && m.ParticipantID != "" {
		return errors.Validation("name and participantId are mutually exclusive")
	}
	return nil
}

func (m SubmitAnswer) validate() error {
	if err := required("sessionId", m.SessionID); err != nil {
		return err
	}
	if err := required("participantId", m.ParticipantID); err != nil {
		return err
	}
	if m.Answer == nil {
		return errors.Validation("answer is required")
	}
	return nil
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.Validation(field + " is required")
	}
	return nil
}

// DecodeIntent parses an inbound message. Unknown types and unknown fields are rejected.
func DecodeIntent(b []byte) (Intent, error) {
	var env Envelope
	if err := decodeStrict(b, &env); err != nil {
		return nil, errors.Validation(fmt.Sprintf("malformed message: %v", err))
	}

	switch env.Type {
	case IntentStartQuiz:
		return decodeData[StartQuiz](env)
	case IntentJoinQuiz:
		return decodeData[JoinQuiz](env)
	case IntentJoinQuizHost:
		return decodeData[JoinQuizHost](env)
	case IntentNextQuestion:
		return decodeData[NextQuestion](env)
	case IntentRevealAnswer:
		return decodeData[RevealAnswer](env)
	case IntentSubmitAnswer:
		return decodeData[SubmitAnswer](env)
	case IntentRetrieveWinners:
		return decodeData[RetrieveWinners](env)
	default:
		return nil, errors.Validation(fmt.Sprintf("unknown message type: %q", env.Type))
	}
}

func decodeData[T Intent](env Envelope) (Intent, error) {
	var m T
	if len(env.Data) == 0 {
		return nil, errors.Validation(fmt.Sprintf("%s: data is required", env.Type))
	}
	if err := decodeStrict(env.Data, &m); err != nil {
		return nil, errors.Validation(fmt.Sprintf("%s: malformed data: %v", env.Type, err))
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeStrict(b []byte, v any) error {
	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	return d.Decode(v)
}

// Outbound payloads.
type (
	Notification struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}

	LeaderboardEntry struct {
		ParticipantID string `json:"participantId"`
		Name          string `json:"name"`
		Score         int64  `json:"score"`
	}

	Question struct {
		Index    int      `json:"index"`
		Question string   `json:"question"`
		Answers  []string `json:"answers"`
		Time     Timing   `json:"time"`
	}

	Timing struct {
		QuestionDuration  int `json:"questionDuration"`
		AnsweringDuration int `json:"answeringDuration"`
	}

	Reveal struct {
		Index         int `json:"index"`
		CorrectAnswer int `json:"correctAnswer"`
	}

	QuizEnded struct {
		Winner string `json:"winner"`
	}

	InvalidQuiz struct {
		SessionID string `json:"sessionId,omitempty"`
		QuizID    string `json:"quizId,omitempty"`
	}

	Ack struct {
		Intent        string `json:"intent"`
		SessionID     string `json:"sessionId,omitempty"`
		Code          string `json:"code,omitempty"`
		ParticipantID string `json:"participantId,omitempty"`
	}

	ErrorReply struct {
		Intent  string   `json:"intent,omitempty"`
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details,omitempty"`
	}
)

func toLeaderboard(entries []domain.LeaderboardEntry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, LeaderboardEntry{
			ParticipantID: e.ParticipantID,
			Name:          e.Name,
			Score:         e.Score,
		})
	}
	return out
}

// toNotification maps a domain event to its room broadcast.
func toNotification(e any) (Notification, bool) {
	switch e := e.(type) {
	case domain.EventLeaderboardUpdated:
		return Notification{Type: e.Name(), Data: toLeaderboard(e.Leaderboard)}, true
	case domain.EventQuestionStarted:
		return Notification{Type: e.Name(), Data: Question{
			Index:    e.Index,
			Question: e.Question,
			Answers:  e.Answers,
			Time: Timing{
				QuestionDuration:  e.Time.QuestionDuration,
				AnsweringDuration: e.Time.AnsweringDuration,
			},
		}}, true
	case domain.EventAnswerRevealed:
		return Notification{Type: e.Name(), Data: Reveal{Index: e.Index, CorrectAnswer: e.CorrectAnswer}}, true
	case domain.EventQuizEnded:
		return Notification{Type: e.Name(), Data: QuizEnded{Winner: e.Winner}}, true
	case domain.EventInvalidQuiz:
		return Notification{Type: e.Name(), Data: InvalidQuiz{SessionID: e.SessionID, QuizID: e.QuizID}}, true
	}

	return Notification{}, false
}

func errorReply(intent string, err error) Notification {
	e := errors.Convert(err)

	msg := e.Message
	if e.Code == errors.CodeInternal {
		msg = "internal error"
	}

	return Notification{Type: ReplyError, Data: ErrorReply{
		Intent:  intent,
		Code:    e.HTTPStatusCode(),
		Message: msg,
		Details: e.Details,
	}}
}
