package api

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/leaderboard"
	"github.com/victornm/quizroom/internal/notify"
	"github.com/victornm/quizroom/internal/quiz"
	"github.com/victornm/quizroom/internal/session"
)

type Config struct {
	EventBus     *event.Bus
	Registry     *session.Registry
	Quiz         *quiz.Service
	Webhook      *notify.Webhook
	Redis        redis.UniversalClient
	PubsubPrefix string
	AllowOrigins []string
}

// API routes inbound intents to sessions and fans session broadcasts out to rooms.
type API struct {
	eb       *event.Bus
	registry *session.Registry
	qs       *quiz.Service
	webhook  *notify.Webhook

	redis   redis.UniversalClient
	prefix  string
	origins []string
}

func New(c Config) *API {
	a := &API{
		eb:       c.EventBus,
		registry: c.Registry,
		qs:       c.Quiz,
		webhook:  c.Webhook,
		redis:    c.Redis,
		prefix:   c.PubsubPrefix,
		origins:  c.AllowOrigins,
	}

	// Register event handlers
	for _, name := range domain.EventNames {
		c.EventBus.Subscribe(name, func(ctx context.Context, e event.Event) error {
			return a.PublishRoom(ctx, e)
		})
	}

	return a
}

// Room is a connection that can be subscribed to a session room.
type Room interface {
	JoinRoom(ctx context.Context, sessionID string) error
}

// Handle executes an intent on behalf of a connection. The connection is subscribed to the
// session room before the intent runs, so it receives every broadcast the intent causes.
// A nil reply means nothing is sent back to the caller.
func (a *API) Handle(ctx context.Context, room Room, in Intent) *Notification {
	reply, err := a.handle(ctx, room, in)
	if err != nil {
		slog.InfoContext(ctx, "api: intent rejected", "intent", in.Type(), "error", err)
		n := errorReply(in.Type(), err)
		return &n
	}

	return reply
}

func (a *API) handle(ctx context.Context, room Room, in Intent) (*Notification, error) {
	switch in := in.(type) {
	case StartQuiz:
		s, err := a.registry.Create(ctx, in.QuizID)
		if err != nil {
			return nil, err
		}
		if err := room.JoinRoom(ctx, s.ID()); err != nil {
			return nil, err
		}
		return ack(Ack{Intent: in.Type(), SessionID: s.ID(), Code: s.Code()}), nil

	case JoinQuiz:
		s, err := a.enter(ctx, room, in.SessionID)
		if err != nil {
			return nil, err
		}

		out := Ack{Intent: in.Type(), SessionID: s.ID(), Code: s.Code()}
		switch {
		case in.Name != "":
			out.ParticipantID, err = s.Join(ctx, in.Name)
		case in.ParticipantID != "":
			_, err = s.Participant(in.ParticipantID)
			out.ParticipantID = in.ParticipantID
		}
		if err != nil {
			return nil, err
		}
		return ack(out), nil

	case JoinQuizHost:
		s, err := a.enter(ctx, room, in.SessionID)
		if err != nil {
			return nil, err
		}
		return ack(Ack{Intent: in.Type(), SessionID: s.ID(), Code: s.Code()}), nil

	case NextQuestion:
		s, err := a.enter(ctx, room, in.SessionID)
		if errors.Is(err, errors.CodeNotFound) {
			return &Notification{Type: domain.EventNameInvalidQuiz, Data: InvalidQuiz{SessionID: in.SessionID}}, nil
		}
		if err != nil {
			return nil, err
		}

		err = s.AdvanceQuestion(ctx)
		if errors.Is(err, errors.CodeNotFound) {
			// the room has been told through invalid-quiz-id
			return nil, nil
		}
		return nil, err

	case RevealAnswer:
		s, err := a.enter(ctx, room, in.SessionID)
		if err != nil {
			return nil, err
		}
		return nil, s.RevealAnswer(ctx)

	case SubmitAnswer:
		s, err := a.registry.Resolve(in.SessionID)
		if err != nil {
			return nil, err
		}
		s.SubmitAnswer(ctx, session.SubmitAnswerRequest{
			ParticipantID: in.ParticipantID,
			Answer:        *in.Answer,
		})
		return nil, nil

	case RetrieveWinners:
		s, err := a.enter(ctx, room, in.SessionID)
		if err != nil {
			return nil, err
		}
		s.BroadcastLeaderboard(ctx)
		return nil, nil
	}

	return nil, errors.Validation("unsupported intent: " + in.Type())
}

// enter resolves a session and subscribes the connection to its room.
func (a *API) enter(ctx context.Context, room Room, identifier string) (*session.Session, error) {
	s, err := a.registry.Resolve(identifier)
	if err != nil {
		return nil, err
	}

	if err := room.JoinRoom(ctx, s.ID()); err != nil {
		return nil, err
	}

	return s, nil
}

// NotifyWinner fires the terminal webhook for a session outside of the quiz-ended transition.
func (a *API) NotifyWinner(ctx context.Context, identifier string) error {
	s, err := a.registry.Resolve(identifier)
	if err != nil {
		return err
	}

	winner := leaderboard.Top(s.Leaderboard())
	a.webhook.DeliverAsync(ctx, s.ID(), winner)
	return nil
}

func ack(a Ack) *Notification {
	return &Notification{Type: ReplyAck, Data: a}
}
