package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/victornm/quizroom/internal/decay"
	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/leaderboard"
	"github.com/victornm/quizroom/internal/telemetry"
)

// Session is the state machine of one playthrough of a quiz.
// All transitions are serialized by the session lock, and broadcasts are
// published while the lock is held so that room order matches transition order.
type Session struct {
	id     string
	code   string
	quizID string

	quizzes       Quizzes
	eb            Publisher
	startingScore int64
	onEnd         func(*Session)

	mu           sync.Mutex
	state        domain.State
	index        int
	quiz         *domain.Quiz
	pool         *decay.Pool
	decayStarted bool
	decay        *decay.Process
	participants map[string]*participant
	roster       []string
	scores       []domain.LeaderboardEntry
	scoreIdx     map[string]int
}

type participant struct {
	id       string
	name     string
	answers  []int
	answered map[int]struct{}
}

func newSession(id, code, quizID string, c Config, onEnd func(*Session)) *Session {
	s := &Session{
		id:            id,
		code:          code,
		quizID:        quizID,
		quizzes:       c.Quizzes,
		eb:            c.EventBus,
		startingScore: c.StartingScore,
		onEnd:         onEnd,
		state:         domain.StateLobby,
		pool:          decay.NewPool(c.StartingScore),
		participants:  make(map[string]*participant),
		scoreIdx:      make(map[string]int),
	}

	s.decay = decay.NewProcess(c.Decay, s.pool)
	return s
}

func (s *Session) ID() string { return s.id }
func (s *Session) Code() string { return s.code }
func (s *Session) QuizID() string { return s.quizID }

func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Score returns the current value of the score pool.
func (s *Session) Score() int64 {
	return s.pool.Value()
}

// Join adds a participant with a zero score and broadcasts the leaderboard.
func (s *Session) Join(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateEnded {
		return "", errors.SessionEnded(s.id)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.Validation("name is required")
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate participant ID: %w", err)
	}

	p := &participant{
		id:       id.String(),
		name:     name,
		answered: make(map[int]struct{}),
	}
	s.participants[p.id] = p
	s.roster = append(s.roster, p.id)
	s.ensureEntry(p)

	telemetry.ParticipantsJoined.Inc()
	slog.InfoContext(ctx, "session: participant joined", "session", s.id, "participant", p.id, "name", name)

	s.publishLeaderboard(ctx)
	return p.id, nil
}

// Participant returns a participant of the session.
func (s *Session) Participant(participantID string) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return domain.Participant{}, errors.UnknownParticipant(s.id, participantID)
	}

	return p.toDomain(), nil
}

// AdvanceQuestion broadcasts the next question, or ends the session when the quiz is exhausted.
// Advancing an ended session is a no-op.
func (s *Session) AdvanceQuestion(ctx context.Context) error {
	if err := s.loadQuiz(ctx); err != nil {
		return err
	}

	s.mu.Lock()

	if s.state == domain.StateEnded {
		s.mu.Unlock()
		return nil
	}

	if s.index < len(s.quiz.Questions) {
		q := s.quiz.Questions[s.index]

		s.decay.Stop()
		s.publish(ctx, domain.EventQuestionStarted{
			SessionID: s.id,
			Index:     s.index,
			Question:  q.Question,
			Answers:   slices.Clone(q.Answers),
			Time:      q.Time,
		})
		s.index++
		s.pool.Reset(s.startingScore)
		s.decayStarted = false
		s.state = domain.StateInQuestion

		slog.InfoContext(ctx, "session: question started", "session", s.id, "index", s.index-1)
		s.mu.Unlock()
		return nil
	}

	s.state = domain.StateEnded
	s.decay.Stop()
	winner := leaderboard.Top(leaderboard.Rank(s.scores))
	s.publish(ctx, domain.EventQuizEnded{
		SessionID: s.id,
		Winner:    winner,
	})
	s.mu.Unlock()

	telemetry.SessionsEnded.Inc()
	slog.InfoContext(ctx, "session: quiz ended", "session", s.id, "winner", winner)

	if s.onEnd != nil {
		s.onEnd(s)
	}

	return nil
}

// loadQuiz resolves the session's quiz on first use. A missing quiz is broadcast to the room.
func (s *Session) loadQuiz(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.quiz != nil || s.state == domain.StateEnded
	s.mu.Unlock()

	if loaded {
		return nil
	}

	q, err := s.quizzes.GetQuiz(ctx, s.quizID)
	if errors.Is(err, errors.CodeNotFound) {
		s.mu.Lock()
		s.publish(ctx, domain.EventInvalidQuiz{
			SessionID: s.id,
			QuizID:    s.quizID,
		})
		s.mu.Unlock()

		slog.WarnContext(ctx, "session: quiz not found", "session", s.id, "quiz", s.quizID)
		return err
	}
	if err != nil {
		return fmt.Errorf("get quiz %s: %w", s.quizID, err)
	}

	s.mu.Lock()
	if s.quiz == nil {
		s.quiz = q
	}
	s.mu.Unlock()

	return nil
}

// RevealAnswer broadcasts the correct answer of the question just shown.
// The decay process keeps running until the next AdvanceQuestion.
func (s *Session) RevealAnswer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case domain.StateInQuestion:
	case domain.StateEnded:
		return errors.SessionEnded(s.id)
	default:
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("no question to reveal: session=%s state=%s", s.id, s.state))
	}

	i := s.index - 1
	s.publish(ctx, domain.EventAnswerRevealed{
		SessionID:     s.id,
		Index:         i,
		CorrectAnswer: s.quiz.Questions[i].CorrectAnswer,
	})
	s.state = domain.StateRevealed

	slog.InfoContext(ctx, "session: answer revealed", "session", s.id, "index", i)
	return nil
}

type SubmitAnswerRequest struct {
	ParticipantID string
	Answer        int
}

type SubmitAnswerResponse struct {
	// Accepted is false when the submission was ignored.
	Accepted bool
	Correct  bool
	// Score is the pool value read when the answer was recorded.
	Score      int64
	TotalScore int64
}

// SubmitAnswer scores an answer to the question just shown.
// Submissions that cannot be scored are ignored without changing state or broadcasting.
func (s *Session) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) SubmitAnswerResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	reject := func(reason string) SubmitAnswerResponse {
		telemetry.AnswersSubmitted.WithLabelValues("rejected").Inc()
		slog.InfoContext(ctx, "session: answer rejected",
			"session", s.id,
			"participant", req.ParticipantID,
			"reason", reason,
		)
		return SubmitAnswerResponse{}
	}

	if s.state != domain.StateInQuestion && s.state != domain.StateRevealed {
		return reject("not accepting answers in state " + s.state.String())
	}

	p, ok := s.participants[req.ParticipantID]
	if !ok {
		return reject("unknown participant")
	}

	i := s.index - 1
	if s.quiz == nil || i < 0 || i >= len(s.quiz.Questions) {
		return reject("no question at index")
	}

	if _, ok := p.answered[i]; ok {
		return reject("already answered")
	}

	p.answered[i] = struct{}{}
	p.answers = append(p.answers, i)

	if !s.decayStarted {
		if err := s.decay.Start(); err != nil {
			slog.ErrorContext(ctx, "session: start decay failed", "session", s.id, "error", err)
		}
		s.decayStarted = true
	}

	award := s.pool.Value()
	correct := req.Answer == s.quiz.Questions[i].CorrectAnswer

	e := s.ensureEntry(p)
	if correct {
		s.scores[e].Score += award
		telemetry.AnswersSubmitted.WithLabelValues("correct").Inc()
	} else {
		telemetry.AnswersSubmitted.WithLabelValues("incorrect").Inc()
	}

	s.publishLeaderboard(ctx)

	resp := SubmitAnswerResponse{
		Accepted:   true,
		Correct:    correct,
		TotalScore: s.scores[e].Score,
	}
	if correct {
		resp.Score = award
	}

	return resp
}

// Leaderboard returns the ranked leaderboard.
func (s *Session) Leaderboard() []domain.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return leaderboard.Rank(s.scores)
}

// BroadcastLeaderboard publishes the ranked leaderboard to the room.
func (s *Session) BroadcastLeaderboard(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publishLeaderboard(ctx)
}

// Snapshot returns a read-only view of the session.
func (s *Session) Snapshot() domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := domain.SessionInfo{
		SessionID:            s.id,
		Code:                 s.code,
		QuizID:               s.quizID,
		State:                s.state.String(),
		CurrentQuestionIndex: s.index,
		Score:                s.pool.Value(),
		Participants:         make([]domain.Participant, 0, len(s.roster)),
		Leaderboard:          leaderboard.Rank(s.scores),
	}

	for _, id := range s.roster {
		info.Participants = append(info.Participants, s.participants[id].toDomain())
	}

	return info
}

// close stops the decay process, used when the session is released.
func (s *Session) close() {
	s.decay.Stop()
}

// ensureEntry returns the index of p's leaderboard entry, appending a zero entry if p has none.
func (s *Session) ensureEntry(p *participant) int {
	if i, ok := s.scoreIdx[p.id]; ok {
		return i
	}

	s.scores = append(s.scores, domain.LeaderboardEntry{
		ParticipantID: p.id,
		Name:          p.name,
	})
	s.scoreIdx[p.id] = len(s.scores) - 1
	return len(s.scores) - 1
}

func (s *Session) publishLeaderboard(ctx context.Context) {
	s.publish(ctx, domain.EventLeaderboardUpdated{
		SessionID:   s.id,
		Leaderboard: leaderboard.Rank(s.scores),
	})
}

func (s *Session) publish(ctx context.Context, e event.Event) {
	if s.eb == nil {
		return
	}

	s.eb.Publish(ctx, e)
}

func (p *participant) toDomain() domain.Participant {
	return domain.Participant{
		ParticipantID: p.id,
		Name:          p.name,
		Answers:       slices.Clone(p.answers),
	}
}
