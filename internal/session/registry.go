package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizroom/internal/decay"
	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/telemetry"
)

const (
	defaultCodeDigits    = 5
	defaultStartingScore = 1000
)

// Quizzes resolves the quiz a session plays.
type Quizzes interface {
	GetQuiz(ctx context.Context, quizID string) (*domain.Quiz, error)
}

type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

// Config is shared by every session of a registry.
type Config struct {
	Quizzes       Quizzes
	EventBus      Publisher
	StartingScore int64
	Decay         decay.Config
}

type RegistryConfig struct {
	Session Config

	// CodeDigits is the width of join codes, codes are drawn from [10^(d-1), 10^d).
	CodeDigits int

	// EndedRetention is how long an ended session stays resolvable by ID. Zero or
	// negative keeps ended sessions until they are removed explicitly.
	EndedRetention time.Duration

	// IntN returns a random integer in [0, n). Defaults to math/rand/v2.IntN.
	IntN func(n int) int
}

// Registry owns all sessions, indexed by session ID and by the join code of active sessions.
type Registry struct {
	c RegistryConfig

	codeMin   int
	codeSpace int

	mu       sync.RWMutex
	sessions map[string]*Session
	codes    map[string]string
	timers   map[string]*time.Timer
}

func NewRegistry(c RegistryConfig) *Registry {
	if c.CodeDigits <= 0 || c.CodeDigits > 9 {
		c.CodeDigits = defaultCodeDigits
	}
	if c.Session.StartingScore <= 0 {
		c.Session.StartingScore = defaultStartingScore
	}
	if c.IntN == nil {
		c.IntN = rand.IntN
	}

	codeMin := 1
	for range c.CodeDigits - 1 {
		codeMin *= 10
	}

	return &Registry{
		c:         c,
		codeMin:   codeMin,
		codeSpace: codeMin*10 - codeMin,
		sessions:  make(map[string]*Session),
		codes:     make(map[string]string),
		timers:    make(map[string]*time.Timer),
	}
}

// Create allocates a session for quizID. The quiz is not looked up until the first question.
func (r *Registry) Create(ctx context.Context, quizID string) (*Session, error) {
	quizID = strings.TrimSpace(quizID)
	if quizID == "" {
		return nil, errors.Validation("quizId is required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.codes) >= r.codeSpace {
		return nil, errors.ExhaustedCodeSpace(r.codeSpace)
	}

	code := r.generateCode()
	s := newSession(id.String(), code, quizID, r.c.Session, r.ended)
	r.sessions[s.id] = s
	r.codes[code] = s.id

	telemetry.SessionsCreated.Inc()
	telemetry.SessionsActive.Set(float64(len(r.codes)))
	slog.InfoContext(ctx, "session: created", "session", s.id, "code", code, "quiz", quizID)

	return s, nil
}

// generateCode draws codes until one is not held by an active session. Caller must hold r.mu
// and guarantee the space is not exhausted.
func (r *Registry) generateCode() string {
	for {
		code := strconv.Itoa(r.codeMin + r.c.IntN(r.codeSpace))
		if _, taken := r.codes[code]; !taken {
			return code
		}
	}
}

// Resolve finds a session by session ID or by the join code of an active session.
func (r *Registry) Resolve(identifier string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sessions[identifier]; ok {
		return s, nil
	}

	if id, ok := r.codes[identifier]; ok {
		return r.sessions[id], nil
	}

	return nil, errors.SessionNotFound(identifier)
}

// List returns a snapshot of every session, oldest first.
func (r *Registry) List() []domain.SessionInfo {
	r.mu.RLock()
	ss := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		ss = append(ss, s)
	}
	r.mu.RUnlock()

	// Session IDs are UUIDv7, so they sort by creation time.
	slices.SortFunc(ss, func(a, b *Session) int { return strings.Compare(a.id, b.id) })

	out := make([]domain.SessionInfo, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Snapshot())
	}

	return out
}

// Remove releases a session and its join code.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
		r.releaseCode(s)
		if t, ok := r.timers[sessionID]; ok {
			t.Stop()
			delete(r.timers, sessionID)
		}
	}
	r.mu.Unlock()

	if ok {
		s.close()
		slog.Info("session: removed", "session", sessionID)
	}
}

// Close releases every session.
func (r *Registry) Close() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Remove(id)
	}
}

// ended releases the join code of a session that reached the end of its quiz and
// schedules its removal.
func (r *Registry) ended(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.id]; !ok {
		return
	}

	r.releaseCode(s)

	if r.c.EndedRetention > 0 {
		r.timers[s.id] = time.AfterFunc(r.c.EndedRetention, func() { r.Remove(s.id) })
	}
}

// releaseCode must be called with r.mu held.
func (r *Registry) releaseCode(s *Session) {
	if r.codes[s.code] == s.id {
		delete(r.codes, s.code)
	}

	telemetry.SessionsActive.Set(float64(len(r.codes)))
}
