package quiz

import (
	"context"
	"slices"
	"sync"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

// MemoryStore keeps quizzes in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quizzes: make(map[string]domain.Quiz),
	}
}

func (m *MemoryStore) Get(_ context.Context, quizID string) (*domain.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.quizzes[quizID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: quiz=%s", quizID))
	}

	return &q, nil
}

func (m *MemoryStore) Create(_ context.Context, q *domain.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.quizzes[q.QuizID]; ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("quiz already exists: quiz=%s", q.QuizID))
	}

	c := *q
	c.Questions = slices.Clone(q.Questions)
	m.quizzes[q.QuizID] = c
	m.order = append(m.order, q.QuizID)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]domain.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Quiz, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.quizzes[id])
	}

	return out, nil
}
