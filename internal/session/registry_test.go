package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/quiz"
	"github.com/victornm/quizroom/internal/session"
)

func TestRegistry_CreateUniqueCodes(t *testing.T) {
	ctx := context.Background()
	r := session.NewRegistry(session.RegistryConfig{
		Session:    session.Config{Quizzes: quiz.NewService(quiz.Config{Store: quiz.NewMemoryStore()})},
		CodeDigits: 2,
	})
	t.Cleanup(r.Close)

	codes := make(map[string]bool)
	for range 90 {
		s, err := r.Create(ctx, "quiz")
		require.NoError(t, err)
		require.Len(t, s.Code(), 2)
		require.False(t, codes[s.Code()], "code %s issued twice", s.Code())
		codes[s.Code()] = true
	}

	_, err := r.Create(ctx, "quiz")
	require.True(t, errors.Is(err, errors.CodeResourceExhausted), "code space of 90 should be exhausted")
}

func TestRegistry_CreateRetriesTakenCode(t *testing.T) {
	ctx := context.Background()

	draws := []int{7, 7, 7, 3}
	r := session.NewRegistry(session.RegistryConfig{
		IntN: func(int) int {
			n := draws[0]
			draws = draws[1:]
			return n
		},
	})
	t.Cleanup(r.Close)

	s1, err := r.Create(ctx, "quiz")
	require.NoError(t, err)
	require.Equal(t, "10007", s1.Code())

	s2, err := r.Create(ctx, "quiz")
	require.NoError(t, err)
	require.Equal(t, "10003", s2.Code())
	require.Empty(t, draws)
}

func TestRegistry_Resolve(t *testing.T) {
	ctx := context.Background()
	r := session.NewRegistry(session.RegistryConfig{})
	t.Cleanup(r.Close)

	s, err := r.Create(ctx, "quiz")
	require.NoError(t, err)

	byID, err := r.Resolve(s.ID())
	require.NoError(t, err)
	require.Same(t, s, byID)

	byCode, err := r.Resolve(" " + s.Code() + " ")
	require.NoError(t, err)
	require.Same(t, s, byCode)

	_, err = r.Resolve("nope")
	require.True(t, errors.Is(err, errors.CodeNotFound))

	_, err = r.Create(ctx, "")
	require.True(t, errors.Is(err, errors.CodeInvalidArgument))

	r.Remove(s.ID())
	_, err = r.Resolve(s.ID())
	require.True(t, errors.Is(err, errors.CodeNotFound), "removed session should not resolve")
	_, err = r.Resolve(s.Code())
	require.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestRegistry_EndedSessionReleasesCode(t *testing.T) {
	ctx := context.Background()

	store := quiz.NewMemoryStore()
	require.NoError(t, store.Create(ctx, &domain.Quiz{QuizID: "empty"}))

	r := session.NewRegistry(session.RegistryConfig{
		Session: session.Config{Quizzes: quiz.NewService(quiz.Config{Store: store})},
		IntN:    func(int) int { return 0 },
	})
	t.Cleanup(r.Close)

	s1, err := r.Create(ctx, "empty")
	require.NoError(t, err)
	require.NoError(t, s1.AdvanceQuestion(ctx))
	require.Equal(t, domain.StateEnded, s1.State())

	s2, err := r.Create(ctx, "empty")
	require.NoError(t, err, "the ended session's code should be reusable")
	require.Equal(t, s1.Code(), s2.Code())

	byCode, err := r.Resolve(s2.Code())
	require.NoError(t, err)
	require.Same(t, s2, byCode)

	byID, err := r.Resolve(s1.ID())
	require.NoError(t, err, "ended session should linger")
	require.Same(t, s1, byID)
	require.NoError(t, byID.AdvanceQuestion(ctx))
}

func TestRegistry_EndedRetention(t *testing.T) {
	ctx := context.Background()

	store := quiz.NewMemoryStore()
	require.NoError(t, store.Create(ctx, &domain.Quiz{QuizID: "empty"}))

	r := session.NewRegistry(session.RegistryConfig{
		Session:        session.Config{Quizzes: quiz.NewService(quiz.Config{Store: store})},
		EndedRetention: 10 * time.Millisecond,
	})
	t.Cleanup(r.Close)

	s, err := r.Create(ctx, "empty")
	require.NoError(t, err)
	require.NoError(t, s.AdvanceQuestion(ctx))

	require.Eventually(t, func() bool {
		_, err := r.Resolve(s.ID())
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_List(t *testing.T) {
	ctx := context.Background()
	r := session.NewRegistry(session.RegistryConfig{})
	t.Cleanup(r.Close)

	var ids []string
	for range 3 {
		s, err := r.Create(ctx, "quiz")
		require.NoError(t, err)
		ids = append(ids, s.ID())
		time.Sleep(2 * time.Millisecond)
	}

	list := r.List()
	require.Len(t, list, 3)
	for i, info := range list {
		assert.Equal(t, ids[i], info.SessionID)
		assert.Equal(t, domain.StateLobby.String(), info.State)
		assert.Equal(t, int64(1000), info.Score)
	}
}
