package quiz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

const (
	minAnswers = 2
	maxAnswers = 4
)

// Store holds validated quizzes keyed by quiz ID.
type Store interface {
	Get(ctx context.Context, quizID string) (*domain.Quiz, error)
	Create(ctx context.Context, q *domain.Quiz) error
	List(ctx context.Context) ([]domain.Quiz, error)
}

type Config struct {
	Store Store
	// DefaultTime is applied to questions submitted without a time object.
	DefaultTime domain.Timing
}

type Service struct {
	store       Store
	defaultTime domain.Timing
}

func NewService(c Config) *Service {
	return &Service{
		store:       c.Store,
		defaultTime: c.DefaultTime,
	}
}

// CreateQuizRequest is the raw payload of a quiz before validation.
type CreateQuizRequest struct {
	Questions []QuestionRequest `json:"questions"`
}

type QuestionRequest struct {
	Question      string         `json:"question"`
	Answers       []string       `json:"answers"`
	CorrectAnswer *int           `json:"correctAnswer"`
	Time          *domain.Timing `json:"time"`
}

// CreateQuiz validates the request and stores it as a new quiz.
func (s *Service) CreateQuiz(ctx context.Context, req CreateQuizRequest) (*domain.Quiz, error) {
	questions, err := Validate(req, s.defaultTime)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate quiz ID: %w", err)
	}

	q := &domain.Quiz{
		QuizID:     id.String(),
		Questions:  questions,
		CreateTime: time.Now(),
	}

	if err := s.store.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("store quiz: %w", err)
	}

	return q, nil
}

func (s *Service) GetQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	return s.store.Get(ctx, quizID)
}

func (s *Service) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.store.List(ctx)
}

// Validate turns a raw payload into questions, reporting every invalid question at once.
func Validate(req CreateQuizRequest, defaultTime domain.Timing) ([]domain.Question, error) {
	if len(req.Questions) == 0 {
		return nil, errors.Validation(`"questions" must be a non-empty array`)
	}

	var (
		questions = make([]domain.Question, 0, len(req.Questions))
		details   []string
	)

	for i, q := range req.Questions {
		if msg := validateQuestion(q); msg != "" {
			details = append(details, fmt.Sprintf("question %d: %s", i, msg))
			continue
		}

		t := defaultTime
		if q.Time != nil {
			t = *q.Time
		}

		questions = append(questions, domain.Question{
			Question:      q.Question,
			Answers:       q.Answers,
			CorrectAnswer: *q.CorrectAnswer,
			Time:          t,
		})
	}

	if len(details) > 0 {
		return nil, errors.Validation(details...)
	}

	return questions, nil
}

func validateQuestion(q QuestionRequest) string {
	if strings.TrimSpace(q.Question) == "" {
		return "question must be a non-empty string"
	}

	if len(q.Answers) < minAnswers || len(q.Answers) > maxAnswers {
		return fmt.Sprintf("answers must have %d to %d options", minAnswers, maxAnswers)
	}

	for _, a := range q.Answers {
		if strings.TrimSpace(a) == "" {
			return "answers must be non-empty strings"
		}
	}

	if q.CorrectAnswer == nil || *q.CorrectAnswer < 0 || *q.CorrectAnswer >= len(q.Answers) {
		return "correctAnswer must be an index within the answers"
	}

	if q.Time != nil && (q.Time.QuestionDuration <= 0 || q.Time.AnsweringDuration <= 0) {
		return "time must include positive questionDuration and answeringDuration"
	}

	return ""
}
