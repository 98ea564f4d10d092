package quiz

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS quizzes (
	quiz_id     UUID PRIMARY KEY,
	questions   JSONB NOT NULL,
	create_time TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore keeps quizzes in Postgres, questions are stored as a JSONB document.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the quizzes table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create quizzes table: %w", err)
	}

	return nil
}

func (s *PostgresStore) Get(ctx context.Context, quizID string) (*domain.Quiz, error) {
	const stmt = `SELECT quiz_id::text, questions, create_time FROM quizzes WHERE quiz_id::text = $1;`

	var q domain.Quiz
	err := s.db.QueryRow(ctx, stmt, quizID).Scan(&q.QuizID, &q.Questions, &q.CreateTime)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: quiz=%s", quizID))
	}
	if err != nil {
		return nil, fmt.Errorf("select quiz: %w", err)
	}

	return &q, nil
}

func (s *PostgresStore) Create(ctx context.Context, q *domain.Quiz) error {
	const stmt = `INSERT INTO quizzes (quiz_id, questions, create_time) VALUES ($1, $2, $3);`

	_, err := s.db.Exec(ctx, stmt, q.QuizID, q.Questions, q.CreateTime)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("quiz already exists: quiz=%s", q.QuizID),
			errors.WithCause(err))
	}

	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Quiz, error) {
	const stmt = `SELECT quiz_id::text, questions, create_time FROM quizzes ORDER BY create_time;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}

	quizzes, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Quiz, error) {
		var q domain.Quiz
		if err := r.Scan(&q.QuizID, &q.Questions, &q.CreateTime); err != nil {
			return domain.Quiz{}, err
		}
		return q, nil
	})
	if err != nil {
		return nil, err
	}

	return quizzes, nil
}
