package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-quiz-bot/internal/domain"
)

// QuestionSource loads a question bank stored as a single JSONB row.
// Satisfies bank.Source.
type QuestionSource struct {
	pool   *pgxpool.Pool
	bankID string
}

func NewQuestionSource(pool *pgxpool.Pool, bankID string) *QuestionSource {
	return &QuestionSource{pool: pool, bankID: bankID}
}

func (s *QuestionSource) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM question_banks WHERE id=$1`, s.bankID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("load question bank %q: %w", s.bankID, err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("%w: unmarshal bank %q: %v", domain.ErrBankMalformed, s.bankID, err)
	}
	return questions, nil
}
