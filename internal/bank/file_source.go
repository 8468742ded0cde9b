package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"telegram-quiz-bot/internal/domain"
)

// FileSource loads questions from a JSON file: an array of
// {text, options, correctIndex} records.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrBankMalformed, s.path, err)
	}
	return questions, nil
}

// StaticSource serves an in-memory question list (tests/demos).
type StaticSource struct {
	questions []domain.Question
}

func NewStaticSource(questions []domain.Question) *StaticSource {
	return &StaticSource{questions: questions}
}

func (s *StaticSource) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return s.questions, nil
}
