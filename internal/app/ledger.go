package app

import (
	"context"

	"telegram-quiz-bot/internal/domain"
)

// Ledger is the persistent per-chat score store, shared across sessions.
// Increment has upsert semantics and must be atomic per (chat, user) key.
type Ledger interface {
	Increment(ctx context.Context, chatID, userID int64, displayName string, delta int) error
	TopN(ctx context.Context, chatID int64, n int) ([]domain.Entry, error)
	Reset(ctx context.Context, chatID int64) error
}
