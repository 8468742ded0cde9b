package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-quiz-bot/internal/domain"
)

// Ledger persists per-chat scores in the group_scores table. The upsert
// makes each (chat, user) increment atomic, so concurrent answers never
// lose updates.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Increment(ctx context.Context, chatID, userID int64, displayName string, delta int) error {
	const stmt = `
INSERT INTO group_scores (chat_id, user_id, display_name, score)
VALUES ($1, $2, $3, $4)
ON CONFLICT (chat_id, user_id)
DO UPDATE SET score = group_scores.score + EXCLUDED.score,
              display_name = EXCLUDED.display_name;`
	if _, err := l.pool.Exec(ctx, stmt, chatID, userID, displayName, delta); err != nil {
		return fmt.Errorf("increment score: %w", err)
	}
	return nil
}

func (l *Ledger) TopN(ctx context.Context, chatID int64, n int) ([]domain.Entry, error) {
	const stmt = `
SELECT user_id, display_name, score
FROM group_scores
WHERE chat_id = $1
ORDER BY score DESC, LOWER(display_name) ASC
LIMIT $2;`
	rows, err := l.pool.Query(ctx, stmt, chatID, n)
	if err != nil {
		return nil, fmt.Errorf("read board: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var entry domain.Entry
		if err := rows.Scan(&entry.UserID, &entry.DisplayName, &entry.Score); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read board: %w", err)
	}
	return entries, nil
}

func (l *Ledger) Reset(ctx context.Context, chatID int64) error {
	if _, err := l.pool.Exec(ctx, `DELETE FROM group_scores WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("reset board: %w", err)
	}
	return nil
}
