package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"telegram-quiz-bot/internal/domain"
)

// Ledger keeps per-chat scores in Redis:
//
//	ZINCRBY quiz:{chat}:board {delta} {userID}
//	HSET    quiz:{chat}:names {userID} {displayName}
//
// The sorted set gives atomic per-user increments; display names ride
// along in a hash so the leaderboard can be rendered without another
// lookup path.
type Ledger struct {
	client *redis.Client
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) Increment(ctx context.Context, chatID, userID int64, displayName string, delta int) error {
	member := strconv.FormatInt(userID, 10)
	pipe := l.client.TxPipeline()
	pipe.ZIncrBy(ctx, l.boardKey(chatID), float64(delta), member)
	pipe.HSet(ctx, l.namesKey(chatID), member, displayName)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment score: %w", err)
	}
	return nil
}

func (l *Ledger) TopN(ctx context.Context, chatID int64, n int) ([]domain.Entry, error) {
	// Fetch the whole board: ZSET ties order by member, not by name, so
	// the tie-break is re-applied client side before trimming.
	zs, err := l.client.ZRevRangeWithScores(ctx, l.boardKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read board: %w", err)
	}
	if len(zs) == 0 {
		return nil, nil
	}
	names, err := l.client.HGetAll(ctx, l.namesKey(chatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read names: %w", err)
	}

	entries := make([]domain.Entry, 0, len(zs))
	for _, z := range zs {
		member := z.Member.(string)
		userID, _ := strconv.ParseInt(member, 10, 64)
		name := names[member]
		if name == "" {
			name = member
		}
		entries = append(entries, domain.Entry{
			UserID:      userID,
			DisplayName: name,
			Score:       int(z.Score),
		})
	}
	domain.Rank(entries)
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (l *Ledger) Reset(ctx context.Context, chatID int64) error {
	if err := l.client.Del(ctx, l.boardKey(chatID), l.namesKey(chatID)).Err(); err != nil {
		return fmt.Errorf("reset board: %w", err)
	}
	return nil
}

func (l *Ledger) boardKey(chatID int64) string {
	return fmt.Sprintf("quiz:%d:board", chatID)
}

func (l *Ledger) namesKey(chatID int64) string {
	return fmt.Sprintf("quiz:%d:names", chatID)
}
