package memory

import (
	"context"
	"sync"

	"telegram-quiz-bot/internal/domain"
)

// Ledger is the in-memory score store, used when neither Redis nor
// Postgres is configured. Scores survive sessions but not restarts.
type Ledger struct {
	mu    sync.Mutex
	chats map[int64]map[int64]*domain.Entry
}

func NewLedger() *Ledger {
	return &Ledger{chats: make(map[int64]map[int64]*domain.Entry)}
}

func (l *Ledger) Increment(_ context.Context, chatID, userID int64, displayName string, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	chat, ok := l.chats[chatID]
	if !ok {
		chat = make(map[int64]*domain.Entry)
		l.chats[chatID] = chat
	}
	entry, ok := chat[userID]
	if !ok {
		entry = &domain.Entry{UserID: userID}
		chat[userID] = entry
	}
	entry.DisplayName = displayName
	entry.Score += delta
	return nil
}

func (l *Ledger) TopN(_ context.Context, chatID int64, n int) ([]domain.Entry, error) {
	l.mu.Lock()
	entries := make([]domain.Entry, 0, len(l.chats[chatID]))
	for _, entry := range l.chats[chatID] {
		entries = append(entries, *entry)
	}
	l.mu.Unlock()

	domain.Rank(entries)
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (l *Ledger) Reset(_ context.Context, chatID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.chats, chatID)
	return nil
}
