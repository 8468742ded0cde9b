package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram-quiz-bot/internal/domain"
)

// Session is one timed quiz run in a single chat. All mutable state is
// guarded by mu; commands, answers and timer fires for the same chat are
// serialized through it, sessions of distinct chats never share state.
type Session struct {
	ID          string
	ChatID      int64
	Private     bool
	QuestionIDs []int

	mu               sync.Mutex
	position         int
	activeToken      string
	activePollID     string
	presentedCorrect int
	scores           map[int64]*domain.Entry
	correctCount     int
	wrongIDs         []int
	createdAt        time.Time
}

func newSession(chatID int64, questionIDs []int, private bool, now time.Time) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:          id.String(),
		ChatID:      chatID,
		Private:     private,
		QuestionIDs: questionIDs,
		scores:      make(map[int64]*domain.Entry),
		createdAt:   now,
	}, nil
}

// Position returns the current question cursor. It equals
// len(QuestionIDs) once the session has completed.
func (s *Session) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Session) scoreboardLocked(now time.Time) domain.Scoreboard {
	entries := make([]domain.Entry, 0, len(s.scores))
	for _, e := range s.scores {
		entries = append(entries, *e)
	}
	domain.Rank(entries)
	return domain.Scoreboard{ChatID: s.ChatID, Entries: entries, UpdatedAt: now}
}

// Registry maps a chat to its single active session. Create is the
// concurrency gate: two simultaneous starts for one chat yield exactly
// one session and one ErrSessionActive.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]*Session)}
}

func (r *Registry) Create(chatID int64, questionIDs []int, private bool, now time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[chatID]; ok {
		return nil, domain.ErrSessionActive
	}
	session, err := newSession(chatID, questionIDs, private, now)
	if err != nil {
		return nil, err
	}
	r.sessions[chatID] = session
	return session, nil
}

func (r *Registry) Get(chatID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[chatID]
	return session, ok
}

func (r *Registry) Remove(chatID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[chatID]
	if ok {
		delete(r.sessions, chatID)
	}
	return session, ok
}
