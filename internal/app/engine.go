package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram-quiz-bot/internal/bank"
	"telegram-quiz-bot/internal/domain"
)

// Transport posts questions and plain messages to a chat. Implementations
// must return a platform-unique poll id for every posted question.
type Transport interface {
	PostQuestion(ctx context.Context, chatID int64, text string, options []string, correctIdx, openPeriodSeconds int) (pollID string, err error)
	PostMessage(ctx context.Context, chatID int64, text string) error
}

// Config tunes a quiz run. Zero values fall back to defaults.
type Config struct {
	SessionLength int
	OpenPeriod    time.Duration
	SafetyMargin  time.Duration
}

const (
	DefaultSessionLength = 5
	DefaultOpenPeriod    = 12 * time.Second
	DefaultSafetyMargin  = time.Second

	leaderboardSize = 10
)

func (c Config) withDefaults() Config {
	if c.SessionLength < 1 {
		c.SessionLength = DefaultSessionLength
	}
	if c.OpenPeriod <= 0 {
		c.OpenPeriod = DefaultOpenPeriod
	}
	if c.SafetyMargin < 0 {
		c.SafetyMargin = DefaultSafetyMargin
	}
	return c
}

type pollRef struct {
	chatID int64
	token  string
}

// Engine drives quiz sessions: it creates them, posts questions, applies
// answers, and advances on timer expiry, poll close, or /next. Advancement
// is idempotent: every signal carries the token of the question it was
// armed for, and a mismatch with the session's current token means the
// session already moved on, so the signal is dropped.
type Engine struct {
	cfg       Config
	bank      *bank.Bank
	transport Transport
	ledger    Ledger
	sched     Scheduler
	registry  *Registry
	now       func() time.Time

	mu          sync.Mutex
	polls       map[string]pollRef
	lastResults map[int64]domain.QuizResult
	lastWrong   map[int64][]int
	subs        map[int64]map[chan domain.Scoreboard]struct{}
}

func NewEngine(cfg Config, b *bank.Bank, transport Transport, ledger Ledger, sched Scheduler) *Engine {
	return &Engine{
		cfg:         cfg.withDefaults(),
		bank:        b,
		transport:   transport,
		ledger:      ledger,
		sched:       sched,
		registry:    NewRegistry(),
		now:         time.Now,
		polls:       make(map[string]pollRef),
		lastResults: make(map[int64]domain.QuizResult),
		lastWrong:   make(map[int64][]int),
		subs:        make(map[int64]map[chan domain.Scoreboard]struct{}),
	}
}

// StartQuiz begins a session in chatID. Group chats get SessionLength
// questions; a private chat runs the whole bank. Returns
// domain.ErrSessionActive if the chat already has a running quiz.
func (e *Engine) StartQuiz(ctx context.Context, chatID int64, private bool) error {
	length := e.cfg.SessionLength
	if private {
		length = e.bank.Len()
	}
	return e.startSession(ctx, chatID, e.bank.Sample(length), private)
}

// StartRetest begins a private session over the questions the user got
// wrong in their last finished run.
func (e *Engine) StartRetest(ctx context.Context, chatID int64) error {
	e.mu.Lock()
	ids := e.lastWrong[chatID]
	e.mu.Unlock()
	if len(ids) == 0 {
		return domain.ErrNoRetest
	}
	return e.startSession(ctx, chatID, e.bank.ShuffleIDs(ids), true)
}

func (e *Engine) startSession(ctx context.Context, chatID int64, questionIDs []int, private bool) error {
	session, err := e.registry.Create(chatID, questionIDs, private, e.now())
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if err := e.postLocked(ctx, session, 0); err != nil {
		// Nothing was posted, so the run never really began; free the
		// chat for a retried /quiz.
		e.registry.Remove(chatID)
		return err
	}
	slog.Info("quiz started", "chat", chatID, "session", session.ID, "questions", len(questionIDs))
	return nil
}

// Stop tears the chat's session down immediately. Timers already armed for
// it fire into a missing session and do nothing.
func (e *Engine) Stop(_ context.Context, chatID int64) error {
	session, ok := e.registry.Remove(chatID)
	if !ok {
		return domain.ErrNoSession
	}
	session.mu.Lock()
	pollID := session.activePollID
	session.activeToken = ""
	session.mu.Unlock()

	e.mu.Lock()
	delete(e.polls, pollID)
	e.mu.Unlock()
	slog.Info("quiz stopped", "chat", chatID, "session", session.ID)
	return nil
}

// ForceAdvance skips the current question without waiting for its timer.
// The superseded timer becomes a stale no-op when it eventually fires.
func (e *Engine) ForceAdvance(ctx context.Context, chatID int64) error {
	session, ok := e.registry.Get(chatID)
	if !ok {
		return domain.ErrNoSession
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return e.advanceLocked(ctx, session, "", true)
}

// HandlePollAnswer applies a vote to the session that owns pollID. Stale
// answers (superseded question, finished or stopped session) are dropped
// silently: that is expected traffic, not an error. Telegram quiz polls
// accept one vote per user, so the first answer is the one that counts;
// an empty option list is a vote retraction and is ignored.
func (e *Engine) HandlePollAnswer(ctx context.Context, pollID string, userID int64, displayName string, chosen []int) {
	if len(chosen) == 0 {
		return
	}
	e.mu.Lock()
	ref, ok := e.polls[pollID]
	e.mu.Unlock()
	if !ok {
		return
	}
	session, ok := e.registry.Get(ref.chatID)
	if !ok {
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if ref.token != session.activeToken {
		return
	}

	if chosen[0] == session.presentedCorrect {
		entry, ok := session.scores[userID]
		if !ok {
			entry = &domain.Entry{UserID: userID}
			session.scores[userID] = entry
		}
		entry.DisplayName = displayName
		entry.Score++
		session.correctCount++
		if !session.Private {
			if err := e.ledger.Increment(ctx, session.ChatID, userID, displayName, 1); err != nil {
				slog.Warn("ledger increment failed", "chat", session.ChatID, "user", userID, "err", err)
			}
			e.broadcast(session.scoreboardLocked(e.now()))
		}
	} else if session.Private {
		session.wrongIDs = append(session.wrongIDs, session.QuestionIDs[session.position])
	}

	if session.Private {
		// One participant, answer received: no reason to wait out the timer.
		_ = e.advanceLocked(ctx, session, "", true)
	}
}

// HandlePollClosed advances past the question bound to pollID, if it is
// still the active one.
func (e *Engine) HandlePollClosed(ctx context.Context, pollID string) {
	e.mu.Lock()
	ref, ok := e.polls[pollID]
	e.mu.Unlock()
	if !ok {
		return
	}
	session, ok := e.registry.Get(ref.chatID)
	if !ok {
		return
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	_ = e.advanceLocked(ctx, session, ref.token, false)
}

func (e *Engine) expire(chatID int64, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, ok := e.registry.Get(chatID)
	if !ok {
		return
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	_ = e.advanceLocked(ctx, session, token, false)
}

// advanceLocked moves the session forward one question, or completes it.
// Callers hold session.mu. A non-forced call whose token no longer matches
// is a stale signal and does nothing. When posting the next question fails
// the cursor and token stay untouched, so a later /next (or the still
// armed timer of the current question) retries from the same place.
func (e *Engine) advanceLocked(ctx context.Context, session *Session, token string, forced bool) error {
	if !forced && token != session.activeToken {
		return nil
	}
	next := session.position + 1
	if next >= len(session.QuestionIDs) {
		e.completeLocked(ctx, session)
		return nil
	}
	if err := e.postLocked(ctx, session, next); err != nil {
		slog.Warn("posting next question failed, session unchanged",
			"chat", session.ChatID, "position", session.position, "err", err)
		return err
	}
	return nil
}

// postLocked posts question idx and, only once the post succeeded, commits
// the new cursor, mints a fresh token and arms the advance timer.
func (e *Engine) postLocked(ctx context.Context, session *Session, idx int) error {
	questionID := session.QuestionIDs[idx]
	question := e.bank.Question(questionID)
	options, correctIdx := e.bank.Shuffled(questionID)
	token := uuid.NewString()

	pollID, err := e.transport.PostQuestion(ctx, session.ChatID, question.Text, options, correctIdx,
		int(e.cfg.OpenPeriod/time.Second))
	if err != nil {
		return fmt.Errorf("post question: %w", err)
	}

	e.mu.Lock()
	delete(e.polls, session.activePollID)
	e.polls[pollID] = pollRef{chatID: session.ChatID, token: token}
	e.mu.Unlock()

	session.position = idx
	session.activeToken = token
	session.activePollID = pollID
	session.presentedCorrect = correctIdx

	e.sched.Arm(e.cfg.OpenPeriod+e.cfg.SafetyMargin, func() {
		e.expire(session.ChatID, token)
	})
	return nil
}

func (e *Engine) completeLocked(ctx context.Context, session *Session) {
	session.position = len(session.QuestionIDs)
	session.activeToken = ""
	e.registry.Remove(session.ChatID)

	e.mu.Lock()
	delete(e.polls, session.activePollID)
	e.mu.Unlock()

	now := e.now()
	var text string
	if session.Private {
		result := domain.QuizResult{Correct: session.correctCount, Total: len(session.QuestionIDs), FinishedAt: now}
		e.mu.Lock()
		e.lastResults[session.ChatID] = result
		e.lastWrong[session.ChatID] = append([]int(nil), session.wrongIDs...)
		e.mu.Unlock()
		text = FormatResult(result, len(session.wrongIDs))
	} else {
		board := session.scoreboardLocked(now)
		e.broadcast(board)
		text = FormatScoreboard(board.Entries, leaderboardSize)
	}

	if err := e.transport.PostMessage(ctx, session.ChatID, text); err != nil {
		slog.Warn("posting final scoreboard failed", "chat", session.ChatID, "err", err)
	}
	slog.Info("quiz completed", "chat", session.ChatID, "session", session.ID)
}

// Leaderboard reads the persistent top-n ranking for a chat.
func (e *Engine) Leaderboard(ctx context.Context, chatID int64, n int) ([]domain.Entry, error) {
	return e.ledger.TopN(ctx, chatID, n)
}

// ResetScores wipes the persistent ledger for a chat.
func (e *Engine) ResetScores(ctx context.Context, chatID int64) error {
	return e.ledger.Reset(ctx, chatID)
}

// LastResult returns the user's most recent finished private run.
func (e *Engine) LastResult(chatID int64) (domain.QuizResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	result, ok := e.lastResults[chatID]
	return result, ok
}

// Subscribe returns a channel receiving scoreboard snapshots for a chat as
// answers come in. The caller must invoke cancel to avoid leaks.
func (e *Engine) Subscribe(chatID int64) (<-chan domain.Scoreboard, func()) {
	ch := make(chan domain.Scoreboard, 8)
	e.mu.Lock()
	if e.subs[chatID] == nil {
		e.subs[chatID] = make(map[chan domain.Scoreboard]struct{})
	}
	e.subs[chatID][ch] = struct{}{}
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if set, ok := e.subs[chatID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(e.subs, chatID)
			}
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcast(board domain.Scoreboard) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs[board.ChatID] {
		select {
		case ch <- board:
		default:
			// Drop the stale snapshot so a slow reader never blocks scoring.
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}
