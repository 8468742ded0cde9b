package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"telegram-quiz-bot/internal/app"
	"telegram-quiz-bot/internal/domain"
)

const helpText = `Ready.
/quiz - start a quiz (DM = full run, group = timed session)
/next - skip to the next question (group)
/stopquiz - stop the running quiz (group)
/leaderboard - group leaderboard
/reset_scores - reset the group leaderboard
/retest - retry only the ones you missed (DM)
/score - your last DM result
/help - this help`

// Bot adapts telebot to the engine: it implements app.Transport for
// outbound traffic and forwards commands, poll answers, and poll-closed
// updates inbound.
type Bot struct {
	bot    *tele.Bot
	engine *app.Engine
}

func New(token string) (*Bot, error) {
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			slog.Error("telegram handler failed", "err", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Bot{bot: b}, nil
}

// PostQuestion sends a native quiz poll and returns its Telegram poll id.
func (b *Bot) PostQuestion(_ context.Context, chatID int64, text string, options []string, correctIdx, openPeriodSeconds int) (string, error) {
	poll := &tele.Poll{
		Type:          tele.PollQuiz,
		Question:      text,
		CorrectOption: correctIdx,
		OpenPeriod:    openPeriodSeconds,
		Anonymous:     false,
	}
	poll.AddOptions(options...)

	msg, err := b.bot.Send(tele.ChatID(chatID), poll)
	if err != nil {
		return "", fmt.Errorf("send poll: %w", err)
	}
	return msg.Poll.ID, nil
}

func (b *Bot) PostMessage(_ context.Context, chatID int64, text string) error {
	if _, err := b.bot.Send(tele.ChatID(chatID), text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Bind registers the command and poll handlers against the engine.
// Separate from New because the engine itself posts through this bot.
func (b *Bot) Bind(engine *app.Engine) {
	b.engine = engine

	b.bot.Handle("/start", b.help)
	b.bot.Handle("/help", b.help)
	b.bot.Handle("/quiz", b.quiz)
	b.bot.Handle("/next", b.next)
	b.bot.Handle("/stopquiz", b.stop)
	b.bot.Handle("/leaderboard", b.leaderboard)
	b.bot.Handle("/reset_scores", b.resetScores)
	b.bot.Handle("/retest", b.retest)
	b.bot.Handle("/score", b.score)

	b.bot.Handle(tele.OnPollAnswer, func(c tele.Context) error {
		answer := c.PollAnswer()
		if answer == nil || answer.Sender == nil {
			return nil
		}
		b.engine.HandlePollAnswer(context.Background(), answer.PollID,
			answer.Sender.ID, displayName(answer.Sender), answer.Options)
		return nil
	})

	b.bot.Handle(tele.OnPoll, func(c tele.Context) error {
		poll := c.Poll()
		if poll == nil || !poll.Closed {
			return nil
		}
		b.engine.HandlePollClosed(context.Background(), poll.ID)
		return nil
	})

}

// Start runs the long poller until Stop is called.
func (b *Bot) Start() {
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) help(c tele.Context) error {
	return c.Send(helpText)
}

func (b *Bot) quiz(c tele.Context) error {
	private := c.Chat().Type == tele.ChatPrivate
	err := b.engine.StartQuiz(context.Background(), c.Chat().ID, private)
	switch {
	case errors.Is(err, domain.ErrSessionActive):
		return c.Send("A quiz is already running here. Use /next to skip or /stopquiz to stop it.")
	case err != nil:
		slog.Error("start quiz failed", "chat", c.Chat().ID, "err", err)
		return c.Send("Could not start the quiz, please try again.")
	}
	return nil
}

func (b *Bot) next(c tele.Context) error {
	err := b.engine.ForceAdvance(context.Background(), c.Chat().ID)
	if errors.Is(err, domain.ErrNoSession) {
		return c.Send("No quiz is running. Use /quiz to start one.")
	}
	return nil
}

func (b *Bot) stop(c tele.Context) error {
	err := b.engine.Stop(context.Background(), c.Chat().ID)
	if errors.Is(err, domain.ErrNoSession) {
		return c.Send("No quiz is running. Use /quiz to start one.")
	}
	return c.Send("Quiz stopped.")
}

func (b *Bot) leaderboard(c tele.Context) error {
	entries, err := b.engine.Leaderboard(context.Background(), c.Chat().ID, 10)
	if err != nil {
		slog.Error("leaderboard read failed", "chat", c.Chat().ID, "err", err)
		return c.Send("Leaderboard is unavailable right now.")
	}
	return c.Send(app.FormatLeaderboard(entries))
}

func (b *Bot) resetScores(c tele.Context) error {
	if c.Chat().Type == tele.ChatPrivate {
		return c.Send("This resets the group leaderboard only. Use it in a group chat.")
	}
	if err := b.engine.ResetScores(context.Background(), c.Chat().ID); err != nil {
		slog.Error("reset scores failed", "chat", c.Chat().ID, "err", err)
		return c.Send("Could not reset the leaderboard, please try again.")
	}
	return c.Send("✅ Group leaderboard reset.")
}

func (b *Bot) retest(c tele.Context) error {
	if c.Chat().Type != tele.ChatPrivate {
		return c.Send("Retest is DM-only. Please DM the bot to use /retest.")
	}
	err := b.engine.StartRetest(context.Background(), c.Chat().ID)
	switch {
	case errors.Is(err, domain.ErrNoRetest):
		return c.Send("✅ Nothing to retest. Run /quiz first.")
	case errors.Is(err, domain.ErrSessionActive):
		return c.Send("A quiz is already running here. Finish it first.")
	case err != nil:
		slog.Error("start retest failed", "chat", c.Chat().ID, "err", err)
		return c.Send("Could not start the retest, please try again.")
	}
	return nil
}

func (b *Bot) score(c tele.Context) error {
	result, ok := b.engine.LastResult(c.Chat().ID)
	if !ok {
		return c.Send("No attempts yet. Use /quiz to start (in DM).")
	}
	return c.Send(fmt.Sprintf("📊 Last: %d/%d on %s",
		result.Correct, result.Total, result.FinishedAt.Format("2006-01-02 15:04")))
}

// displayName prefers @username, then the full name, then the bare id.
func displayName(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return strconv.FormatInt(u.ID, 10)
}
