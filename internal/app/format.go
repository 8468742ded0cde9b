package app

import (
	"fmt"
	"strings"

	"telegram-quiz-bot/internal/domain"
)

// FormatScoreboard renders the end-of-session ranking for a group chat.
func FormatScoreboard(entries []domain.Entry, limit int) string {
	if len(entries) == 0 {
		return "Quiz finished. Nobody scored this round."
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	var b strings.Builder
	b.WriteString("🏁 Quiz finished! Final scores:")
	writeRanking(&b, entries)
	return b.String()
}

// FormatLeaderboard renders the persistent per-chat leaderboard.
func FormatLeaderboard(entries []domain.Entry) string {
	if len(entries) == 0 {
		return "No scores yet. Use /quiz in this group to start one."
	}
	var b strings.Builder
	b.WriteString("🏆 Leaderboard (Top 10)")
	writeRanking(&b, entries)
	return b.String()
}

// FormatResult renders the end of a private run.
func FormatResult(result domain.QuizResult, wrong int) string {
	text := fmt.Sprintf("✅ Score: %d/%d", result.Correct, result.Total)
	if wrong > 0 {
		text += fmt.Sprintf("\nUse /retest to try the %d you missed.", wrong)
	}
	return text
}

func writeRanking(b *strings.Builder, entries []domain.Entry) {
	for i, entry := range entries {
		fmt.Fprintf(b, "\n%d. %s — %d", i+1, entry.DisplayName, entry.Score)
	}
}
