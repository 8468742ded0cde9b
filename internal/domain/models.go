package domain

import "time"

// Question is a single multiple-choice question. CorrectIndex points into
// Options as loaded; the presented order is shuffled per posting.
type Question struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// Entry is one participant's accumulated score within a chat.
type Entry struct {
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// Scoreboard is an ordered ranking for a chat: score descending, ties
// broken by case-insensitive display name ascending.
type Scoreboard struct {
	ChatID    int64     `json:"chatId"`
	Entries   []Entry   `json:"entries"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// QuizResult summarizes a finished private-chat run.
type QuizResult struct {
	Correct    int
	Total      int
	FinishedAt time.Time
}
