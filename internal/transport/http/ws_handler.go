package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"telegram-quiz-bot/internal/app"
	"telegram-quiz-bot/internal/domain"
)

// WSHandler streams live scoreboard snapshots for a chat over a websocket.
// The feed is read-only: one message per score change during a running
// session, preceded by the persistent leaderboard as an opening snapshot.
type WSHandler struct {
	engine   *app.Engine
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine) *WSHandler {
	return &WSHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades the request and forwards scoreboard updates until the
// client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chatId"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid chatId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.engine.Subscribe(chatID)
	defer cancel()

	entries, err := h.engine.Leaderboard(r.Context(), chatID, 10)
	if err != nil {
		slog.Warn("ws leaderboard read failed", "chat", chatID, "err", err)
		entries = nil
	}
	if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: domain.Scoreboard{ChatID: chatID, Entries: entries}}); err != nil {
		return
	}

	// Reads only serve to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case board, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "scores", Payload: board}); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
