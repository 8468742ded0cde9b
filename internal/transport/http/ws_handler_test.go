package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"telegram-quiz-bot/internal/app"
	"telegram-quiz-bot/internal/bank"
	"telegram-quiz-bot/internal/domain"
	"telegram-quiz-bot/internal/infra/memory"
)

func TestWebSocketScoreFeed(t *testing.T) {
	transport := &stubTransport{}
	engine := newTestEngine(t, transport)
	wsHandler := NewWSHandler(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?chatId=100"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The opening snapshot is the persistent leaderboard, empty so far.
	readNext(conn, t, "leaderboard")

	ctx := context.Background()
	if err := engine.StartQuiz(ctx, 100, false); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	poll := transport.last(t)
	engine.HandlePollAnswer(ctx, poll.pollID, 1, "alice", []int{poll.correctIdx})

	_, payload := readNext(conn, t, "scores")
	entries, ok := payload["entries"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("expected one scoreboard entry, got %v", payload)
	}
}

func TestWebSocketRejectsMissingChatID(t *testing.T) {
	engine := newTestEngine(t, &stubTransport{})
	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(engine).ServeWS))
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

type stubPoll struct {
	pollID     string
	correctIdx int
}

type stubTransport struct {
	mu    sync.Mutex
	polls []stubPoll
}

func (s *stubTransport) PostQuestion(_ context.Context, _ int64, _ string, _ []string, correctIdx, _ int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll := stubPoll{pollID: fmt.Sprintf("poll-%d", len(s.polls)+1), correctIdx: correctIdx}
	s.polls = append(s.polls, poll)
	return poll.pollID, nil
}

func (s *stubTransport) PostMessage(context.Context, int64, string) error { return nil }

func (s *stubTransport) last(t *testing.T) stubPoll {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.polls) == 0 {
		t.Fatalf("no poll posted")
	}
	return s.polls[len(s.polls)-1]
}

// idleScheduler never fires; these tests drive the engine directly.
type idleScheduler struct{}

func (idleScheduler) Arm(time.Duration, func()) {}

func newTestEngine(t *testing.T, transport *stubTransport) *app.Engine {
	t.Helper()
	b, err := bank.Load(context.Background(), bank.NewStaticSource([]domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
		{Text: "What is 3 + 3?", Options: []string{"5", "6", "7"}, CorrectIndex: 1},
	}))
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	return app.NewEngine(app.Config{SessionLength: 2}, b, transport, memory.NewLedger(), idleScheduler{})
}
