package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"telegram-quiz-bot/internal/app"
	"telegram-quiz-bot/internal/bank"
	"telegram-quiz-bot/internal/domain"
	"telegram-quiz-bot/internal/infra/postgres"
	"telegram-quiz-bot/internal/infra/postgres/migrations"
	infraredis "telegram-quiz-bot/internal/infra/redis"
)

func TestGroupQuizEndToEndWithPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	seedBank(t, ctx, pgURL, sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	b, err := bank.Load(ctx, postgres.NewQuestionSource(pool, "bank-1"))
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	if b.Len() != len(sampleQuestions()) {
		t.Fatalf("expected %d questions from postgres, got %d", len(sampleQuestions()), b.Len())
	}

	transport := &recordingTransport{}
	sched := &queuedScheduler{}
	engine := app.NewEngine(app.Config{SessionLength: 2}, b, transport, postgres.NewLedger(pool), sched)

	if err := engine.StartQuiz(ctx, 100, false); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	poll := transport.last(t)
	engine.HandlePollAnswer(ctx, poll.pollID, 7, "Alice", []int{poll.correctIdx})
	sched.fire(t)

	poll = transport.last(t)
	engine.HandlePollAnswer(ctx, poll.pollID, 7, "Alice", []int{poll.correctIdx})
	engine.HandlePollAnswer(ctx, poll.pollID, 8, "Bob", []int{(poll.correctIdx + 1) % 3})
	sched.fire(t)

	entries, err := engine.Leaderboard(ctx, 100, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != 7 || entries[0].Score != 2 {
		t.Fatalf("expected Alice=2 persisted, got %+v", entries)
	}

	if err := engine.ResetScores(ctx, 100); err != nil {
		t.Fatalf("reset: %v", err)
	}
	entries, err = engine.Leaderboard(ctx, 100, 10)
	if err != nil {
		t.Fatalf("leaderboard after reset: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("reset left rows behind: %+v", entries)
	}
}

func TestRedisLedgerAgainstRealServer(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, cleanup := startRedis(t, ctx)
	defer cleanup()

	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	ledger := infraredis.NewLedger(client)

	if err := ledger.Increment(ctx, 100, 1, "alice", 3); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := ledger.Increment(ctx, 100, 2, "Bob", 5); err != nil {
		t.Fatalf("increment: %v", err)
	}

	entries, err := ledger.TopN(ctx, 100, 10)
	if err != nil {
		t.Fatalf("topn: %v", err)
	}
	if len(entries) != 2 || entries[0].UserID != 2 || entries[0].Score != 5 {
		t.Fatalf("expected Bob leading with 5, got %+v", entries)
	}

	if err := ledger.Reset(ctx, 100); err != nil {
		t.Fatalf("reset: %v", err)
	}
	entries, err = ledger.TopN(ctx, 100, 10)
	if err != nil {
		t.Fatalf("topn after reset: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("reset left entries: %+v", entries)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedBank(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(questions)
	if err != nil {
		t.Fatalf("marshal bank: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO question_banks (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, "bank-1", string(data)); err != nil {
		t.Fatalf("insert bank: %v", err)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
		{Text: "What is 3 + 3?", Options: []string{"5", "6", "7"}, CorrectIndex: 1},
		{Text: "What is 4 + 4?", Options: []string{"7", "8", "9"}, CorrectIndex: 1},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

type recordedPoll struct {
	pollID     string
	correctIdx int
}

type recordingTransport struct {
	mu    sync.Mutex
	polls []recordedPoll
}

func (r *recordingTransport) PostQuestion(_ context.Context, _ int64, _ string, _ []string, correctIdx, _ int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	poll := recordedPoll{pollID: fmt.Sprintf("poll-%d", len(r.polls)+1), correctIdx: correctIdx}
	r.polls = append(r.polls, poll)
	return poll.pollID, nil
}

func (r *recordingTransport) PostMessage(context.Context, int64, string) error { return nil }

func (r *recordingTransport) last(t *testing.T) recordedPoll {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.polls) == 0 {
		t.Fatalf("no poll posted")
	}
	return r.polls[len(r.polls)-1]
}

type queuedScheduler struct {
	mu    sync.Mutex
	armed []func()
}

func (s *queuedScheduler) Arm(_ time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = append(s.armed, fire)
}

func (s *queuedScheduler) fire(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	if len(s.armed) == 0 {
		s.mu.Unlock()
		t.Fatalf("no timer armed")
	}
	fire := s.armed[0]
	s.armed = s.armed[1:]
	s.mu.Unlock()
	fire()
}
