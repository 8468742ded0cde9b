package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"telegram-quiz-bot/internal/app"
	"telegram-quiz-bot/internal/bank"
	"telegram-quiz-bot/internal/config"
	"telegram-quiz-bot/internal/infra/memory"
	pgstore "telegram-quiz-bot/internal/infra/postgres"
	redisstore "telegram-quiz-bot/internal/infra/redis"
	transport "telegram-quiz-bot/internal/transport/http"
	"telegram-quiz-bot/internal/transport/telegram"
)

// NewStartCmd builds the CLI subcommand to run the bot.
func NewStartCmd(configPath, token *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), *configPath, *token)
		},
	}
}

func runBot(ctx context.Context, configPath, tokenFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	botToken := tokenFlag
	if botToken == "" {
		botToken = cfg.Telegram.Token
	}
	if botToken == "" {
		return fmt.Errorf("telegram token not set (flag --token, env BOT_TOKEN, or telegram.token in config)")
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// A corrupt bank refuses to start the service; there is no partial mode.
	questionBank, err := loadBank(ctx, cfg, pool)
	if err != nil {
		return err
	}
	slog.Info("question bank loaded", "questions", questionBank.Len())

	var ledger app.Ledger
	switch {
	case pool != nil:
		ledger = pgstore.NewLedger(pool)
	case redisClient != nil:
		ledger = redisstore.NewLedger(redisClient)
	default:
		ledger = memory.NewLedger()
	}

	bot, err := telegram.New(botToken)
	if err != nil {
		return err
	}

	engine := app.NewEngine(app.Config{
		SessionLength: cfg.Quiz.SessionLength,
		OpenPeriod:    config.Seconds(cfg.Quiz.OpenPeriodSeconds, app.DefaultOpenPeriod),
		SafetyMargin:  config.Seconds(cfg.Quiz.AdvanceSafetyMarginSeconds, app.DefaultSafetyMargin),
	}, questionBank, bot, ledger, app.TimerScheduler{})
	bot.Bind(engine)

	var server *http.Server
	if cfg.Server.Port != "" {
		wsHandler := transport.NewWSHandler(engine)
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ws", wsHandler.ServeWS)
		server = &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting telegram poller")
		bot.Start()
		return nil
	})

	if server != nil {
		g.Go(func() error {
			slog.Info("starting scoreboard feed", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-stop:
			slog.Info("shutting down")
		case <-gctx.Done():
		}
		bot.Stop()
		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}

func loadBank(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (*bank.Bank, error) {
	if cfg.Quiz.BankID != "" && pool != nil {
		return bank.Load(ctx, pgstore.NewQuestionSource(pool, cfg.Quiz.BankID))
	}
	path := cfg.Quiz.QuestionsPath
	if path == "" {
		path = "questions.json"
	}
	return bank.Load(ctx, bank.NewFileSource(path))
}
