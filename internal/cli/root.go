package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	token      string
)

// Execute runs the CLI.
func Execute() error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "quizbot",
		Short: "Telegram group-quiz bot with timed poll sessions",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("BOT_TOKEN"), "telegram bot token (overrides config)")
	cmd.AddCommand(NewStartCmd(&configPath, &token))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewCheckCmd(&configPath))
	return cmd
}
