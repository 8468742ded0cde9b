package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"telegram-quiz-bot/internal/bank"
	"telegram-quiz-bot/internal/config"
)

// NewCheckCmd validates the question file without starting the bot.
func NewCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check [questions-file]",
		Short: "Validate a question file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				path = cfg.Quiz.QuestionsPath
			}
			if path == "" {
				path = "questions.json"
			}

			b, err := bank.Load(cmd.Context(), bank.NewFileSource(path))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: %d questions, all valid\n", path, b.Len())
			return nil
		},
	}
}
