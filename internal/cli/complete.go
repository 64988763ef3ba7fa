package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newCompleteCommand(opts *options) *cobra.Command {
	var (
		maxTokens int
		generate  bool
	)
	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Complete a prompt and print the first choice",
		Long: `Loads the configured model, completes the prompt with echo disabled and
prints the generated text. With no argument (or "-") the prompt is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel, cmd.ErrOrStderr())

			prompt, err := readPrompt(cmd, args)
			if err != nil {
				return err
			}

			activateVenv(cfg, log)
			c, err := buildCompleter(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = c.Shutdown() }()
			if err := c.Setup(cmd.Context()); err != nil {
				return err
			}

			var text string
			switch {
			case maxTokens > 0:
				text, err = c.Transform(cmd.Context(), prompt, maxTokens)
			case generate:
				text, err = c.Generate(cmd.Context(), prompt)
			default:
				text, err = c.Complete(cmd.Context(), prompt)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().IntVarP(&maxTokens, "max-tokens", "n", 0, "token budget (default: max_new_tokens.completion)")
	cmd.Flags().BoolVar(&generate, "generate", false, "use the max_new_tokens.generation budget")
	return cmd
}

func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}
