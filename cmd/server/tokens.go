package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sleepstars/chupapi/internal/config"
	"github.com/sleepstars/chupapi/internal/tokenizer"
)

func newTokensCmd(configPath *string) *cobra.Command {
	var withPrompt bool

	cmd := &cobra.Command{
		Use:   "tokens [file]",
		Short: "Count tokens in a file, or stdin, with the configured encoding",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			tk, err := tokenizer.New(cfg.Chat.Encoding)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			count := tk.Count(string(data))
			if withPrompt {
				count += tk.Count(cfg.Chat.SystemPrompt)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tokens (%s, limit %d)\n", count, tk.Encoding(), cfg.Chat.MaxTokens)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withPrompt, "with-prompt", false, "Include the system prompt in the count")
	return cmd
}
