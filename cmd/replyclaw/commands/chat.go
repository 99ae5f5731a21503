package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/assistant"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/channels/console"
)

// newChatCmd creates the `replyclaw chat` command for local conversations.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Talk to the bot from the terminal",
		Long: `Ask a single question, or start an interactive session when no
question is given. Conversations are stored like a Discord direct message
for the local user.

Examples:
  replyclaw chat "Explain goroutines like I'm five"
  replyclaw chat --file report.pdf "What are the key risks?"
  replyclaw chat            # interactive mode`,
		Args: cobra.ArbitraryArgs,
		RunE: runChat,
	}

	cmd.Flags().StringSliceP("file", "f", nil, "file to attach (repeatable)")
	cmd.Flags().String("user", "local", "local user id the conversation is stored under")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg, os.Stderr, true)

	// Local use has a single speaker; rate limiting only gets in the way.
	cfg.Reply.Cooldown = -1

	a, err := buildApp(cfg, path, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	userID, _ := cmd.Flags().GetString("user")
	files, _ := cmd.Flags().GetStringSlice("file")
	c := console.New(a.assistant, userID, userID, os.Stdout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question != "" || len(files) > 0 {
		err := c.Ask(ctx, question, files)
		if errors.Is(err, assistant.ErrEmptyRequest) {
			return nil
		}
		return err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("no question given and stdin is not a terminal")
	}

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".replyclaw_history")
	}
	rl, err := console.NewReadline(cfg.Name+"> ", historyFile)
	if err != nil {
		return fmt.Errorf("starting prompt: %w", err)
	}

	fmt.Printf("%s interactive chat. Type %scommands for help, exit to quit.\n", cfg.Name, cfg.Trigger)
	return c.Run(ctx, rl)
}
