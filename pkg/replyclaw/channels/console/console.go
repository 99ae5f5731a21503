// Package console is a terminal front end for the reply pipeline. It speaks
// as a single local user (tenant user_<id>) and supports the same commands
// as the Discord bot plus attaching local files.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/assistant"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/channels"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/ingest"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/tenant"
)

// ChannelID groups console turns inside the tenant record.
const ChannelID = "console"

// LineReader is the prompt source. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// Console runs questions and commands for one local user.
type Console struct {
	a        *assistant.Assistant
	tenant   tenant.Tenant
	userID   string
	userName string
	out      io.Writer
	logger   *slog.Logger

	mu      sync.Mutex
	pending []string
}

// New creates a console speaking as userID. A nil out writes to stdout.
func New(a *assistant.Assistant, userID, userName string, out io.Writer, logger *slog.Logger) *Console {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		a:        a,
		tenant:   tenant.User(userID),
		userID:   userID,
		userName: userName,
		out:      out,
		logger:   logger.With("component", "console"),
	}
}

// Tenant returns the tenant the console writes to.
func (c *Console) Tenant() tenant.Tenant { return c.tenant }

// Ask sends one question with optional file paths.
func (c *Console) Ask(ctx context.Context, question string, files []string) error {
	req := channels.Request{
		Tenant:    c.tenant,
		ChannelID: ChannelID,
		UserID:    c.userID,
		UserName:  c.userName,
		Question:  question,
	}
	for _, f := range files {
		req.Attachments = append(req.Attachments, ingest.FileAttachment(f))
	}
	return c.a.Reply(ctx, req, &responder{out: c.out})
}

// Attach queues a file for the next question.
func (c *Console) Attach(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	c.mu.Lock()
	c.pending = append(c.pending, abs)
	c.mu.Unlock()
	return nil
}

// Handle runs one input line. Command lines run the matching command, any
// other text is a question. It reports false when the user asked to quit.
func (c *Console) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return true
	case "exit", "quit", "/exit", "/quit":
		return false
	}

	trigger := c.a.Trigger()
	if rest, ok := strings.CutPrefix(line, trigger+"attach"); ok && (rest == "" || rest[0] == ' ') {
		path := strings.TrimSpace(rest)
		if path == "" {
			c.print("Usage: " + trigger + "attach <path>")
			return true
		}
		if err := c.Attach(path); err != nil {
			c.print("📎 " + err.Error())
			return true
		}
		c.print("📎 Attached " + filepath.Base(path) + " to your next question.")
		return true
	}

	name, args, ok := c.a.ParseCommand(line)
	if !ok {
		name, args = "reply", line
	}

	switch name {
	case "reply":
		c.mu.Lock()
		files := c.pending
		c.pending = nil
		c.mu.Unlock()
		if err := c.Ask(ctx, args, files); err != nil {
			c.logger.Debug("reply failed", "error", err)
		}
	case "commands":
		c.print(c.a.CommandList() + "\n`" + trigger + "attach <path>` - Attach a local file to the next question.")
	case "forget":
		text, _ := c.a.Forget(ctx, c.tenant)
		c.print(text)
	case "tone":
		text, _ := c.a.CurrentTone(ctx, c.tenant)
		c.print(text)
	case "settone":
		if args == "" {
			c.print(c.a.PersonalityList())
			return true
		}
		text, _ := c.a.SetPersonality(ctx, c.tenant, args)
		c.print(text)
	case "listtone":
		c.print(c.a.PersonalityList())
	}
	return true
}

// Run reads lines until EOF, interrupt, an exit command or ctx cancellation.
func (c *Console) Run(ctx context.Context, in LineReader) error {
	defer in.Close()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !c.Handle(ctx, line) {
			return nil
		}
	}
}

// NewReadline creates an interactive line reader with persistent history.
func NewReadline(prompt, historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

func (c *Console) print(text string) {
	fmt.Fprintln(c.out, text)
}

// responder writes answers to the terminal.
type responder struct {
	mu  sync.Mutex
	out io.Writer
}

func (r *responder) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintln(r.out, text)
	return err
}

func (r *responder) Placeholder(ctx context.Context, text string) (channels.Placeholder, error) {
	if err := r.Send(ctx, text); err != nil {
		return nil, err
	}
	return &placeholder{r: r}, nil
}

// placeholder cannot unprint; edits print a new line and deletes are no-ops.
type placeholder struct{ r *responder }

func (p *placeholder) Edit(ctx context.Context, text string) error { return p.r.Send(ctx, text) }

func (p *placeholder) Delete(context.Context) error { return nil }

var _ channels.PlaceholderResponder = (*responder)(nil)
