// Package llm is the generation gateway: it sends one composed prompt to a
// text-generation backend and normalizes every failure into ErrTimeout,
// ErrBackendUnavailable or *APIError.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// NoResponse is returned as the reply text when the backend answered without
// a response body.
const NoResponse = "🤖 No response from model."

var (
	// ErrBackendUnavailable means the backend could not be reached or
	// returned a non-success status.
	ErrBackendUnavailable = errors.New("llm: backend unavailable")

	// ErrTimeout means the call did not finish within the configured deadline.
	ErrTimeout = errors.New("llm: generation timed out")
)

// APIError carries a non-success HTTP status from the backend.
// It matches ErrBackendUnavailable with errors.Is.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, truncate(e.Body, 200))
}

func (e *APIError) Unwrap() error { return ErrBackendUnavailable }

// Generator produces a completion for one prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures the backend.
type Config struct {
	// Provider is "ollama" (default) or "openai".
	Provider string `yaml:"provider"`

	// Endpoint is the full generate URL for ollama, or the API base URL for
	// OpenAI-compatible servers.
	Endpoint string `yaml:"endpoint"`

	// Model is the model name.
	Model string `yaml:"model"`

	// APIKey authenticates OpenAI-compatible backends.
	APIKey string `yaml:"api_key"`

	// Timeout bounds one generation. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the local ollama defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "ollama",
		Endpoint: DefaultOllamaEndpoint,
		Model:    DefaultOllamaModel,
		Timeout:  60 * time.Second,
	}
}

// New builds the configured Generator wrapped with its timeout.
func New(cfg Config, logger *slog.Logger) (Generator, error) {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	var g Generator
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		g = NewOllamaClient(cfg.Endpoint, cfg.Model, logger)
	case "openai":
		if cfg.Model == "" {
			return nil, errors.New("llm: openai provider requires a model")
		}
		g = NewOpenAIClient(cfg.Endpoint, cfg.APIKey, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
	return WithTimeout(g, cfg.Timeout), nil
}

// ---------- Timeout ----------

type timeoutGenerator struct {
	next    Generator
	timeout time.Duration
}

// WithTimeout bounds every call to g. When the deadline passes the call is
// abandoned and ErrTimeout is returned, even if g ignores its context.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return &timeoutGenerator{next: g, timeout: d}
}

type generateResult struct {
	text string
	err  error
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan generateResult, 1)
	go func() {
		text, err := t.next.Generate(ctx, prompt)
		done <- generateResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return res.text, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", ctx.Err()
	}
}

// normalizeError maps transport failures onto the package sentinels.
func normalizeError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrBackendUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
