package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/assistant"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/config"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/ingest"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/llm"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/memory"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/personality"
)

// app holds the components every command builds from the config.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	store      *memory.Store
	registry   *personality.Registry
	ingester   *ingest.Ingester
	assistant  *assistant.Assistant
}

// loadConfig reads --config (or the discovered file) and resolves secrets.
func loadConfig(cmd *cobra.Command, logger *slog.Logger) (*config.Config, string, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, path, err := config.Load(configPath)
	if err != nil {
		if path != "" {
			return nil, path, fmt.Errorf("loading config from %s: %w", path, err)
		}
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	config.ResolveSecrets(cfg, logger)
	return cfg, path, nil
}

// newLogger builds the slog logger from the config and --verbose.
func newLogger(cmd *cobra.Command, cfg *config.Config, w io.Writer, quiet bool) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if quiet && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// openStore opens the configured memory backend.
func openStore(cfg *config.Config, logger *slog.Logger) (*memory.Store, error) {
	backend, err := memory.OpenBackend(strings.ToLower(cfg.Memory.Backend), cfg.Memory.Dir, cfg.Memory.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening memory: %w", err)
	}
	return memory.NewStore(backend,
		memory.WithFallbackPersonality(cfg.Personalities.Default),
		memory.WithLogger(logger),
	), nil
}

// loadRegistry loads the personality catalog, built-in when no dir is set.
func loadRegistry(cfg *config.Config, logger *slog.Logger) (*personality.Registry, error) {
	if cfg.Personalities.Dir == "" {
		return personality.Embedded(), nil
	}
	reg, err := personality.Load(cfg.Personalities.Dir, personality.LoadOptions{
		Collision: personality.CollisionPolicy(cfg.Personalities.Collision),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("loading personalities: %w", err)
	}
	return reg, nil
}

// buildApp wires config, memory, personalities, ingestion and the backend.
func buildApp(cfg *config.Config, configPath string, logger *slog.Logger) (*app, error) {
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	registry, err := loadRegistry(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	if !registry.IsValid(cfg.Personalities.Default) {
		store.Close()
		return nil, fmt.Errorf("personalities.default %q is not in the catalog", cfg.Personalities.Default)
	}
	ingester, err := ingest.New(cfg.Ingest.Config, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("preparing ingestion: %w", err)
	}
	generator, err := llm.New(cfg.Backend, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	return &app{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		store:      store,
		registry:   registry,
		ingester:   ingester,
		assistant:  assistant.New(cfg.AssistantConfig(), store, registry, ingester, generator, logger),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// ── Tenant flags ──

// addTenantFlags registers --guild and --user on cmd.
func addTenantFlags(cmd *cobra.Command) {
	cmd.Flags().String("guild", "", "guild (server) id")
	cmd.Flags().String("user", "", "user id (direct-message memory)")
	cmd.MarkFlagsMutuallyExclusive("guild", "user")
}

var errNoTenant = errors.New("one of --guild or --user is required")

// openMemoryOnly loads the config and opens just the memory store.
func openMemoryOnly(cmd *cobra.Command) (*memory.Store, *config.Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg, _, err := loadConfig(cmd, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}
