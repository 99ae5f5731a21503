// Package config holds the ReplyClaw configuration: the YAML schema, its
// defaults, loading with environment expansion, and secret resolution.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/aggregator"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/assistant"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/ingest"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/llm"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/memory"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/personality"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/postprocess"
)

// Config is the root configuration.
type Config struct {
	// Name is the bot display name used in logs and the CLI.
	Name string `yaml:"name"`

	// Trigger is the chat command prefix (default "!").
	Trigger string `yaml:"trigger"`

	Memory        MemoryConfig       `yaml:"memory"`
	Personalities PersonalityConfig  `yaml:"personalities"`
	Ingest        IngestConfig       `yaml:"ingest"`
	Context       aggregator.Options `yaml:"context"`
	Backend       llm.Config         `yaml:"backend"`
	Reply         ReplyConfig        `yaml:"reply"`
	Discord       DiscordConfig      `yaml:"discord"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// MemoryConfig selects the tenant memory backend.
type MemoryConfig struct {
	// Backend is "file" (default) or "sqlite".
	Backend string `yaml:"backend"`

	// Dir holds one JSON file per tenant (file backend).
	Dir string `yaml:"dir"`

	// SQLitePath is the database file (sqlite backend).
	SQLitePath string `yaml:"sqlite_path"`
}

// PersonalityConfig locates the personality catalog.
type PersonalityConfig struct {
	// Dir is the catalog directory. Empty uses the built-in catalog.
	Dir string `yaml:"dir"`

	// Default is the fallback personality name.
	Default string `yaml:"default"`

	// Collision is "warn" (default) or "strict".
	Collision string `yaml:"collision"`
}

// IngestConfig configures file extraction.
type IngestConfig struct {
	ingest.Config `yaml:",inline"`

	// ExcerptChars bounds the file context stored with each Turn.
	ExcerptChars int `yaml:"excerpt_chars"`
}

// ReplyConfig tunes request handling.
type ReplyConfig struct {
	// Cooldown is the per-user request window (default 10s).
	Cooldown time.Duration `yaml:"cooldown"`

	// ChunkSize is the maximum delivered message length (default 2000).
	ChunkSize int `yaml:"chunk_size"`
}

// DiscordConfig configures the Discord adapter.
type DiscordConfig struct {
	// Token is the bot token. Prefer the keyring or REPLYCLAW_DISCORD_TOKEN.
	Token string `yaml:"token"`

	// AllowedGuilds restricts the bot to these guild ids (empty = all).
	AllowedGuilds []string `yaml:"allowed_guilds"`

	// AllowedUsers restricts who may use the bot (empty = everyone).
	AllowedUsers []string `yaml:"allowed_users"`

	// DirectMessages enables replies in DMs (default true).
	DirectMessages bool `yaml:"direct_messages"`

	// PickerPageSize is the number of personalities per picker page.
	PickerPageSize int `yaml:"picker_page_size"`

	// PickerTTL is how long picker buttons stay active.
	PickerTTL time.Duration `yaml:"picker_ttl"`

	// MaxDownloadBytes bounds attachment downloads (default: ingest.max_file_bytes).
	MaxDownloadBytes int64 `yaml:"max_download_bytes"`
}

// SchedulerConfig configures maintenance jobs.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`

	// TempSweep is the cron spec of the orphaned temp file sweep.
	TempSweep string `yaml:"temp_sweep"`

	// TempMaxAge is the age after which a temp file counts as orphaned.
	TempMaxAge time.Duration `yaml:"temp_max_age"`

	// CooldownPrune is the cron spec of the idle limiter prune.
	CooldownPrune string `yaml:"cooldown_prune"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is "json" (default) or "text".
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	pipeline := assistant.DefaultConfig()
	return &Config{
		Name:    "ReplyClaw",
		Trigger: "!",
		Memory: MemoryConfig{
			Backend:    "file",
			Dir:        memory.DefaultDir,
			SQLitePath: "./data/memory.db",
		},
		Personalities: PersonalityConfig{
			Default:   memory.DefaultPersonality,
			Collision: string(personality.CollisionWarn),
		},
		Ingest: IngestConfig{
			Config:       ingest.DefaultConfig(),
			ExcerptChars: ingest.DefaultExcerptChars,
		},
		Context: aggregator.DefaultOptions(),
		Backend: llm.DefaultConfig(),
		Reply: ReplyConfig{
			Cooldown:  pipeline.Cooldown,
			ChunkSize: postprocess.DefaultChunkSize,
		},
		Discord: DiscordConfig{
			DirectMessages: true,
			PickerPageSize: 5,
			PickerTTL:      5 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			TempSweep:     "@every 10m",
			TempMaxAge:    time.Hour,
			CooldownPrune: "@every 5m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Memory.Backend) {
	case "", "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("memory.backend: unknown backend %q", c.Memory.Backend))
	}
	switch personality.CollisionPolicy(c.Personalities.Collision) {
	case "", personality.CollisionWarn, personality.CollisionStrict:
	default:
		errs = append(errs, fmt.Errorf("personalities.collision: unknown policy %q", c.Personalities.Collision))
	}
	switch strings.ToLower(c.Backend.Provider) {
	case "", "ollama", "openai":
	default:
		errs = append(errs, fmt.Errorf("backend.provider: unknown provider %q", c.Backend.Provider))
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, errors.New("backend.timeout must not be negative"))
	}
	if c.Reply.ChunkSize < 0 || c.Reply.ChunkSize > postprocess.DefaultChunkSize {
		errs = append(errs, fmt.Errorf("reply.chunk_size must be between 1 and %d", postprocess.DefaultChunkSize))
	}
	if c.Trigger == "" {
		errs = append(errs, errors.New("trigger must not be empty"))
	}
	return errors.Join(errs...)
}

// AssistantConfig maps the file configuration onto the pipeline settings.
func (c *Config) AssistantConfig() assistant.Config {
	return assistant.Config{
		Trigger:             c.Trigger,
		Cooldown:            c.Reply.Cooldown,
		ChunkSize:           c.Reply.ChunkSize,
		ExcerptChars:        c.Ingest.ExcerptChars,
		FallbackPersonality: c.Personalities.Default,
		Context:             c.Context,
	}
}
