package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("RC_TEST_SET", "value")
	os.Unsetenv("RC_TEST_UNSET")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"braced", "a: ${RC_TEST_SET}", "a: value", false},
		{"bare", "a: $RC_TEST_SET", "a: value", false},
		{"default used", "a: ${RC_TEST_UNSET:-fallback}", "a: fallback", false},
		{"default ignored", "a: ${RC_TEST_SET:-fallback}", "a: value", false},
		{"unset kept", "a: ${RC_TEST_UNSET}", "a: ${RC_TEST_UNSET}", false},
		{"required missing", "a: ${RC_TEST_UNSET:?set it}", "", true},
		{"required present", "a: ${RC_TEST_SET:?set it}", "a: value", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnv(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "RC_TEST_UNSET: set it")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
trigger: "?"
memory:
  backend: sqlite
backend:
  provider: openai
  model: gpt-4o-mini
  timeout: 30s
reply:
  cooldown: 3s
context:
  history_turns: 4
`))
	require.NoError(t, err)

	assert.Equal(t, "?", cfg.Trigger)
	assert.Equal(t, "sqlite", cfg.Memory.Backend)
	assert.Equal(t, "./data/memory.db", cfg.Memory.SQLitePath)
	assert.Equal(t, "openai", cfg.Backend.Provider)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Reply.Cooldown)
	assert.Equal(t, 4, cfg.Context.HistoryTurns)
	assert.Equal(t, 20, cfg.Context.RecentLimit)
	assert.True(t, cfg.Discord.DirectMessages)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, int64(25*1024*1024), cfg.Ingest.MaxFileBytes)

	ac := cfg.AssistantConfig()
	assert.Equal(t, "?", ac.Trigger)
	assert.Equal(t, 3*time.Second, ac.Cooldown)
}

func TestParse_ExplicitFalse(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte("scheduler:\n  enabled: false\ndiscord:\n  direct_messages: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.False(t, cfg.Discord.DirectMessages)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Memory.Backend = "redis"
	cfg.Personalities.Collision = "panic"
	cfg.Reply.ChunkSize = 5000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory.backend")
	assert.Contains(t, err.Error(), "personalities.collision")
	assert.Contains(t, err.Error(), "reply.chunk_size")
}

func TestLoadFile_ResolvesPathsAndEnv(t *testing.T) {
	t.Setenv(EnvDiscordToken, "")
	t.Setenv(EnvAPIKey, "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("RC_MODEL", "llama3")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
memory:
  dir: ./memories
personalities:
  dir: /etc/replyclaw/personalities
backend:
  model: ${RC_MODEL}
discord:
  token: file-token
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "memories"), cfg.Memory.Dir)
	assert.Equal(t, "/etc/replyclaw/personalities", cfg.Personalities.Dir)
	assert.Equal(t, "llama3", cfg.Backend.Model)
	assert.Equal(t, "file-token", cfg.Discord.Token)

	t.Setenv(EnvDiscordToken, "env-token")
	cfg, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Discord.Token)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("memory:\n  backend: redis\n"), 0o600))
	_, err = LoadFile(bad)
	assert.ErrorContains(t, err, "memory.backend")
}

func TestResolveSecrets_KeyringWins(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, StoreKeyring(KeyringDiscordToken, "keyring-token"))
	t.Cleanup(func() { _ = DeleteKeyring(KeyringDiscordToken) })

	cfg := DefaultConfig()
	cfg.Discord.Token = "env-or-file-token"
	cfg.Backend.APIKey = "${UNEXPANDED}"
	ResolveSecrets(cfg, nil)

	assert.Equal(t, "keyring-token", cfg.Discord.Token)
	assert.Empty(t, cfg.Backend.APIKey)
	assert.True(t, KeyringAvailable())
}

func TestSave_RoundTrip(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvDiscordToken, "secret-token")

	path := filepath.Join(t.TempDir(), "out", "config.yaml")
	cfg := DefaultConfig()
	cfg.Trigger = "?"
	cfg.Discord.Token = "secret-token"
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "${REPLYCLAW_DISCORD_TOKEN}")
	assert.NotContains(t, string(data), "secret-token")

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "?", back.Trigger)

	require.NoError(t, Save(cfg, path))
	assert.FileExists(t, path+".bak")
}
