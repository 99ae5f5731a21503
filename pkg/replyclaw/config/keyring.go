package config

// Secrets are resolved in this order:
//  1. OS keyring (service "replyclaw")
//  2. Environment variable (REPLYCLAW_DISCORD_TOKEN, REPLYCLAW_API_KEY / OPENAI_API_KEY)
//  3. .env file (loaded by godotenv)
//  4. config.yaml value

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name used in the OS keyring.
	KeyringService = "replyclaw"

	// KeyringDiscordToken is the keyring entry for the Discord bot token.
	KeyringDiscordToken = "discord_token"

	// KeyringAPIKey is the keyring entry for the backend API key.
	KeyringAPIKey = "backend_api_key"

	EnvDiscordToken = "REPLYCLAW_DISCORD_TOKEN"
	EnvAPIKey       = "REPLYCLAW_API_KEY"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(KeyringService, key, value)
}

// GetKeyring returns a secret from the OS keyring, or "" when absent.
func GetKeyring(key string) string {
	val, err := keyring.Get(KeyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(KeyringService, key)
}

// KeyringAvailable reports whether the OS keyring accepts writes.
func KeyringAvailable() bool {
	const probe = "__replyclaw_probe__"
	if err := keyring.Set(KeyringService, probe, "x"); err != nil {
		return false
	}
	_ = keyring.Delete(KeyringService, probe)
	return true
}

// ResolveSecrets fills the Discord token and backend API key from the
// keyring, falling back to what env expansion and the file provided.
func ResolveSecrets(cfg *Config, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	if val := GetKeyring(KeyringDiscordToken); val != "" {
		cfg.Discord.Token = val
		logger.Debug("discord token loaded from OS keyring")
	} else if cfg.Discord.Token == "" || IsEnvReference(cfg.Discord.Token) {
		cfg.Discord.Token = ""
	}

	if val := GetKeyring(KeyringAPIKey); val != "" {
		cfg.Backend.APIKey = val
		logger.Debug("backend API key loaded from OS keyring")
	} else if IsEnvReference(cfg.Backend.APIKey) {
		cfg.Backend.APIKey = ""
	}
}

// MigrateToKeyring stores secret under key and tells the user where it went.
func MigrateToKeyring(key, secret string, logger *slog.Logger) error {
	if err := StoreKeyring(key, secret); err != nil {
		return fmt.Errorf("storing in keyring: %w", err)
	}
	if logger != nil {
		logger.Info("secret stored in OS keyring",
			"service", KeyringService,
			"key", key,
			"hint", "You can now remove it from .env and config.yaml")
	}
	return nil
}

// resolveEnvSecrets lets environment variables override file values and
// clears references that expanded to nothing.
func resolveEnvSecrets(cfg *Config) {
	if val := os.Getenv(EnvDiscordToken); val != "" {
		cfg.Discord.Token = val
	}
	if val := os.Getenv(EnvAPIKey); val != "" {
		cfg.Backend.APIKey = val
	} else if cfg.Backend.APIKey == "" || IsEnvReference(cfg.Backend.APIKey) {
		cfg.Backend.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func keyForEnv(envVar string) string {
	switch envVar {
	case EnvDiscordToken:
		return KeyringDiscordToken
	case EnvAPIKey:
		return KeyringAPIKey
	}
	return envVar
}
