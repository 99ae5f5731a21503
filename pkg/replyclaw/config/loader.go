package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR}, ${VAR:-default}, ${VAR:?message} and $VAR.
//
// Capture groups:
//   - 1: variable name (braced form)
//   - 2: modifier ("-" or "?")
//   - 3: default value or error message
//   - 4: variable name (bare form)
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// EnvFiles are loaded before the config file. Existing variables win.
var EnvFiles = []string{".env", ".env.local"}

// Load reads the config file at path, or returns the defaults when path is
// empty and no config file is found in the standard locations. The second
// return value is the path actually used ("" for defaults).
func Load(path string) (*Config, string, error) {
	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		loadEnvFiles()
		cfg := DefaultConfig()
		resolveEnvSecrets(cfg)
		return cfg, "", nil
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// LoadFile reads and parses a YAML configuration file. .env files are loaded
// first and environment references are expanded before parsing.
func LoadFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := ExpandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg, err := Parse([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveEnvSecrets(cfg)
	resolveRelativePaths(cfg, path)
	checkFilePermissions(path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse overlays YAML onto DefaultConfig.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	// Absent bools decode as false; keep defaults for sections the file omits.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err == nil {
		def := DefaultConfig()
		if !hasKey(raw, "discord", "direct_messages") {
			cfg.Discord.DirectMessages = def.Discord.DirectMessages
		}
		if !hasKey(raw, "scheduler", "enabled") {
			cfg.Scheduler.Enabled = def.Scheduler.Enabled
		}
	}
	return cfg, nil
}

// Save writes cfg as YAML with owner-only permissions, keeping a .bak of the
// previous file. Secrets that came from the keyring or environment are not
// written.
func Save(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.Discord.Token = sanitizeSecret(cfg.Discord.Token, EnvDiscordToken)
	sanitized.Backend.APIKey = sanitizeSecret(cfg.Backend.APIKey, EnvAPIKey)

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	if existing, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(path+".bak", existing, 0o600)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches the standard locations.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"replyclaw.yaml",
		"replyclaw.yml",
		"configs/config.yaml",
		"configs/replyclaw.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ExpandEnv replaces environment references in input. An unset variable with
// the ${VAR:?message} form is an error; other unset references without a
// default are left as written.
func ExpandEnv(input string) (string, error) {
	var errs []error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name, modifier, value, bare := sub[1], sub[2], sub[3], sub[4]

		if bare != "" {
			if val, ok := os.LookupEnv(bare); ok {
				return val
			}
			return match
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		switch modifier {
		case "-":
			return value
		case "?":
			if value == "" {
				value = "required environment variable not set"
			}
			errs = append(errs, fmt.Errorf("%s: %s", name, value))
			return ""
		}
		return match
	})
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return out, nil
}

// ---------- Internal ----------

// loadEnvFiles loads .env files. godotenv.Load never overwrites variables
// that are already set.
func loadEnvFiles() {
	for _, f := range EnvFiles {
		_ = godotenv.Load(f)
	}
}

func hasKey(raw map[string]any, section, key string) bool {
	m, ok := raw[section].(map[string]any)
	if !ok {
		return false
	}
	_, ok = m[key]
	return ok
}

// resolveRelativePaths makes file paths relative to the config file.
func resolveRelativePaths(cfg *Config, configPath string) {
	dir := filepath.Dir(configPath)
	cfg.Memory.Dir = resolvePath(cfg.Memory.Dir, dir)
	cfg.Memory.SQLitePath = resolvePath(cfg.Memory.SQLitePath, dir)
	cfg.Personalities.Dir = resolvePath(cfg.Personalities.Dir, dir)
	cfg.Ingest.TempDir = resolvePath(cfg.Ingest.TempDir, dir)
}

// resolvePath expands ~ and joins relative paths onto base.
func resolvePath(path, base string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		path = filepath.Join(home, path[2:])
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func sanitizeSecret(value, envVar string) string {
	if value == "" || IsEnvReference(value) {
		return value
	}
	if os.Getenv(envVar) == value {
		return "${" + envVar + "}"
	}
	if value == GetKeyring(keyForEnv(envVar)) {
		return ""
	}
	return value
}

// IsEnvReference reports whether s is an unexpanded environment reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "$")
}

// checkFilePermissions warns when the config file is readable by others.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if mode := info.Mode().Perm(); mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
		)
	}
}
