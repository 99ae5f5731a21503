package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/config"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/llm"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/personality"
)

const defaultConfigPath = "config.yaml"

// newSetupCmd creates the `replyclaw setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard that writes config.yaml.
Asks for the bot name, command prefix, model backend, memory backend and the
Discord token. Secrets go to the OS keyring when one is available and are
never written to the config file.

Examples:
  replyclaw setup
  replyclaw setup --output ./configs/config.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")
			return runSetupWizard(out)
		},
	}
	cmd.Flags().StringP("output", "o", defaultConfigPath, "where to write the config file")
	return cmd
}

// runSetupWizard guides the user through config creation.
func runSetupWizard(path string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("setup needs an interactive terminal; write config.yaml by hand or run 'replyclaw config init'")
	}

	cfg := config.DefaultConfig()
	if existing, err := config.LoadFile(path); err == nil {
		cfg = existing
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║           ReplyClaw - Setup Wizard           ║")
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()

	var token, apiKey string
	provider := strings.ToLower(cfg.Backend.Provider)
	if provider == "" {
		provider = "ollama"
	}

	personalities := personality.Embedded().Names()
	personalityOpts := make([]huh.Option[string], 0, len(personalities))
	for _, name := range personalities {
		personalityOpts = append(personalityOpts, huh.NewOption(name, name))
	}

	form := huh.NewForm(
		// ── Step 1: identity ──
		huh.NewGroup(
			huh.NewInput().
				Title("Bot name").
				Value(&cfg.Name),
			huh.NewInput().
				Title("Command prefix").
				Description("Commands look like <prefix>reply, <prefix>setTone ...").
				Value(&cfg.Trigger).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" || strings.ContainsAny(s, " \t") {
						return errors.New("prefix must be non-empty and contain no spaces")
					}
					return nil
				}),
		),

		// ── Step 2: model backend ──
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Model backend").
				Options(
					huh.NewOption("Ollama (local)", "ollama"),
					huh.NewOption("OpenAI-compatible API", "openai"),
				).
				Value(&provider),
			huh.NewInput().
				Title("Endpoint").
				Description("Leave empty for the provider default.").
				Value(&cfg.Backend.Endpoint),
			huh.NewInput().
				Title("Model").
				Value(&cfg.Backend.Model),
		),

		// ── Step 3: secrets ──
		huh.NewGroup(
			huh.NewInput().
				Title("Discord bot token").
				Description("Leave empty to keep the current token.").
				EchoMode(huh.EchoModePassword).
				Value(&token),
			huh.NewInput().
				Title("API key (OpenAI-compatible backends only)").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),

		// ── Step 4: memory and personality ──
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Memory backend").
				Options(
					huh.NewOption("JSON files (one per server)", "file"),
					huh.NewOption("SQLite database", "sqlite"),
				).
				Value(&cfg.Memory.Backend),
			huh.NewSelect[string]().
				Title("Default personality").
				Options(personalityOpts...).
				Value(&cfg.Personalities.Default),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	cfg.Backend.Provider = provider
	if provider == "openai" && cfg.Backend.Model == llm.DefaultOllamaModel {
		cfg.Backend.Model = "gpt-4o-mini"
	}
	if provider == "openai" && cfg.Backend.Endpoint == llm.DefaultOllamaEndpoint {
		cfg.Backend.Endpoint = ""
	}

	// ── Secrets ──
	cfg.Discord.Token = storeSecret(config.KeyringDiscordToken, config.EnvDiscordToken, token, cfg.Discord.Token)
	cfg.Backend.APIKey = storeSecret(config.KeyringAPIKey, config.EnvAPIKey, apiKey, cfg.Backend.APIKey)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Configuration written to %s\n", path)
	fmt.Println("Start the bot with: replyclaw serve")
	return nil
}

// storeSecret puts a newly entered secret in the keyring and returns the
// value to keep in the config file.
func storeSecret(key, envVar, entered, current string) string {
	if entered == "" {
		return current
	}
	if config.KeyringAvailable() {
		if err := config.MigrateToKeyring(key, entered, nil); err == nil {
			fmt.Printf("  Stored %s in the OS keyring (service %q).\n", key, config.KeyringService)
			return ""
		}
	}
	fmt.Printf("  [!] No OS keyring available. Export %s before running the bot.\n", envVar)
	return "${" + envVar + "}"
}
