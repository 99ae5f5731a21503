package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/config"
)

// newConfigCmd creates the `replyclaw config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Long: `Create, print and check the ReplyClaw configuration, and manage the
secrets kept in the OS keyring.

Examples:
  replyclaw config init
  replyclaw config show
  replyclaw config validate
  replyclaw config secret set discord_token`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigValidateCmd(),
		newConfigSecretCmd(),
	)
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", out)
			}
			cfg := config.DefaultConfig()
			cfg.Discord.Token = "${" + config.EnvDiscordToken + "}"
			if err := config.Save(cfg, out); err != nil {
				return err
			}
			fmt.Printf("Configuration written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", defaultConfigPath, "where to write the config file")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets masked)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Root().PersistentFlags().GetString("config")
			cfg, path, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg.Discord.Token = maskSecret(cfg.Discord.Token)
			cfg.Backend.APIKey = maskSecret(cfg.Backend.APIKey)

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Println("# no config file found, showing defaults")
			} else {
				fmt.Printf("# %s\n", path)
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and the personality catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			reg, err := loadRegistry(cfg, nil)
			if err != nil {
				return err
			}
			if !reg.IsValid(cfg.Personalities.Default) {
				return fmt.Errorf("personalities.default %q is not in the catalog", cfg.Personalities.Default)
			}
			if path == "" {
				path = "(defaults)"
			}
			fmt.Printf("%s: ok (%d personalities)\n", path, len(reg.Names()))
			if cfg.Discord.Token == "" {
				fmt.Printf("  warning: no Discord token; 'serve' needs %s or the keyring\n", config.EnvDiscordToken)
			}
			return nil
		},
	}
}

// ── Secrets ──

// secretKeys maps the names accepted on the command line to keyring entries.
var secretKeys = map[string]string{
	config.KeyringDiscordToken: config.EnvDiscordToken,
	config.KeyringAPIKey:       config.EnvAPIKey,
}

func newConfigSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Store or remove secrets in the OS keyring",
	}

	set := &cobra.Command{
		Use:       "set <name>",
		Short:     "Read a secret from the terminal and store it in the keyring",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: secretNames(),
		RunE: func(_ *cobra.Command, args []string) error {
			if !config.KeyringAvailable() {
				return fmt.Errorf("no OS keyring available; export %s instead", secretKeys[args[0]])
			}
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("secret set needs an interactive terminal")
			}
			fmt.Printf("%s: ", args[0])
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return err
			}
			value := strings.TrimSpace(string(raw))
			if value == "" {
				return errors.New("empty secret")
			}
			if err := config.MigrateToKeyring(args[0], value, nil); err != nil {
				return err
			}
			fmt.Printf("Stored %s in the OS keyring (service %q).\n", args[0], config.KeyringService)
			return nil
		},
	}

	del := &cobra.Command{
		Use:       "delete <name>",
		Short:     "Remove a secret from the keyring",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: secretNames(),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := config.DeleteKeyring(args[0]); err != nil {
				return fmt.Errorf("deleting %s: %w", args[0], err)
			}
			fmt.Printf("Removed %s from the OS keyring.\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

func secretNames() []string {
	return []string{config.KeyringDiscordToken, config.KeyringAPIKey}
}

// maskSecret hides a literal secret but keeps ${VAR} references readable.
func maskSecret(s string) string {
	switch {
	case s == "" || config.IsEnvReference(s):
		return s
	case len(s) <= 8:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}
