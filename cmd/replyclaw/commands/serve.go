package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/channels/discord"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/config"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/scheduler"
)

// newServeCmd creates the `replyclaw serve` command that runs the Discord bot.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord bot",
		Long: `Connect to Discord and answer commands until interrupted.

The bot token is read from the OS keyring, then REPLYCLAW_DISCORD_TOKEN,
then discord.token in the config file.

Examples:
  replyclaw serve
  replyclaw serve --config ./config.yaml --verbose`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	if err := offerSetup(cmd); err != nil {
		return err
	}
	bootstrap := newLogger(cmd, config.DefaultConfig(), os.Stdout, false)
	cfg, path, err := loadConfig(cmd, bootstrap)
	if err != nil {
		return err
	}

	// ── Configure logger ──
	logger := newLogger(cmd, cfg, os.Stdout, false)
	if path != "" {
		logger.Info("config loaded", "path", path)
	}
	if cfg.Discord.Token == "" {
		return fmt.Errorf("no Discord bot token: run 'replyclaw setup' or set %s", config.EnvDiscordToken)
	}

	// ── Build components ──
	a, err := buildApp(cfg, path, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bot := discord.New(discordConfig(cfg), a.assistant, logger)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(logger)
		if err := sched.AddMaintenance(maintenanceConfig(cfg), a.ingester, a.assistant, logger); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	}

	// ── Start ──
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bot.Connect(ctx); err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
	}

	logger.Info("ReplyClaw running. Press Ctrl+C to stop.",
		"name", cfg.Name,
		"trigger", cfg.Trigger,
		"memory", cfg.Memory.Backend,
		"backend", cfg.Backend.Provider,
		"model", cfg.Backend.Model,
	)

	// ── Wait for shutdown ──
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		if sched != nil {
			sched.Stop()
		}
		if err := bot.Disconnect(); err != nil {
			logger.Warn("discord disconnect failed", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}
	return nil
}

// discordConfig maps the file configuration onto the adapter settings.
func discordConfig(cfg *config.Config) discord.Config {
	maxBytes := cfg.Discord.MaxDownloadBytes
	if maxBytes <= 0 {
		maxBytes = cfg.Ingest.MaxFileBytes
	}
	return discord.Config{
		Token:            cfg.Discord.Token,
		AllowedGuilds:    cfg.Discord.AllowedGuilds,
		AllowedUsers:     cfg.Discord.AllowedUsers,
		DirectMessages:   cfg.Discord.DirectMessages,
		RecentMessages:   cfg.Context.RecentLimit,
		PickerPageSize:   cfg.Discord.PickerPageSize,
		PickerTTL:        cfg.Discord.PickerTTL,
		MaxDownloadBytes: maxBytes,
	}
}

// offerSetup runs the setup wizard when no config file exists and stdin is
// a terminal.
func offerSetup(cmd *cobra.Command) error {
	if explicit, _ := cmd.Root().PersistentFlags().GetString("config"); explicit != "" {
		return nil
	}
	if config.FindConfigFile() != "" || !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}

	run := true
	err := huh.NewConfirm().
		Title("No configuration file found. Run the setup wizard now?").
		Affirmative("Yes").
		Negative("No, use defaults").
		Value(&run).
		Run()
	if err != nil || !run {
		return nil
	}
	return runSetupWizard(defaultConfigPath)
}
