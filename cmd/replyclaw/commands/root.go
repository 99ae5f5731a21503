// Package commands implements the replyclaw CLI using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "replyclaw",
		Short: "ReplyClaw - context-aware Discord reply bot",
		Long: `ReplyClaw answers questions in Discord with a local or hosted language
model. It remembers each server's conversations, reads uploaded PDF, DOCX,
PPTX and TXT files, and speaks in a configurable personality.

Examples:
  replyclaw setup
  replyclaw serve
  replyclaw chat "What did we decide yesterday?"
  replyclaw chat --file notes.pdf
  replyclaw tone set pirate --guild 123456789
  replyclaw memory forget --guild 123456789`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newToneCmd(),
		newMemoryCmd(),
		newConfigCmd(),
		newSetupCmd(),
		newScheduleCmd(),
		newHealthCmd(version),
		newVersionCmd(version),
		newCompletionCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
