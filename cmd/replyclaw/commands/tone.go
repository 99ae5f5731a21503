package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/personality"
)

// newToneCmd creates the `replyclaw tone` command group.
func newToneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tone",
		Short: "Inspect and set personalities",
		Long: `List the personality catalog and read or change the personality of a
server or direct-message user.

Examples:
  replyclaw tone list
  replyclaw tone show --guild 123456789
  replyclaw tone set sarcastic --guild 123456789`,
	}

	cmd.AddCommand(
		newToneListCmd(),
		newToneShowCmd(),
		newToneSetCmd(),
	)
	return cmd
}

func newToneListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available personalities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			reg, err := loadRegistry(cfg, nil)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSOURCE\tINSTRUCTION")
			for _, name := range reg.Names() {
				instr, _ := reg.Instruction(name)
				marker := ""
				if name == cfg.Personalities.Default {
					marker = " (default)"
				}
				fmt.Fprintf(w, "%s%s\t%s\t%s\n", name, marker, reg.Source(name), instr)
			}
			return w.Flush()
		},
	}
}

func newToneShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the personality of a server or user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := tenantFromFlags(cmd)
			if err != nil {
				return err
			}
			store, _, err := openMemoryOnly(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			name, err := store.Personality(cmd.Context(), t)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", t, name)
			return nil
		},
	}
	addTenantFlags(cmd)
	return cmd
}

func newToneSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Set the personality of a server or user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tenantFromFlags(cmd)
			if err != nil {
				return err
			}
			store, cfg, err := openMemoryOnly(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			reg, err := loadRegistry(cfg, nil)
			if err != nil {
				return err
			}
			name := strings.ToLower(strings.TrimSpace(args[0]))
			if !reg.IsValid(name) {
				return fmt.Errorf("%w: %q (run 'replyclaw tone list' to see the catalog)", personality.ErrUnknownPersonality, name)
			}
			if err := store.SetPersonality(cmd.Context(), t, name); err != nil {
				return err
			}
			fmt.Printf("%s: personality set to %s\n", t, name)
			return nil
		},
	}
	addTenantFlags(cmd)
	return cmd
}
