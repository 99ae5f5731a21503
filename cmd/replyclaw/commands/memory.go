package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/ingest"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/tenant"
)

// newMemoryCmd creates the `replyclaw memory` command group.
func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or erase conversation memory",
		Long: `Show or erase the stored conversation history of a server (--guild)
or a direct-message user (--user). Erasing keeps the personality.

Examples:
  replyclaw memory show --guild 123456789
  replyclaw memory show --user 42 --json
  replyclaw memory forget --guild 123456789`,
	}

	cmd.AddCommand(
		newMemoryShowCmd(),
		newMemoryForgetCmd(),
	)
	return cmd
}

func newMemoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored record",
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

			rec, err := store.Load(cmd.Context(), t)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}

			personality := rec.Personality
			if personality == "" {
				personality = "(default)"
			}
			fmt.Printf("Tenant:      %s\n", t)
			fmt.Printf("Personality: %s\n", personality)
			fmt.Printf("Turns:       %d\n", rec.TurnCount())
			for _, ch := range rec.ChannelIDs() {
				fmt.Printf("\n── channel %s ──\n", ch)
				for _, turn := range rec.Turns(ch) {
					fmt.Printf("User: %s\nBot:  %s\n", oneLine(turn.User), oneLine(turn.Bot))
					if turn.HasFile() {
						fmt.Printf("File: %s\n", oneLine(turn.FileContext))
					}
				}
			}
			return nil
		},
	}
	addTenantFlags(cmd)
	cmd.Flags().Bool("json", false, "print the raw record as JSON")
	return cmd
}

func newMemoryForgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Erase conversation history (keeps the personality)",
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

			had, err := store.Erase(cmd.Context(), t)
			if err != nil {
				return err
			}
			if !had {
				fmt.Printf("%s: no memory found\n", t)
				return nil
			}
			fmt.Printf("%s: conversation memory erased\n", t)
			return nil
		},
	}
	addTenantFlags(cmd)
	return cmd
}

// tenantFromFlags reads --guild / --user.
func tenantFromFlags(cmd *cobra.Command) (tenant.Tenant, error) {
	guild, _ := cmd.Flags().GetString("guild")
	user, _ := cmd.Flags().GetString("user")
	var t tenant.Tenant
	switch {
	case guild != "":
		t = tenant.Guild(guild)
	case user != "":
		t = tenant.User(user)
	default:
		return t, errNoTenant
	}
	if !t.Valid() {
		return t, fmt.Errorf("%w: %s", tenant.ErrInvalid, t)
	}
	return t, nil
}

// oneLine flattens and bounds text for terminal listing.
func oneLine(s string) string {
	return strings.ReplaceAll(ingest.Truncate(s, 200), "\n", " ⏎ ")
}
