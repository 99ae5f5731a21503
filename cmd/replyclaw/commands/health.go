package commands

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/tenant"
)

type healthReport struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Config        string            `json:"config,omitempty"`
	Memory        string            `json:"memory,omitempty"`
	Backend       string            `json:"backend,omitempty"`
	Personalities int               `json:"personalities,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
}

var errUnhealthy = errors.New("unhealthy")

// newHealthCmd creates the `replyclaw health` command.
// Used by Docker HEALTHCHECK and monitoring.
func newHealthCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check configuration, memory and personalities",
		Long:  `Prints a JSON health report and exits non-zero when a check fails. Used by Docker HEALTHCHECK and monitoring.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := healthReport{Status: "ok", Version: version, Errors: map[string]string{}}
			defer func() {
				enc := json.NewEncoder(os.Stdout)
				_ = enc.Encode(report)
			}()

			cfg, path, err := loadConfig(cmd, nil)
			if err != nil {
				report.Status = "error"
				report.Errors["config"] = err.Error()
				return errUnhealthy
			}
			report.Config = path
			if err := cfg.Validate(); err != nil {
				report.Errors["config"] = err.Error()
			}
			report.Backend = cfg.Backend.Provider + "/" + cfg.Backend.Model

			store, err := openStore(cfg, nil)
			if err != nil {
				report.Errors["memory"] = err.Error()
			} else {
				report.Memory = cfg.Memory.Backend
				if _, err := store.Load(cmd.Context(), tenant.User("health")); err != nil {
					report.Errors["memory"] = err.Error()
				}
				store.Close()
			}

			reg, err := loadRegistry(cfg, nil)
			if err != nil {
				report.Errors["personalities"] = err.Error()
			} else {
				report.Personalities = len(reg.Names())
			}

			if len(report.Errors) > 0 {
				report.Status = "error"
				return errUnhealthy
			}
			return nil
		},
	}
}
