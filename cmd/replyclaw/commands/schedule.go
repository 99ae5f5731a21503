package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/config"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/scheduler"
)

// newScheduleCmd creates the `replyclaw schedule` command for maintenance jobs.
func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and run maintenance jobs",
		Long: `List the maintenance jobs 'serve' runs in the background, or run one
immediately.

Examples:
  replyclaw schedule list
  replyclaw schedule run temp-sweep`,
	}

	cmd.AddCommand(
		newScheduleListCmd(),
		newScheduleRunCmd(),
	)
	return cmd
}

func newScheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List maintenance jobs and their next run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, sched, err := buildScheduler(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.cfg.Scheduler.Enabled {
				fmt.Println("Scheduler disabled (scheduler.enabled: false); jobs below only run on demand.")
			}
			jobs := sched.Jobs()
			if len(jobs) == 0 {
				fmt.Println("No maintenance jobs configured.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tSCHEDULE\tNEXT")
			for _, j := range jobs {
				next := "-"
				if !j.Next.IsZero() {
					next = j.Next.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", j.Name, j.Schedule, next)
			}
			return w.Flush()
		},
	}
}

func newScheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "Run a maintenance job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, sched, err := buildScheduler(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := sched.RunNow(args[0]); err != nil {
				return err
			}
			fmt.Printf("%s: done\n", args[0])
			return nil
		},
	}
}

// buildScheduler wires the maintenance jobs without starting the cron loop.
func buildScheduler(cmd *cobra.Command) (*app, *scheduler.Scheduler, error) {
	cfg, path, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cmd, cfg, os.Stderr, true)
	a, err := buildApp(cfg, path, logger)
	if err != nil {
		return nil, nil, err
	}
	sched := scheduler.New(logger)
	if err := sched.AddMaintenance(maintenanceConfig(cfg), a.ingester, a.assistant, logger); err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("scheduler: %w", err)
	}
	return a, sched, nil
}

func maintenanceConfig(cfg *config.Config) scheduler.MaintenanceConfig {
	return scheduler.MaintenanceConfig{
		TempSweep:     cfg.Scheduler.TempSweep,
		TempMaxAge:    cfg.Scheduler.TempMaxAge,
		CooldownPrune: cfg.Scheduler.CooldownPrune,
	}
}
