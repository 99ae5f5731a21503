package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// TempSweeper removes orphaned ingestion temp files.
type TempSweeper interface {
	SweepTemp(maxAge time.Duration) (int, error)
}

// CooldownPruner drops idle rate limiters.
type CooldownPruner interface {
	PruneCooldowns() int
}

// MaintenanceConfig holds the maintenance job schedules.
type MaintenanceConfig struct {
	TempSweep     string
	TempMaxAge    time.Duration
	CooldownPrune string
}

// AddMaintenance registers the temp sweep and cooldown prune jobs. Empty
// schedules skip the corresponding job.
func (s *Scheduler) AddMaintenance(cfg MaintenanceConfig, sweeper TempSweeper, pruner CooldownPruner, logger *slog.Logger) error {
	if logger == nil {
		logger = s.logger
	}
	if cfg.TempMaxAge <= 0 {
		cfg.TempMaxAge = time.Hour
	}

	if cfg.TempSweep != "" && sweeper != nil {
		err := s.Add(Job{
			Name:     "temp-sweep",
			Schedule: cfg.TempSweep,
			Run: func(context.Context) error {
				n, err := sweeper.SweepTemp(cfg.TempMaxAge)
				if n > 0 {
					logger.Info("orphaned temp files removed", "count", n)
				}
				return err
			},
		})
		if err != nil {
			return err
		}
	}

	if cfg.CooldownPrune != "" && pruner != nil {
		err := s.Add(Job{
			Name:     "cooldown-prune",
			Schedule: cfg.CooldownPrune,
			Run: func(context.Context) error {
				if n := pruner.PruneCooldowns(); n > 0 {
					logger.Debug("idle cooldowns pruned", "count", n)
				}
				return nil
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
