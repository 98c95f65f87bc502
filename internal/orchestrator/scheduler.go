package orchestrator

import (
	"context"
	"time"
)

// StartScheduler runs mining passes and lifecycle sweeps on their configured
// intervals until ctx is cancelled. It blocks; run it in its own goroutine.
// Cancellation is cooperative: an in-flight pass finishes or times out
// cleanly before the scheduler returns.
func (o *Orchestrator) StartScheduler(ctx context.Context) {
	runTicker := time.NewTicker(o.settings.Mining.RunInterval)
	defer runTicker.Stop()
	sweepTicker := time.NewTicker(o.settings.Lifecycle.SweepInterval)
	defer sweepTicker.Stop()

	o.logger.Info("scheduler started",
		"run_interval", o.settings.Mining.RunInterval,
		"sweep_interval", o.settings.Lifecycle.SweepInterval)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("scheduler stopped")
			return
		case <-runTicker.C:
			if _, err := o.Run(ctx); err != nil {
				o.logger.Error("scheduled mining pass failed", "error", err)
			}
		case <-sweepTicker.C:
			if _, err := o.RunSweep(ctx); err != nil {
				o.logger.Error("scheduled lifecycle sweep failed", "error", err)
			}
		}
	}
}
