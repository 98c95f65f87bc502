// Package guard checks host resource headroom before an orchestrator run so
// a mining pass never starts on a box that is already out of disk or memory.
package guard

import (
	"log/slog"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

// Guard evaluates disk and memory usage against critical thresholds.
type Guard struct {
	cfg    conf.GuardSettings
	logger *slog.Logger
}

// New creates a guard. Returns nil when guarding is disabled; callers treat a
// nil guard as always passing.
func New(cfg conf.GuardSettings) *Guard {
	if !cfg.Enabled {
		return nil
	}
	return &Guard{cfg: cfg, logger: logging.ForService("guard")}
}

// Check returns an error when disk or memory usage exceeds the configured
// critical percentage. A probe failure is logged and treated as passing so a
// broken metrics source never blocks mining.
func (g *Guard) Check() error {
	if g == nil {
		return nil
	}

	if du, err := disk.Usage(g.cfg.DiskPath); err != nil {
		g.logger.Warn("disk usage probe failed, skipping disk check", "path", g.cfg.DiskPath, "error", err)
	} else if du.UsedPercent >= g.cfg.DiskCritical {
		return errors.Newf("disk usage %.1f%% on %s exceeds critical threshold %.1f%%",
			du.UsedPercent, g.cfg.DiskPath, g.cfg.DiskCritical).
			Component("guard").
			Category(errors.CategorySystem).
			Context("used_percent", du.UsedPercent).
			Build()
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		g.logger.Warn("memory probe failed, skipping memory check", "error", err)
	} else if vm.UsedPercent >= g.cfg.MemoryCritical {
		return errors.Newf("memory usage %.1f%% exceeds critical threshold %.1f%%",
			vm.UsedPercent, g.cfg.MemoryCritical).
			Component("guard").
			Category(errors.CategorySystem).
			Context("used_percent", vm.UsedPercent).
			Build()
	}

	return nil
}
