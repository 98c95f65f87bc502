// Package lifecycle ages persisted records: stale records are deprecated,
// long-deprecated records are deleted, and quiet-but-recent records are
// flagged for operator review.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

// Stats summarizes one sweep.
type Stats struct {
	Deprecated    int       `json:"deprecated"`
	Deleted       int       `json:"deleted"`
	FlaggedReview int       `json:"flagged_review"`
	LedgerPruned  int64     `json:"ledger_pruned"`
	SweepAt       time.Time `json:"sweep_at"`
}

// Manager runs the sweep. All writes use optimistic concurrency so a sweep
// racing a detector-driven resurrection loses the race and the record stays
// active.
type Manager struct {
	ds     datastore.Interface
	cfg    conf.LifecycleSettings
	logger *slog.Logger
}

// New creates a lifecycle manager.
func New(ds datastore.Interface, cfg conf.LifecycleSettings) *Manager {
	return &Manager{
		ds:     ds,
		cfg:    cfg,
		logger: logging.ForService("lifecycle"),
	}
}

// Sweep runs the three ordered phases: deprecate, delete, flag-for-review,
// then optionally prunes ledger rows older than the deletion threshold. The
// sweep is idempotent; rerunning it immediately changes nothing.
func (m *Manager) Sweep(ctx context.Context) (Stats, error) {
	now := time.Now()
	stats := Stats{SweepAt: now}

	staleCutoff := now.AddDate(0, 0, -m.cfg.StalenessDays)
	deleteCutoff := now.AddDate(0, 0, -m.cfg.DeletionDays)
	activityCutoff := now.AddDate(0, 0, -m.cfg.RecentActivityDays)

	if err := m.deprecatePhase(ctx, staleCutoff, now, &stats); err != nil {
		return stats, err
	}
	if err := m.deletePhase(ctx, deleteCutoff, &stats); err != nil {
		return stats, err
	}
	if err := m.reviewPhase(ctx, activityCutoff, staleCutoff, &stats); err != nil {
		return stats, err
	}

	if m.cfg.PruneLedger {
		pruned, err := m.ds.PruneLedger(deleteCutoff)
		if err != nil {
			return stats, errors.Wrap(err).
				Component("lifecycle").
				Category(errors.CategoryLedger).
				Build()
		}
		stats.LedgerPruned = pruned
	}

	m.logger.Info("sweep completed",
		"deprecated", stats.Deprecated,
		"deleted", stats.Deleted,
		"flagged_review", stats.FlaggedReview,
		"ledger_pruned", stats.LedgerPruned)
	return stats, nil
}

func (m *Manager) deprecatePhase(ctx context.Context, cutoff, now time.Time, stats *Stats) error {
	patterns, err := m.ds.StalePatterns(cutoff)
	if err != nil {
		return err
	}
	for i := range patterns {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &patterns[i]
		ok, err := m.ds.DeprecatePattern(p.ID, p.Version, now)
		if err != nil {
			return err
		}
		if ok {
			stats.Deprecated++
		} else {
			// Lost the version race to a resurrection; the record stays
			// active.
			m.logger.Debug("skipped deprecation, record changed concurrently", "key", p.Key)
		}
	}

	synergies, err := m.ds.StaleSynergies(cutoff)
	if err != nil {
		return err
	}
	for i := range synergies {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := &synergies[i]
		ok, err := m.ds.DeprecateSynergy(s.ID, s.Version, now)
		if err != nil {
			return err
		}
		if ok {
			stats.Deprecated++
		} else {
			m.logger.Debug("skipped deprecation, record changed concurrently", "key", s.Key)
		}
	}
	return nil
}

func (m *Manager) deletePhase(ctx context.Context, cutoff time.Time, stats *Stats) error {
	patterns, err := m.ds.LongDeprecatedPatterns(cutoff)
	if err != nil {
		return err
	}
	for i := range patterns {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &patterns[i]
		ok, err := m.ds.DeletePattern(p.ID, p.Version)
		if err != nil {
			return err
		}
		if !ok {
			m.logger.Debug("skipped deletion, record changed concurrently", "key", p.Key)
			continue
		}
		if err := m.ds.DeleteLedger(p.ID); err != nil {
			return err
		}
		stats.Deleted++
	}

	synergies, err := m.ds.LongDeprecatedSynergies(cutoff)
	if err != nil {
		return err
	}
	for i := range synergies {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := &synergies[i]
		ok, err := m.ds.DeleteSynergy(s.ID, s.Version)
		if err != nil {
			return err
		}
		if !ok {
			m.logger.Debug("skipped deletion, record changed concurrently", "key", s.Key)
			continue
		}
		if err := m.ds.DeleteLedger(s.ID); err != nil {
			return err
		}
		stats.Deleted++
	}
	return nil
}

// reviewPhase flags active records with no ledger activity inside the recent
// window whose last_seen has not yet crossed the deprecation threshold.
func (m *Manager) reviewPhase(ctx context.Context, activityCutoff, staleCutoff time.Time, stats *Stats) error {
	patterns, err := m.ds.ActivePatterns()
	if err != nil {
		return err
	}
	for i := range patterns {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &patterns[i]
		if p.NeedsReview || !p.LastSeen.After(staleCutoff) {
			continue
		}
		n, err := m.ds.LedgerCountSince(p.ID, activityCutoff)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		ok, err := m.ds.FlagPatternForReview(p.ID, p.Version)
		if err != nil {
			return err
		}
		if ok {
			stats.FlaggedReview++
		}
	}

	synergies, err := m.ds.ActiveSynergies()
	if err != nil {
		return err
	}
	for i := range synergies {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := &synergies[i]
		if s.NeedsReview || !s.LastSeen.After(staleCutoff) {
			continue
		}
		n, err := m.ds.LedgerCountSince(s.ID, activityCutoff)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		ok, err := m.ds.FlagSynergyForReview(s.ID, s.Version)
		if err != nil {
			return err
		}
		if ok {
			stats.FlaggedReview++
		}
	}
	return nil
}

// StatusCounts exposes record state counts for the lifecycle stats endpoint.
func (m *Manager) StatusCounts() (datastore.StatusCounts, error) {
	return m.ds.StatusCounts()
}
