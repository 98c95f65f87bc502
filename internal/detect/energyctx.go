package detect

import (
	"context"
	"log/slog"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/events"
	"github.com/tkoskela/patternmind-go/internal/homectx"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

// energyDomains are device domains worth shifting away from peak-priced
// hours.
var energyDomains = map[string]bool{
	"switch":       true,
	"climate":      true,
	"water_heater": true,
	"vacuum":       true,
}

// EnergyContextDetector finds devices habitually used during peak-priced
// hours and proposes schedule-shift automations.
type EnergyContextDetector struct {
	cfg      conf.ContextDetectorSettings
	provider homectx.EnergyProvider // nil means the collaborator is absent
	logger   *slog.Logger
}

// NewEnergyContextDetector builds the detector. provider may be nil; the
// detector then emits zero candidates.
func NewEnergyContextDetector(cfg conf.ContextDetectorSettings, provider homectx.EnergyProvider) *EnergyContextDetector {
	return &EnergyContextDetector{
		cfg:      cfg,
		provider: provider,
		logger:   logging.ForService("detector.energy_context"),
	}
}

// Name implements Detector.
func (d *EnergyContextDetector) Name() string { return SynergyEnergy }

// Detect implements Detector.
func (d *EnergyContextDetector) Detect(ctx context.Context, store events.Store, tr events.TimeRange) ([]Candidate, error) {
	if d.provider == nil {
		return nil, nil
	}

	ec, err := d.provider.CurrentContext(ctx, tr)
	if err != nil {
		d.logger.Warn("energy collaborator unavailable, emitting no candidates", "error", err)
		return nil, nil
	}
	if len(ec.Prices) == 0 {
		return nil, nil
	}

	evs, err := store.Query(ctx, events.Filter{}, tr)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("detector.energy_context").
			Category(errors.CategoryEventStore).
			Build()
	}

	// Count on-transitions per entity, split by peak vs off-peak pricing.
	peak := map[string]int{}
	total := map[string]int{}
	for i := range evs {
		ev := &evs[i]
		if !validEvent(ev, d.logger) || ev.State != "on" {
			continue
		}
		if !energyDomains[entityDomain(ev.EntityID)] {
			continue
		}
		total[ev.EntityID]++
		if ec.IsPeak(ev.Timestamp) {
			peak[ev.EntityID]++
		}
	}

	var out []Candidate
	for entity, n := range total {
		p := peak[entity]
		if p < d.cfg.MinOccurrences {
			continue
		}
		peakShare := float64(p) / float64(n)
		if peakShare < 0.5 {
			continue
		}

		out = append(out, NewSynergyCandidate(p, SynergyCandidate{
			Type:           SynergyEnergy,
			Devices:        []string{entity},
			Confidence:     clamp01(peakShare),
			Impact:         clamp01(0.4 + 0.5*peakShare),
			Compatibility:  0.8,
			PatternSupport: clamp01(float64(p) / float64(d.cfg.MinOccurrences*3)),
			LowComplexity:  true,
		}))
	}

	sortCandidates(out)
	return out, nil
}
