package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/tkoskela/patternmind-go/internal/capability"
	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/events"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

// degradedCompatibility is assumed when the capability collaborator is
// unavailable and compatibility cannot be confirmed.
const degradedCompatibility = 0.25

// DevicePairDetector finds trigger->target device pairs whose devices the
// capability collaborator confirms as logically compatible.
type DevicePairDetector struct {
	cfg    conf.ChainSettings
	lookup capability.Lookup // nil means the collaborator is absent
	logger *slog.Logger
}

// NewDevicePairDetector builds the detector. lookup may be nil; the detector
// then degrades to low-confidence emissions instead of failing.
func NewDevicePairDetector(cfg conf.ChainSettings, lookup capability.Lookup) *DevicePairDetector {
	return &DevicePairDetector{
		cfg:    cfg,
		lookup: lookup,
		logger: logging.ForService("detector.device_pair"),
	}
}

// Name implements Detector.
func (d *DevicePairDetector) Name() string { return SynergyDevicePair }

// Detect implements Detector.
func (d *DevicePairDetector) Detect(ctx context.Context, store events.Store, tr events.TimeRange) ([]Candidate, error) {
	evs, err := store.Query(ctx, events.Filter{}, tr)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("detector.device_pair").
			Category(errors.CategoryEventStore).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	window := time.Duration(d.cfg.WindowMinutes) * time.Minute
	pairs := followPairs(evs, window, d.logger)
	activations := activationCounts(evs)
	days := rangeDays(tr)

	var out []Candidate
	for key, st := range pairs {
		if st.count < 2 {
			continue
		}

		compatibility, confirmed := d.compatibility(ctx, key[0], key[1])
		if compatibility == 0 {
			continue // confirmed incompatible, not an automation opportunity
		}

		confidence := 0.0
		if n := activations[key[0]]; n > 0 {
			confidence = clamp01(float64(st.count) / float64(n))
		}
		if !confirmed {
			// Unverified pairs are still worth surfacing, at reduced trust.
			confidence *= 0.5
		}
		frequency := clamp01(float64(len(st.days)) / float64(days))
		impact := clamp01(0.4 + 0.3*frequency + 0.2*gapConsistency(st.gaps, window))

		out = append(out, NewSynergyCandidate(st.count, SynergyCandidate{
			Type:           SynergyDevicePair,
			Devices:        []string{key[0], key[1]},
			Confidence:     confidence,
			Impact:         impact,
			Compatibility:  compatibility,
			PatternSupport: frequency,
			LowComplexity:  true, // two devices, single trigger
		}))
	}

	sortCandidates(out)
	return out, nil
}

// compatibility resolves the capability relation of a pair. The second
// return reports whether the collaborator actually confirmed it.
func (d *DevicePairDetector) compatibility(ctx context.Context, trigger, target string) (float64, bool) {
	if d.lookup == nil {
		return degradedCompatibility, false
	}

	caps, err := d.lookup.GetCapabilities(ctx, trigger)
	if err != nil {
		// Collaborator trouble degrades the result, it never fails the run.
		d.logger.Debug("capability lookup failed, degrading",
			"device", trigger, "error", err)
		return degradedCompatibility, false
	}

	if caps.CompatibleWith(entityDomain(target)) {
		return 1.0, true
	}
	return 0, true
}
