package detect

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tkoskela/patternmind-go/internal/capability"
	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/events"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

// DeviceChainDetector finds recurring activation sequences of three or more
// devices (A -> B -> C) whose consecutive links are capability-compatible.
type DeviceChainDetector struct {
	cfg    conf.ChainSettings
	lookup capability.Lookup // nil means the collaborator is absent
	logger *slog.Logger
}

// NewDeviceChainDetector builds the detector. lookup may be nil; the
// detector then degrades to low-confidence emissions instead of failing.
func NewDeviceChainDetector(cfg conf.ChainSettings, lookup capability.Lookup) *DeviceChainDetector {
	return &DeviceChainDetector{
		cfg:    cfg,
		lookup: lookup,
		logger: logging.ForService("detector.device_chain"),
	}
}

// Name implements Detector.
func (d *DeviceChainDetector) Name() string { return SynergyDeviceChain }

// Detect implements Detector.
func (d *DeviceChainDetector) Detect(ctx context.Context, store events.Store, tr events.TimeRange) ([]Candidate, error) {
	evs, err := store.Query(ctx, events.Filter{}, tr)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("detector.device_chain").
			Category(errors.CategoryEventStore).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	window := time.Duration(d.cfg.WindowMinutes) * time.Minute
	maxLen := d.cfg.MaxChainLength
	if maxLen < 3 {
		maxLen = 3
	}

	chains := d.collectChains(evs, window, maxLen)
	days := rangeDays(tr)

	var out []Candidate
	for sig, st := range chains {
		if st.count < 2 {
			continue
		}
		devices := strings.Split(sig, "\x1f")

		compatibility, confirmed := d.chainCompatibility(ctx, devices)
		if compatibility == 0 {
			continue
		}

		frequency := clamp01(float64(len(st.days)) / float64(days))
		confidence := clamp01(float64(st.count) / float64(len(st.days)+1))
		if !confirmed {
			confidence *= 0.5
		}
		impact := clamp01(0.4 + 0.15*float64(len(devices)-2) + 0.3*frequency)

		out = append(out, NewSynergyCandidate(st.count, SynergyCandidate{
			Type:           SynergyDeviceChain,
			Devices:        devices,
			Confidence:     confidence,
			Impact:         impact,
			Compatibility:  compatibility,
			PatternSupport: frequency,
			LowComplexity:  len(devices) <= 3,
		}))
	}

	sortCandidates(out)
	return out, nil
}

type chainStats struct {
	count int
	days  map[string]struct{}
}

// collectChains walks the ordered event stream and extracts maximal distinct
// device sequences inside the window, keyed by their signature.
func (d *DeviceChainDetector) collectChains(evs []events.Event, window time.Duration, maxLen int) map[string]*chainStats {
	chains := make(map[string]*chainStats)

	for i := range evs {
		if !validEvent(&evs[i], d.logger) {
			continue
		}
		chain := []string{evs[i].EntityID}
		seen := map[string]bool{evs[i].EntityID: true}

		for j := i + 1; j < len(evs) && len(chain) < maxLen; j++ {
			if evs[j].Timestamp.Sub(evs[i].Timestamp) > window {
				break
			}
			if evs[j].EntityID == "" || seen[evs[j].EntityID] {
				continue
			}
			seen[evs[j].EntityID] = true
			chain = append(chain, evs[j].EntityID)
		}

		if len(chain) < 3 {
			continue
		}
		sig := strings.Join(chain, "\x1f")
		st := chains[sig]
		if st == nil {
			st = &chainStats{days: make(map[string]struct{})}
			chains[sig] = st
		}
		st.count++
		st.days[evs[i].Timestamp.Format(dayFormat)] = struct{}{}
	}
	return chains
}

// chainCompatibility verifies every consecutive link of the chain. Returns
// the weakest link's compatibility and whether the collaborator confirmed
// all links.
func (d *DeviceChainDetector) chainCompatibility(ctx context.Context, devices []string) (float64, bool) {
	if d.lookup == nil {
		return degradedCompatibility, false
	}

	for i := 0; i < len(devices)-1; i++ {
		caps, err := d.lookup.GetCapabilities(ctx, devices[i])
		if err != nil {
			d.logger.Debug("capability lookup failed, degrading",
				"device", devices[i], "error", err)
			return degradedCompatibility, false
		}
		if !caps.CompatibleWith(entityDomain(devices[i+1])) {
			return 0, true
		}
	}
	return 1.0, true
}
