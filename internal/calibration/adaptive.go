package calibration

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/logging"
	"github.com/tkoskela/patternmind-go/internal/scoring"
)

// Quality tiers for acceptance-rate bookkeeping.
const (
	tierHigh   = "high"   // quality >= 0.7
	tierMedium = "medium" // quality >= 0.4
	tierLow    = "low"
)

// sampleCap bounds the rolling observation window.
const sampleCap = 500

// sample is one observed verdict with the record's score components at
// observation time.
type sample struct {
	components [4]float64
	quality    float64
	reward     float64
}

// TierStats tracks acceptance per quality tier.
type TierStats struct {
	Observed int
	Accepted int
}

// Rate returns the tier's acceptance rate, 0 when empty.
func (t *TierStats) Rate() float64 {
	if t.Observed == 0 {
		return 0
	}
	return float64(t.Accepted) / float64(t.Observed)
}

// AdaptiveCalibrator maps user actions to rewards and nudges the weight
// table so quality scores track real acceptance. It never mutates a table in
// place; Recalibrate returns a fresh normalized table with a bumped version.
type AdaptiveCalibrator struct {
	mu sync.Mutex

	ds  datastore.Interface
	cfg conf.CalibrationSettings

	patternSamples []sample
	synergySamples []sample
	tiers          map[string]*TierStats

	baseline    float64
	baselineSet bool

	logger *slog.Logger
}

// NewAdaptiveCalibrator creates the learning observer.
func NewAdaptiveCalibrator(ds datastore.Interface, cfg conf.CalibrationSettings) *AdaptiveCalibrator {
	return &AdaptiveCalibrator{
		ds:  ds,
		cfg: cfg,
		tiers: map[string]*TierStats{
			tierHigh:   {},
			tierMedium: {},
			tierLow:    {},
		},
		logger: logging.ForService("calibration"),
	}
}

// Observe implements Observer. The record lookup happens outside the lock;
// only the in-memory bookkeeping is guarded.
func (c *AdaptiveCalibrator) Observe(_ context.Context, recordID string, action Action) error {
	if !action.Valid() {
		return errors.Newf("unknown calibration action %q", action).
			Component("calibration").
			Category(errors.CategoryValidation).
			Build()
	}

	s, isPattern, err := c.lookup(recordID)
	if err != nil {
		return err
	}

	s.reward = action.Reward()

	c.mu.Lock()
	defer c.mu.Unlock()

	if isPattern {
		c.patternSamples = appendCapped(c.patternSamples, s)
	} else {
		c.synergySamples = appendCapped(c.synergySamples, s)
	}

	t := c.tiers[tierFor(s.quality)]
	t.Observed++
	if s.reward > 0 {
		t.Accepted++
	}

	c.logger.Debug("feedback observed",
		"record_id", recordID,
		"action", string(action),
		"reward", s.reward,
		"quality", s.quality)
	return nil
}

// lookup resolves the record's score components, trying patterns first.
func (c *AdaptiveCalibrator) lookup(recordID string) (sample, bool, error) {
	if p, err := c.ds.PatternByID(recordID); err != nil {
		return sample{}, false, err
	} else if p != nil {
		return sample{
			components: [4]float64{p.Confidence, p.FrequencyScore, p.TemporalScore, p.RelationshipScore},
			quality:    p.QualityScore,
		}, true, nil
	}

	s, err := c.ds.SynergyByID(recordID)
	if err != nil {
		return sample{}, false, err
	}
	if s == nil {
		return sample{}, false, errors.Newf("no record with id %q", recordID).
			Component("calibration").
			Category(errors.CategoryNotFound).
			Build()
	}
	return sample{
		components: [4]float64{s.ImpactScore, s.Confidence, s.PatternSupport, s.Compatibility},
		quality:    s.QualityScore,
	}, false, nil
}

// Recalibrate derives a new weight table from the accumulated observations.
// Returns (table, true) when enough samples exist for a meaningful update,
// otherwise (zero, false).
func (c *AdaptiveCalibrator) Recalibrate(current scoring.WeightTable) (scoring.WeightTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.patternSamples)+len(c.synergySamples) < c.cfg.MinSamples {
		return scoring.WeightTable{}, false
	}

	next := current
	next.Version = current.Version + 1

	if g, ok := gradient(c.patternSamples); ok {
		next.Pattern.Confidence = nudge(next.Pattern.Confidence, g[0], c.cfg.LearningRate)
		next.Pattern.Frequency = nudge(next.Pattern.Frequency, g[1], c.cfg.LearningRate)
		next.Pattern.Temporal = nudge(next.Pattern.Temporal, g[2], c.cfg.LearningRate)
		next.Pattern.Relationship = nudge(next.Pattern.Relationship, g[3], c.cfg.LearningRate)
	}
	if g, ok := gradient(c.synergySamples); ok {
		next.Synergy.Impact = nudge(next.Synergy.Impact, g[0], c.cfg.LearningRate)
		next.Synergy.Confidence = nudge(next.Synergy.Confidence, g[1], c.cfg.LearningRate)
		next.Synergy.PatternSupport = nudge(next.Synergy.PatternSupport, g[2], c.cfg.LearningRate)
		next.Synergy.Compatibility = nudge(next.Synergy.Compatibility, g[3], c.cfg.LearningRate)
	}

	next = next.Normalized()
	c.logger.Info("weight table recalibrated",
		"version", next.Version,
		"pattern_samples", len(c.patternSamples),
		"synergy_samples", len(c.synergySamples))
	return next, true
}

// gradient returns the mean reward-weighted component vector: components that
// are strong on well-received records pull their weight up.
func gradient(samples []sample) ([4]float64, bool) {
	var g [4]float64
	if len(samples) == 0 {
		return g, false
	}
	for i := range samples {
		s := &samples[i]
		for j := 0; j < 4; j++ {
			g[j] += s.reward * s.components[j]
		}
	}
	for j := 0; j < 4; j++ {
		g[j] /= float64(len(samples))
	}
	return g, true
}

// nudge applies one bounded gradient step; weights never drop below a small
// floor so a component cannot be permanently learned away.
func nudge(w, grad, lr float64) float64 {
	const floor = 0.02
	return math.Max(floor, w+lr*grad)
}

// NeedsRecalibration compares the rolling quality-vs-acceptance correlation
// against the stored baseline. The first call with enough samples records the
// baseline and reports false.
func (c *AdaptiveCalibrator) NeedsRecalibration() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := make([]sample, 0, len(c.patternSamples)+len(c.synergySamples))
	all = append(all, c.patternSamples...)
	all = append(all, c.synergySamples...)
	if len(all) < c.cfg.MinSamples {
		return false
	}

	corr := qualityAcceptanceCorrelation(all)
	if !c.baselineSet {
		c.baseline = corr
		c.baselineSet = true
		return false
	}
	if c.baseline <= 0 {
		return false
	}

	degraded := (c.baseline - corr) / c.baseline
	if degraded > c.cfg.DriftThreshold {
		c.logger.Warn("quality-acceptance correlation drifted below baseline",
			"baseline", c.baseline,
			"current", corr,
			"degradation", degraded)
		return true
	}
	return false
}

// TierAcceptance returns a copy of the per-tier acceptance counters.
func (c *AdaptiveCalibrator) TierAcceptance() map[string]TierStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]TierStats, len(c.tiers))
	for k, v := range c.tiers {
		out[k] = *v
	}
	return out
}

func tierFor(quality float64) string {
	switch {
	case quality >= 0.7:
		return tierHigh
	case quality >= 0.4:
		return tierMedium
	default:
		return tierLow
	}
}

func appendCapped(samples []sample, s sample) []sample {
	samples = append(samples, s)
	if len(samples) > sampleCap {
		samples = samples[len(samples)-sampleCap:]
	}
	return samples
}

// qualityAcceptanceCorrelation is the Pearson correlation between a sample's
// quality score and a binary accepted signal (reward > 0).
func qualityAcceptanceCorrelation(samples []sample) float64 {
	n := float64(len(samples))
	var sumQ, sumA, sumQQ, sumAA, sumQA float64
	for i := range samples {
		q := samples[i].quality
		a := 0.0
		if samples[i].reward > 0 {
			a = 1.0
		}
		sumQ += q
		sumA += a
		sumQQ += q * q
		sumAA += a * a
		sumQA += q * a
	}
	num := n*sumQA - sumQ*sumA
	den := math.Sqrt(n*sumQQ-sumQ*sumQ) * math.Sqrt(n*sumAA-sumA*sumA)
	if den == 0 {
		return 0
	}
	return num / den
}
