package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/events"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

// CoOccurrenceDetector finds entity pairs that repeatedly activate within a
// short temporal window of each other ("motion X precedes light Y").
type CoOccurrenceDetector struct {
	cfg    conf.CoOccurrenceSettings
	logger *slog.Logger
}

// NewCoOccurrenceDetector builds the detector from its configuration.
func NewCoOccurrenceDetector(cfg conf.CoOccurrenceSettings) *CoOccurrenceDetector {
	return &CoOccurrenceDetector{
		cfg:    cfg,
		logger: logging.ForService("detector.co_occurrence"),
	}
}

// Name implements Detector.
func (d *CoOccurrenceDetector) Name() string { return PatternCoOccurrence }

// Detect implements Detector.
func (d *CoOccurrenceDetector) Detect(ctx context.Context, store events.Store, tr events.TimeRange) ([]Candidate, error) {
	evs, err := store.Query(ctx, events.Filter{}, tr)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("detector.co_occurrence").
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
		if st.count < d.cfg.MinOccurrences {
			continue
		}

		triggerCount := activations[key[0]]
		confidence := 0.0
		if triggerCount > 0 {
			confidence = clamp01(float64(st.count) / float64(triggerCount))
		}
		frequency := clamp01(float64(len(st.days)) / float64(days))
		temporal := gapConsistency(st.gaps, window)
		relationship := entityAffinity(key[0], key[1])

		out = append(out, NewPatternCandidate(st.count, PatternCandidate{
			Type:         PatternCoOccurrence,
			Entities:     []string{key[0], key[1]},
			Confidence:   confidence,
			Frequency:    frequency,
			Temporal:     temporal,
			Relationship: relationship,
		}))
	}

	sortCandidates(out)
	return out, nil
}
