package detect

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/events"
	"github.com/tkoskela/patternmind-go/internal/logging"
	"github.com/tkoskela/patternmind-go/internal/suncalc"
)

// minutesPerDay is used for wrap-around distance between minutes of day.
const minutesPerDay = 24 * 60

// TimeOfDayDetector finds entities whose activations cluster at a consistent
// time of day, either by wall clock or tracking sunrise/sunset.
type TimeOfDayDetector struct {
	cfg    conf.TimeOfDaySettings
	sun    *suncalc.SunCalc // nil when no coordinates are configured
	logger *slog.Logger
}

// NewTimeOfDayDetector builds the detector. sun may be nil, in which case
// only wall-clock clustering is considered.
func NewTimeOfDayDetector(cfg conf.TimeOfDaySettings, sun *suncalc.SunCalc) *TimeOfDayDetector {
	return &TimeOfDayDetector{
		cfg:    cfg,
		sun:    sun,
		logger: logging.ForService("detector.time_of_day"),
	}
}

// Name implements Detector.
func (d *TimeOfDayDetector) Name() string { return PatternTimeOfDay }

// Detect implements Detector.
func (d *TimeOfDayDetector) Detect(ctx context.Context, store events.Store, tr events.TimeRange) ([]Candidate, error) {
	evs, err := store.Query(ctx, events.Filter{}, tr)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("detector.time_of_day").
			Category(errors.CategoryEventStore).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byEntity := make(map[string][]time.Time)
	for i := range evs {
		if !validEvent(&evs[i], d.logger) {
			continue
		}
		byEntity[evs[i].EntityID] = append(byEntity[evs[i].EntityID], evs[i].Timestamp)
	}

	days := rangeDays(tr)

	var out []Candidate
	for entity, stamps := range byEntity {
		if len(stamps) < d.cfg.MinOccurrences {
			continue
		}

		clockScore := d.clockConsistency(stamps)
		sunScore := d.sunConsistency(stamps)
		temporal := math.Max(clockScore, sunScore)
		if temporal < 0.5 {
			continue
		}

		out = append(out, NewPatternCandidate(len(stamps), PatternCandidate{
			Type:       PatternTimeOfDay,
			Entities:   []string{entity},
			Confidence: temporal,
			Frequency:  clamp01(float64(len(stamps)) / float64(days)),
			Temporal:   temporal,
			// Single-entity pattern, the relation to other devices is weak.
			Relationship: 0.2,
		}))
	}

	sortCandidates(out)
	return out, nil
}

// clockConsistency returns the fraction of activations that fall inside the
// tolerance window around the modal minute of day.
func (d *TimeOfDayDetector) clockConsistency(stamps []time.Time) float64 {
	tolerance := d.cfg.ToleranceMinutes
	if tolerance <= 0 {
		tolerance = 45
	}

	minutes := make([]int, len(stamps))
	for i, ts := range stamps {
		minutes[i] = ts.Hour()*60 + ts.Minute()
	}

	best := 0
	for _, center := range minutes {
		inside := 0
		for _, m := range minutes {
			if wrapDistance(m, center) <= tolerance {
				inside++
			}
		}
		if inside > best {
			best = inside
		}
	}
	return float64(best) / float64(len(minutes))
}

// sunConsistency measures clustering of activations relative to sunset and
// sunrise. An entity firing 20 minutes after sunset every day scores high
// even though its wall-clock time drifts through the year.
func (d *TimeOfDayDetector) sunConsistency(stamps []time.Time) float64 {
	if d.sun == nil {
		return 0
	}
	tolerance := d.cfg.ToleranceMinutes
	if tolerance <= 0 {
		tolerance = 45
	}

	best := 0.0
	for _, anchor := range []func(suncalc.SunEventTimes) time.Time{
		func(s suncalc.SunEventTimes) time.Time { return s.Sunrise },
		func(s suncalc.SunEventTimes) time.Time { return s.Sunset },
	} {
		offsets := make([]int, 0, len(stamps))
		for _, ts := range stamps {
			sunTimes, err := d.sun.GetSunEventTimes(ts)
			if err != nil {
				continue
			}
			offsets = append(offsets, int(ts.Sub(anchor(sunTimes)).Minutes()))
		}
		if len(offsets) < 2 {
			continue
		}

		inside := 0
		for _, center := range offsets {
			n := 0
			for _, o := range offsets {
				if abs(o-center) <= tolerance {
					n++
				}
			}
			if n > inside {
				inside = n
			}
		}
		if score := float64(inside) / float64(len(offsets)); score > best {
			best = score
		}
	}
	return best
}

func wrapDistance(a, b int) int {
	d := abs(a - b)
	if d > minutesPerDay/2 {
		d = minutesPerDay - d
	}
	return d
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
