package detect

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/events"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

// SceneDetector finds device groups that repeatedly change state together in
// a tight burst, which usually indicates a scene worth automating.
type SceneDetector struct {
	cfg    conf.SceneSettings
	logger *slog.Logger
}

// NewSceneDetector builds the detector from its configuration.
func NewSceneDetector(cfg conf.SceneSettings) *SceneDetector {
	return &SceneDetector{
		cfg:    cfg,
		logger: logging.ForService("detector.scene_based"),
	}
}

// Name implements Detector.
func (d *SceneDetector) Name() string { return SynergySceneBased }

// Detect implements Detector.
func (d *SceneDetector) Detect(ctx context.Context, store events.Store, tr events.TimeRange) ([]Candidate, error) {
	evs, err := store.Query(ctx, events.Filter{}, tr)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("detector.scene_based").
			Category(errors.CategoryEventStore).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	window := time.Duration(d.cfg.WindowSeconds) * time.Second
	minDevices := d.cfg.MinDevices
	if minDevices < 3 {
		minDevices = 3
	}

	// Split the stream into bursts separated by gaps larger than the window.
	type sceneStats struct {
		count int
		days  map[string]struct{}
	}
	scenes := make(map[string]*sceneStats)

	var burst []string
	burstSeen := make(map[string]bool)
	var burstStart time.Time
	var lastTS time.Time

	flush := func() {
		if len(burst) >= minDevices {
			sorted := append([]string(nil), burst...)
			sort.Strings(sorted)
			sig := strings.Join(sorted, "\x1f")
			st := scenes[sig]
			if st == nil {
				st = &sceneStats{days: make(map[string]struct{})}
				scenes[sig] = st
			}
			st.count++
			st.days[burstStart.Format(dayFormat)] = struct{}{}
		}
		burst = burst[:0]
		burstSeen = make(map[string]bool)
	}

	for i := range evs {
		e := &evs[i]
		if !validEvent(e, d.logger) {
			continue
		}
		if len(burst) > 0 && e.Timestamp.Sub(lastTS) > window {
			flush()
		}
		if len(burst) == 0 {
			burstStart = e.Timestamp
		}
		if !burstSeen[e.EntityID] {
			burstSeen[e.EntityID] = true
			burst = append(burst, e.EntityID)
		}
		lastTS = e.Timestamp
	}
	flush()

	days := rangeDays(tr)

	var out []Candidate
	for sig, st := range scenes {
		if st.count < 2 {
			continue
		}
		devices := strings.Split(sig, "\x1f")
		frequency := clamp01(float64(len(st.days)) / float64(days))

		out = append(out, NewSynergyCandidate(st.count, SynergyCandidate{
			Type:           SynergySceneBased,
			Devices:        devices,
			Confidence:     clamp01(float64(st.count) / float64(st.count+2)),
			Impact:         clamp01(0.3 + 0.1*float64(len(devices)) + 0.3*frequency),
			Compatibility:  0.8, // devices already co-operate, near-certain fit
			PatternSupport: frequency,
			LowComplexity:  len(devices) <= 4,
		}))
	}

	sortCandidates(out)
	return out, nil
}
