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

// weatherDomains are the device domains a weather automation can sensibly
// drive.
var weatherDomains = map[string]bool{
	"light":   true,
	"cover":   true,
	"climate": true,
	"fan":     true,
	"switch":  true,
}

// WeatherContextDetector correlates device activity with current weather
// conditions and proposes weather-driven automations.
type WeatherContextDetector struct {
	cfg      conf.ContextDetectorSettings
	provider homectx.WeatherProvider // nil means the collaborator is absent
	logger   *slog.Logger
}

// NewWeatherContextDetector builds the detector. provider may be nil; the
// detector then emits zero candidates.
func NewWeatherContextDetector(cfg conf.ContextDetectorSettings, provider homectx.WeatherProvider) *WeatherContextDetector {
	return &WeatherContextDetector{
		cfg:      cfg,
		provider: provider,
		logger:   logging.ForService("detector.weather_context"),
	}
}

// Name implements Detector.
func (d *WeatherContextDetector) Name() string { return SynergyWeather }

// Detect implements Detector.
func (d *WeatherContextDetector) Detect(ctx context.Context, store events.Store, tr events.TimeRange) ([]Candidate, error) {
	if d.provider == nil {
		return nil, nil
	}

	wc, err := d.provider.CurrentContext(ctx, tr)
	if err != nil {
		// Collaborator trouble yields zero candidates, not a failed run.
		d.logger.Warn("weather collaborator unavailable, emitting no candidates", "error", err)
		return nil, nil
	}

	// Only adverse or strongly lit conditions are automation-worthy.
	interesting := wc.Condition == "Rain" || wc.Condition == "Snow" ||
		wc.Condition == "Thunderstorm" || wc.CloudCover >= 75 || wc.CloudCover <= 10
	if !interesting {
		return nil, nil
	}

	evs, err := store.Query(ctx, events.Filter{}, tr)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("detector.weather_context").
			Category(errors.CategoryEventStore).
			Build()
	}

	days := rangeDays(tr)
	counts := activationCounts(evs)

	var out []Candidate
	for entity, n := range counts {
		if n < d.cfg.MinOccurrences || !weatherDomains[entityDomain(entity)] {
			continue
		}
		frequency := clamp01(float64(n) / float64(days*4))

		out = append(out, NewSynergyCandidate(n, SynergyCandidate{
			Type:           SynergyWeather,
			Devices:        []string{entity},
			Confidence:     clamp01(0.4 + 0.4*frequency),
			Impact:         clamp01(0.5 + 0.3*frequency),
			Compatibility:  0.7,
			PatternSupport: frequency,
			LowComplexity:  true,
		}))
	}

	sortCandidates(out)
	return out, nil
}
