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

// eventDomains are device domains that plausibly react to calendar or
// sports occasions (media, lighting, comfort).
var eventDomains = map[string]bool{
	"media_player": true,
	"light":        true,
	"switch":       true,
	"climate":      true,
}

// EventContextDetector correlates device activity with external occasions:
// public holidays, calendar entries and the game schedule of followed
// teams. Each correlation family is emitted under its own synergy type.
type EventContextDetector struct {
	cfg      conf.ContextDetectorSettings
	calendar homectx.CalendarProvider // nil means the collaborator is absent
	sports   homectx.SportsProvider   // nil means the collaborator is absent
	logger   *slog.Logger
}

// NewEventContextDetector builds the detector. Either provider may be nil;
// the corresponding correlation family then emits zero candidates.
func NewEventContextDetector(cfg conf.ContextDetectorSettings, calendar homectx.CalendarProvider, sports homectx.SportsProvider) *EventContextDetector {
	return &EventContextDetector{
		cfg:      cfg,
		calendar: calendar,
		sports:   sports,
		logger:   logging.ForService("detector.event_context"),
	}
}

// Name implements Detector.
func (d *EventContextDetector) Name() string { return "event_context" }

// Detect implements Detector.
func (d *EventContextDetector) Detect(ctx context.Context, store events.Store, tr events.TimeRange) ([]Candidate, error) {
	if d.calendar == nil && d.sports == nil {
		return nil, nil
	}

	evs, err := store.Query(ctx, events.Filter{}, tr)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("detector.event_context").
			Category(errors.CategoryEventStore).
			Build()
	}
	if len(evs) == 0 {
		return nil, nil
	}

	var out []Candidate
	out = append(out, d.calendarCandidates(ctx, evs, tr)...)
	out = append(out, d.sportsCandidates(ctx, evs, tr)...)
	sortCandidates(out)
	return out, nil
}

func (d *EventContextDetector) calendarCandidates(ctx context.Context, evs []events.Event, tr events.TimeRange) []Candidate {
	if d.calendar == nil {
		return nil
	}
	cc, err := d.calendar.CurrentContext(ctx, tr)
	if err != nil {
		d.logger.Warn("calendar collaborator unavailable, skipping calendar correlation", "error", err)
		return nil
	}

	holiday := map[string]int{}
	during := map[string]int{}
	total := map[string]int{}
	for i := range evs {
		ev := &evs[i]
		if !validEvent(ev, d.logger) || ev.State != "on" {
			continue
		}
		if !eventDomains[entityDomain(ev.EntityID)] {
			continue
		}
		total[ev.EntityID]++
		if cc.IsHoliday(ev.Timestamp) {
			holiday[ev.EntityID]++
		}
		for j := range cc.Events {
			ce := &cc.Events[j]
			if !ev.Timestamp.Before(ce.Start) && ev.Timestamp.Before(ce.End) {
				during[ev.EntityID]++
				break
			}
		}
	}

	var out []Candidate
	out = append(out, d.correlated(holiday, total, SynergyEventHoliday)...)
	out = append(out, d.correlated(during, total, SynergyEventCalendar)...)
	return out
}

func (d *EventContextDetector) sportsCandidates(ctx context.Context, evs []events.Event, tr events.TimeRange) []Candidate {
	if d.sports == nil {
		return nil
	}
	sc, err := d.sports.CurrentContext(ctx, tr)
	if err != nil {
		d.logger.Warn("sports collaborator unavailable, skipping sports correlation", "error", err)
		return nil
	}
	if len(sc.Games) == 0 {
		return nil
	}

	during := map[string]int{}
	total := map[string]int{}
	for i := range evs {
		ev := &evs[i]
		if !validEvent(ev, d.logger) || ev.State != "on" {
			continue
		}
		if !eventDomains[entityDomain(ev.EntityID)] {
			continue
		}
		total[ev.EntityID]++
		if len(sc.During(ev.Timestamp)) > 0 {
			during[ev.EntityID]++
		}
	}

	return d.correlated(during, total, SynergyEventSports)
}

// correlated turns per-entity hit counts into candidates for entities whose
// activity concentrates inside the occasion windows.
func (d *EventContextDetector) correlated(hits, total map[string]int, synergyType string) []Candidate {
	var out []Candidate
	for entity, n := range hits {
		if n < d.cfg.MinOccurrences {
			continue
		}
		share := float64(n) / float64(total[entity])
		if share < 0.4 {
			continue
		}

		out = append(out, NewSynergyCandidate(n, SynergyCandidate{
			Type:           synergyType,
			Devices:        []string{entity},
			Confidence:     clamp01(share),
			Impact:         clamp01(0.3 + 0.4*share),
			Compatibility:  0.7,
			PatternSupport: clamp01(float64(n) / float64(d.cfg.MinOccurrences*3)),
			LowComplexity:  true,
		}))
	}
	return out
}
