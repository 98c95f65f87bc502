package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tkoskela/patternmind-go/internal/events"
)

// stubStore is a canned event store for detector tests. Events must be
// seeded in ascending timestamp order.
type stubStore struct {
	events []events.Event
	err    error
}

func (s *stubStore) Query(_ context.Context, _ events.Filter, tr events.TimeRange) ([]events.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []events.Event
	for _, e := range s.events {
		if tr.Contains(e.Timestamp) {
			out = append(out, e)
		}
	}
	return out, nil
}

func ev(entity string, ts time.Time) events.Event {
	return events.Event{EntityID: entity, State: "on", Timestamp: ts}
}

func weekRange(base time.Time) events.TimeRange {
	return events.TimeRange{Start: base, End: base.AddDate(0, 0, 7)}
}

func TestEntityDomain(t *testing.T) {
	tests := []struct {
		entityID string
		want     string
	}{
		{"light.hallway", "light"},
		{"binary_sensor.front_door", "binary_sensor"},
		{"thermostat", "thermostat"},
		{".odd", ".odd"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, entityDomain(tt.entityID), "entityDomain(%q)", tt.entityID)
	}
}

func TestEntityAffinity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"same object name", "motion.hallway", "light.hallway", 1.0},
		{"partial token overlap", "motion.hallway_upstairs", "light.hallway", 1.0},
		{"no overlap", "motion.hallway", "light.kitchen", 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, entityAffinity(tt.a, tt.b), 0.001)
		})
	}
}

func TestGapConsistency(t *testing.T) {
	window := 5 * time.Minute

	constant := []time.Duration{30 * time.Second, 30 * time.Second, 30 * time.Second}
	assert.InDelta(t, 1.0, gapConsistency(constant, window), 0.001,
		"constant gaps should score 1.0")

	single := []time.Duration{30 * time.Second}
	assert.InDelta(t, 0.5, gapConsistency(single, window), 0.001,
		"fewer than two gaps is neutral")

	spread := []time.Duration{10 * time.Second, 4 * time.Minute}
	assert.Less(t, gapConsistency(spread, window), 0.7,
		"wide spread should score low")
}

func TestRangeDays(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 7, rangeDays(weekRange(base)))
	assert.Equal(t, 1, rangeDays(events.TimeRange{Start: base, End: base.Add(time.Hour)}),
		"sub-day ranges count as one day")
}
