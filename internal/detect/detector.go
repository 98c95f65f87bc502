// Package detect contains the detector plugin contract and the built-in
// detector families that mine patterns and synergies from event history.
package detect

import (
	"context"

	"github.com/tkoskela/patternmind-go/internal/events"
)

// Pattern type identifiers.
const (
	PatternCoOccurrence = "co_occurrence"
	PatternTimeOfDay    = "time_of_day"
)

// Synergy type identifiers.
const (
	SynergyDevicePair    = "device_pair"
	SynergyDeviceChain   = "device_chain"
	SynergySceneBased    = "scene_based"
	SynergyWeather       = "weather_context"
	SynergyEnergy        = "energy_context"
	SynergyEventSports   = "event_context_sports"
	SynergyEventCalendar = "event_context_calendar"
	SynergyEventHoliday  = "event_context_holiday"
)

// Detector is one independent detection strategy. Implementations must be
// stateless across runs; all durable state lives in the persisted ledger.
// Detectors are registered explicitly with the orchestrator, never discovered
// dynamically.
type Detector interface {
	// Name identifies the detector in health reports and logs.
	Name() string
	// Detect scans the event store for the given range and returns candidate
	// records. Implementations must honor ctx cancellation. Missing external
	// collaborators degrade the result (fewer or zero candidates), they do
	// not fail the call.
	Detect(ctx context.Context, store events.Store, tr events.TimeRange) ([]Candidate, error)
}
