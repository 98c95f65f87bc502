// Package events defines the event store contract consumed by detectors.
// The store itself is populated by an external ingestion pipeline; this
// engine only ever reads from it.
package events

import (
	"context"
	"time"
)

// Event is a single historical device state change.
type Event struct {
	EntityID      string
	State         string
	PreviousState string
	Timestamp     time.Time
}

// TimeRange bounds an event store query. Start is inclusive, End exclusive.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && t.Before(tr.End)
}

// Duration returns the span of the range.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Filter narrows an event store query. Zero value matches everything.
type Filter struct {
	EntityIDs []string // empty means all entities
	State     string   // empty means any state
}

// Store is the read-only event store client. Implementations must return
// events ordered by ascending timestamp.
type Store interface {
	Query(ctx context.Context, filter Filter, tr TimeRange) ([]Event, error)
}
