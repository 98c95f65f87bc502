// model.go this code defines the data model for the application
package datastore

import (
	"strings"
	"time"
)

// Record status values used by query APIs and the lifecycle sweep.
const (
	StatusActive      = "active"
	StatusDeprecated  = "deprecated"
	StatusNeedsReview = "needs_review"
)

// EntitySeparator joins ordered entity lists into a single indexed column.
const EntitySeparator = ","

// Pattern is a statistically recurring relationship between entities mined
// from the event history.
type Pattern struct {
	ID          string `gorm:"primaryKey"`
	PatternType string `gorm:"index:idx_patterns_type;not null"`
	// Key is the logical identity (pattern_type + ordered entities); at most
	// one live record exists per key. Stored as record_key, "key" is reserved
	// in MySQL.
	Key      string `gorm:"column:record_key;uniqueIndex:idx_patterns_key;not null"`
	Entities string `gorm:"not null"` // ordered, comma-separated

	Confidence        float64
	FrequencyScore    float64
	TemporalScore     float64
	RelationshipScore float64
	QualityScore      float64

	// Occurrences is the windowed count recomputed from the ledger, never a
	// lifetime total.
	Occurrences int
	FirstSeen   time.Time
	LastSeen    time.Time `gorm:"index:idx_patterns_last_seen"`

	Deprecated   bool `gorm:"index:idx_patterns_deprecated"`
	DeprecatedAt *time.Time
	NeedsReview  bool

	BlueprintMatch   bool
	GroundTruthMatch bool
	PatternSupport   float64

	// Version guards lifecycle writes against concurrent detector updates.
	Version   int64 `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntityList splits the stored entity column back into its ordered parts.
func (p *Pattern) EntityList() []string {
	return SplitEntities(p.Entities)
}

// Status derives the record's query-facing status.
func (p *Pattern) Status() string {
	switch {
	case p.Deprecated:
		return StatusDeprecated
	case p.NeedsReview:
		return StatusNeedsReview
	default:
		return StatusActive
	}
}

// Synergy is a higher-level automation opportunity, possibly spanning
// external context such as weather, energy pricing or calendar events.
type Synergy struct {
	ID          string `gorm:"primaryKey"`
	SynergyType string `gorm:"index:idx_synergies_type;not null"`
	Key         string `gorm:"column:record_key;uniqueIndex:idx_synergies_key;not null"`
	Devices     string `gorm:"not null"` // ordered, comma-separated

	Confidence     float64
	ImpactScore    float64
	Compatibility  float64
	PatternSupport float64
	QualityScore   float64

	Occurrences int
	FirstSeen   time.Time
	LastSeen    time.Time `gorm:"index:idx_synergies_last_seen"`

	Deprecated   bool `gorm:"index:idx_synergies_deprecated"`
	DeprecatedAt *time.Time
	NeedsReview  bool

	PatternValidated bool
	BlueprintMatch   bool
	LowComplexity    bool

	Version   int64 `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeviceList splits the stored device column back into its ordered parts.
func (s *Synergy) DeviceList() []string {
	return SplitEntities(s.Devices)
}

// Status derives the record's query-facing status.
func (s *Synergy) Status() string {
	switch {
	case s.Deprecated:
		return StatusDeprecated
	case s.NeedsReview:
		return StatusNeedsReview
	default:
		return StatusActive
	}
}

// OccurrenceLedgerEntry is the append-only source of truth for recent
// occurrence counts. Windowed occurrence totals are sums over these rows.
type OccurrenceLedgerEntry struct {
	ID          uint      `gorm:"primaryKey"`
	RecordID    string    `gorm:"index:idx_ledger_record;index:idx_ledger_record_time,priority:1;not null"`
	RecordedAt  time.Time `gorm:"index:idx_ledger_record_time,priority:2;not null"`
	Occurrences int       `gorm:"not null"`
}

// DetectorHealthRecord is the persisted health state of one detector.
type DetectorHealthRecord struct {
	DetectorName        string `gorm:"primaryKey"`
	LastRunAt           time.Time
	LastSuccess         bool
	ConsecutiveFailures int
	TotalRuns           int64
	TotalRecordsFound   int64
	AvgProcessingTimeMs float64
	LastError           string
	HealthStatus        string `gorm:"index:idx_health_status"`
	UpdatedAt           time.Time
}

// StateEvent is a row in the externally populated event store table. The
// engine only reads these.
type StateEvent struct {
	ID            uint   `gorm:"primaryKey"`
	EntityID      string `gorm:"index:idx_events_entity;index:idx_events_entity_time,priority:1;not null"`
	State         string
	PreviousState string
	Timestamp     time.Time `gorm:"index:idx_events_time;index:idx_events_entity_time,priority:2;not null"`
}

// JoinEntities builds the stored entity column from an ordered list.
func JoinEntities(entities []string) string {
	return strings.Join(entities, EntitySeparator)
}

// SplitEntities is the inverse of JoinEntities.
func SplitEntities(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, EntitySeparator)
}
