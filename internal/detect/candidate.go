package detect

import (
	"fmt"
	"strings"

	"github.com/tkoskela/patternmind-go/internal/scoring"
)

// Kind tags the candidate variant.
type Kind int

const (
	KindPattern Kind = iota
	KindSynergy
)

// PatternCandidate is a detector-emitted pattern observation.
type PatternCandidate struct {
	Type     string   // one of the Pattern* constants
	Entities []string // ordered device/entity identifiers

	Confidence   float64
	Frequency    float64
	Temporal     float64
	Relationship float64

	BlueprintMatch   bool
	GroundTruthMatch bool
	PatternSupport   float64
}

// SynergyCandidate is a detector-emitted synergy observation.
type SynergyCandidate struct {
	Type    string   // one of the Synergy* constants
	Devices []string // ordered device identifiers

	Confidence     float64
	Impact         float64
	Compatibility  float64
	PatternSupport float64

	PatternValidated bool
	BlueprintMatch   bool
	LowComplexity    bool
}

// Candidate is the tagged variant detectors emit: exactly one of Pattern or
// Synergy is set, matching Kind.
type Candidate struct {
	Kind        Kind
	Occurrences int // occurrences observed in this scan, merged into the ledger

	Pattern *PatternCandidate
	Synergy *SynergyCandidate
}

// NewPatternCandidate wraps a pattern observation in the tagged variant.
func NewPatternCandidate(occurrences int, p PatternCandidate) Candidate {
	return Candidate{Kind: KindPattern, Occurrences: occurrences, Pattern: &p}
}

// NewSynergyCandidate wraps a synergy observation in the tagged variant.
func NewSynergyCandidate(occurrences int, s SynergyCandidate) Candidate {
	return Candidate{Kind: KindSynergy, Occurrences: occurrences, Synergy: &s}
}

// Key returns the logical record identity: at most one live record exists
// per key, so concurrent emissions of the same key merge instead of
// duplicating.
func (c *Candidate) Key() string {
	switch c.Kind {
	case KindPattern:
		return LogicalKey(c.Pattern.Type, c.Pattern.Entities)
	case KindSynergy:
		return LogicalKey(c.Synergy.Type, c.Synergy.Devices)
	default:
		return ""
	}
}

// Validate checks the candidate at the detector boundary so malformed
// emissions never reach the tracker.
func (c *Candidate) Validate() error {
	if c.Occurrences < 1 {
		return fmt.Errorf("candidate occurrences must be >= 1, got %d", c.Occurrences)
	}
	switch c.Kind {
	case KindPattern:
		if c.Pattern == nil || c.Synergy != nil {
			return fmt.Errorf("pattern candidate must set exactly the pattern variant")
		}
		if c.Pattern.Type == "" {
			return fmt.Errorf("pattern candidate missing type")
		}
		if len(c.Pattern.Entities) == 0 {
			return fmt.Errorf("pattern candidate missing entities")
		}
	case KindSynergy:
		if c.Synergy == nil || c.Pattern != nil {
			return fmt.Errorf("synergy candidate must set exactly the synergy variant")
		}
		if c.Synergy.Type == "" {
			return fmt.Errorf("synergy candidate missing type")
		}
		if len(c.Synergy.Devices) == 0 {
			return fmt.Errorf("synergy candidate missing devices")
		}
	default:
		return fmt.Errorf("unknown candidate kind %d", c.Kind)
	}
	return nil
}

// ScoreInput converts a pattern candidate into scorer input.
func (p *PatternCandidate) ScoreInput() scoring.PatternInput {
	return scoring.PatternInput{
		Confidence:       p.Confidence,
		Frequency:        p.Frequency,
		Temporal:         p.Temporal,
		Relationship:     p.Relationship,
		BlueprintMatch:   p.BlueprintMatch,
		GroundTruthMatch: p.GroundTruthMatch,
		PatternSupport:   p.PatternSupport,
	}
}

// ScoreInput converts a synergy candidate into scorer input.
func (s *SynergyCandidate) ScoreInput() scoring.SynergyInput {
	return scoring.SynergyInput{
		Impact:           s.Impact,
		Confidence:       s.Confidence,
		PatternSupport:   s.PatternSupport,
		Compatibility:    s.Compatibility,
		PatternValidated: s.PatternValidated,
		BlueprintMatch:   s.BlueprintMatch,
		LowComplexity:    s.LowComplexity,
	}
}

// LogicalKey builds the record identity from a type and an ordered entity
// list.
func LogicalKey(recordType string, entities []string) string {
	return recordType + "|" + strings.Join(entities, ",")
}
