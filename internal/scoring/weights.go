// Package scoring computes bounded quality scores for patterns and synergies.
// All functions are pure; weight tables are immutable values so calibration
// can swap them atomically without affecting in-flight scoring.
package scoring

// PatternWeights are the base-formula weights for pattern records. They must
// sum to 1.0.
type PatternWeights struct {
	Confidence   float64
	Frequency    float64
	Temporal     float64
	Relationship float64
}

// Sum returns the total of all pattern weights.
func (w PatternWeights) Sum() float64 {
	return w.Confidence + w.Frequency + w.Temporal + w.Relationship
}

// SynergyWeights are the base-formula weights for synergy records. They must
// sum to 1.0.
type SynergyWeights struct {
	Impact         float64
	Confidence     float64
	PatternSupport float64
	Compatibility  float64
}

// Sum returns the total of all synergy weights.
func (w SynergyWeights) Sum() float64 {
	return w.Impact + w.Confidence + w.PatternSupport + w.Compatibility
}

// WeightTable is a versioned, immutable set of scoring weights. Calibration
// produces a new table with a bumped version instead of mutating in place.
type WeightTable struct {
	Version int
	Pattern PatternWeights
	Synergy SynergyWeights
}

// DefaultWeightTable returns the shipped weight table.
func DefaultWeightTable() WeightTable {
	return WeightTable{
		Version: 1,
		Pattern: PatternWeights{
			Confidence:   0.40,
			Frequency:    0.30,
			Temporal:     0.20,
			Relationship: 0.10,
		},
		Synergy: SynergyWeights{
			Impact:         0.35,
			Confidence:     0.25,
			PatternSupport: 0.25,
			Compatibility:  0.15,
		},
	}
}

// Normalized returns a copy of the table with both weight sets rescaled to
// sum to exactly 1.0. Zero-sum weight sets are replaced with the defaults.
func (t WeightTable) Normalized() WeightTable {
	def := DefaultWeightTable()

	if s := t.Pattern.Sum(); s > 0 {
		t.Pattern.Confidence /= s
		t.Pattern.Frequency /= s
		t.Pattern.Temporal /= s
		t.Pattern.Relationship /= s
	} else {
		t.Pattern = def.Pattern
	}

	if s := t.Synergy.Sum(); s > 0 {
		t.Synergy.Impact /= s
		t.Synergy.Confidence /= s
		t.Synergy.PatternSupport /= s
		t.Synergy.Compatibility /= s
	} else {
		t.Synergy = def.Synergy
	}

	return t
}

// Valid reports whether both weight sets sum to 1.0 within tolerance.
func (t WeightTable) Valid() bool {
	const eps = 1e-6
	return abs(t.Pattern.Sum()-1.0) < eps && abs(t.Synergy.Sum()-1.0) < eps
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
