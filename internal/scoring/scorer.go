package scoring

// Validation boost increments. The total boost is clamped to BoostCap before
// it is added to the base score; the cap is silent, never an error.
const (
	BoostCap = 0.3

	patternBlueprintBoost   = 0.2
	patternGroundTruthBoost = 0.3
	patternSupportBoost     = 0.1

	synergyValidationBoost = 0.2
	synergyBlueprintBoost  = 0.15
	synergyComplexityBoost = 0.1

	// supportThreshold is the minimum pattern_support at which the support
	// boost term triggers.
	supportThreshold = 0.5
)

// PatternInput carries the sub-scores and validation signals for one pattern.
// Sub-scores outside [0,1] are clamped; missing ones stay at their zero value
// so absence always lowers the result.
type PatternInput struct {
	Confidence   float64
	Frequency    float64
	Temporal     float64
	Relationship float64

	BlueprintMatch   bool
	GroundTruthMatch bool
	PatternSupport   float64
}

// SynergyInput carries the sub-scores and validation signals for one synergy.
type SynergyInput struct {
	Impact         float64
	Confidence     float64
	PatternSupport float64
	Compatibility  float64

	PatternValidated bool
	BlueprintMatch   bool
	LowComplexity    bool
}

// PatternScore computes the final quality score for a pattern:
// base = w·(confidence, frequency, temporal, relationship), plus the capped
// validation boost, clamped to [0,1].
func PatternScore(in PatternInput, t WeightTable) float64 {
	base := t.Pattern.Confidence*clamp01(in.Confidence) +
		t.Pattern.Frequency*clamp01(in.Frequency) +
		t.Pattern.Temporal*clamp01(in.Temporal) +
		t.Pattern.Relationship*clamp01(in.Relationship)

	return clamp01(base + PatternBoost(in))
}

// PatternBoost computes the capped validation boost for a pattern.
func PatternBoost(in PatternInput) float64 {
	boost := 0.0
	if in.BlueprintMatch {
		boost += patternBlueprintBoost
	}
	if in.GroundTruthMatch {
		boost += patternGroundTruthBoost
	}
	if clamp01(in.PatternSupport) >= supportThreshold {
		boost += patternSupportBoost
	}
	return min(boost, BoostCap)
}

// SynergyScore computes the final quality score for a synergy:
// base = w·(impact, confidence, pattern_support, compatibility), plus the
// capped validation boost, clamped to [0,1].
func SynergyScore(in SynergyInput, t WeightTable) float64 {
	base := t.Synergy.Impact*clamp01(in.Impact) +
		t.Synergy.Confidence*clamp01(in.Confidence) +
		t.Synergy.PatternSupport*clamp01(in.PatternSupport) +
		t.Synergy.Compatibility*clamp01(in.Compatibility)

	return clamp01(base + SynergyBoost(in))
}

// SynergyBoost computes the capped validation boost for a synergy.
func SynergyBoost(in SynergyInput) float64 {
	boost := 0.0
	if in.PatternValidated {
		boost += synergyValidationBoost
	}
	if in.BlueprintMatch {
		boost += synergyBlueprintBoost
	}
	if in.LowComplexity {
		boost += synergyComplexityBoost
	}
	return min(boost, BoostCap)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
