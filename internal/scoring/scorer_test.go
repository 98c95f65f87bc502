package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeightTableSumsToOne(t *testing.T) {
	tbl := DefaultWeightTable()
	require.True(t, tbl.Valid())
	assert.InDelta(t, 1.0, tbl.Pattern.Sum(), 1e-9)
	assert.InDelta(t, 1.0, tbl.Synergy.Sum(), 1e-9)
}

func TestPatternScore(t *testing.T) {
	tbl := DefaultWeightTable()

	tests := []struct {
		name string
		in   PatternInput
		want float64
	}{
		{
			name: "all_zero",
			in:   PatternInput{},
			want: 0.0,
		},
		{
			name: "all_one_no_boost",
			in:   PatternInput{Confidence: 1, Frequency: 1, Temporal: 1, Relationship: 1},
			want: 1.0,
		},
		{
			name: "weighted_combination",
			in:   PatternInput{Confidence: 0.8, Frequency: 0.5, Temporal: 0.5, Relationship: 0.0},
			// 0.4*0.8 + 0.3*0.5 + 0.2*0.5 + 0.1*0 = 0.57
			want: 0.57,
		},
		{
			name: "blueprint_boost",
			in:   PatternInput{Confidence: 0.5, BlueprintMatch: true},
			// 0.4*0.5 + 0.2 = 0.40
			want: 0.40,
		},
		{
			name: "boost_capped_at_0_3",
			in: PatternInput{
				Confidence:       0.5,
				BlueprintMatch:   true,
				GroundTruthMatch: true,
				PatternSupport:   0.9,
			},
			// raw boost 0.2+0.3+0.1 = 0.6 -> capped to 0.3; 0.2 + 0.3 = 0.5
			want: 0.50,
		},
		{
			name: "support_below_threshold_no_boost",
			in:   PatternInput{Confidence: 0.5, PatternSupport: 0.4},
			want: 0.20,
		},
		{
			name: "inputs_clamped",
			in:   PatternInput{Confidence: 3.0, Frequency: -2.0},
			// confidence clamps to 1, frequency clamps to 0
			want: 0.40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PatternScore(tt.in, tbl)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestSynergyScore(t *testing.T) {
	tbl := DefaultWeightTable()

	tests := []struct {
		name string
		in   SynergyInput
		want float64
	}{
		{
			name: "all_zero",
			in:   SynergyInput{},
			want: 0.0,
		},
		{
			name: "weighted_combination",
			in:   SynergyInput{Impact: 1.0, Confidence: 0.4, PatternSupport: 0.4, Compatibility: 1.0},
			// 0.35 + 0.25*0.4 + 0.25*0.4 + 0.15 = 0.70
			want: 0.70,
		},
		{
			name: "boost_capped",
			in: SynergyInput{
				Impact:           1.0,
				Confidence:       1.0,
				PatternSupport:   1.0,
				Compatibility:    1.0,
				PatternValidated: true,
				BlueprintMatch:   true,
				LowComplexity:    true,
			},
			// base 1.0; boost 0.45 capped to 0.3; final clamped to 1.0
			want: 1.0,
		},
		{
			name: "single_boost_term",
			in:   SynergyInput{Impact: 0.5, LowComplexity: true},
			// 0.35*0.5 + 0.1 = 0.275
			want: 0.275,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SynergyScore(tt.in, tbl)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestScoreBoundsExhaustive(t *testing.T) {
	tbl := DefaultWeightTable()
	grid := []float64{-1.0, 0.0, 0.25, 0.5, 0.75, 1.0, 2.0}

	for _, c := range grid {
		for _, f := range grid {
			for _, blueprint := range []bool{false, true} {
				for _, truth := range []bool{false, true} {
					in := PatternInput{
						Confidence:       c,
						Frequency:        f,
						Temporal:         c,
						Relationship:     f,
						BlueprintMatch:   blueprint,
						GroundTruthMatch: truth,
						PatternSupport:   f,
					}
					got := PatternScore(in, tbl)
					require.GreaterOrEqual(t, got, 0.0)
					require.LessOrEqual(t, got, 1.0)
				}
			}
		}
	}
}

func TestNormalized(t *testing.T) {
	tbl := WeightTable{
		Version: 3,
		Pattern: PatternWeights{Confidence: 2, Frequency: 1, Temporal: 1, Relationship: 0},
		Synergy: SynergyWeights{Impact: 1, Confidence: 1, PatternSupport: 1, Compatibility: 1},
	}

	norm := tbl.Normalized()
	require.True(t, norm.Valid())
	assert.InDelta(t, 0.5, norm.Pattern.Confidence, 1e-9)
	assert.InDelta(t, 0.25, norm.Synergy.Impact, 1e-9)
	assert.Equal(t, 3, norm.Version)

	// Zero-sum weights fall back to defaults rather than dividing by zero.
	empty := WeightTable{}.Normalized()
	require.True(t, empty.Valid())
	assert.Equal(t, DefaultWeightTable().Pattern, empty.Pattern)
}
