package calibration

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/datastore/mocks"
	"github.com/tkoskela/patternmind-go/internal/scoring"
)

func testSettings() conf.CalibrationSettings {
	return conf.CalibrationSettings{
		Mode:           "adaptive",
		LearningRate:   0.1,
		DriftThreshold: 0.2,
		MinSamples:     4,
	}
}

func seedPattern(t *testing.T, ds *mocks.Store, id string, quality float64) {
	t.Helper()
	require.NoError(t, ds.InsertPattern(&datastore.Pattern{
		ID:                id,
		PatternType:       "co_occurrence",
		Key:               "co_occurrence|" + id,
		Entities:          "motion.hallway,light.hallway",
		Confidence:        quality,
		FrequencyScore:    quality,
		TemporalScore:     quality,
		RelationshipScore: quality,
		QualityScore:      quality,
		Occurrences:       5,
		Version:           1,
	}))
}

func seedSynergy(t *testing.T, ds *mocks.Store, id string, quality float64) {
	t.Helper()
	require.NoError(t, ds.InsertSynergy(&datastore.Synergy{
		ID:             id,
		SynergyType:    "device_pair",
		Key:            "device_pair|" + id,
		Devices:        "motion.hallway,light.hallway",
		Confidence:     quality,
		ImpactScore:    quality,
		Compatibility:  quality,
		PatternSupport: quality,
		QualityScore:   quality,
		Occurrences:    5,
		Version:        1,
	}))
}

func TestObserveRejectsUnknownAction(t *testing.T) {
	c := NewAdaptiveCalibrator(mocks.NewStore(), testSettings())
	err := c.Observe(context.Background(), "whatever", Action("shrug"))
	require.Error(t, err)
}

func TestObserveUnknownRecord(t *testing.T) {
	c := NewAdaptiveCalibrator(mocks.NewStore(), testSettings())
	err := c.Observe(context.Background(), "missing", ActionAccept)
	require.Error(t, err)
}

func TestObserveTracksTierAcceptance(t *testing.T) {
	ds := mocks.NewStore()
	seedPattern(t, ds, "p-high", 0.9)
	seedPattern(t, ds, "p-mid", 0.5)
	seedSynergy(t, ds, "s-low", 0.2)

	c := NewAdaptiveCalibrator(ds, testSettings())
	ctx := context.Background()

	require.NoError(t, c.Observe(ctx, "p-high", ActionAccept))
	require.NoError(t, c.Observe(ctx, "p-mid", ActionModify))
	require.NoError(t, c.Observe(ctx, "s-low", ActionReject))

	tiers := c.TierAcceptance()
	high := tiers["high"]
	assert.Equal(t, 1, high.Observed)
	assert.Equal(t, 1, high.Accepted)
	assert.InDelta(t, 1.0, high.Rate(), 0.001)

	mid := tiers["medium"]
	assert.Equal(t, 1, mid.Observed)
	assert.Equal(t, 1, mid.Accepted, "modify is a weak positive signal")

	low := tiers["low"]
	assert.Equal(t, 1, low.Observed)
	assert.Equal(t, 0, low.Accepted)
	assert.InDelta(t, 0.0, low.Rate(), 0.001)
}

func TestActionRewards(t *testing.T) {
	tests := []struct {
		action Action
		want   float64
	}{
		{ActionAccept, 1.0},
		{ActionReject, -0.5},
		{ActionModify, 0.3},
		{ActionDeploy, 0.8},
		{ActionDisable, -0.7},
	}
	for _, tt := range tests {
		assert.True(t, tt.action.Valid())
		assert.InDelta(t, tt.want, tt.action.Reward(), 0.001, "reward for %s", tt.action)
	}
	assert.False(t, Action("archive").Valid())
}

func TestRecalibrateRequiresMinSamples(t *testing.T) {
	ds := mocks.NewStore()
	seedPattern(t, ds, "p1", 0.8)

	c := NewAdaptiveCalibrator(ds, testSettings())
	require.NoError(t, c.Observe(context.Background(), "p1", ActionAccept))

	_, ok := c.Recalibrate(scoring.DefaultWeightTable())
	assert.False(t, ok, "one sample is not enough to learn from")
}

func TestRecalibrateProducesNormalizedBumpedTable(t *testing.T) {
	ds := mocks.NewStore()
	ctx := context.Background()
	c := NewAdaptiveCalibrator(ds, testSettings())

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("p-acc-%d", i)
		seedPattern(t, ds, id, 0.85)
		require.NoError(t, c.Observe(ctx, id, ActionAccept))
	}
	seedSynergy(t, ds, "s-rej", 0.3)
	require.NoError(t, c.Observe(ctx, "s-rej", ActionReject))

	current := scoring.DefaultWeightTable()
	next, ok := c.Recalibrate(current)
	require.True(t, ok)

	assert.Equal(t, current.Version+1, next.Version)
	assert.InDelta(t, 1.0, next.Pattern.Sum(), 0.0001, "pattern weights stay normalized")
	assert.InDelta(t, 1.0, next.Synergy.Sum(), 0.0001, "synergy weights stay normalized")
	assert.True(t, next.Valid())

	// The original table is untouched.
	assert.Equal(t, scoring.DefaultWeightTable(), current)
}

func TestNeedsRecalibrationDetectsDrift(t *testing.T) {
	ds := mocks.NewStore()
	ctx := context.Background()
	c := NewAdaptiveCalibrator(ds, testSettings())

	// Healthy phase: quality and acceptance agree.
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("good-%d", i)
		seedPattern(t, ds, id, 0.9)
		require.NoError(t, c.Observe(ctx, id, ActionAccept))
	}
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("bad-%d", i)
		seedPattern(t, ds, id, 0.1)
		require.NoError(t, c.Observe(ctx, id, ActionReject))
	}
	assert.False(t, c.NeedsRecalibration(), "first reading only records the baseline")

	// Drift phase: users now reject what the scorer likes.
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("drift-%d", i)
		seedPattern(t, ds, id, 0.9)
		require.NoError(t, c.Observe(ctx, id, ActionReject))
	}
	assert.True(t, c.NeedsRecalibration(), "correlation collapsed against the baseline")
}

func TestNeedsRecalibrationBelowMinSamples(t *testing.T) {
	c := NewAdaptiveCalibrator(mocks.NewStore(), testSettings())
	assert.False(t, c.NeedsRecalibration())
}

func TestLogObserverValidatesAction(t *testing.T) {
	o := NewLogObserver()
	assert.NoError(t, o.Observe(context.Background(), "rec-1", ActionDeploy))
	assert.Error(t, o.Observe(context.Background(), "rec-1", Action("nope")))
}
