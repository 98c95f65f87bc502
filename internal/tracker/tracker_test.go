package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/datastore/mocks"
	"github.com/tkoskela/patternmind-go/internal/detect"
	"github.com/tkoskela/patternmind-go/internal/scoring"
)

func patternCandidate(occ int, entities ...string) detect.Candidate {
	return detect.NewPatternCandidate(occ, detect.PatternCandidate{
		Type:         detect.PatternCoOccurrence,
		Entities:     entities,
		Confidence:   0.8,
		Frequency:    0.6,
		Temporal:     0.5,
		Relationship: 0.4,
	})
}

func TestApplyCreatesRecordAndSeedsLedger(t *testing.T) {
	store := mocks.NewStore()
	tr := New(store, 30)
	weights := scoring.DefaultWeightTable()
	now := time.Now()

	stats, err := tr.Apply(context.Background(), []detect.Candidate{
		patternCandidate(6, "binary_sensor.hall_motion", "light.hallway"),
	}, &weights, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 0, stats.Updated)

	p, err := store.PatternByKey("co_occurrence|binary_sensor.hall_motion,light.hallway")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 6, p.Occurrences)
	assert.Equal(t, now.Unix(), p.FirstSeen.Unix())
	assert.Equal(t, now.Unix(), p.LastSeen.Unix())
	assert.InDelta(t, 0.64, p.QualityScore, 0.001) // .4*.8+.3*.6+.2*.5+.1*.4
	assert.Equal(t, 1, store.LedgerLen())
}

func TestApplyMergesSameKeyWithinBatch(t *testing.T) {
	store := mocks.NewStore()
	tr := New(store, 30)
	weights := scoring.DefaultWeightTable()

	stats, err := tr.Apply(context.Background(), []detect.Candidate{
		patternCandidate(3, "sensor.a", "light.b"),
		patternCandidate(2, "sensor.a", "light.b"),
	}, &weights, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)

	p, err := store.PatternByKey("co_occurrence|sensor.a,light.b")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 5, p.Occurrences)
}

func TestWindowedOccurrencesDropOldEntries(t *testing.T) {
	store := mocks.NewStore()
	tr := New(store, 30)
	weights := scoring.DefaultWeightTable()
	now := time.Now()

	// First emission 45 days ago falls outside the window of the second.
	_, err := tr.Apply(context.Background(), []detect.Candidate{
		patternCandidate(5, "sensor.a", "light.b"),
	}, &weights, now.AddDate(0, 0, -45))
	require.NoError(t, err)

	stats, err := tr.Apply(context.Background(), []detect.Candidate{
		patternCandidate(3, "sensor.a", "light.b"),
	}, &weights, now.AddDate(0, 0, -10))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	p, err := store.PatternByKey("co_occurrence|sensor.a,light.b")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 3, p.Occurrences, "windowed count must exclude the 45-day-old entry")
	assert.Equal(t, 2, store.LedgerLen(), "ledger keeps all entries, only the sum is windowed")
}

func TestApplyNeverLowersScores(t *testing.T) {
	store := mocks.NewStore()
	tr := New(store, 30)
	weights := scoring.DefaultWeightTable()
	now := time.Now()

	strong := patternCandidate(4, "sensor.a", "light.b")
	_, err := tr.Apply(context.Background(), []detect.Candidate{strong}, &weights, now.AddDate(0, 0, -1))
	require.NoError(t, err)

	weak := detect.NewPatternCandidate(1, detect.PatternCandidate{
		Type:         detect.PatternCoOccurrence,
		Entities:     []string{"sensor.a", "light.b"},
		Confidence:   0.2,
		Frequency:    0.1,
		Temporal:     0.1,
		Relationship: 0.1,
	})
	_, err = tr.Apply(context.Background(), []detect.Candidate{weak}, &weights, now)
	require.NoError(t, err)

	p, err := store.PatternByKey("co_occurrence|sensor.a,light.b")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
	assert.InDelta(t, 0.64, p.QualityScore, 0.001)
	assert.Equal(t, now.Unix(), p.LastSeen.Unix(), "last_seen still advances")
}

func TestApplyResurrectsDeprecatedRecord(t *testing.T) {
	store := mocks.NewStore()
	tr := New(store, 30)
	weights := scoring.DefaultWeightTable()
	now := time.Now()

	_, err := tr.Apply(context.Background(), []detect.Candidate{
		patternCandidate(2, "sensor.a", "light.b"),
	}, &weights, now.AddDate(0, 0, -5))
	require.NoError(t, err)

	p, err := store.PatternByKey("co_occurrence|sensor.a,light.b")
	require.NoError(t, err)
	ok, err := store.DeprecatePattern(p.ID, p.Version, now.AddDate(0, 0, -2))
	require.NoError(t, err)
	require.True(t, ok)

	stats, err := tr.Apply(context.Background(), []detect.Candidate{
		patternCandidate(1, "sensor.a", "light.b"),
	}, &weights, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	p, err = store.PatternByKey("co_occurrence|sensor.a,light.b")
	require.NoError(t, err)
	assert.False(t, p.Deprecated)
	assert.Nil(t, p.DeprecatedAt)
	assert.False(t, p.NeedsReview)
	assert.Equal(t, datastore.StatusActive, p.Status())
}

func TestApplySkipsMalformedCandidates(t *testing.T) {
	store := mocks.NewStore()
	tr := New(store, 30)
	weights := scoring.DefaultWeightTable()

	bad := detect.NewPatternCandidate(0, detect.PatternCandidate{
		Type:     detect.PatternCoOccurrence,
		Entities: []string{"sensor.a"},
	})
	stats, err := tr.Apply(context.Background(), []detect.Candidate{bad}, &weights, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 1, stats.Skipped)
}

// conflictStore simulates a concurrent writer that bumps the record version
// between the tracker's read and its conditional write.
type conflictStore struct {
	*mocks.Store
	patternConflicts int
	synergyConflicts int
}

func (s *conflictStore) UpdatePattern(p *datastore.Pattern, expectedVersion int64) (bool, error) {
	if s.patternConflicts > 0 {
		s.patternConflicts--
		cur, err := s.Store.PatternByID(p.ID)
		if err != nil || cur == nil {
			return false, err
		}
		if _, err := s.Store.UpdatePattern(cur, cur.Version); err != nil {
			return false, err
		}
	}
	return s.Store.UpdatePattern(p, expectedVersion)
}

func (s *conflictStore) UpdateSynergy(sy *datastore.Synergy, expectedVersion int64) (bool, error) {
	if s.synergyConflicts > 0 {
		s.synergyConflicts--
		cur, err := s.Store.SynergyByID(sy.ID)
		if err != nil || cur == nil {
			return false, err
		}
		if _, err := s.Store.UpdateSynergy(cur, cur.Version); err != nil {
			return false, err
		}
	}
	return s.Store.UpdateSynergy(sy, expectedVersion)
}

func TestVersionConflictRetryKeepsSingleLedgerEntry(t *testing.T) {
	store := &conflictStore{Store: mocks.NewStore(), patternConflicts: 1}
	tr := New(store, 30)
	weights := scoring.DefaultWeightTable()
	now := time.Now()

	_, err := tr.Apply(context.Background(), []detect.Candidate{
		patternCandidate(5, "sensor.a", "light.b"),
	}, &weights, now.AddDate(0, 0, -1))
	require.NoError(t, err)

	stats, err := tr.Apply(context.Background(), []detect.Candidate{
		patternCandidate(3, "sensor.a", "light.b"),
	}, &weights, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	assert.Equal(t, 2, store.LedgerLen(), "one emission appends exactly one ledger entry, conflict or not")
	p, err := store.PatternByKey("co_occurrence|sensor.a,light.b")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 8, p.Occurrences, "retry must not double-count the emission")
}

func TestSynergyVersionConflictRetryKeepsSingleLedgerEntry(t *testing.T) {
	store := &conflictStore{Store: mocks.NewStore(), synergyConflicts: 1}
	tr := New(store, 30)
	weights := scoring.DefaultWeightTable()
	now := time.Now()

	cand := detect.NewSynergyCandidate(4, detect.SynergyCandidate{
		Type:          detect.SynergyDevicePair,
		Devices:       []string{"binary_sensor.door", "light.entry"},
		Confidence:    0.7,
		Impact:        0.6,
		Compatibility: 1.0,
		LowComplexity: true,
	})

	_, err := tr.Apply(context.Background(), []detect.Candidate{cand}, &weights, now.AddDate(0, 0, -1))
	require.NoError(t, err)

	stats, err := tr.Apply(context.Background(), []detect.Candidate{cand}, &weights, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	assert.Equal(t, 2, store.LedgerLen())
	sy, err := store.SynergyByKey("device_pair|binary_sensor.door,light.entry")
	require.NoError(t, err)
	require.NotNil(t, sy)
	assert.Equal(t, 8, sy.Occurrences)
}

func TestUpdateRecomputesQualityFromMergedScores(t *testing.T) {
	store := mocks.NewStore()
	tr := New(store, 30)
	weights := scoring.DefaultWeightTable()
	now := time.Now()

	confident := detect.NewPatternCandidate(3, detect.PatternCandidate{
		Type:         detect.PatternCoOccurrence,
		Entities:     []string{"sensor.a", "light.b"},
		Confidence:   0.9,
		Frequency:    0.2,
		Temporal:     0.5,
		Relationship: 0.4,
	})
	frequent := detect.NewPatternCandidate(2, detect.PatternCandidate{
		Type:         detect.PatternCoOccurrence,
		Entities:     []string{"sensor.a", "light.b"},
		Confidence:   0.3,
		Frequency:    0.9,
		Temporal:     0.5,
		Relationship: 0.4,
	})

	_, err := tr.Apply(context.Background(), []detect.Candidate{confident}, &weights, now.AddDate(0, 0, -1))
	require.NoError(t, err)
	_, err = tr.Apply(context.Background(), []detect.Candidate{frequent}, &weights, now)
	require.NoError(t, err)

	p, err := store.PatternByKey("co_occurrence|sensor.a,light.b")
	require.NoError(t, err)
	require.NotNil(t, p)
	// Merged sub-scores (.9, .9, .5, .4) score higher than either emission
	// alone (0.56 and 0.53).
	assert.InDelta(t, 0.77, p.QualityScore, 0.001)
}

func TestApplySynergyCreateAndUpdate(t *testing.T) {
	store := mocks.NewStore()
	tr := New(store, 30)
	weights := scoring.DefaultWeightTable()
	now := time.Now()

	cand := detect.NewSynergyCandidate(4, detect.SynergyCandidate{
		Type:          detect.SynergyDevicePair,
		Devices:       []string{"binary_sensor.door", "light.entry"},
		Confidence:    0.7,
		Impact:        0.6,
		Compatibility: 1.0,
		LowComplexity: true,
	})

	stats, err := tr.Apply(context.Background(), []detect.Candidate{cand}, &weights, now.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)

	stats, err = tr.Apply(context.Background(), []detect.Candidate{cand}, &weights, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	sy, err := store.SynergyByKey("device_pair|binary_sensor.door,light.entry")
	require.NoError(t, err)
	require.NotNil(t, sy)
	assert.Equal(t, 8, sy.Occurrences, "both ledger entries are inside the window")
}
