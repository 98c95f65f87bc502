package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/datastore/mocks"
	"github.com/tkoskela/patternmind-go/internal/detect"
	"github.com/tkoskela/patternmind-go/internal/events"
	"github.com/tkoskela/patternmind-go/internal/observability"
)

func testOrchestratorSettings() *conf.Settings {
	return &conf.Settings{
		Mining: conf.MiningSettings{
			LookbackDays:    30,
			WindowDays:      30,
			DetectorTimeout: 5 * time.Second,
			Concurrency:     2,
		},
		Lifecycle: conf.LifecycleSettings{
			StalenessDays:      60,
			DeletionDays:       90,
			RecentActivityDays: 14,
		},
	}
}

func newTestMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	return m
}

// fakeDetector emits canned candidates or fails, counting invocations.
type fakeDetector struct {
	name  string
	cands []detect.Candidate
	err   error
	calls int
}

func (d *fakeDetector) Name() string { return d.name }

func (d *fakeDetector) Detect(context.Context, events.Store, events.TimeRange) ([]detect.Candidate, error) {
	d.calls++
	return d.cands, d.err
}

func patternCand(typ string, entities []string, occurrences int) detect.Candidate {
	return detect.NewPatternCandidate(occurrences, detect.PatternCandidate{
		Type:         typ,
		Entities:     entities,
		Confidence:   0.8,
		Frequency:    0.6,
		Temporal:     0.5,
		Relationship: 0.4,
	})
}

func TestRunMergesDetectorOutput(t *testing.T) {
	defer goleak.VerifyNone(t)

	ds := mocks.NewStore()
	o := New(testOrchestratorSettings(), ds, newTestMetrics(t), nil, nil)
	o.Register(&fakeDetector{
		name:  "det_a",
		cands: []detect.Candidate{patternCand("co_occurrence", []string{"motion.hallway", "light.hallway"}, 4)},
	})
	o.Register(&fakeDetector{
		name:  "det_b",
		cands: []detect.Candidate{patternCand("time_of_day", []string{"light.porch"}, 6)},
	})

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.DetectorsRun)
	assert.Equal(t, 2, report.RecordsCreated)
	assert.Equal(t, 0, report.RecordsUpdated)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.HealthReport, 2)
	for _, rec := range report.HealthReport {
		assert.Equal(t, "healthy", rec.HealthStatus)
	}
}

func TestRunIsolatesFailingDetector(t *testing.T) {
	defer goleak.VerifyNone(t)

	ds := mocks.NewStore()
	o := New(testOrchestratorSettings(), ds, newTestMetrics(t), nil, nil)
	o.Register(&fakeDetector{
		name:  "working",
		cands: []detect.Candidate{patternCand("co_occurrence", []string{"motion.hallway", "light.hallway"}, 4)},
	})
	o.Register(&fakeDetector{name: "broken", err: errors.New("boom")})

	report, err := o.Run(context.Background())
	require.NoError(t, err, "one broken detector must not fail the pass")
	assert.Equal(t, 1, report.RecordsCreated)

	statuses := map[string]string{}
	for _, rec := range report.HealthReport {
		statuses[rec.DetectorName] = rec.HealthStatus
	}
	assert.Equal(t, "healthy", statuses["working"])
	assert.Equal(t, "degraded", statuses["broken"])
}

func TestRunAbortsWhenDatabaseIsDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	ds := mocks.NewStore()
	ds.PingErr = errors.New("connection refused")

	o := New(testOrchestratorSettings(), ds, newTestMetrics(t), nil, nil)
	det := &fakeDetector{name: "det_a"}
	o.Register(det)

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, det.calls, "detectors must not run against a dead database")
}

func TestRunHonorsCancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ds := mocks.NewStore()
	o := New(testOrchestratorSettings(), ds, newTestMetrics(t), nil, nil)
	o.Register(&fakeDetector{name: "det_a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx)
	require.Error(t, err)
}

func TestRunPersistsDetectorHealth(t *testing.T) {
	defer goleak.VerifyNone(t)

	ds := mocks.NewStore()
	o := New(testOrchestratorSettings(), ds, newTestMetrics(t), nil, nil)
	o.Register(&fakeDetector{name: "det_a"})

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	recs, err := ds.DetectorHealthRecords()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "det_a", recs[0].DetectorName)
	assert.Equal(t, int64(1), recs[0].TotalRuns)
}

func TestNewRestoresPersistedHealth(t *testing.T) {
	ds := mocks.NewStore()
	require.NoError(t, ds.SaveDetectorHealth(&datastore.DetectorHealthRecord{
		DetectorName:        "det_a",
		HealthStatus:        "failing",
		ConsecutiveFailures: 5,
		TotalRuns:           20,
	}))

	o := New(testOrchestratorSettings(), ds, newTestMetrics(t), nil, nil)

	report := o.HealthReport()
	require.Len(t, report, 1)
	assert.Equal(t, "failing", report[0].HealthStatus)
}

func TestSetWeightsNormalizes(t *testing.T) {
	o := New(testOrchestratorSettings(), mocks.NewStore(), newTestMetrics(t), nil, nil)

	w := o.Weights()
	w.Pattern.Confidence = 4 // deliberately unnormalized
	o.SetWeights(w)

	assert.True(t, o.Weights().Valid())
}

func TestRunSweepReportsStats(t *testing.T) {
	defer goleak.VerifyNone(t)

	ds := mocks.NewStore()
	old := time.Now().AddDate(0, 0, -120)
	require.NoError(t, ds.InsertPattern(&datastore.Pattern{
		ID:          "p-stale",
		PatternType: "co_occurrence",
		Key:         "co_occurrence|a,b",
		Entities:    "a,b",
		FirstSeen:   old,
		LastSeen:    old,
		Version:     1,
	}))

	o := New(testOrchestratorSettings(), ds, newTestMetrics(t), nil, nil)
	stats, err := o.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deprecated)
}

func TestObserveFallsBackToLogObserver(t *testing.T) {
	o := New(testOrchestratorSettings(), mocks.NewStore(), newTestMetrics(t), nil, nil)

	assert.NoError(t, o.Observe(context.Background(), "rec-1", "accept"))
	assert.Error(t, o.Observe(context.Background(), "rec-1", "nonsense"))
}

func TestConcurrentRunsAreSerialized(t *testing.T) {
	defer goleak.VerifyNone(t)

	ds := mocks.NewStore()
	o := New(testOrchestratorSettings(), ds, newTestMetrics(t), nil, nil)
	for i := 0; i < 3; i++ {
		o.Register(&fakeDetector{
			name:  fmt.Sprintf("det_%d", i),
			cands: []detect.Candidate{patternCand("co_occurrence", []string{fmt.Sprintf("m.%d", i), fmt.Sprintf("l.%d", i)}, 3)},
		})
	}

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := o.Run(context.Background())
			done <- err
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	// Same logical keys in both passes: second pass updates, never duplicates.
	patterns, err := ds.SearchPatterns("", "", 100, 0)
	require.NoError(t, err)
	assert.Len(t, patterns, 3)
}

func TestRegisterBuiltinsHonorsEnabledFlags(t *testing.T) {
	settings := testOrchestratorSettings()
	settings.Mining.CoOccurrence = conf.CoOccurrenceSettings{Enabled: true, WindowMinutes: 5, MinOccurrences: 3}
	settings.Mining.Scene = conf.SceneSettings{Enabled: true, MinDevices: 3, WindowSeconds: 30}

	o := New(settings, mocks.NewStore(), newTestMetrics(t), nil, nil)
	o.RegisterBuiltins()

	require.Equal(t, 2, o.Detectors(), "disabled detector families must not register")
	names := make([]string, 0, len(o.detectors))
	for _, d := range o.detectors {
		names = append(names, d.Name())
	}
	assert.ElementsMatch(t, []string{detect.PatternCoOccurrence, detect.SynergySceneBased}, names)
}
