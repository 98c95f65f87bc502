// Package orchestrator coordinates one mining pass: it fans detectors out
// under health supervision, scores their candidates and merges them into the
// store, then reports the outcome.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tkoskela/patternmind-go/internal/calibration"
	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/detect"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/events"
	"github.com/tkoskela/patternmind-go/internal/guard"
	"github.com/tkoskela/patternmind-go/internal/health"
	"github.com/tkoskela/patternmind-go/internal/lifecycle"
	"github.com/tkoskela/patternmind-go/internal/logging"
	"github.com/tkoskela/patternmind-go/internal/notify"
	"github.com/tkoskela/patternmind-go/internal/observability"
	"github.com/tkoskela/patternmind-go/internal/scoring"
	"github.com/tkoskela/patternmind-go/internal/tracker"
)

// notifyQualityFloor is the minimum quality score a newly created record
// needs before it is announced over MQTT.
const notifyQualityFloor = 0.7

// RunReport is returned after every mining pass and published over MQTT.
type RunReport struct {
	RunID          string                          `json:"run_id"`
	StartedAt      time.Time                       `json:"started_at"`
	FinishedAt     time.Time                       `json:"finished_at"`
	DetectorsRun   int                             `json:"detectors_run"`
	RecordsCreated int                             `json:"records_created"`
	RecordsUpdated int                             `json:"records_updated"`
	WeightVersion  int                             `json:"weight_version"`
	HealthReport   []datastore.DetectorHealthRecord `json:"health_report"`
}

// Orchestrator owns the registered detectors and all collaborators of one
// mining pipeline. Detectors are registered explicitly at startup; there is
// no dynamic discovery.
type Orchestrator struct {
	settings *conf.Settings
	ds       datastore.Interface

	detectors []detect.Detector
	monitor   *health.Monitor
	tracker   *tracker.Tracker
	lifecycle *lifecycle.Manager
	guard     *guard.Guard
	publisher notify.Publisher
	metrics   *observability.Metrics

	calibrator *calibration.AdaptiveCalibrator // nil in log-only mode
	weights    atomic.Pointer[scoring.WeightTable]

	runMu  sync.Mutex // one mining pass at a time
	logger *slog.Logger
}

// New wires the orchestrator. publisher and calibrator may be nil.
func New(settings *conf.Settings, ds datastore.Interface, metrics *observability.Metrics,
	publisher notify.Publisher, calibrator *calibration.AdaptiveCalibrator) *Orchestrator {

	o := &Orchestrator{
		settings:   settings,
		ds:         ds,
		monitor:    health.NewMonitor(settings.Mining.DetectorTimeout),
		tracker:    tracker.New(ds, settings.Mining.WindowDays),
		lifecycle:  lifecycle.New(ds, settings.Lifecycle),
		guard:      guard.New(settings.Guard),
		publisher:  publisher,
		metrics:    metrics,
		calibrator: calibrator,
		logger:     logging.ForService("orchestrator"),
	}

	table := scoring.DefaultWeightTable()
	o.weights.Store(&table)

	if persisted, err := ds.DetectorHealthRecords(); err != nil {
		o.logger.Warn("could not restore detector health state", "error", err)
	} else {
		o.monitor.Restore(persisted)
	}
	return o
}

// Register adds a detector to the pipeline. Not safe to call once runs have
// started.
func (o *Orchestrator) Register(d detect.Detector) {
	o.detectors = append(o.detectors, d)
}

// Detectors returns the registered detector count.
func (o *Orchestrator) Detectors() int { return len(o.detectors) }

// Weights returns the current scoring weight table.
func (o *Orchestrator) Weights() scoring.WeightTable {
	return *o.weights.Load()
}

// SetWeights atomically swaps the scoring weight table; in-flight scoring
// keeps the table it started with.
func (o *Orchestrator) SetWeights(t scoring.WeightTable) {
	t = t.Normalized()
	o.weights.Store(&t)
}

// HealthReport exposes the monitor's current snapshot.
func (o *Orchestrator) HealthReport() []datastore.DetectorHealthRecord {
	return o.monitor.Report()
}

// Lifecycle exposes the sweep manager for the admin API.
func (o *Orchestrator) Lifecycle() *lifecycle.Manager { return o.lifecycle }

// eventStore adapts the datastore to the read-only event query contract
// detectors consume.
type eventStore struct {
	ds datastore.Interface
}

func (s eventStore) Query(ctx context.Context, filter events.Filter, tr events.TimeRange) ([]events.Event, error) {
	return s.ds.QueryEvents(ctx, filter, tr)
}

// Run executes one mining pass. A dead database aborts the run before any
// writes; individual detector failures only degrade their own health.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	started := time.Now()
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}

	if err := o.guard.Check(); err != nil {
		o.metrics.Run.RecordRun("guard_rejected", 0, 0, time.Since(started).Seconds())
		return nil, err
	}
	if err := o.ds.Ping(ctx); err != nil {
		o.metrics.Run.RecordRun("db_unavailable", 0, 0, time.Since(started).Seconds())
		return nil, errors.Wrap(err).
			Component("orchestrator").
			Category(errors.CategoryDatabase).
			Build()
	}

	tr := events.TimeRange{
		Start: started.AddDate(0, 0, -o.settings.Mining.LookbackDays),
		End:   started,
	}
	store := eventStore{ds: o.ds}

	concurrency := o.settings.Mining.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var (
		mu         sync.Mutex
		candidates []detect.Candidate
		wg         sync.WaitGroup
	)
	for _, d := range o.detectors {
		wg.Add(1)
		go func(d detect.Detector) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			detStart := time.Now()
			cands := o.monitor.Wrap(ctx, d, store, tr)
			o.metrics.Detector.RecordRun(d.Name(), runResult(len(cands)), len(cands), time.Since(detStart).Seconds())

			mu.Lock()
			candidates = append(candidates, cands...)
			mu.Unlock()
		}(d)
	}
	wg.Wait()
	report.DetectorsRun = len(o.detectors)

	if err := ctx.Err(); err != nil {
		o.metrics.Run.RecordRun("cancelled", 0, 0, time.Since(started).Seconds())
		return nil, errors.Wrap(err).
			Component("orchestrator").
			Category(errors.CategoryCancellation).
			Build()
	}

	weights := o.weights.Load()
	stats, err := o.tracker.Apply(ctx, candidates, weights, started)
	report.RecordsCreated = stats.Created
	report.RecordsUpdated = stats.Updated
	if err != nil {
		o.metrics.Run.RecordRun("tracker_error", stats.Created, stats.Updated, time.Since(started).Seconds())
		return nil, err
	}

	if err := o.monitor.Persist(o.ds); err != nil {
		o.logger.Warn("could not persist detector health", "error", err)
	}
	report.HealthReport = o.monitor.Report()
	for i := range report.HealthReport {
		r := &report.HealthReport[i]
		o.metrics.Detector.SetHealthStatus(r.DetectorName, r.HealthStatus)
	}

	o.maybeRecalibrate()
	report.WeightVersion = o.weights.Load().Version
	report.FinishedAt = time.Now()

	o.metrics.Run.RecordRun("success", stats.Created, stats.Updated, time.Since(started).Seconds())
	o.publish(ctx, "runs", report)
	for _, rec := range stats.NewRecords {
		if rec.Quality >= notifyQualityFloor {
			o.publish(ctx, "records", rec)
		}
	}

	o.logger.Info("mining pass completed",
		"run_id", report.RunID,
		"detectors", report.DetectorsRun,
		"candidates", len(candidates),
		"created", stats.Created,
		"updated", stats.Updated,
		"duration_ms", time.Since(started).Milliseconds())
	return report, nil
}

// RunSweep executes one lifecycle sweep and publishes its stats.
func (o *Orchestrator) RunSweep(ctx context.Context) (lifecycle.Stats, error) {
	start := time.Now()
	stats, err := o.lifecycle.Sweep(ctx)
	if err != nil {
		return stats, err
	}
	o.metrics.Lifecycle.RecordSweep(stats.Deprecated, stats.Deleted, stats.FlaggedReview, stats.LedgerPruned, time.Since(start).Seconds())
	o.publish(ctx, "sweeps", stats)
	return stats, nil
}

// Observe forwards user feedback to the configured calibration observer.
func (o *Orchestrator) Observe(ctx context.Context, recordID string, action calibration.Action) error {
	if o.calibrator == nil {
		return calibration.NewLogObserver().Observe(ctx, recordID, action)
	}
	return o.calibrator.Observe(ctx, recordID, action)
}

// maybeRecalibrate asks the adaptive calibrator for an updated weight table
// after each run.
func (o *Orchestrator) maybeRecalibrate() {
	if o.calibrator == nil {
		return
	}
	if o.calibrator.NeedsRecalibration() {
		o.logger.Warn("scoring drift detected, recalibration recommended")
	}
	if next, ok := o.calibrator.Recalibrate(*o.weights.Load()); ok {
		o.weights.Store(&next)
		o.logger.Info("weight table updated", "version", next.Version)
	}
}

func (o *Orchestrator) publish(ctx context.Context, subtopic string, payload any) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, subtopic, payload); err != nil {
		o.logger.Warn("report publish failed", "subtopic", subtopic, "error", err)
	}
}

func runResult(candidates int) string {
	if candidates > 0 {
		return "candidates"
	}
	return "empty"
}
