// Package health wraps detector invocations with timing, panic isolation
// and a per-detector status state machine.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/detect"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/events"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

// Health status values stored in DetectorHealthRecord.HealthStatus.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusFailing  = "failing"
)

// failingThreshold is the consecutive-failure count at which a detector is
// classified failing.
const failingThreshold = 3

// zeroStreakThreshold is how many successful-but-empty runs in a row mark a
// detector degraded.
const zeroStreakThreshold = 3

// detectorState is the tracked state for one detector. zeroStreak is
// in-memory only; it resets on restart, which merely delays a degraded
// classification by a few runs.
type detectorState struct {
	record     datastore.DetectorHealthRecord
	zeroStreak int
}

// Monitor tracks per-detector health. It is owned by the orchestrator and
// passed to it explicitly; there is no package-level instance.
type Monitor struct {
	mu      sync.Mutex
	states  map[string]*detectorState
	timeout time.Duration
	logger  *slog.Logger
}

// NewMonitor creates a monitor. timeout is the soft per-detector deadline;
// zero disables it.
func NewMonitor(timeout time.Duration) *Monitor {
	return &Monitor{
		states:  make(map[string]*detectorState),
		timeout: timeout,
		logger:  logging.ForService("health"),
	}
}

// Restore seeds the monitor with previously persisted records so failure
// streaks survive restarts.
func (m *Monitor) Restore(records []datastore.DetectorHealthRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range records {
		r := records[i]
		m.states[r.DetectorName] = &detectorState{record: r}
	}
}

type detectResult struct {
	candidates []detect.Candidate
	err        error
}

// Wrap invokes the detector with panic recovery and the soft timeout, records
// the outcome, and returns the candidates. A failing detector yields an empty
// slice, never an error: one detector must not halt the run.
func (m *Monitor) Wrap(ctx context.Context, d detect.Detector, store events.Store, tr events.TimeRange) []detect.Candidate {
	name := d.Name()
	start := time.Now()

	// Buffered so an abandoned (timed-out) call can still complete and exit.
	resCh := make(chan detectResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- detectResult{err: errors.Newf("detector panic: %v", r).
					Component(name).
					Category(errors.CategoryDetector).
					Build()}
			}
		}()
		cands, err := d.Detect(ctx, store, tr)
		resCh <- detectResult{candidates: cands, err: err}
	}()

	var timeoutCh <-chan time.Time
	if m.timeout > 0 {
		t := time.NewTimer(m.timeout)
		defer t.Stop()
		timeoutCh = t.C
	}

	var res detectResult
	select {
	case res = <-resCh:
	case <-timeoutCh:
		res = detectResult{err: errors.Newf("detector exceeded soft timeout of %s", m.timeout).
			Component(name).
			Category(errors.CategoryTimeout).
			Build()}
	case <-ctx.Done():
		res = detectResult{err: errors.Wrap(ctx.Err()).
			Component(name).
			Category(errors.CategoryCancellation).
			Build()}
	}

	elapsed := time.Since(start)
	m.observe(name, len(res.candidates), elapsed, res.err)

	if res.err != nil {
		m.logger.Error("detector run failed", "detector", name, "duration_ms", elapsed.Milliseconds(), "error", res.err)
		return nil
	}
	m.logger.Debug("detector run completed", "detector", name, "candidates", len(res.candidates), "duration_ms", elapsed.Milliseconds())
	return res.candidates
}

// observe updates the state machine for one finished call. The lock is taken
// only here, never across the detector call itself.
func (m *Monitor) observe(name string, found int, elapsed time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[name]
	if !ok {
		st = &detectorState{record: datastore.DetectorHealthRecord{DetectorName: name}}
		m.states[name] = st
	}
	r := &st.record

	r.LastRunAt = time.Now()
	r.TotalRuns++
	ms := float64(elapsed.Microseconds()) / 1000.0
	r.AvgProcessingTimeMs += (ms - r.AvgProcessingTimeMs) / float64(r.TotalRuns)

	if err != nil {
		r.LastSuccess = false
		r.ConsecutiveFailures++
		r.LastError = err.Error()
		st.zeroStreak = 0
	} else {
		r.LastSuccess = true
		r.ConsecutiveFailures = 0
		r.LastError = ""
		r.TotalRecordsFound += int64(found)
		if found == 0 {
			st.zeroStreak++
		} else {
			st.zeroStreak = 0
		}
	}

	r.HealthStatus = classify(r.ConsecutiveFailures, r.LastSuccess, st.zeroStreak)
	r.UpdatedAt = time.Now()
}

func classify(consecutiveFailures int, lastSuccess bool, zeroStreak int) string {
	switch {
	case consecutiveFailures >= failingThreshold:
		return StatusFailing
	case consecutiveFailures > 0:
		return StatusDegraded
	case lastSuccess && zeroStreak >= zeroStreakThreshold:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Report returns a snapshot of all tracked detector records, sorted by name.
func (m *Monitor) Report() []datastore.DetectorHealthRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]datastore.DetectorHealthRecord, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st.record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectorName < out[j].DetectorName })
	return out
}

// Persist writes the current snapshot through the datastore.
func (m *Monitor) Persist(ds datastore.Interface) error {
	for _, r := range m.Report() {
		rec := r
		if err := ds.SaveDetectorHealth(&rec); err != nil {
			return fmt.Errorf("saving health record for %s: %w", rec.DetectorName, err)
		}
	}
	return nil
}
