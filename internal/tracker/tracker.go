// Package tracker merges detector candidates into persisted records and
// keeps the occurrence ledger and windowed counts in sync.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/detect"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/logging"
	"github.com/tkoskela/patternmind-go/internal/scoring"
)

// updateRetries bounds optimistic-concurrency retries when a record changes
// between read and conditional write.
const updateRetries = 3

// NewRecord identifies a record created during an Apply pass, for downstream
// notification.
type NewRecord struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"` // "pattern" or "synergy"
	Type    string  `json:"type"`
	Key     string  `json:"key"`
	Quality float64 `json:"quality"`
}

// Stats summarizes one Apply pass.
type Stats struct {
	Created int
	Updated int
	Skipped int

	NewRecords []NewRecord
}

// Tracker owns the create-or-merge path for candidate records.
type Tracker struct {
	ds         datastore.Interface
	windowDays int
	logger     *slog.Logger
}

// New creates a tracker using the given occurrence window in days.
func New(ds datastore.Interface, windowDays int) *Tracker {
	return &Tracker{
		ds:         ds,
		windowDays: windowDays,
		logger:     logging.ForService("tracker"),
	}
}

// Apply merges a batch of candidates into the store. Candidates sharing a
// logical key are merged within the batch first, so one run never creates
// duplicate records for the same key. Scores are computed with the supplied
// weight table.
func (t *Tracker) Apply(ctx context.Context, candidates []detect.Candidate, weights *scoring.WeightTable, now time.Time) (Stats, error) {
	var stats Stats

	merged := t.mergeBatch(candidates, &stats)
	since := now.AddDate(0, 0, -t.windowDays)

	for _, c := range merged {
		if err := ctx.Err(); err != nil {
			return stats, errors.Wrap(err).
				Component("tracker").
				Category(errors.CategoryCancellation).
				Build()
		}

		var err error
		switch c.Kind {
		case detect.KindPattern:
			err = t.applyPattern(&c, weights, now, since, &stats)
		case detect.KindSynergy:
			err = t.applySynergy(&c, weights, now, since, &stats)
		}
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// mergeBatch collapses same-key candidates, summing occurrences and keeping
// the stronger component scores. Invalid candidates are dropped with a
// warning.
func (t *Tracker) mergeBatch(candidates []detect.Candidate, stats *Stats) []detect.Candidate {
	byKey := make(map[string]*detect.Candidate)
	var order []string

	for i := range candidates {
		c := candidates[i]
		if err := c.Validate(); err != nil {
			t.logger.Warn("dropping malformed candidate", "error", err)
			stats.Skipped++
			continue
		}
		key := c.Key()
		prev, ok := byKey[key]
		if !ok {
			byKey[key] = &c
			order = append(order, key)
			continue
		}
		prev.Occurrences += c.Occurrences
		switch c.Kind {
		case detect.KindPattern:
			mergePatternScores(prev.Pattern, c.Pattern)
		case detect.KindSynergy:
			mergeSynergyScores(prev.Synergy, c.Synergy)
		}
	}

	out := make([]detect.Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

func mergePatternScores(dst, src *detect.PatternCandidate) {
	dst.Confidence = max(dst.Confidence, src.Confidence)
	dst.Frequency = max(dst.Frequency, src.Frequency)
	dst.Temporal = max(dst.Temporal, src.Temporal)
	dst.Relationship = max(dst.Relationship, src.Relationship)
	dst.PatternSupport = max(dst.PatternSupport, src.PatternSupport)
	dst.BlueprintMatch = dst.BlueprintMatch || src.BlueprintMatch
	dst.GroundTruthMatch = dst.GroundTruthMatch || src.GroundTruthMatch
}

func mergeSynergyScores(dst, src *detect.SynergyCandidate) {
	dst.Confidence = max(dst.Confidence, src.Confidence)
	dst.Impact = max(dst.Impact, src.Impact)
	dst.Compatibility = max(dst.Compatibility, src.Compatibility)
	dst.PatternSupport = max(dst.PatternSupport, src.PatternSupport)
	dst.PatternValidated = dst.PatternValidated || src.PatternValidated
	dst.BlueprintMatch = dst.BlueprintMatch || src.BlueprintMatch
	dst.LowComplexity = dst.LowComplexity && src.LowComplexity
}

func (t *Tracker) applyPattern(c *detect.Candidate, weights *scoring.WeightTable, now, since time.Time, stats *Stats) error {
	pc := c.Pattern
	key := c.Key()
	quality := scoring.PatternScore(pc.ScoreInput(), *weights)

	existing, err := t.ds.PatternByKey(key)
	if err != nil {
		return err
	}

	if existing == nil {
		p := &datastore.Pattern{
			ID:                uuid.NewString(),
			PatternType:       pc.Type,
			Key:               key,
			Entities:          datastore.JoinEntities(pc.Entities),
			Confidence:        pc.Confidence,
			FrequencyScore:    pc.Frequency,
			TemporalScore:     pc.Temporal,
			RelationshipScore: pc.Relationship,
			QualityScore:      quality,
			Occurrences:       c.Occurrences,
			FirstSeen:         now,
			LastSeen:          now,
			BlueprintMatch:    pc.BlueprintMatch,
			GroundTruthMatch:  pc.GroundTruthMatch,
			PatternSupport:    pc.PatternSupport,
			Version:           1,
		}
		if err := t.ds.InsertPattern(p); err != nil {
			return err
		}
		if err := t.seedLedger(p.ID, now, c.Occurrences); err != nil {
			return err
		}
		stats.Created++
		stats.NewRecords = append(stats.NewRecords, NewRecord{
			ID: p.ID, Kind: "pattern", Type: p.PatternType, Key: key, Quality: quality,
		})
		return nil
	}

	// One emission, one ledger entry: the append stays outside the retry
	// loop so a version conflict never double-counts it.
	if err := t.ds.AppendLedger(&datastore.OccurrenceLedgerEntry{
		RecordID:    existing.ID,
		RecordedAt:  now,
		Occurrences: c.Occurrences,
	}); err != nil {
		return err
	}

	for attempt := 0; attempt < updateRetries; attempt++ {
		windowed, err := t.ds.WindowedOccurrences(existing.ID, since)
		if err != nil {
			return err
		}

		p := *existing
		p.Occurrences = windowed
		p.LastSeen = now
		p.Confidence = max(p.Confidence, pc.Confidence)
		p.FrequencyScore = max(p.FrequencyScore, pc.Frequency)
		p.TemporalScore = max(p.TemporalScore, pc.Temporal)
		p.RelationshipScore = max(p.RelationshipScore, pc.Relationship)
		p.PatternSupport = max(p.PatternSupport, pc.PatternSupport)
		p.BlueprintMatch = p.BlueprintMatch || pc.BlueprintMatch
		p.GroundTruthMatch = p.GroundTruthMatch || pc.GroundTruthMatch
		p.QualityScore = scoring.PatternScore(scoring.PatternInput{
			Confidence:       p.Confidence,
			Frequency:        p.FrequencyScore,
			Temporal:         p.TemporalScore,
			Relationship:     p.RelationshipScore,
			BlueprintMatch:   p.BlueprintMatch,
			GroundTruthMatch: p.GroundTruthMatch,
			PatternSupport:   p.PatternSupport,
		}, *weights)
		// Fresh occurrences resurrect the record.
		p.Deprecated = false
		p.DeprecatedAt = nil
		p.NeedsReview = false

		ok, err := t.ds.UpdatePattern(&p, existing.Version)
		if err != nil {
			return err
		}
		if ok {
			stats.Updated++
			return nil
		}
		// Concurrent writer won the version race; re-read and retry.
		existing, err = t.ds.PatternByKey(key)
		if err != nil {
			return err
		}
		if existing == nil {
			// Deleted underneath us; the next run recreates it from fresh
			// observations.
			stats.Skipped++
			return nil
		}
	}
	return errors.Newf("giving up on pattern %s after %d version conflicts", key, updateRetries).
		Component("tracker").
		Category(errors.CategoryConflict).
		Build()
}

func (t *Tracker) applySynergy(c *detect.Candidate, weights *scoring.WeightTable, now, since time.Time, stats *Stats) error {
	sc := c.Synergy
	key := c.Key()
	quality := scoring.SynergyScore(sc.ScoreInput(), *weights)

	existing, err := t.ds.SynergyByKey(key)
	if err != nil {
		return err
	}

	if existing == nil {
		s := &datastore.Synergy{
			ID:               uuid.NewString(),
			SynergyType:      sc.Type,
			Key:              key,
			Devices:          datastore.JoinEntities(sc.Devices),
			Confidence:       sc.Confidence,
			ImpactScore:      sc.Impact,
			Compatibility:    sc.Compatibility,
			PatternSupport:   sc.PatternSupport,
			QualityScore:     quality,
			Occurrences:      c.Occurrences,
			FirstSeen:        now,
			LastSeen:         now,
			PatternValidated: sc.PatternValidated,
			BlueprintMatch:   sc.BlueprintMatch,
			LowComplexity:    sc.LowComplexity,
			Version:          1,
		}
		if err := t.ds.InsertSynergy(s); err != nil {
			return err
		}
		if err := t.seedLedger(s.ID, now, c.Occurrences); err != nil {
			return err
		}
		stats.Created++
		stats.NewRecords = append(stats.NewRecords, NewRecord{
			ID: s.ID, Kind: "synergy", Type: s.SynergyType, Key: key, Quality: quality,
		})
		return nil
	}

	if err := t.ds.AppendLedger(&datastore.OccurrenceLedgerEntry{
		RecordID:    existing.ID,
		RecordedAt:  now,
		Occurrences: c.Occurrences,
	}); err != nil {
		return err
	}

	for attempt := 0; attempt < updateRetries; attempt++ {
		windowed, err := t.ds.WindowedOccurrences(existing.ID, since)
		if err != nil {
			return err
		}

		s := *existing
		s.Occurrences = windowed
		s.LastSeen = now
		s.Confidence = max(s.Confidence, sc.Confidence)
		s.ImpactScore = max(s.ImpactScore, sc.Impact)
		s.Compatibility = max(s.Compatibility, sc.Compatibility)
		s.PatternSupport = max(s.PatternSupport, sc.PatternSupport)
		s.PatternValidated = s.PatternValidated || sc.PatternValidated
		s.BlueprintMatch = s.BlueprintMatch || sc.BlueprintMatch
		s.QualityScore = scoring.SynergyScore(scoring.SynergyInput{
			Impact:           s.ImpactScore,
			Confidence:       s.Confidence,
			PatternSupport:   s.PatternSupport,
			Compatibility:    s.Compatibility,
			PatternValidated: s.PatternValidated,
			BlueprintMatch:   s.BlueprintMatch,
			LowComplexity:    s.LowComplexity,
		}, *weights)
		s.Deprecated = false
		s.DeprecatedAt = nil
		s.NeedsReview = false

		ok, err := t.ds.UpdateSynergy(&s, existing.Version)
		if err != nil {
			return err
		}
		if ok {
			stats.Updated++
			return nil
		}
		existing, err = t.ds.SynergyByKey(key)
		if err != nil {
			return err
		}
		if existing == nil {
			stats.Skipped++
			return nil
		}
	}
	return errors.Newf("giving up on synergy %s after %d version conflicts", key, updateRetries).
		Component("tracker").
		Category(errors.CategoryConflict).
		Build()
}

func (t *Tracker) seedLedger(recordID string, now time.Time, occurrences int) error {
	return t.ds.AppendLedger(&datastore.OccurrenceLedgerEntry{
		RecordID:    recordID,
		RecordedAt:  now,
		Occurrences: occurrences,
	})
}
