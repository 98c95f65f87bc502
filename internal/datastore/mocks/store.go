// Package mocks provides an in-memory datastore.Interface implementation
// for tests.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/events"
)

// Store is a thread-safe in-memory datastore. The zero value is not usable;
// create instances with NewStore.
type Store struct {
	mu sync.Mutex

	patterns  map[string]*datastore.Pattern // by ID
	synergies map[string]*datastore.Synergy // by ID
	ledger    []datastore.OccurrenceLedgerEntry
	health    map[string]*datastore.DetectorHealthRecord
	events    []events.Event

	nextLedgerID uint

	// PingErr, when set, makes Ping fail.
	PingErr error
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		patterns:  make(map[string]*datastore.Pattern),
		synergies: make(map[string]*datastore.Synergy),
		health:    make(map[string]*datastore.DetectorHealthRecord),
	}
}

// SeedEvents loads state events for QueryEvents.
func (s *Store) SeedEvents(evs ...events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evs...)
}

func (s *Store) Open() error  { return nil }
func (s *Store) Close() error { return nil }

func (s *Store) Ping(context.Context) error { return s.PingErr }

// --- Pattern records ---

func (s *Store) PatternByKey(key string) (*datastore.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patterns {
		if p.Key == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) PatternByID(id string) (*datastore.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.patterns[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) InsertPattern(p *datastore.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.patterns[cp.ID] = &cp
	return nil
}

func (s *Store) UpdatePattern(p *datastore.Pattern, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.patterns[p.ID]
	if !ok || cur.Version != expectedVersion {
		return false, nil
	}
	cp := *p
	cp.Version = expectedVersion + 1
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()
	s.patterns[cp.ID] = &cp
	return true, nil
}

func (s *Store) SearchPatterns(patternType, status string, limit, offset int) ([]datastore.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datastore.Pattern
	for _, p := range s.patterns {
		if patternType != "" && p.PatternType != patternType {
			continue
		}
		if status != "" && p.Status() != status {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return paginate(out, limit, offset), nil
}

func (s *Store) StalePatterns(cutoff time.Time) ([]datastore.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datastore.Pattern
	for _, p := range s.patterns {
		if !p.Deprecated && p.LastSeen.Before(cutoff) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) LongDeprecatedPatterns(cutoff time.Time) ([]datastore.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datastore.Pattern
	for _, p := range s.patterns {
		if p.Deprecated && p.DeprecatedAt != nil && p.DeprecatedAt.Before(cutoff) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) ActivePatterns() ([]datastore.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datastore.Pattern
	for _, p := range s.patterns {
		if !p.Deprecated {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) DeprecatePattern(id string, expectedVersion int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok || p.Version != expectedVersion || p.Deprecated {
		return false, nil
	}
	p.Deprecated = true
	p.DeprecatedAt = &now
	p.NeedsReview = false
	p.Version++
	return true, nil
}

func (s *Store) DeletePattern(id string, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok || p.Version != expectedVersion || !p.Deprecated {
		return false, nil
	}
	delete(s.patterns, id)
	return true, nil
}

func (s *Store) FlagPatternForReview(id string, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok || p.Version != expectedVersion || p.Deprecated {
		return false, nil
	}
	p.NeedsReview = true
	p.Version++
	return true, nil
}

// --- Synergy records ---

func (s *Store) SynergyByKey(key string) (*datastore.Synergy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sy := range s.synergies {
		if sy.Key == key {
			cp := *sy
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) SynergyByID(id string) (*datastore.Synergy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sy, ok := s.synergies[id]; ok {
		cp := *sy
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) InsertSynergy(sy *datastore.Synergy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sy
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.synergies[cp.ID] = &cp
	return nil
}

func (s *Store) UpdateSynergy(sy *datastore.Synergy, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.synergies[sy.ID]
	if !ok || cur.Version != expectedVersion {
		return false, nil
	}
	cp := *sy
	cp.Version = expectedVersion + 1
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()
	s.synergies[cp.ID] = &cp
	return true, nil
}

func (s *Store) SearchSynergies(synergyType, status string, limit, offset int) ([]datastore.Synergy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datastore.Synergy
	for _, sy := range s.synergies {
		if synergyType != "" && sy.SynergyType != synergyType {
			continue
		}
		if status != "" && sy.Status() != status {
			continue
		}
		out = append(out, *sy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return paginate(out, limit, offset), nil
}

func (s *Store) StaleSynergies(cutoff time.Time) ([]datastore.Synergy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datastore.Synergy
	for _, sy := range s.synergies {
		if !sy.Deprecated && sy.LastSeen.Before(cutoff) {
			out = append(out, *sy)
		}
	}
	return out, nil
}

func (s *Store) LongDeprecatedSynergies(cutoff time.Time) ([]datastore.Synergy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datastore.Synergy
	for _, sy := range s.synergies {
		if sy.Deprecated && sy.DeprecatedAt != nil && sy.DeprecatedAt.Before(cutoff) {
			out = append(out, *sy)
		}
	}
	return out, nil
}

func (s *Store) ActiveSynergies() ([]datastore.Synergy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datastore.Synergy
	for _, sy := range s.synergies {
		if !sy.Deprecated {
			out = append(out, *sy)
		}
	}
	return out, nil
}

func (s *Store) DeprecateSynergy(id string, expectedVersion int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sy, ok := s.synergies[id]
	if !ok || sy.Version != expectedVersion || sy.Deprecated {
		return false, nil
	}
	sy.Deprecated = true
	sy.DeprecatedAt = &now
	sy.NeedsReview = false
	sy.Version++
	return true, nil
}

func (s *Store) DeleteSynergy(id string, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sy, ok := s.synergies[id]
	if !ok || sy.Version != expectedVersion || !sy.Deprecated {
		return false, nil
	}
	delete(s.synergies, id)
	return true, nil
}

func (s *Store) FlagSynergyForReview(id string, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sy, ok := s.synergies[id]
	if !ok || sy.Version != expectedVersion || sy.Deprecated {
		return false, nil
	}
	sy.NeedsReview = true
	sy.Version++
	return true, nil
}

// --- Occurrence ledger ---

func (s *Store) AppendLedger(entry *datastore.OccurrenceLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLedgerID++
	cp := *entry
	cp.ID = s.nextLedgerID
	s.ledger = append(s.ledger, cp)
	return nil
}

func (s *Store) WindowedOccurrences(recordID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for i := range s.ledger {
		e := &s.ledger[i]
		if e.RecordID == recordID && !e.RecordedAt.Before(since) {
			total += e.Occurrences
		}
	}
	return total, nil
}

func (s *Store) LedgerCountSince(recordID string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.ledger {
		e := &s.ledger[i]
		if e.RecordID == recordID && !e.RecordedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteLedger(recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.ledger[:0]
	for i := range s.ledger {
		if s.ledger[i].RecordID != recordID {
			kept = append(kept, s.ledger[i])
		}
	}
	s.ledger = kept
	return nil
}

func (s *Store) PruneLedger(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pruned int64
	kept := s.ledger[:0]
	for i := range s.ledger {
		if s.ledger[i].RecordedAt.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, s.ledger[i])
	}
	s.ledger = kept
	return pruned, nil
}

// LedgerLen returns the number of stored ledger rows.
func (s *Store) LedgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

// --- Detector health ---

func (s *Store) SaveDetectorHealth(rec *datastore.DetectorHealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.health[cp.DetectorName] = &cp
	return nil
}

func (s *Store) DetectorHealthRecords() ([]datastore.DetectorHealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]datastore.DetectorHealthRecord, 0, len(s.health))
	for _, r := range s.health {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectorName < out[j].DetectorName })
	return out, nil
}

// --- Lifecycle statistics ---

func (s *Store) StatusCounts() (datastore.StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c datastore.StatusCounts
	for _, p := range s.patterns {
		switch p.Status() {
		case datastore.StatusActive:
			c.ActivePatterns++
		case datastore.StatusDeprecated:
			c.DeprecatedPatterns++
		case datastore.StatusNeedsReview:
			c.ReviewPatterns++
		}
	}
	for _, sy := range s.synergies {
		switch sy.Status() {
		case datastore.StatusActive:
			c.ActiveSynergies++
		case datastore.StatusDeprecated:
			c.DeprecatedSynergies++
		case datastore.StatusNeedsReview:
			c.ReviewSynergies++
		}
	}
	c.LedgerEntries = int64(len(s.ledger))
	return c, nil
}

// --- Event store ---

func (s *Store) QueryEvents(_ context.Context, filter events.Filter, tr events.TimeRange) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for i := range s.events {
		ev := s.events[i]
		if !tr.Contains(ev.Timestamp) {
			continue
		}
		if filter.State != "" && ev.State != filter.State {
			continue
		}
		if len(filter.EntityIDs) > 0 && !contains(filter.EntityIDs, ev.EntityID) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func paginate[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
