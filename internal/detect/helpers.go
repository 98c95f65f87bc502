package detect

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tkoskela/patternmind-go/internal/events"
)

const dayFormat = "2006-01-02"

// validEvent filters malformed events at the detector boundary. Bad rows are
// skipped with a warning, they never abort a detector.
func validEvent(e *events.Event, logger *slog.Logger) bool {
	if e.EntityID == "" || e.Timestamp.IsZero() {
		if logger != nil {
			logger.Warn("skipping malformed event",
				"entity_id", e.EntityID,
				"timestamp", e.Timestamp)
		}
		return false
	}
	return true
}

// entityDomain returns the part before the first dot of an entity ID
// ("light.hallway" -> "light"). Unqualified IDs map to themselves.
func entityDomain(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i > 0 {
		return entityID[:i]
	}
	return entityID
}

// entityAffinity estimates how related two entities are from their naming:
// shared object-name tokens usually mean the same room or area.
func entityAffinity(a, b string) float64 {
	tokensOf := func(id string) map[string]struct{} {
		if i := strings.IndexByte(id, '.'); i >= 0 {
			id = id[i+1:]
		}
		out := make(map[string]struct{})
		for _, tok := range strings.Split(id, "_") {
			if tok != "" {
				out[tok] = struct{}{}
			}
		}
		return out
	}

	ta, tb := tokensOf(a), tokensOf(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.3
	}
	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
		}
	}
	smaller := len(ta)
	if len(tb) < smaller {
		smaller = len(tb)
	}
	return 0.3 + 0.7*float64(shared)/float64(smaller)
}

// pairStats accumulates trigger->follower observations.
type pairStats struct {
	count int
	days  map[string]struct{}
	gaps  []time.Duration
}

// followPairs scans time-ordered events for trigger->follower pairs inside
// the window. Each trigger event contributes at most one observation per
// follower entity.
func followPairs(evs []events.Event, window time.Duration, logger *slog.Logger) map[[2]string]*pairStats {
	pairs := make(map[[2]string]*pairStats)

	for i := range evs {
		trigger := &evs[i]
		if !validEvent(trigger, logger) {
			continue
		}
		seen := make(map[string]bool)
		for j := i + 1; j < len(evs); j++ {
			follower := &evs[j]
			if follower.Timestamp.Sub(trigger.Timestamp) > window {
				break
			}
			if !validEvent(follower, nil) || follower.EntityID == trigger.EntityID || seen[follower.EntityID] {
				continue
			}
			seen[follower.EntityID] = true

			key := [2]string{trigger.EntityID, follower.EntityID}
			st := pairs[key]
			if st == nil {
				st = &pairStats{days: make(map[string]struct{})}
				pairs[key] = st
			}
			st.count++
			st.days[trigger.Timestamp.Format(dayFormat)] = struct{}{}
			st.gaps = append(st.gaps, follower.Timestamp.Sub(trigger.Timestamp))
		}
	}
	return pairs
}

// gapConsistency scores how regular the trigger->follower delay is: 1.0 for
// perfectly constant gaps, approaching 0 as the spread fills the window.
func gapConsistency(gaps []time.Duration, window time.Duration) float64 {
	if len(gaps) < 2 {
		return 0.5
	}
	mean := 0.0
	for _, g := range gaps {
		mean += g.Seconds()
	}
	mean /= float64(len(gaps))

	variance := 0.0
	for _, g := range gaps {
		d := g.Seconds() - mean
		variance += d * d
	}
	variance /= float64(len(gaps))

	spread := math.Sqrt(variance) / window.Seconds()
	if spread > 1 {
		spread = 1
	}
	return 1 - spread
}

// activationCounts tallies events per entity.
func activationCounts(evs []events.Event) map[string]int {
	counts := make(map[string]int, len(evs))
	for i := range evs {
		if evs[i].EntityID != "" {
			counts[evs[i].EntityID]++
		}
	}
	return counts
}

// rangeDays returns the number of whole days the range covers, at least 1.
func rangeDays(tr events.TimeRange) int {
	d := int(tr.Duration().Hours() / 24)
	if d < 1 {
		d = 1
	}
	return d
}

// sortCandidates orders candidates by logical key for deterministic output.
func sortCandidates(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		return cands[i].Key() < cands[j].Key()
	})
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
