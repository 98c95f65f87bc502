// events.go: read-only access to the externally populated event store table
package datastore

import (
	"context"
	"fmt"

	"github.com/tkoskela/patternmind-go/internal/events"
)

// QueryEvents implements events.Store. Results are ordered by ascending
// timestamp as the detector contract requires.
func (ds *DataStore) QueryEvents(ctx context.Context, filter events.Filter, tr events.TimeRange) ([]events.Event, error) {
	q := ds.DB.WithContext(ctx).Model(&StateEvent{}).
		Where("timestamp >= ? AND timestamp < ?", tr.Start, tr.End)
	if len(filter.EntityIDs) > 0 {
		q = q.Where("entity_id IN ?", filter.EntityIDs)
	}
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}

	var rows []StateEvent
	if err := q.Order("timestamp ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}

	out := make([]events.Event, 0, len(rows))
	for i := range rows {
		out = append(out, events.Event{
			EntityID:      rows[i].EntityID,
			State:         rows[i].State,
			PreviousState: rows[i].PreviousState,
			Timestamp:     rows[i].Timestamp,
		})
	}
	return out, nil
}
