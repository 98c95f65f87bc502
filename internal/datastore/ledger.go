// ledger.go: occurrence ledger operations
package datastore

import (
	"fmt"
	"time"
)

// AppendLedger records that a number of occurrences was observed at a point
// in time. The ledger is append-only; windowed counts are sums over it.
func (ds *DataStore) AppendLedger(entry *OccurrenceLedgerEntry) error {
	if err := ds.DB.Create(entry).Error; err != nil {
		return fmt.Errorf("appending ledger entry for %s: %w", entry.RecordID, err)
	}
	return nil
}

// WindowedOccurrences sums the ledger entries for a record recorded at or
// after since. Entries older than the window are excluded, not deleted.
func (ds *DataStore) WindowedOccurrences(recordID string, since time.Time) (int, error) {
	var total *int64
	err := ds.DB.Model(&OccurrenceLedgerEntry{}).
		Where("record_id = ? AND recorded_at >= ?", recordID, since).
		Select("SUM(occurrences)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("summing ledger for %s: %w", recordID, err)
	}
	if total == nil {
		return 0, nil
	}
	return int(*total), nil
}

// LedgerCountSince counts ledger entries for a record inside a window. Used
// by the review-flag phase of the lifecycle sweep.
func (ds *DataStore) LedgerCountSince(recordID string, since time.Time) (int64, error) {
	var count int64
	err := ds.DB.Model(&OccurrenceLedgerEntry{}).
		Where("record_id = ? AND recorded_at >= ?", recordID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting ledger for %s: %w", recordID, err)
	}
	return count, nil
}

// DeleteLedger removes all ledger history for a record. Called when the
// record itself is deleted.
func (ds *DataStore) DeleteLedger(recordID string) error {
	if err := ds.DB.Where("record_id = ?", recordID).Delete(&OccurrenceLedgerEntry{}).Error; err != nil {
		return fmt.Errorf("deleting ledger for %s: %w", recordID, err)
	}
	return nil
}

// PruneLedger removes entries recorded before the cutoff. Storage hygiene
// only; correctness never depends on pruning because windowed sums already
// exclude aged-out entries.
func (ds *DataStore) PruneLedger(before time.Time) (int64, error) {
	res := ds.DB.Where("recorded_at < ?", before).Delete(&OccurrenceLedgerEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning ledger before %s: %w", before.Format(time.RFC3339), res.Error)
	}
	return res.RowsAffected, nil
}
