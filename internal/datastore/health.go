// health.go: detector health record persistence
package datastore

import (
	"fmt"

	"gorm.io/gorm/clause"
)

// SaveDetectorHealth upserts the health record for one detector.
func (ds *DataStore) SaveDetectorHealth(rec *DetectorHealthRecord) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "detector_name"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("saving health record for %s: %w", rec.DetectorName, err)
	}
	return nil
}

// DetectorHealthRecords returns the persisted health state of all detectors.
func (ds *DataStore) DetectorHealthRecords() ([]DetectorHealthRecord, error) {
	var out []DetectorHealthRecord
	if err := ds.DB.Order("detector_name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing detector health records: %w", err)
	}
	return out, nil
}
