// records.go: pattern and synergy record operations
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tkoskela/patternmind-go/internal/errors"
)

// PatternByKey returns the pattern with the given logical key, or nil when no
// such record exists.
func (ds *DataStore) PatternByKey(key string) (*Pattern, error) {
	var p Pattern
	err := ds.DB.Where("record_key = ?", key).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting pattern by key %q: %w", key, err)
	}
	return &p, nil
}

// PatternByID returns the pattern with the given ID, or nil when no such
// record exists.
func (ds *DataStore) PatternByID(id string) (*Pattern, error) {
	var p Pattern
	err := ds.DB.Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting pattern by id %q: %w", id, err)
	}
	return &p, nil
}

// InsertPattern creates a new pattern record.
func (ds *DataStore) InsertPattern(p *Pattern) error {
	if err := ds.DB.Create(p).Error; err != nil {
		return fmt.Errorf("inserting pattern %s: %w", p.Key, err)
	}
	return nil
}

// UpdatePattern writes the full record back, guarded by the expected version.
// Returns false when the record was concurrently modified.
func (ds *DataStore) UpdatePattern(p *Pattern, expectedVersion int64) (bool, error) {
	p.Version = expectedVersion + 1
	res := ds.DB.Model(&Pattern{}).
		Where("id = ? AND version = ?", p.ID, expectedVersion).
		Select("*").Omit("id", "created_at").
		Updates(p)
	if res.Error != nil {
		return false, fmt.Errorf("updating pattern %s: %w", p.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SearchPatterns returns records filtered by type and status with pagination.
// Empty filter values match everything.
func (ds *DataStore) SearchPatterns(patternType, status string, limit, offset int) ([]Pattern, error) {
	q := ds.DB.Model(&Pattern{})
	if patternType != "" {
		q = q.Where("pattern_type = ?", patternType)
	}
	q = applyStatusFilter(q, status)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Pattern
	if err := q.Offset(offset).Order("quality_score DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("searching patterns: %w", err)
	}
	return out, nil
}

// StalePatterns returns active patterns whose last sighting is before cutoff.
func (ds *DataStore) StalePatterns(cutoff time.Time) ([]Pattern, error) {
	var out []Pattern
	err := ds.DB.Where("deprecated = ? AND last_seen < ?", false, cutoff).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing stale patterns: %w", err)
	}
	return out, nil
}

// LongDeprecatedPatterns returns deprecated patterns whose deprecation
// predates cutoff. Deletion is only valid for these.
func (ds *DataStore) LongDeprecatedPatterns(cutoff time.Time) ([]Pattern, error) {
	var out []Pattern
	err := ds.DB.Where("deprecated = ? AND deprecated_at < ?", true, cutoff).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing long-deprecated patterns: %w", err)
	}
	return out, nil
}

// ActivePatterns returns all non-deprecated patterns.
func (ds *DataStore) ActivePatterns() ([]Pattern, error) {
	var out []Pattern
	if err := ds.DB.Where("deprecated = ?", false).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing active patterns: %w", err)
	}
	return out, nil
}

// DeprecatePattern marks a pattern deprecated, guarded by version so a
// concurrent resurrection wins the race.
func (ds *DataStore) DeprecatePattern(id string, expectedVersion int64, now time.Time) (bool, error) {
	res := ds.DB.Model(&Pattern{}).
		Where("id = ? AND version = ? AND deprecated = ?", id, expectedVersion, false).
		Updates(map[string]any{
			"deprecated":    true,
			"deprecated_at": now,
			"needs_review":  false,
			"version":       expectedVersion + 1,
		})
	if res.Error != nil {
		return false, fmt.Errorf("deprecating pattern %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeletePattern permanently removes a pattern, guarded by version.
func (ds *DataStore) DeletePattern(id string, expectedVersion int64) (bool, error) {
	res := ds.DB.Where("id = ? AND version = ? AND deprecated = ?", id, expectedVersion, true).
		Delete(&Pattern{})
	if res.Error != nil {
		return false, fmt.Errorf("deleting pattern %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FlagPatternForReview sets needs_review on an active pattern.
func (ds *DataStore) FlagPatternForReview(id string, expectedVersion int64) (bool, error) {
	res := ds.DB.Model(&Pattern{}).
		Where("id = ? AND version = ? AND deprecated = ?", id, expectedVersion, false).
		Updates(map[string]any{
			"needs_review": true,
			"version":      expectedVersion + 1,
		})
	if res.Error != nil {
		return false, fmt.Errorf("flagging pattern %s for review: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SynergyByKey returns the synergy with the given logical key, or nil when no
// such record exists.
func (ds *DataStore) SynergyByKey(key string) (*Synergy, error) {
	var s Synergy
	err := ds.DB.Where("record_key = ?", key).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting synergy by key %q: %w", key, err)
	}
	return &s, nil
}

// SynergyByID returns the synergy with the given ID, or nil when no such
// record exists.
func (ds *DataStore) SynergyByID(id string) (*Synergy, error) {
	var s Synergy
	err := ds.DB.Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting synergy by id %q: %w", id, err)
	}
	return &s, nil
}

// InsertSynergy creates a new synergy record.
func (ds *DataStore) InsertSynergy(s *Synergy) error {
	if err := ds.DB.Create(s).Error; err != nil {
		return fmt.Errorf("inserting synergy %s: %w", s.Key, err)
	}
	return nil
}

// UpdateSynergy writes the full record back, guarded by the expected version.
func (ds *DataStore) UpdateSynergy(s *Synergy, expectedVersion int64) (bool, error) {
	s.Version = expectedVersion + 1
	res := ds.DB.Model(&Synergy{}).
		Where("id = ? AND version = ?", s.ID, expectedVersion).
		Select("*").Omit("id", "created_at").
		Updates(s)
	if res.Error != nil {
		return false, fmt.Errorf("updating synergy %s: %w", s.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SearchSynergies returns records filtered by type and status with pagination.
func (ds *DataStore) SearchSynergies(synergyType, status string, limit, offset int) ([]Synergy, error) {
	q := ds.DB.Model(&Synergy{})
	if synergyType != "" {
		q = q.Where("synergy_type = ?", synergyType)
	}
	q = applyStatusFilter(q, status)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Synergy
	if err := q.Offset(offset).Order("quality_score DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("searching synergies: %w", err)
	}
	return out, nil
}

// StaleSynergies returns active synergies whose last sighting is before cutoff.
func (ds *DataStore) StaleSynergies(cutoff time.Time) ([]Synergy, error) {
	var out []Synergy
	err := ds.DB.Where("deprecated = ? AND last_seen < ?", false, cutoff).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing stale synergies: %w", err)
	}
	return out, nil
}

// LongDeprecatedSynergies returns deprecated synergies older than cutoff.
func (ds *DataStore) LongDeprecatedSynergies(cutoff time.Time) ([]Synergy, error) {
	var out []Synergy
	err := ds.DB.Where("deprecated = ? AND deprecated_at < ?", true, cutoff).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing long-deprecated synergies: %w", err)
	}
	return out, nil
}

// ActiveSynergies returns all non-deprecated synergies.
func (ds *DataStore) ActiveSynergies() ([]Synergy, error) {
	var out []Synergy
	if err := ds.DB.Where("deprecated = ?", false).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing active synergies: %w", err)
	}
	return out, nil
}

// DeprecateSynergy marks a synergy deprecated, guarded by version.
func (ds *DataStore) DeprecateSynergy(id string, expectedVersion int64, now time.Time) (bool, error) {
	res := ds.DB.Model(&Synergy{}).
		Where("id = ? AND version = ? AND deprecated = ?", id, expectedVersion, false).
		Updates(map[string]any{
			"deprecated":    true,
			"deprecated_at": now,
			"needs_review":  false,
			"version":       expectedVersion + 1,
		})
	if res.Error != nil {
		return false, fmt.Errorf("deprecating synergy %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteSynergy permanently removes a synergy, guarded by version.
func (ds *DataStore) DeleteSynergy(id string, expectedVersion int64) (bool, error) {
	res := ds.DB.Where("id = ? AND version = ? AND deprecated = ?", id, expectedVersion, true).
		Delete(&Synergy{})
	if res.Error != nil {
		return false, fmt.Errorf("deleting synergy %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FlagSynergyForReview sets needs_review on an active synergy.
func (ds *DataStore) FlagSynergyForReview(id string, expectedVersion int64) (bool, error) {
	res := ds.DB.Model(&Synergy{}).
		Where("id = ? AND version = ? AND deprecated = ?", id, expectedVersion, false).
		Updates(map[string]any{
			"needs_review": true,
			"version":      expectedVersion + 1,
		})
	if res.Error != nil {
		return false, fmt.Errorf("flagging synergy %s for review: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// StatusCounts summarizes pattern and synergy states for /lifecycle/stats.
func (ds *DataStore) StatusCounts() (StatusCounts, error) {
	var c StatusCounts
	counts := []struct {
		dst   *int64
		model any
		where string
		args  []any
	}{
		{&c.ActivePatterns, &Pattern{}, "deprecated = ?", []any{false}},
		{&c.DeprecatedPatterns, &Pattern{}, "deprecated = ?", []any{true}},
		{&c.ReviewPatterns, &Pattern{}, "deprecated = ? AND needs_review = ?", []any{false, true}},
		{&c.ActiveSynergies, &Synergy{}, "deprecated = ?", []any{false}},
		{&c.DeprecatedSynergies, &Synergy{}, "deprecated = ?", []any{true}},
		{&c.ReviewSynergies, &Synergy{}, "deprecated = ? AND needs_review = ?", []any{false, true}},
		{&c.LedgerEntries, &OccurrenceLedgerEntry{}, "", nil},
	}
	for _, cc := range counts {
		q := ds.DB.Model(cc.model)
		if cc.where != "" {
			q = q.Where(cc.where, cc.args...)
		}
		if err := q.Count(cc.dst).Error; err != nil {
			return c, fmt.Errorf("counting records: %w", err)
		}
	}
	return c, nil
}

func applyStatusFilter(q *gorm.DB, status string) *gorm.DB {
	switch status {
	case StatusActive:
		return q.Where("deprecated = ?", false)
	case StatusDeprecated:
		return q.Where("deprecated = ?", true)
	case StatusNeedsReview:
		return q.Where("deprecated = ? AND needs_review = ?", false, true)
	default:
		return q
	}
}
