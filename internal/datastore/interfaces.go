// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/events"
)

// Interface abstracts the underlying database implementation and defines the
// operations used by the detection, tracking and lifecycle components.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error

	// Pattern records
	PatternByKey(key string) (*Pattern, error)
	PatternByID(id string) (*Pattern, error)
	InsertPattern(p *Pattern) error
	UpdatePattern(p *Pattern, expectedVersion int64) (bool, error)
	SearchPatterns(patternType, status string, limit, offset int) ([]Pattern, error)
	StalePatterns(cutoff time.Time) ([]Pattern, error)
	LongDeprecatedPatterns(cutoff time.Time) ([]Pattern, error)
	ActivePatterns() ([]Pattern, error)
	DeprecatePattern(id string, expectedVersion int64, now time.Time) (bool, error)
	DeletePattern(id string, expectedVersion int64) (bool, error)
	FlagPatternForReview(id string, expectedVersion int64) (bool, error)

	// Synergy records
	SynergyByKey(key string) (*Synergy, error)
	SynergyByID(id string) (*Synergy, error)
	InsertSynergy(s *Synergy) error
	UpdateSynergy(s *Synergy, expectedVersion int64) (bool, error)
	SearchSynergies(synergyType, status string, limit, offset int) ([]Synergy, error)
	StaleSynergies(cutoff time.Time) ([]Synergy, error)
	LongDeprecatedSynergies(cutoff time.Time) ([]Synergy, error)
	ActiveSynergies() ([]Synergy, error)
	DeprecateSynergy(id string, expectedVersion int64, now time.Time) (bool, error)
	DeleteSynergy(id string, expectedVersion int64) (bool, error)
	FlagSynergyForReview(id string, expectedVersion int64) (bool, error)

	// Occurrence ledger
	AppendLedger(entry *OccurrenceLedgerEntry) error
	WindowedOccurrences(recordID string, since time.Time) (int, error)
	LedgerCountSince(recordID string, since time.Time) (int64, error)
	DeleteLedger(recordID string) error
	PruneLedger(before time.Time) (int64, error)

	// Detector health
	SaveDetectorHealth(rec *DetectorHealthRecord) error
	DetectorHealthRecords() ([]DetectorHealthRecord, error)

	// Lifecycle statistics
	StatusCounts() (StatusCounts, error)

	// Event store (read only, populated externally)
	QueryEvents(ctx context.Context, filter events.Filter, tr events.TimeRange) ([]events.Event, error)
}

// StatusCounts summarizes record states for the lifecycle stats endpoint.
type StatusCounts struct {
	ActivePatterns       int64 `json:"active_patterns"`
	DeprecatedPatterns   int64 `json:"deprecated_patterns"`
	ReviewPatterns       int64 `json:"needs_review_patterns"`
	ActiveSynergies      int64 `json:"active_synergies"`
	DeprecatedSynergies  int64 `json:"deprecated_synergies"`
	ReviewSynergies      int64 `json:"needs_review_synergies"`
	LedgerEntries        int64 `json:"ledger_entries"`
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// Ping verifies the underlying connection is alive. A failed ping aborts the
// current orchestrator run before any partial writes happen.
func (ds *DataStore) Ping(ctx context.Context) error {
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// createGormLogger returns a GORM logger tuned for production noise levels.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// performAutoMigration creates or updates the schema for all engine tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&Pattern{},
		&Synergy{},
		&OccurrenceLedgerEntry{},
		&DetectorHealthRecord{},
		&StateEvent{},
	); err != nil {
		return err
	}

	if debug {
		log.Printf("%s database connected: %s", dbType, connectionInfo)
	}
	return nil
}
