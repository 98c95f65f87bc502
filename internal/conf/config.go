// Package conf loads and provides access to application settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // path to log file
	Rotation RotationType // log rotation type
	MaxSize  int64        // max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// MainSettings contains general application settings
type MainSettings struct {
	Name string    // name of the node, can be used to identify the instance
	Log  LogConfig // main log configuration
}

// CoOccurrenceSettings holds tuning for the co-occurrence detector
type CoOccurrenceSettings struct {
	Enabled        bool
	WindowMinutes  int // temporal window for two events to count as co-occurring
	MinOccurrences int // minimum distinct occurrences before a candidate is emitted
}

// TimeOfDaySettings holds tuning for the time-of-day clustering detector
type TimeOfDaySettings struct {
	Enabled          bool
	ToleranceMinutes int // cluster tolerance around the modal activation time
	MinOccurrences   int
}

// ChainSettings holds tuning for the device pair and chain detectors
type ChainSettings struct {
	Enabled        bool
	MaxChainLength int // device_chain only; pairs are always length 2
	WindowMinutes  int
}

// SceneSettings holds tuning for the scene detector
type SceneSettings struct {
	Enabled       bool
	MinDevices    int // minimum group size for a scene candidate
	WindowSeconds int // activation window for a group to count as one scene
}

// ContextDetectorSettings is shared by the context-driven detector families
// (weather, energy, calendar/sports/holiday)
type ContextDetectorSettings struct {
	Enabled        bool
	MinOccurrences int
}

// MiningSettings drives the orchestrator and the detector plugins
type MiningSettings struct {
	RunInterval     time.Duration // cadence of scheduled orchestrator runs
	LookbackDays    int           // event history range scanned per run
	WindowDays      int           // occurrence ledger rolling window
	DetectorTimeout time.Duration // soft timeout per detector invocation
	Concurrency     int           // max detectors running concurrently
	Latitude        float64       // used for sun phase context in time_of_day
	Longitude       float64

	CoOccurrence CoOccurrenceSettings
	TimeOfDay    TimeOfDaySettings
	DevicePair   ChainSettings
	DeviceChain  ChainSettings
	Scene        SceneSettings
	Weather      ContextDetectorSettings
	Energy       ContextDetectorSettings
	EventContext ContextDetectorSettings
}

// LifecycleSettings drives the record lifecycle sweep
type LifecycleSettings struct {
	SweepInterval      time.Duration
	StalenessDays      int  // active -> deprecated after this many days without sightings
	DeletionDays       int  // deprecated -> deleted after this many days deprecated
	RecentActivityDays int  // active records with no ledger entries inside this window get flagged
	PruneLedger        bool // physically remove ledger entries older than the window
}

// CalibrationSettings configures the scoring feedback loop
type CalibrationSettings struct {
	Mode           string  // "log" or "adaptive"
	LearningRate   float64 // step size for adaptive weight nudges
	DriftThreshold float64 // fraction of baseline degradation that triggers a recalibration signal
	MinSamples     int     // observations required before adaptive updates kick in
}

// WeatherSettings configures the weather context collaborator
type WeatherSettings struct {
	Provider string // "openweather" or "" to disable
	APIKey   string
	Endpoint string
	Units    string
}

// EnergySettings configures the energy spot price collaborator
type EnergySettings struct {
	Endpoint string
	Area     string // price area, e.g. "FI"
}

// CalendarSettings configures the calendar/holiday collaborator
type CalendarSettings struct {
	Endpoint    string
	CountryCode string
}

// SportsSettings configures the sports schedule collaborator
type SportsSettings struct {
	Endpoint string
	Teams    []string
}

// ContextSettings groups the external context collaborators
type ContextSettings struct {
	CacheTTL time.Duration // shared TTL for collaborator response caches
	Weather  WeatherSettings
	Energy   EnergySettings
	Calendar CalendarSettings
	Sports   SportsSettings
}

// CapabilitySettings configures the device capability lookup collaborator
type CapabilitySettings struct {
	Endpoint string // empty disables the lookup, pair/chain detectors degrade
	Token    string
	CacheTTL time.Duration
}

// GuardSettings configures the pre-run resource guard
type GuardSettings struct {
	Enabled        bool
	DiskPath       string  // mount point checked for free space
	DiskCritical   float64 // percent used above which runs are skipped
	MemoryCritical float64 // percent used above which runs are skipped
}

// MQTTSettings configures run report publishing
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:port
	Topic    string
	Username string
	Password string
}

// WebServerSettings configures the admin API
type WebServerSettings struct {
	Enabled bool
	Listen  string // address:port
	Metrics bool   // expose /metrics
	Debug   bool
}

// SQLiteSettings contains settings for the SQLite database
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains settings for the MySQL database
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings selects the persistence backend
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// Settings is the root configuration object
type Settings struct {
	Debug bool

	Main        MainSettings
	Mining      MiningSettings
	Lifecycle   LifecycleSettings
	Calibration CalibrationSettings
	Context     ContextSettings
	Capability  CapabilitySettings
	Guard       GuardSettings
	MQTT        MQTTSettings
	WebServer   WebServerSettings
	Output      OutputSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into the global Settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read configuration
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the configuration into the Settings struct
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	setDefaultConfig()

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create from defaults
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	return []string{
		filepath.Join(homeDir, ".config", "patternmind"),
		".",
	}, nil
}

// Setting returns the current settings instance, loading it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("cannot load configuration: %v", err))
			}
		}
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetSettings returns the current settings instance without triggering a load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
