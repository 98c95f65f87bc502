package conf

import (
	"fmt"
	"strings"
)

// ValidateSettings checks a loaded Settings struct for inconsistencies that
// would make the engine misbehave at runtime.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validateMining(&settings.Mining, &ve)
	validateLifecycle(&settings.Lifecycle, &ve)
	validateCalibration(&settings.Calibration, &ve)
	validateOutput(&settings.Output, &ve)

	if len(ve.Errors) > 0 {
		return &ve
	}
	return nil
}

// ValidationError accumulates all validation failures into one error.
type ValidationError struct {
	Errors []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(ve.Errors, "; "))
}

func (ve *ValidationError) add(format string, args ...any) {
	ve.Errors = append(ve.Errors, fmt.Sprintf(format, args...))
}

func validateMining(s *MiningSettings, ve *ValidationError) {
	if s.RunInterval <= 0 {
		ve.add("mining.runinterval must be positive")
	}
	if s.LookbackDays <= 0 {
		ve.add("mining.lookbackdays must be positive")
	}
	if s.WindowDays <= 0 {
		ve.add("mining.windowdays must be positive")
	}
	if s.DetectorTimeout <= 0 {
		ve.add("mining.detectortimeout must be positive")
	}
	if s.Concurrency < 1 {
		ve.add("mining.concurrency must be at least 1")
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		ve.add("mining.latitude must be between -90 and 90")
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		ve.add("mining.longitude must be between -180 and 180")
	}
	if s.CoOccurrence.Enabled && s.CoOccurrence.WindowMinutes <= 0 {
		ve.add("mining.cooccurrence.windowminutes must be positive")
	}
	if s.Scene.Enabled && s.Scene.MinDevices < 3 {
		ve.add("mining.scene.mindevices must be at least 3")
	}
	if s.DeviceChain.Enabled && s.DeviceChain.MaxChainLength < 2 {
		ve.add("mining.devicechain.maxchainlength must be at least 2")
	}
}

func validateLifecycle(s *LifecycleSettings, ve *ValidationError) {
	if s.StalenessDays <= 0 {
		ve.add("lifecycle.stalenessdays must be positive")
	}
	if s.DeletionDays <= 0 {
		ve.add("lifecycle.deletiondays must be positive")
	}
	if s.RecentActivityDays <= 0 {
		ve.add("lifecycle.recentactivitydays must be positive")
	}
	// The review window must be shorter than the deprecation threshold,
	// otherwise every flagged record would already be deprecated.
	if s.RecentActivityDays >= s.StalenessDays {
		ve.add("lifecycle.recentactivitydays (%d) must be shorter than lifecycle.stalenessdays (%d)",
			s.RecentActivityDays, s.StalenessDays)
	}
}

func validateCalibration(s *CalibrationSettings, ve *ValidationError) {
	switch s.Mode {
	case "log", "adaptive":
	default:
		ve.add("calibration.mode must be \"log\" or \"adaptive\", got %q", s.Mode)
	}
	if s.LearningRate <= 0 || s.LearningRate > 1 {
		ve.add("calibration.learningrate must be in (0, 1]")
	}
	if s.DriftThreshold <= 0 || s.DriftThreshold >= 1 {
		ve.add("calibration.driftthreshold must be in (0, 1)")
	}
}

func validateOutput(s *OutputSettings, ve *ValidationError) {
	if !s.SQLite.Enabled && !s.MySQL.Enabled {
		ve.add("either output.sqlite or output.mysql must be enabled")
	}
	if s.SQLite.Enabled && s.MySQL.Enabled {
		ve.add("only one of output.sqlite and output.mysql may be enabled")
	}
	if s.SQLite.Enabled && s.SQLite.Path == "" {
		ve.add("output.sqlite.path must be set")
	}
	if s.MySQL.Enabled {
		if s.MySQL.Host == "" || s.MySQL.Port == "" {
			ve.add("output.mysql.host and output.mysql.port must be set")
		}
		if s.MySQL.Database == "" {
			ve.add("output.mysql.database must be set")
		}
	}
}
