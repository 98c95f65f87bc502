// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "PatternMind")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "patternmind.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("mining.runinterval", 24*time.Hour)
	viper.SetDefault("mining.lookbackdays", 30)
	viper.SetDefault("mining.windowdays", 30)
	viper.SetDefault("mining.detectortimeout", 5*time.Minute)
	viper.SetDefault("mining.concurrency", 4)
	viper.SetDefault("mining.latitude", 0.000)
	viper.SetDefault("mining.longitude", 0.000)

	viper.SetDefault("mining.cooccurrence.enabled", true)
	viper.SetDefault("mining.cooccurrence.windowminutes", 5)
	viper.SetDefault("mining.cooccurrence.minoccurrences", 3)

	viper.SetDefault("mining.timeofday.enabled", true)
	viper.SetDefault("mining.timeofday.toleranceminutes", 45)
	viper.SetDefault("mining.timeofday.minoccurrences", 4)

	viper.SetDefault("mining.devicepair.enabled", true)
	viper.SetDefault("mining.devicepair.windowminutes", 5)

	viper.SetDefault("mining.devicechain.enabled", true)
	viper.SetDefault("mining.devicechain.maxchainlength", 4)
	viper.SetDefault("mining.devicechain.windowminutes", 10)

	viper.SetDefault("mining.scene.enabled", true)
	viper.SetDefault("mining.scene.mindevices", 3)
	viper.SetDefault("mining.scene.windowseconds", 90)

	viper.SetDefault("mining.weather.enabled", true)
	viper.SetDefault("mining.weather.minoccurrences", 3)

	viper.SetDefault("mining.energy.enabled", true)
	viper.SetDefault("mining.energy.minoccurrences", 3)

	viper.SetDefault("mining.eventcontext.enabled", true)
	viper.SetDefault("mining.eventcontext.minoccurrences", 2)

	viper.SetDefault("lifecycle.sweepinterval", 24*time.Hour)
	viper.SetDefault("lifecycle.stalenessdays", 60)
	viper.SetDefault("lifecycle.deletiondays", 90)
	viper.SetDefault("lifecycle.recentactivitydays", 14)
	viper.SetDefault("lifecycle.pruneledger", false)

	viper.SetDefault("calibration.mode", "log")
	viper.SetDefault("calibration.learningrate", 0.05)
	viper.SetDefault("calibration.driftthreshold", 0.10)
	viper.SetDefault("calibration.minsamples", 20)

	viper.SetDefault("context.cachettl", 15*time.Minute)
	viper.SetDefault("context.weather.provider", "")
	viper.SetDefault("context.weather.endpoint", "https://api.openweathermap.org/data/2.5/weather")
	viper.SetDefault("context.weather.units", "metric")
	viper.SetDefault("context.energy.endpoint", "")
	viper.SetDefault("context.energy.area", "FI")
	viper.SetDefault("context.calendar.endpoint", "")
	viper.SetDefault("context.calendar.countrycode", "FI")
	viper.SetDefault("context.sports.endpoint", "")
	viper.SetDefault("context.sports.teams", []string{})

	viper.SetDefault("capability.endpoint", "")
	viper.SetDefault("capability.token", "")
	viper.SetDefault("capability.cachettl", time.Hour)

	viper.SetDefault("guard.enabled", true)
	viper.SetDefault("guard.diskpath", "/")
	viper.SetDefault("guard.diskcritical", 95.0)
	viper.SetDefault("guard.memorycritical", 95.0)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "patternmind/runs")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", "0.0.0.0:8090")
	viper.SetDefault("webserver.metrics", true)
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "patternmind.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "patternmind")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "patternmind")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
