package orchestrator

import (
	"github.com/tkoskela/patternmind-go/internal/capability"
	"github.com/tkoskela/patternmind-go/internal/detect"
	"github.com/tkoskela/patternmind-go/internal/homectx"
	"github.com/tkoskela/patternmind-go/internal/suncalc"
)

// RegisterBuiltins wires the built-in detector families from configuration.
// External collaborators that are unconfigured come through as nil and the
// affected detectors degrade per their own rules.
func (o *Orchestrator) RegisterBuiltins() {
	mining := &o.settings.Mining

	var sun *suncalc.SunCalc
	if mining.Latitude != 0 || mining.Longitude != 0 {
		sun = suncalc.NewSunCalc(mining.Latitude, mining.Longitude)
	}

	var lookup capability.Lookup
	if c := capability.NewClient(&o.settings.Capability); c != nil {
		lookup = c
	}

	providers := homectx.NewProviders(&o.settings.Context)
	if ow, ok := providers.Weather.(*homectx.OpenWeatherProvider); ok {
		ow.SetLocation(mining.Latitude, mining.Longitude)
	}

	if mining.CoOccurrence.Enabled {
		o.Register(detect.NewCoOccurrenceDetector(mining.CoOccurrence))
	}
	if mining.TimeOfDay.Enabled {
		o.Register(detect.NewTimeOfDayDetector(mining.TimeOfDay, sun))
	}
	if mining.DevicePair.Enabled {
		o.Register(detect.NewDevicePairDetector(mining.DevicePair, lookup))
	}
	if mining.DeviceChain.Enabled {
		o.Register(detect.NewDeviceChainDetector(mining.DeviceChain, lookup))
	}
	if mining.Scene.Enabled {
		o.Register(detect.NewSceneDetector(mining.Scene))
	}

	if mining.Weather.Enabled {
		o.Register(detect.NewWeatherContextDetector(mining.Weather, providers.Weather))
	}
	if mining.Energy.Enabled {
		o.Register(detect.NewEnergyContextDetector(mining.Energy, providers.Energy))
	}
	if mining.EventContext.Enabled {
		o.Register(detect.NewEventContextDetector(mining.EventContext, providers.Calendar, providers.Sports))
	}

	o.logger.Info("detectors registered", "count", len(o.detectors))
}
