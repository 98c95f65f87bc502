package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskela/patternmind-go/internal/capability"
	"github.com/tkoskela/patternmind-go/internal/conf"
)

// stubLookup serves canned capability responses.
type stubLookup struct {
	caps map[string]*capability.Capabilities
	err  error
}

func (s *stubLookup) GetCapabilities(_ context.Context, deviceID string) (*capability.Capabilities, error) {
	if s.err != nil {
		return nil, s.err
	}
	if c, ok := s.caps[deviceID]; ok {
		return c, nil
	}
	return &capability.Capabilities{}, nil
}

func pairEvents(base time.Time, trigger, target string, days int) *stubStore {
	store := &stubStore{}
	for day := 0; day < days; day++ {
		at := base.AddDate(0, 0, day).Add(19 * time.Hour)
		store.events = append(store.events,
			ev(trigger, at),
			ev(target, at.Add(20*time.Second)),
		)
	}
	return store
}

func TestDevicePairConfirmedCompatible(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := pairEvents(base, "motion.hallway", "light.hallway", 4)

	lookup := &stubLookup{caps: map[string]*capability.Capabilities{
		"motion.hallway": {
			Domain:            "binary_sensor",
			DeviceClass:       "motion",
			CompatibleTargets: []string{"light", "switch"},
		},
	}}

	d := NewDevicePairDetector(conf.ChainSettings{Enabled: true, WindowMinutes: 5}, lookup)
	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	require.Equal(t, KindSynergy, c.Kind)
	require.NotNil(t, c.Synergy)
	assert.Equal(t, SynergyDevicePair, c.Synergy.Type)
	assert.Equal(t, []string{"motion.hallway", "light.hallway"}, c.Synergy.Devices)
	assert.InDelta(t, 1.0, c.Synergy.Compatibility, 0.001)
	assert.InDelta(t, 1.0, c.Synergy.Confidence, 0.001, "confirmed pairs keep full confidence")
	assert.True(t, c.Synergy.LowComplexity)
}

func TestDevicePairSkipsConfirmedIncompatible(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := pairEvents(base, "motion.hallway", "climate.thermostat", 4)

	lookup := &stubLookup{caps: map[string]*capability.Capabilities{
		"motion.hallway": {
			Domain:            "binary_sensor",
			DeviceClass:       "motion",
			CompatibleTargets: []string{"light"},
		},
	}}

	d := NewDevicePairDetector(conf.ChainSettings{Enabled: true, WindowMinutes: 5}, lookup)
	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	assert.Empty(t, out, "incompatible pairs are not automation opportunities")
}

func TestDevicePairDegradesWithoutCollaborator(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := pairEvents(base, "motion.hallway", "light.hallway", 4)

	d := NewDevicePairDetector(conf.ChainSettings{Enabled: true, WindowMinutes: 5}, nil)
	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0].Synergy
	assert.InDelta(t, degradedCompatibility, c.Compatibility, 0.001)
	assert.InDelta(t, 0.5, c.Confidence, 0.001, "unverified pairs carry half confidence")
}

func TestDevicePairDegradesOnLookupError(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := pairEvents(base, "motion.hallway", "light.hallway", 4)

	lookup := &stubLookup{err: errors.New("api timeout")}
	d := NewDevicePairDetector(conf.ChainSettings{Enabled: true, WindowMinutes: 5}, lookup)

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err, "collaborator trouble must not fail the run")
	require.Len(t, out, 1)
	assert.InDelta(t, degradedCompatibility, out[0].Synergy.Compatibility, 0.001)
}

func TestDevicePairRequiresTwoObservations(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := pairEvents(base, "motion.hallway", "light.hallway", 1)

	d := NewDevicePairDetector(conf.ChainSettings{Enabled: true, WindowMinutes: 5}, nil)
	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	assert.Empty(t, out)
}
