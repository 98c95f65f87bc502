package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskela/patternmind-go/internal/capability"
	"github.com/tkoskela/patternmind-go/internal/conf"
)

func chainEvents(base time.Time, days int, entities ...string) *stubStore {
	store := &stubStore{}
	for day := 0; day < days; day++ {
		at := base.AddDate(0, 0, day).Add(22 * time.Hour)
		for i, entity := range entities {
			store.events = append(store.events, ev(entity, at.Add(time.Duration(i*10)*time.Second)))
		}
	}
	return store
}

func TestDeviceChainConfirmedLinks(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := chainEvents(base, 3, "motion.hallway", "light.hallway", "lock.front_door")

	lookup := &stubLookup{caps: map[string]*capability.Capabilities{
		"motion.hallway": {CompatibleTargets: []string{"light"}},
		"light.hallway":  {CompatibleTargets: []string{"lock"}},
	}}

	d := NewDeviceChainDetector(conf.ChainSettings{
		Enabled:        true,
		MaxChainLength: 3,
		WindowMinutes:  5,
	}, lookup)

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	require.Equal(t, KindSynergy, c.Kind)
	assert.Equal(t, SynergyDeviceChain, c.Synergy.Type)
	assert.Equal(t, []string{"motion.hallway", "light.hallway", "lock.front_door"}, c.Synergy.Devices)
	assert.Equal(t, 3, c.Occurrences)
	assert.InDelta(t, 1.0, c.Synergy.Compatibility, 0.001)
	assert.InDelta(t, 0.75, c.Synergy.Confidence, 0.001)
	assert.True(t, c.Synergy.LowComplexity)
}

func TestDeviceChainSkipsIncompatibleLink(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := chainEvents(base, 3, "motion.hallway", "light.hallway", "lock.front_door")

	// The middle link cannot drive a lock.
	lookup := &stubLookup{caps: map[string]*capability.Capabilities{
		"motion.hallway": {CompatibleTargets: []string{"light"}},
		"light.hallway":  {CompatibleTargets: []string{"switch"}},
	}}

	d := NewDeviceChainDetector(conf.ChainSettings{
		Enabled:        true,
		MaxChainLength: 3,
		WindowMinutes:  5,
	}, lookup)

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDeviceChainDegradesWithoutCollaborator(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := chainEvents(base, 3, "motion.hallway", "light.hallway", "lock.front_door")

	d := NewDeviceChainDetector(conf.ChainSettings{
		Enabled:        true,
		MaxChainLength: 3,
		WindowMinutes:  5,
	}, nil)

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, degradedCompatibility, out[0].Synergy.Compatibility, 0.001)
	assert.InDelta(t, 0.375, out[0].Synergy.Confidence, 0.001, "unverified chains carry half confidence")
}

func TestDeviceChainRequiresThreeDevices(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := chainEvents(base, 3, "motion.hallway", "light.hallway")

	d := NewDeviceChainDetector(conf.ChainSettings{
		Enabled:        true,
		MaxChainLength: 3,
		WindowMinutes:  5,
	}, nil)

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	assert.Empty(t, out)
}
