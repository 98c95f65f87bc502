package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskela/patternmind-go/internal/conf"
)

func movieNightBurst(store *stubStore, at time.Time) {
	store.events = append(store.events,
		ev("light.livingroom", at),
		ev("cover.livingroom", at.Add(3*time.Second)),
		ev("media_player.tv", at.Add(7*time.Second)),
	)
}

func TestSceneDetectsRepeatedBurst(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &stubStore{}
	movieNightBurst(store, base.Add(20*time.Hour))
	movieNightBurst(store, base.AddDate(0, 0, 2).Add(20*time.Hour))
	movieNightBurst(store, base.AddDate(0, 0, 4).Add(21*time.Hour))

	d := NewSceneDetector(conf.SceneSettings{
		Enabled:       true,
		MinDevices:    3,
		WindowSeconds: 30,
	})

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	require.Equal(t, KindSynergy, c.Kind)
	assert.Equal(t, SynergySceneBased, c.Synergy.Type)
	assert.Equal(t, []string{"cover.livingroom", "light.livingroom", "media_player.tv"},
		c.Synergy.Devices, "scene membership is order-insensitive, devices come back sorted")
	assert.Equal(t, 3, c.Occurrences)
	assert.InDelta(t, 0.6, c.Synergy.Confidence, 0.001)
	assert.True(t, c.Synergy.LowComplexity)
}

func TestSceneIgnoresSingleBurst(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &stubStore{}
	movieNightBurst(store, base.Add(20*time.Hour))

	d := NewSceneDetector(conf.SceneSettings{
		Enabled:       true,
		MinDevices:    3,
		WindowSeconds: 30,
	})

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	assert.Empty(t, out, "a scene must recur before it is worth automating")
}

func TestSceneIgnoresSmallGroups(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &stubStore{}
	for day := 0; day < 4; day++ {
		at := base.AddDate(0, 0, day).Add(20 * time.Hour)
		store.events = append(store.events,
			ev("light.livingroom", at),
			ev("media_player.tv", at.Add(5*time.Second)),
		)
	}

	d := NewSceneDetector(conf.SceneSettings{
		Enabled:       true,
		MinDevices:    3,
		WindowSeconds: 30,
	})

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	assert.Empty(t, out, "two-device groups belong to the pair detector")
}

func TestSceneSplitsBurstsOnGaps(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &stubStore{}
	// Same three devices but minutes apart: not one scene.
	for day := 0; day < 3; day++ {
		at := base.AddDate(0, 0, day).Add(20 * time.Hour)
		store.events = append(store.events,
			ev("light.livingroom", at),
			ev("cover.livingroom", at.Add(5*time.Minute)),
			ev("media_player.tv", at.Add(10*time.Minute)),
		)
	}

	d := NewSceneDetector(conf.SceneSettings{
		Enabled:       true,
		MinDevices:    3,
		WindowSeconds: 30,
	})

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	assert.Empty(t, out)
}
