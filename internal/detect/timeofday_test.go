package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskela/patternmind-go/internal/conf"
)

func TestTimeOfDayDetectsEveningCluster(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &stubStore{}
	// Porch light comes on around 19:00 every day, drifting a few minutes.
	offsets := []int{0, 3, -4, 7, 1, -2}
	for day, off := range offsets {
		store.events = append(store.events,
			ev("light.porch", base.AddDate(0, 0, day).Add(19*time.Hour+time.Duration(off)*time.Minute)))
	}

	d := NewTimeOfDayDetector(conf.TimeOfDaySettings{
		Enabled:          true,
		ToleranceMinutes: 30,
		MinOccurrences:   5,
	}, nil)

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	require.Equal(t, KindPattern, c.Kind)
	assert.Equal(t, PatternTimeOfDay, c.Pattern.Type)
	assert.Equal(t, []string{"light.porch"}, c.Pattern.Entities)
	assert.Equal(t, 6, c.Occurrences)
	assert.InDelta(t, 1.0, c.Pattern.Temporal, 0.001, "all activations inside the tolerance window")
	assert.InDelta(t, 6.0/7.0, c.Pattern.Frequency, 0.001)
	assert.InDelta(t, 0.2, c.Pattern.Relationship, 0.001)
}

func TestTimeOfDayIgnoresScatteredActivations(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &stubStore{}
	// Activations spread evenly over the clock never cluster.
	for day, hour := range []int{0, 4, 8, 12, 16, 20} {
		store.events = append(store.events,
			ev("switch.random", base.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour)))
	}

	d := NewTimeOfDayDetector(conf.TimeOfDaySettings{
		Enabled:          true,
		ToleranceMinutes: 30,
		MinOccurrences:   5,
	}, nil)

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTimeOfDayHandlesMidnightWrapAround(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &stubStore{}
	// Activations straddle midnight: 23:55 and 00:05 are ten minutes apart.
	for _, offset := range []time.Duration{
		23*time.Hour + 55*time.Minute,
		24*time.Hour + 5*time.Minute,
		2*24*time.Hour - 5*time.Minute,
		3*24*time.Hour + 3*time.Minute,
		4*24*time.Hour - 2*time.Minute,
	} {
		store.events = append(store.events, ev("lock.front_door", base.Add(offset)))
	}

	d := NewTimeOfDayDetector(conf.TimeOfDaySettings{
		Enabled:          true,
		ToleranceMinutes: 30,
		MinOccurrences:   5,
	}, nil)

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0, out[0].Pattern.Temporal, 0.001,
		"minute-of-day distance must wrap at midnight")
}

func TestTimeOfDayBelowMinOccurrences(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &stubStore{}
	for day := 0; day < 3; day++ {
		store.events = append(store.events,
			ev("light.porch", base.AddDate(0, 0, day).Add(19*time.Hour)))
	}

	d := NewTimeOfDayDetector(conf.TimeOfDaySettings{
		Enabled:          true,
		ToleranceMinutes: 30,
		MinOccurrences:   5,
	}, nil)

	out, err := d.Detect(context.Background(), store, weekRange(base))
	require.NoError(t, err)
	assert.Empty(t, out)
}
