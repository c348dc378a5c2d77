package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func TestStabilityPolicy_RequiresFullWindow(t *testing.T) {
	p := NewStabilityPolicy(time.Second, 3*time.Second)

	assert.False(t, p.Observe(at(0), 1))
	assert.False(t, p.Observe(at(250), 1))
	assert.False(t, p.Observe(at(500), 1))
	assert.False(t, p.Observe(at(999), 1))
	assert.True(t, p.Observe(at(1000), 1), "window elapsed, trigger must fire")
}

func TestStabilityPolicy_LostFaceResetsProgress(t *testing.T) {
	p := NewStabilityPolicy(time.Second, 3*time.Second)

	assert.False(t, p.Observe(at(0), 1))
	assert.False(t, p.Observe(at(800), 1))
	assert.InDelta(t, 0.8, p.Progress(at(800)), 0.001)

	// Face lost: no carry-over of partial progress
	assert.False(t, p.Observe(at(900), 0))
	assert.Zero(t, p.Progress(at(900)))

	// Re-detection restarts the window from zero
	assert.False(t, p.Observe(at(1000), 1))
	assert.False(t, p.Observe(at(1900), 1), "only 900ms of new stability")
	assert.True(t, p.Observe(at(2000), 1))
}

func TestStabilityPolicy_CooldownBlocksRetrigger(t *testing.T) {
	p := NewStabilityPolicy(time.Second, 3*time.Second)

	require.False(t, p.Observe(at(0), 1))
	require.True(t, p.Observe(at(1000), 1))
	p.MarkTriggered(at(1000))

	// Face held continuously: stability refills but cooldown blocks
	fired := 0
	for ms := 1100; ms < 4000; ms += 100 {
		if p.Observe(at(ms), 1) {
			fired++
		}
	}
	assert.Zero(t, fired, "no trigger may fire inside the cooldown window")

	// Cooldown over and a full stability window accumulated since the
	// last trigger, so the next observation fires
	assert.True(t, p.Observe(at(4000), 1))
}

func TestStabilityPolicy_AtMostOnePerCooldownWindow(t *testing.T) {
	p := NewStabilityPolicy(time.Second, 3*time.Second)

	var triggers []time.Time
	for ms := 0; ms <= 20000; ms += 50 {
		if p.Observe(at(ms), 1) {
			p.MarkTriggered(at(ms))
			triggers = append(triggers, at(ms))
		}
	}

	require.NotEmpty(t, triggers)
	for i := 1; i < len(triggers); i++ {
		gap := triggers[i].Sub(triggers[i-1])
		assert.GreaterOrEqual(t, gap, 3*time.Second,
			"triggers %d and %d are only %s apart", i-1, i, gap)
	}
}

func TestStabilityPolicy_Progress(t *testing.T) {
	p := NewStabilityPolicy(time.Second, 3*time.Second)

	assert.Zero(t, p.Progress(at(0)), "no face tracked yet")

	p.Observe(at(0), 1)
	assert.Zero(t, p.Progress(at(0)))
	assert.InDelta(t, 0.5, p.Progress(at(500)), 0.001)
	assert.Equal(t, 1.0, p.Progress(at(1500)), "progress is clamped at 1")
}

func TestStabilityPolicy_Reset(t *testing.T) {
	p := NewStabilityPolicy(time.Second, 3*time.Second)

	require.False(t, p.Observe(at(0), 1))
	require.True(t, p.Observe(at(1000), 1))
	p.MarkTriggered(at(1000))

	// Reset drops the cooldown along with stability state
	p.Reset()
	assert.False(t, p.Observe(at(1100), 1))
	assert.True(t, p.Observe(at(2100), 1), "full window after reset fires regardless of old cooldown")
}

func TestIntervalPolicy_FiresOnCadence(t *testing.T) {
	p := NewIntervalPolicy(3 * time.Second)

	// First observation arms the interval
	assert.False(t, p.Observe(at(0), 0))
	assert.False(t, p.Observe(at(1500), 0))
	assert.True(t, p.Observe(at(3000), 0))
	p.MarkTriggered(at(3000))
	assert.False(t, p.Observe(at(4000), 0))
	assert.True(t, p.Observe(at(6000), 0))
}

func TestIntervalPolicy_IgnoresFaces(t *testing.T) {
	p := NewIntervalPolicy(3 * time.Second)

	p.Observe(at(0), 0)
	// No face presence check: every elapsed interval attempts a capture
	assert.True(t, p.Observe(at(3000), 0))
	p.MarkTriggered(at(3000))
	assert.True(t, p.Observe(at(6000), 5))
}

func TestIntervalPolicy_Reset(t *testing.T) {
	p := NewIntervalPolicy(3 * time.Second)

	p.Observe(at(0), 0)
	require.True(t, p.Observe(at(3000), 0))

	p.Reset()
	assert.False(t, p.Observe(at(3100), 0), "reset re-arms from the next observation")
	assert.True(t, p.Observe(at(6100), 0))
}

func TestIntervalPolicy_Progress(t *testing.T) {
	p := NewIntervalPolicy(2 * time.Second)

	assert.Zero(t, p.Progress(at(0)))
	p.Observe(at(0), 0)
	assert.InDelta(t, 0.5, p.Progress(at(1000)), 0.001)
	assert.Equal(t, 1.0, p.Progress(at(2500)))
}
