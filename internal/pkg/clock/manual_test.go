package clock_test

import (
	"testing"
	"time"

	"dispatch/internal/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := clock.NewManual(start)

	var fired []string
	m.After(3*time.Second, func() { fired = append(fired, "c") })
	m.After(1*time.Second, func() { fired = append(fired, "a") })
	m.After(2*time.Second, func() { fired = append(fired, "b") })

	m.Advance(5 * time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, start.Add(5*time.Second), m.Now())
	assert.Zero(t, m.Pending())
}

func TestManual_DoesNotFireBeforeDeadline(t *testing.T) {
	m := clock.NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := false
	m.After(10*time.Second, func() { fired = true })

	m.Advance(9 * time.Second)
	assert.False(t, fired)
	assert.Equal(t, 1, m.Pending())

	m.Advance(1 * time.Second)
	assert.True(t, fired)
}

func TestManual_StopCancelsPendingTimer(t *testing.T) {
	m := clock.NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := false
	timer := m.After(time.Second, func() { fired = true })

	require.True(t, timer.Stop())
	m.Advance(2 * time.Second)

	assert.False(t, fired)
	assert.False(t, timer.Stop(), "second stop reports already cancelled")
}

func TestManual_CallbackMaySchedule(t *testing.T) {
	m := clock.NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	var fired []string
	m.After(time.Second, func() {
		fired = append(fired, "outer")
		m.After(time.Second, func() { fired = append(fired, "inner") })
	})

	m.Advance(2 * time.Second)
	assert.Equal(t, []string{"outer", "inner"}, fired)
}

func TestManual_TimerObservesSimulatedNow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := clock.NewManual(start)

	var seen time.Time
	m.After(90*time.Second, func() { seen = m.Now() })

	m.Advance(5 * time.Minute)
	assert.Equal(t, start.Add(90*time.Second), seen)
}
