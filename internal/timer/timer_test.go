package timer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimerStartAndExpiry(t *testing.T) {
	var tm Timer
	require.False(t, tm.IsRunning())
	require.False(t, tm.IsExpired(0))

	tm.Start(1000, 500)
	require.True(t, tm.IsRunning())
	require.False(t, tm.IsExpired(1499))
	require.True(t, tm.IsExpired(1500))
	require.True(t, tm.IsExpired(1501))
}

func TestTimerStop(t *testing.T) {
	var tm Timer
	tm.Start(100, 0)
	require.True(t, tm.IsExpired(100))
	tm.Stop()
	require.False(t, tm.IsRunning())
	require.False(t, tm.IsExpired(100))
}

func TestTimerWraparound(t *testing.T) {
	var tm Timer
	// Start near the top of the uint32 range so the deadline wraps.
	start := uint32(0xFFFFFFF0)
	tm.Start(32, start) // deadline = 0xFFFFFFF0 + 32 = wraps to 16

	require.False(t, tm.IsExpired(10))
	require.True(t, tm.IsExpired(16))
	require.True(t, tm.IsExpired(20))
}

func TestTimerRestartUsesSamePeriod(t *testing.T) {
	var tm Timer
	tm.Start(250, 1000)
	require.True(t, tm.IsExpired(1250))
	tm.Restart(1250)
	require.False(t, tm.IsExpired(1250))
	require.True(t, tm.IsExpired(1500))
}
