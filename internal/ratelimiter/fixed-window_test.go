package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedWindow(t *testing.T) {
	rl := NewFixedWindowLimiter(3, time.Minute)
	defer rl.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("10.0.0.1")
		require.True(t, ok, "request %d", i+1)
	}
	ok, retry := rl.Allow("10.0.0.1")
	require.False(t, ok)
	require.Equal(t, time.Minute, retry)

	ok, _ = rl.Allow("10.0.0.2")
	require.True(t, ok, "other clients have their own window")

	now = now.Add(40 * time.Second)
	_, retry = rl.Allow("10.0.0.1")
	require.Equal(t, 20*time.Second, retry)

	now = now.Add(20 * time.Second)
	ok, _ = rl.Allow("10.0.0.1")
	require.True(t, ok)
}
