package filter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKnownAds(t *testing.T) {
	k := NewKnownAds(1000, 0.001)
	require.False(t, k.MightExist(42))

	k.Add(42)
	require.True(t, k.MightExist(42))

	k.Reset([]int64{1, 2, 3})
	for _, id := range []int64{1, 2, 3} {
		require.True(t, k.MightExist(id))
	}
	require.False(t, k.MightExist(42))
}
