package collision

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_ReserveAndContains(t *testing.T) {
	tr := NewTracker()

	require.NoError(t, tr.Reserve(42))
	require.True(t, tr.Contains(42))
	require.Equal(t, 1, tr.Count())
}

func TestTracker_ReserveCollision(t *testing.T) {
	tr := NewTracker()

	require.NoError(t, tr.Reserve(7))
	require.Error(t, tr.Reserve(7))
}

func TestTracker_GenerateSkipsSentinelAndCollisions(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Reserve(1))

	seq := []uint64{0, 1, 2}
	i := 0
	next := func() uint64 {
		v := seq[i]
		i++
		return v
	}
	isSentinel := func(v uint64) bool { return v == 0 }

	got := tr.Generate(next, isSentinel)
	require.Equal(t, uint64(2), got)
	require.True(t, tr.Contains(2))
}
