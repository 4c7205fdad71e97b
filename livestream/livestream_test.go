package livestream

import (
	"testing"

	"code.chainsync.io/sync/cache"

	"github.com/stretchr/testify/require"
)

func TestBufferPreservesArrivalOrderAndNeverDrops(t *testing.T) {
	b := NewBuffer(0, nil)
	for i := uint64(0); i < 5; i++ {
		b.Push(cache.ComponentUpdate{BlockNumber: i})
	}
	require.Equal(t, 5, b.Len())

	drained := b.Drain()
	require.Len(t, drained, 5)
	for i, u := range drained {
		require.Equal(t, uint64(i), u.BlockNumber)
	}
	require.Equal(t, 0, b.Len())
}

func TestBufferWarnsOnceAtHighWaterMark(t *testing.T) {
	calls := 0
	b := NewBuffer(3, func(depth int) { calls++ })

	for i := 0; i < 5; i++ {
		b.Push(cache.ComponentUpdate{})
	}
	require.Equal(t, 1, calls)
	require.Equal(t, 5, b.Len(), "overflow warning must not drop updates")
}

func TestBufferDrainThenPushResetsWarning(t *testing.T) {
	calls := 0
	b := NewBuffer(2, func(depth int) { calls++ })

	b.Push(cache.ComponentUpdate{})
	b.Push(cache.ComponentUpdate{})
	require.Equal(t, 1, calls)

	b.Drain()

	b.Push(cache.ComponentUpdate{})
	b.Push(cache.ComponentUpdate{})
	require.Equal(t, 2, calls)
}
