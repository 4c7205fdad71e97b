package cache

import (
	"testing"

	"code.chainsync.io/sync/logging"

	"github.com/stretchr/testify/require"
)

func TestBadgerCachePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	log := logging.New(logging.ErrorLevel)
	defer log.AtExit()

	bc, err := NewBadgerCache(log, dir)
	require.NoError(t, err)
	defer bc.Close()

	_, found, err := bc.Get(BlockNumberStoreName, BlockNumberKey)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, bc.Put(BlockNumberStoreName, BlockNumberKey, []byte{0, 0, 0, 0, 0, 0, 0, 42}))
	got, found, err := bc.Get(BlockNumberStoreName, BlockNumberKey)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 42}, got)
}

func TestLoadCachedStateRoundTripsThroughBadger(t *testing.T) {
	dir := t.TempDir()
	log := logging.New(logging.ErrorLevel)
	defer log.AtExit()

	bc, err := NewBadgerCache(log, dir)
	require.NoError(t, err)
	defer bc.Close()

	_, _, ok := LoadCachedState(bc)
	require.False(t, ok, "empty cache should report not-ok")

	store := NewStore()
	store.StoreEvent(update("component", "entity", "value", 100))

	require.NoError(t, SaveCachedState(bc, 100, store))

	blockNumber, restored, ok := LoadCachedState(bc)
	require.True(t, ok)
	require.Equal(t, uint64(100), blockNumber)
	require.Equal(t, store.State(), restored.State())
}
