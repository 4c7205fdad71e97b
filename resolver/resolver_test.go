package resolver

import (
	"context"
	"errors"
	"testing"

	"code.chainsync.io/sync/cache"
	"code.chainsync.io/sync/logging"
	"code.chainsync.io/sync/syncerr"

	"github.com/stretchr/testify/require"
)

type fakeSnapshot struct {
	block     uint64
	available bool
	store     *cache.Store
	fetchErr  error
}

func (f *fakeSnapshot) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if !f.available {
		return 0, syncerr.ErrSnapshotUnavailable
	}
	return f.block, nil
}

func (f *fakeSnapshot) Fetch(ctx context.Context) (*cache.Store, uint64, error) {
	if f.fetchErr != nil {
		return nil, 0, f.fetchErr
	}
	if !f.available {
		return nil, 0, syncerr.ErrSnapshotUnavailable
	}
	return f.store, f.block, nil
}

type fakeCacheSource struct {
	block uint64
	store *cache.Store
	ok    bool
}

func (f *fakeCacheSource) LoadState() (uint64, *cache.Store, bool) {
	return f.block, f.store, f.ok
}

func testLogger() *logging.Logger {
	return logging.New(logging.ErrorLevel)
}

func TestResolveSnapshotWinsWhenFarEnoughAhead(t *testing.T) {
	snapshotStore := cache.NewStore()
	snapshotStore.StoreEvent(cache.ComponentUpdate{Component: []byte("c"), Entity: []byte("e"), Value: []byte("v"), TxHash: cache.CacheTxHash, BlockNumber: 9999})

	snap := &fakeSnapshot{block: 9999, available: true, store: snapshotStore}
	cacheSrc := &fakeCacheSource{block: 99, ok: true, store: cache.NewStore()}

	r := New(testLogger(), snap, cacheSrc)
	store, block, err := r.Resolve(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(9999), block)
	require.Same(t, snapshotStore, store)
}

func TestResolveSnapshotUnavailableCacheWins(t *testing.T) {
	cacheStore := cache.NewStore()
	cacheStore.StoreEvent(cache.ComponentUpdate{Component: []byte("0x10"), Entity: []byte("0x11"), Value: []byte("v"), BlockNumber: 100})

	snap := &fakeSnapshot{available: false}
	cacheSrc := &fakeCacheSource{block: 100, ok: true, store: cacheStore}

	r := New(testLogger(), snap, cacheSrc)
	store, block, err := r.Resolve(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(100), block)
	require.Same(t, cacheStore, store)
}

func TestResolveNoSourcesFallsBackToFloor(t *testing.T) {
	snap := &fakeSnapshot{available: false}
	cacheSrc := &fakeCacheSource{ok: false}

	r := New(testLogger(), snap, cacheSrc)
	store, block, err := r.Resolve(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), block)
	require.Equal(t, 0, store.Len())
}

func TestResolveSnapshotBelowThresholdCacheWins(t *testing.T) {
	cacheStore := cache.NewStore()
	snap := &fakeSnapshot{block: 150, available: true, store: cache.NewStore()}
	cacheSrc := &fakeCacheSource{block: 100, ok: true, store: cacheStore}

	r := New(testLogger(), snap, cacheSrc)
	_, block, err := r.Resolve(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(100), block)
}

func TestResolveSnapshotBehindCacheLoses(t *testing.T) {
	cacheStore := cache.NewStore()
	snap := &fakeSnapshot{block: 50, available: true, store: cache.NewStore()}
	cacheSrc := &fakeCacheSource{block: 500, ok: true, store: cacheStore}

	r := New(testLogger(), snap, cacheSrc)
	_, block, err := r.Resolve(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(500), block, "snapshot behind cache must lose per the conservative resolution rule")
}

func TestResolveHonorsInitialBlockNumberFloor(t *testing.T) {
	snap := &fakeSnapshot{available: false}
	cacheSrc := &fakeCacheSource{block: 10, ok: true, store: cache.NewStore()}

	r := New(testLogger(), snap, cacheSrc)
	_, block, err := r.Resolve(context.Background(), 500)
	require.NoError(t, err)
	require.Equal(t, uint64(500), block)
}

func TestResolveSnapshotFetchFailureAfterLatestQueryFallsBackToCache(t *testing.T) {
	cacheStore := cache.NewStore()
	snap := &fakeSnapshot{block: 9999, available: true, fetchErr: syncerr.ErrSnapshotUnavailable}
	cacheSrc := &fakeCacheSource{block: 100, ok: true, store: cacheStore}

	r := New(testLogger(), snap, cacheSrc)
	store, block, err := r.Resolve(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(100), block)
	require.Same(t, cacheStore, store)
}

func TestResolvePropagatesUnexpectedSnapshotErrors(t *testing.T) {
	cacheSrc := &fakeCacheSource{}

	realErr := errors.New("dns exploded in a way the client didn't collapse")
	brokenSnap := &brokenLatestSnapshot{err: realErr}

	r := New(testLogger(), brokenSnap, cacheSrc)
	_, _, err := r.Resolve(context.Background(), 0)
	require.Error(t, err)
}

type brokenLatestSnapshot struct {
	err error
}

func (b *brokenLatestSnapshot) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return 0, b.err
}

func (b *brokenLatestSnapshot) Fetch(ctx context.Context) (*cache.Store, uint64, error) {
	return nil, 0, b.err
}
