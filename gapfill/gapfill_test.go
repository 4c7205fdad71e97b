package gapfill

import (
	"context"
	"testing"

	"code.chainsync.io/sync/cache"

	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	from, to uint64
	called   bool
	store    *cache.Store
}

func (f *fakeFetcher) Fetch(ctx context.Context, from, to uint64) (*cache.Store, error) {
	f.called = true
	f.from, f.to = from, to
	return f.store, nil
}

func TestFillShortCircuitsWhenNoGap(t *testing.T) {
	fetcher := &fakeFetcher{}
	filler := New(fetcher)

	store, err := filler.Fill(context.Background(), 100, 100)
	require.NoError(t, err)
	require.False(t, fetcher.called)
	require.Equal(t, 0, store.Len())

	store, err = filler.Fill(context.Background(), 100, 50)
	require.NoError(t, err)
	require.False(t, fetcher.called)
	require.Equal(t, 0, store.Len())
}

func TestFillDelegatesToFetcherWithExactRange(t *testing.T) {
	expected := cache.NewStore()
	expected.StoreEvent(cache.ComponentUpdate{Component: []byte("c"), Entity: []byte("e"), BlockNumber: 999})
	fetcher := &fakeFetcher{store: expected}
	filler := New(fetcher)

	store, err := filler.Fill(context.Background(), 99, 1001)
	require.NoError(t, err)
	require.True(t, fetcher.called)
	require.Equal(t, uint64(99), fetcher.from)
	require.Equal(t, uint64(1001), fetcher.to)
	require.Same(t, expected, store)
}
