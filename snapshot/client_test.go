package snapshot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"code.chainsync.io/sync/cache"
	"code.chainsync.io/sync/config/encoding"
	"code.chainsync.io/sync/logging"
	"code.chainsync.io/sync/syncerr"

	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(logging.ErrorLevel)
}

func TestLatestBlockNumberEmptyURLIsUnavailable(t *testing.T) {
	c := NewClient(NewDefaultConfig(), testLogger())
	_, err := c.LatestBlockNumber(context.Background())
	require.ErrorIs(t, err, syncerr.ErrSnapshotUnavailable)
}

func TestFetchReturnsCompactedStoreAtSnapshotBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latest":
			json.NewEncoder(w).Encode(latestBlockResponse{BlockNumber: 9999})
		case "/snapshot":
			json.NewEncoder(w).Encode(fetchResponse{
				BlockNumber: 9999,
				Updates: []snapshotUpdateWire{
					{Component: []byte("0x10"), Entity: []byte("0x11"), Value: []byte("v")},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := NewDefaultConfig()
	cfg.ServiceURL = srv.URL
	c := NewClient(cfg, testLogger())

	block, err := c.LatestBlockNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(9999), block)

	store, snapshotBlock, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(9999), snapshotBlock)

	state := store.State()
	require.Len(t, state, 1)
	require.Equal(t, cache.CacheTxHash, state[0].TxHash)
	require.False(t, state[0].LastEventInTx)
	require.Equal(t, uint64(9999), state[0].BlockNumber)
}

func TestFetchNon2xxIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := NewDefaultConfig()
	cfg.ServiceURL = srv.URL
	c := NewClient(cfg, testLogger())

	_, _, err := c.Fetch(context.Background())
	require.ErrorIs(t, err, syncerr.ErrSnapshotUnavailable)
}

func TestQueryTimeoutIsRespected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		json.NewEncoder(w).Encode(latestBlockResponse{BlockNumber: 1})
	}))
	defer srv.Close()

	cfg := NewDefaultConfig()
	cfg.ServiceURL = srv.URL
	cfg.Timeout = encoding.Duration{Duration: time.Millisecond}
	c := NewClient(cfg, testLogger())

	_, err := c.LatestBlockNumber(context.Background())
	require.ErrorIs(t, err, syncerr.ErrSnapshotUnavailable)
}
