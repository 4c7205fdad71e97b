// Package snapshot talks to the auxiliary snapshot service: an
// out-of-scope HTTP endpoint that can serve a full state dump at a
// specific block number, sparing the synchronizer a long BlockRangeFetcher
// crawl when the local cache is far behind.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"code.chainsync.io/sync/cache"
	"code.chainsync.io/sync/config/encoding"
	"code.chainsync.io/sync/logging"
	"code.chainsync.io/sync/metrics"
	"code.chainsync.io/sync/syncerr"
)

const (
	// QueryTimeout bounds both RPCs this client makes; the resolver treats
	// a timeout identically to any other unavailability signal.
	QueryTimeout = 10 * time.Second

	clientLoggerName = "snapshot-client"
)

// Config is the snapshot package's slice of the synchronizer's config.
type Config struct {
	// ServiceURL is the snapshot service's base URL. Empty means "no
	// snapshot service" and every operation reports unavailable.
	ServiceURL string            `long:"snapshot-service-url"`
	Timeout    encoding.Duration `long:"snapshot-query-timeout"`
}

func NewDefaultConfig() Config {
	return Config{Timeout: encoding.Duration{Duration: QueryTimeout}}
}

type latestBlockResponse struct {
	BlockNumber uint64 `json:"blockNumber"`
}

type snapshotUpdateWire struct {
	Component []byte `json:"component"`
	Entity    []byte `json:"entity"`
	Value     []byte `json:"value"`
}

type fetchResponse struct {
	BlockNumber uint64               `json:"blockNumber"`
	Updates     []snapshotUpdateWire `json:"updates"`
}

// Client queries the snapshot service. A zero-value ServiceURL makes every
// call report syncerr.ErrSnapshotUnavailable, so an unconfigured snapshot
// service and an unreachable one are handled identically.
type Client struct {
	cfg     Config
	log     *logging.Logger
	http    *http.Client
	metrics *metrics.Collector
}

func NewClient(cfg Config, log *logging.Logger) *Client {
	return &Client{
		cfg:  cfg,
		log:  log.Named(clientLoggerName),
		http: &http.Client{Timeout: cfg.Timeout.Get()},
	}
}

// WithMetrics attaches a Collector that snapshot query outcomes are
// reported to. Optional; a nil Collector (the default) disables
// instrumentation.
func (c *Client) WithMetrics(m *metrics.Collector) *Client {
	c.metrics = m
	return c
}

// LatestBlockNumber returns the block number of the newest snapshot the
// service can serve. Every failure mode — empty URL, DNS failure,
// non-2xx, timeout, malformed body — collapses to ErrSnapshotUnavailable.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if c.cfg.ServiceURL == "" {
		return 0, syncerr.ErrSnapshotUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout.Get())
	defer cancel()

	var resp latestBlockResponse
	if err := c.getJSON(ctx, c.cfg.ServiceURL+"/latest", &resp); err != nil {
		c.log.Warningf("snapshot latest-block query failed: %s", err)
		c.recordOutcome("unavailable")
		return 0, syncerr.ErrSnapshotUnavailable
	}
	c.recordOutcome("ok")
	return resp.BlockNumber, nil
}

func (c *Client) recordOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.SnapshotQueries.WithLabelValues(outcome).Inc()
	}
}

// Fetch returns the full snapshot as a cache.Store: every update carries
// txHash "cache" and the snapshot's block number, matching a compacted
// state rather than a real transaction log.
func (c *Client) Fetch(ctx context.Context) (*cache.Store, uint64, error) {
	if c.cfg.ServiceURL == "" {
		return nil, 0, syncerr.ErrSnapshotUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout.Get())
	defer cancel()

	var resp fetchResponse
	if err := c.getJSON(ctx, c.cfg.ServiceURL+"/snapshot", &resp); err != nil {
		c.log.Warningf("snapshot fetch failed: %s", err)
		c.recordOutcome("unavailable")
		return nil, 0, syncerr.ErrSnapshotUnavailable
	}
	c.recordOutcome("ok")

	store := cache.NewStore()
	for _, u := range resp.Updates {
		store.StoreEvent(cache.ComponentUpdate{
			Component:     u.Component,
			Entity:        u.Entity,
			Value:         u.Value,
			TxHash:        cache.CacheTxHash,
			LastEventInTx: false,
			BlockNumber:   resp.BlockNumber,
		})
	}
	return store, resp.BlockNumber, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("couldn't build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("couldn't decode response: %w", err)
	}
	return nil
}
