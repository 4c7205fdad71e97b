package ethchain

import (
	"context"
	"fmt"
	"math/big"

	"code.chainsync.io/sync/cache"
	"code.chainsync.io/sync/logging"
	"code.chainsync.io/sync/metrics"
	"code.chainsync.io/sync/syncerr"

	"github.com/cenkalti/backoff/v4"
	ethereum "github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

const rangeFetcherLogger = "range-fetcher"

// RangeFetcher fetches historical world-contract events: given an
// inclusive block range, it returns a cache.Store containing every
// ComponentUpdate the world contract emitted in that range, in
// observation order.
type RangeFetcher struct {
	cfg     Config
	log     *logging.Logger
	client  Client
	decoder *Decoder
	metrics *metrics.Collector
}

func NewRangeFetcher(cfg Config, log *logging.Logger, client Client, decoder *Decoder) *RangeFetcher {
	l := log.Named(rangeFetcherLogger)
	l.SetLevel(cfg.Level.Get())
	return &RangeFetcher{cfg: cfg, log: l, client: client, decoder: decoder}
}

// WithMetrics attaches a Collector that range-fetch calls and retries are
// reported to. Optional; a nil Collector (the default) disables
// instrumentation.
func (f *RangeFetcher) WithMetrics(m *metrics.Collector) *RangeFetcher {
	f.metrics = m
	return f
}

// Fetch returns every ComponentUpdate emitted by the world contract in
// [from, to]. Transient RPC failures are retried with bounded exponential
// backoff; once retries are exhausted the failure escalates to a
// FatalSyncError.
func (f *RangeFetcher) Fetch(ctx context.Context, from, to uint64) (*cache.Store, error) {
	if to < from {
		return nil, fmt.Errorf("invalid range [%d, %d]: to < from", from, to)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []ethcommon.Address{f.decoder.Address()},
		Topics:    [][]ethcommon.Hash{{f.decoder.EventID()}},
	}
	if f.log.IsDebug() {
		f.log.Debug("filtering world contract logs",
			logging.EthereumAddress("address", f.decoder.Address()),
			logging.BigInt("fromBlock", query.FromBlock),
			logging.BigInt("toBlock", query.ToBlock),
		)
	}

	logs, err := f.filterLogsWithRetry(ctx, query)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if f.metrics != nil {
		f.metrics.RangeFetchCalls.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		return nil, &syncerr.FatalSyncError{Op: "range-fetch", Err: err}
	}

	store := cache.NewStore()
	for i, log := range logs {
		last := i == len(logs)-1 || logs[i+1].TxHash != log.TxHash
		update, err := f.decoder.Decode(log, last)
		if err != nil {
			return nil, &syncerr.FatalSyncError{Op: "range-fetch-decode", Err: err}
		}
		store.StoreEvent(update)
	}

	if f.log.IsDebug() {
		f.log.Debug("fetched block range",
			logging.Uint64("from", from),
			logging.Uint64("to", to),
			logging.Int("updates", store.Len()),
		)
	}

	return store, nil
}

func (f *RangeFetcher) filterLogsWithRetry(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.cfg.RetryBase.Get()
	policy.MaxInterval = f.cfg.RetryCap.Get()
	policy.Multiplier = 2
	bounded := backoff.WithMaxRetries(policy, RangeFetchMaxRetries)
	bounded = backoff.WithContext(bounded, ctx)

	var logs []ethtypes.Log
	var lastErr error
	operation := func() error {
		l, err := f.client.FilterLogs(ctx, query)
		if err != nil {
			lastErr = &syncerr.TransientFetchError{Err: err}
			f.log.Warningf("log filter attempt failed: %s", err)
			if f.metrics != nil {
				f.metrics.FetchRetries.Inc()
			}
			return lastErr
		}
		logs = l
		return nil
	}

	if err := backoff.Retry(operation, bounded); err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return logs, nil
}

// CurrentHeight returns the current chain head, retrying transient RPC
// failures the same way Fetch does.
func (f *RangeFetcher) CurrentHeight(ctx context.Context) (uint64, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.cfg.RetryBase.Get()
	policy.MaxInterval = f.cfg.RetryCap.Get()
	policy.Multiplier = 2
	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, RangeFetchMaxRetries), ctx)

	var height uint64
	operation := func() error {
		h, err := f.client.BlockNumber(ctx)
		if err != nil {
			if f.metrics != nil {
				f.metrics.FetchRetries.Inc()
			}
			return &syncerr.TransientFetchError{Err: err}
		}
		height = h
		return nil
	}
	if err := backoff.Retry(operation, bounded); err != nil {
		return 0, &syncerr.FatalSyncError{Op: "current-height", Err: err}
	}
	return height, nil
}
