// Command chainsyncd runs one chain state synchronizer session against a
// single world contract, printing each emitted ComponentUpdate to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"code.chainsync.io/sync/cache"
	"code.chainsync.io/sync/config"
	"code.chainsync.io/sync/ethchain"
	"code.chainsync.io/sync/gapfill"
	"code.chainsync.io/sync/livestream"
	"code.chainsync.io/sync/logging"
	"code.chainsync.io/sync/metrics"
	"code.chainsync.io/sync/orchestrator"
	"code.chainsync.io/sync/resolver"
	"code.chainsync.io/sync/snapshot"

	ethereum "github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	flags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chainsyncd:", err)
		os.Exit(1)
	}
}

func run() error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg := config.NewDefaultConfig(cwd)
	if loaded, err := config.Read(cwd); err == nil {
		cfg = *loaded
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if _, err := flags.NewParser(&cfg, flags.Default|flags.IgnoreUnknown).Parse(); err != nil {
		return err
	}

	log := logging.New(cfg.Level.Get())
	defer log.AtExit()

	abiBytes, err := os.ReadFile(cfg.WorldContractABIPath)
	if err != nil {
		return fmt.Errorf("couldn't read world contract ABI: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go waitForSignal(cancel)

	rawClient, err := ethchain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}

	decoder, err := ethchain.NewDecoder(ethcommon.HexToAddress(cfg.WorldContractAddress), string(abiBytes))
	if err != nil {
		return err
	}

	badgerCache, err := cache.NewBadgerCache(log, cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("couldn't open persistent cache: %w", err)
	}
	defer badgerCache.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	go serveMetrics(cfg.MetricsListenAddress, reg, log)

	rangeFetcher := ethchain.NewRangeFetcher(cfg.EthChain, log, rawClient, decoder).WithMetrics(collector)
	snapshotClient := snapshot.NewClient(cfg.Snapshot, log).WithMetrics(collector)
	res := resolver.New(log, snapshotClient, resolver.FromPersistentCache(badgerCache))
	filler := gapfill.New(rangeFetcher)

	updates := make(chan cache.ComponentUpdate, 256)
	ticks := make(chan livestream.BlockTick, 16)
	go pollChainHead(ctx, rawClient, ticks, cfg.Provider.PollingInterval.Get())
	go subscribeLive(ctx, rawClient, decoder, updates, log)

	orch := orchestrator.New(cfg.Orchestrator, log, res, filler, livestream.Stream{Updates: updates, Ticks: ticks}).WithMetrics(collector)

	out, done := orch.Run(ctx)

	state := newRunningState()
	go persistPeriodically(ctx, state, badgerCache, log, persistInterval)

	enc := json.NewEncoder(os.Stdout)
	for update := range out {
		state.apply(update)
		if err := enc.Encode(update); err != nil {
			log.Warningf("couldn't encode update: %s", err)
		}
	}
	state.persist(badgerCache, log)

	if err := <-done; err != nil {
		return err
	}
	return nil
}

// persistInterval is how often the accumulated cache state is checkpointed
// to disk while the orchestrator is running, independent of the final
// save on shutdown.
const persistInterval = 30 * time.Second

// runningState mirrors the compacted state the orchestrator has emitted so
// far, so it can be checkpointed to the persistent cache without asking
// the orchestrator to expose its internal Store.
type runningState struct {
	mu    sync.Mutex
	store *cache.Store
	block uint64
}

func newRunningState() *runningState {
	return &runningState{store: cache.NewStore()}
}

func (r *runningState) apply(u cache.ComponentUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.StoreEvent(u)
	if u.BlockNumber > r.block {
		r.block = u.BlockNumber
	}
}

func (r *runningState) persist(pc cache.PersistentCache, log *logging.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := cache.SaveCachedState(pc, r.block, r.store); err != nil {
		log.Warningf("couldn't persist cache state: %s", err)
	}
}

func persistPeriodically(ctx context.Context, state *runningState, pc cache.PersistentCache, log *logging.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state.persist(pc, log)
		}
	}
}

func waitForSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	cancel()
}

// pollChainHead is a minimal stand-in for the out-of-scope block-number
// tick stream: it polls the RPC endpoint's current height and emits a
// tick whenever it advances.
func pollChainHead(ctx context.Context, client ethchain.Client, ticks chan<- livestream.BlockTick, interval time.Duration) {
	if interval <= 0 {
		interval = 4 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			height, err := client.BlockNumber(ctx)
			if err != nil || height == last {
				continue
			}
			last = height
			select {
			case ticks <- livestream.BlockTick{BlockNumber: height}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// subscribeLive is a minimal stand-in for the out-of-scope live-event
// driver: it subscribes to the world contract's ComponentValueSet logs
// directly and decodes each into a ComponentUpdate. It assumes every log
// it sees is the last event of its transaction, since without buffering
// a full block's logs there is no cheap way to know otherwise; the real
// driver this replaces is expected to do that grouping itself.
func subscribeLive(ctx context.Context, client ethchain.Client, decoder *ethchain.Decoder, out chan<- cache.ComponentUpdate, log *logging.Logger) {
	query := ethereum.FilterQuery{
		Addresses: []ethcommon.Address{decoder.Address()},
		Topics:    [][]ethcommon.Hash{{decoder.EventID()}},
	}

	logCh := make(chan ethtypes.Log, 64)
	sub, err := client.SubscribeFilterLogs(ctx, query, logCh)
	if err != nil {
		log.Warningf("live log subscription failed: %s", err)
		return
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			log.Warningf("live log subscription ended: %s", err)
			return
		case raw := <-logCh:
			update, err := decoder.Decode(raw, true)
			if err != nil {
				log.Warningf("couldn't decode live log: %s", err)
				continue
			}
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log *logging.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warningf("metrics server stopped: %s", err)
	}
}
