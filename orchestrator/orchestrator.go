// Package orchestrator is the state machine that ties CacheStore
// resolution, gap fetching, and live-event forwarding into a single
// ordered output stream: BOOT -> RESOLVING -> SEEDING -> GAP_FETCHING ->
// DRAINING_BUFFER -> LIVE -> TERMINATED.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"code.chainsync.io/sync/cache"
	"code.chainsync.io/sync/livestream"
	"code.chainsync.io/sync/logging"
	"code.chainsync.io/sync/metrics"
	"code.chainsync.io/sync/syncerr"
)

// phaseLabels lists every phase name metrics.Collector.SetPhase needs to
// zero out when moving to a new one.
var phaseLabels = []string{
	PhaseBoot.String(), PhaseResolving.String(), PhaseSeeding.String(),
	PhaseGapFetching.String(), PhaseDrainingBuffer.String(), PhaseLive.String(),
	PhaseTerminated.String(),
}

const orchestratorLoggerName = "orchestrator"

// Resolver is the subset of resolver.Resolver the orchestrator needs.
type Resolver interface {
	Resolve(ctx context.Context, initialBlockNumber uint64) (*cache.Store, uint64, error)
}

// GapFiller is the subset of gapfill.Filler the orchestrator needs.
type GapFiller interface {
	Fill(ctx context.Context, from, to uint64) (*cache.Store, error)
}

// Orchestrator runs one synchronization session for one chain/world
// contract pair. It is not reused across sessions.
type Orchestrator struct {
	cfg       Config
	log       *logging.Logger
	resolver  Resolver
	gapFiller GapFiller
	stream    livestream.Stream

	phase atomic.Int32

	// mu guards live and buffer together: a live update must be either
	// buffered or forwarded, and the decision must be made under the same
	// lock that flips live, or an update could be lost between the two.
	mu     sync.Mutex
	live   bool
	buffer *livestream.Buffer

	currentTargetBlock atomic.Uint64
	firstTickReady     chan struct{}
	firstTickOnce      sync.Once

	streamEnded chan struct{}
	endOnce     sync.Once

	outCh chan cache.ComponentUpdate

	metrics *metrics.Collector
}

// WithMetrics attaches a Collector that the orchestrator reports phase
// transitions, emitted-event counts, and buffer depth to. Optional; a nil
// Collector (the default) disables instrumentation.
func (o *Orchestrator) WithMetrics(m *metrics.Collector) *Orchestrator {
	o.metrics = m
	return o
}

// New builds an Orchestrator wired to the given collaborators. stream must
// already be subscribed — the orchestrator starts buffering from the
// first update it reads off the channels.
func New(cfg Config, log *logging.Logger, resolver Resolver, gapFiller GapFiller, stream livestream.Stream) *Orchestrator {
	l := log.Named(orchestratorLoggerName)
	l.SetLevel(cfg.Level.Get())
	buffer := livestream.NewBuffer(cfg.LiveBufferHighWaterMark, func(depth int) {
		l.Warningf("live buffer reached %d updates during initial sync", depth)
	})
	return &Orchestrator{
		cfg:            cfg,
		log:            l,
		resolver:       resolver,
		gapFiller:      gapFiller,
		stream:         stream,
		buffer:         buffer,
		firstTickReady: make(chan struct{}),
		streamEnded:    make(chan struct{}),
	}
}

// Phase reports the orchestrator's current state, safe to call from any
// goroutine.
func (o *Orchestrator) Phase() Phase {
	return Phase(o.phase.Load())
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phase.Store(int32(p))
	o.log.Infof("entering phase %s", p)
	if o.metrics != nil {
		o.metrics.SetPhase(p.String(), phaseLabels)
	}
}

// Run starts the synchronizer. It returns a channel of ComponentUpdate
// (closed on termination) and a channel that receives exactly one value —
// nil on clean shutdown (cancellation or stream end after cancellation),
// or a *syncerr.FatalSyncError — and is then closed.
func (o *Orchestrator) Run(ctx context.Context) (<-chan cache.ComponentUpdate, <-chan error) {
	out := make(chan cache.ComponentUpdate, o.cfg.OutputBufferSize)
	done := make(chan error, 1)
	o.outCh = out

	go o.pump(ctx)
	go o.control(ctx, out, done)

	return out, done
}

// pump is the one goroutine that ever reads from the live stream. It runs
// for the orchestrator's entire lifetime: whenever the orchestrator isn't
// yet in LIVE phase, arriving live events are buffered instead of dropped,
// so it is an always-on reader that buffers or forwards depending on
// whether LIVE phase has been reached.
func (o *Orchestrator) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case tick, ok := <-o.stream.Ticks:
			if !ok {
				o.endStream()
				return
			}
			o.currentTargetBlock.Store(tick.BlockNumber)
			o.firstTickOnce.Do(func() { close(o.firstTickReady) })

		case update, ok := <-o.stream.Updates:
			if !ok {
				o.endStream()
				return
			}
			o.mu.Lock()
			if o.live {
				o.mu.Unlock()
				o.forwardLive(ctx, update)
			} else {
				o.buffer.Push(update)
				depth := o.buffer.Len()
				o.mu.Unlock()
				if o.metrics != nil {
					o.metrics.LiveBufferDepth.Set(float64(depth))
				}
			}
		}
	}
}

func (o *Orchestrator) forwardLive(ctx context.Context, update cache.ComponentUpdate) {
	select {
	case o.outCh <- update:
		if o.metrics != nil {
			o.metrics.EventsEmitted.WithLabelValues(PhaseLive.String()).Inc()
		}
	case <-ctx.Done():
	}
}

func (o *Orchestrator) endStream() {
	o.endOnce.Do(func() { close(o.streamEnded) })
}

// control runs the phase-advancement logic: one goroutine, one step at a
// time, exactly mirroring the cooperative-task suspension points of the
// source design (resolver sub-queries, gap fetch) while pump keeps the
// live stream flowing underneath it.
func (o *Orchestrator) control(ctx context.Context, out chan cache.ComponentUpdate, done chan error) {
	defer close(out)

	o.setPhase(PhaseBoot)
	select {
	case <-o.firstTickReady:
	case <-ctx.Done():
		o.terminate(done, nil)
		return
	case <-o.streamEnded:
		o.terminate(done, &syncerr.FatalSyncError{Op: "boot", Err: errStreamEndedBeforeFirstTick})
		return
	}
	targetBlock := o.currentTargetBlock.Load()
	o.log.Infof("chain head at block %d", targetBlock)

	o.setPhase(PhaseResolving)
	seedStore, seedBlock, err := o.resolver.Resolve(ctx, o.cfg.InitialBlockNumber)
	if err != nil {
		if ctx.Err() != nil {
			o.terminate(done, nil)
			return
		}
		o.log.Errorf("resolve failed: %s", err)
		o.terminate(done, &syncerr.FatalSyncError{Op: "resolve", Err: err})
		return
	}
	o.log.Infof("resolved seed at block %d with %d state entries", seedBlock, len(seedStore.State()))

	o.setPhase(PhaseSeeding)
	for _, update := range seedStore.State() {
		if !o.emitRewritten(ctx, out, PhaseSeeding, update) {
			o.terminate(done, nil)
			return
		}
	}

	o.setPhase(PhaseGapFetching)
	gapStore, err := o.gapFiller.Fill(ctx, seedBlock, targetBlock)
	if err != nil {
		if ctx.Err() != nil {
			o.terminate(done, nil)
			return
		}
		o.log.Errorf("gap fill from %d to %d failed: %s", seedBlock, targetBlock, err)
		o.terminate(done, &syncerr.FatalSyncError{Op: "gap-fill", Err: err})
		return
	}
	for _, update := range gapStore.Sequence() {
		if !o.emitRewritten(ctx, out, PhaseGapFetching, update) {
			o.terminate(done, nil)
			return
		}
	}

	o.setPhase(PhaseDrainingBuffer)
	if !o.drainBuffer(ctx, out) {
		o.terminate(done, nil)
		return
	}

	o.setPhase(PhaseLive)
	select {
	case <-ctx.Done():
		o.terminate(done, nil)
	case <-o.streamEnded:
		o.terminate(done, &syncerr.FatalSyncError{Op: "live", Err: errLiveStreamEnded})
	}
}

// drainBuffer repeatedly drains whatever pump has buffered, emitting each
// batch with the rewrite rule, until the buffer comes up empty — at which
// point it flips live to true atomically with that final empty check, so
// pump can never both append to an already-fully-drained buffer and have
// that update silently disappear.
func (o *Orchestrator) drainBuffer(ctx context.Context, out chan cache.ComponentUpdate) bool {
	for {
		o.mu.Lock()
		batch := o.buffer.Drain()
		if len(batch) == 0 {
			o.live = true
			o.mu.Unlock()
			if o.metrics != nil {
				o.metrics.LiveBufferDepth.Set(0)
			}
			return true
		}
		o.mu.Unlock()

		for _, update := range batch {
			if !o.emitRewritten(ctx, out, PhaseDrainingBuffer, update) {
				return false
			}
		}
	}
}

// emitRewritten applies the block-number rewrite rule and sends update to
// out, returning false if the context was cancelled first.
func (o *Orchestrator) emitRewritten(ctx context.Context, out chan cache.ComponentUpdate, phase Phase, update cache.ComponentUpdate) bool {
	target := o.currentTargetBlock.Load()
	var rewriteTo uint64
	if target > 0 {
		rewriteTo = target - 1
	}
	update.BlockNumber = rewriteTo
	update.LastEventInTx = false
	update.TxHash = cache.CacheTxHash

	select {
	case out <- update:
		if o.metrics != nil {
			o.metrics.EventsEmitted.WithLabelValues(phase.String()).Inc()
		}
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) terminate(done chan error, err error) {
	o.setPhase(PhaseTerminated)
	if err != nil {
		o.log.Errorf("terminating: %s", err)
	} else {
		o.log.Infof("terminating cleanly")
	}
	done <- err
	close(done)
}
