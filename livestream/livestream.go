// Package livestream is the hot channel of component updates arriving
// from the chain in real time, plus the block-number tick channel the
// orchestrator uses to know the current chain head.
package livestream

import (
	"code.chainsync.io/sync/cache"
)

// BlockTick reports a new observed chain head.
type BlockTick struct {
	BlockNumber uint64
}

// Stream is what an out-of-scope RPC log-subscription driver hands the
// orchestrator: a channel of live updates and a channel of block-number
// ticks. Both are closed by the driver on disconnect; the orchestrator
// treats channel closure as the live-stream-ended fatal condition unless
// it was already cancelled.
type Stream struct {
	Updates <-chan cache.ComponentUpdate
	Ticks   <-chan BlockTick
}

// Buffer accumulates live updates delivered before the orchestrator is
// ready to forward them unmodified — during BOOT/RESOLVING/SEEDING/
// GAP_FETCHING/DRAINING_BUFFER, per the ordering discipline of the orchestrator's state
// machine. It must never drop silently; HighWaterMark configures when to
// start logging, not when to stop accepting.
type Buffer struct {
	updates       []cache.ComponentUpdate
	highWaterMark int
	warned        bool
	onOverflow    func(depth int)
}

// NewBuffer returns an empty Buffer. highWaterMark of 0 disables the
// overflow warning (spec's LIVE_BUFFER_MAX is unbounded by default).
func NewBuffer(highWaterMark int, onOverflow func(depth int)) *Buffer {
	return &Buffer{highWaterMark: highWaterMark, onOverflow: onOverflow}
}

// Push appends an update to the buffer. It never drops.
func (b *Buffer) Push(update cache.ComponentUpdate) {
	b.updates = append(b.updates, update)
	if b.highWaterMark > 0 && len(b.updates) >= b.highWaterMark && !b.warned {
		b.warned = true
		if b.onOverflow != nil {
			b.onOverflow(len(b.updates))
		}
	}
}

// Drain returns every buffered update in arrival order and empties the
// buffer, re-arming the overflow warning. The orchestrator calls it
// repeatedly during DRAINING_BUFFER until it comes back empty.
func (b *Buffer) Drain() []cache.ComponentUpdate {
	out := b.updates
	b.updates = nil
	b.warned = false
	return out
}

// Len reports how many updates are currently buffered.
func (b *Buffer) Len() int {
	return len(b.updates)
}
