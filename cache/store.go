package cache

import "encoding/binary"

// compactedEntry is the latest known value for a (component, entity) pair,
// plus the block number of the update that produced it.
type compactedEntry struct {
	value       []byte
	blockNumber uint64
}

// Store is an append-only log of ComponentUpdates plus a compacted view
// keyed by (component, entity). Replaying the log in order reproduces the
// compacted view.
//
// A Store is built and drained by a single goroutine — the orchestrator,
// or a collaborator computing one on the orchestrator's behalf — and is
// never shared across goroutines concurrently, so it carries no lock.
type Store struct {
	sequence  []ComponentUpdate
	compacted map[string]compactedEntry
	// order preserves first-insertion order of compacted keys so two
	// consecutive calls to State() without intervening writes return
	// updates in the same stable order, without relying on map iteration
	// order (which Go randomizes per-process).
	order []string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		compacted: make(map[string]compactedEntry),
	}
}

// cacheKey builds an unambiguous map key from the component and entity
// byte strings. A naive string concatenation could collide (component
// "ab"+entity "c" vs component "a"+entity "bc"); length-prefixing rules
// that out without needing a delimiter byte that might appear in the
// opaque payloads themselves.
func cacheKey(component, entity []byte) string {
	buf := make([]byte, 4, 4+len(component)+len(entity))
	binary.BigEndian.PutUint32(buf, uint32(len(component)))
	buf = append(buf, component...)
	buf = append(buf, entity...)
	return string(buf)
}

// StoreEvent appends update to the sequence and folds it into the
// compacted state, overwriting whatever was previously known for this
// (component, entity) pair.
func (s *Store) StoreEvent(update ComponentUpdate) {
	s.sequence = append(s.sequence, update)

	key := cacheKey(update.Component, update.Entity)
	if _, ok := s.compacted[key]; !ok {
		s.order = append(s.order, key)
	}
	s.compacted[key] = compactedEntry{
		value:       update.Value,
		blockNumber: update.BlockNumber,
	}
}

// Sequence returns the ordered sequence of observed updates. The returned
// slice must not be mutated by the caller.
func (s *Store) Sequence() []ComponentUpdate {
	return s.sequence
}

// Len reports how many updates have been observed.
func (s *Store) Len() int {
	return len(s.sequence)
}

// State returns the compacted state as synthetic ComponentUpdates: one per
// (component, entity) pair, carrying the latest value and the block number
// that produced it, with TxHash set to CacheTxHash and LastEventInTx
// always false.
func (s *Store) State() []ComponentUpdate {
	out := make([]ComponentUpdate, 0, len(s.order))
	for _, key := range s.order {
		entry := s.compacted[key]
		component, entity := splitCacheKey(key)
		out = append(out, ComponentUpdate{
			Component:     component,
			Entity:        entity,
			Value:         entry.value,
			TxHash:        CacheTxHash,
			LastEventInTx: false,
			BlockNumber:   entry.blockNumber,
		})
	}
	return out
}

func splitCacheKey(key string) (component, entity []byte) {
	n := binary.BigEndian.Uint32([]byte(key[:4]))
	rest := key[4:]
	return []byte(rest[:n]), []byte(rest[n:])
}

// MergeFrom applies StoreEvent for every update in other's sequence, in
// order. Because it replays the full sequence rather than the compacted
// state, mergeFrom is associative in outcome: A.MergeFrom(B).MergeFrom(C)
// and a single store that observed A, then B, then C in sequence end up
// with the same compacted state.
func (s *Store) MergeFrom(other *Store) {
	for _, update := range other.sequence {
		s.StoreEvent(update)
	}
}
