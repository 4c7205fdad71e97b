package cache

import (
	"encoding/binary"
	"fmt"

	"code.chainsync.io/sync/syncerr"

	"github.com/vmihailenco/msgpack/v4"
)

// Store names used by the synchronizer for the two logical PersistentCache
// stores.
const (
	BlockNumberStoreName = "BlockNumber"
	BlockNumberKey       = "current"
	StateStoreName       = "State"
	StateKey             = "snapshot"
)

// PersistentCache is the out-of-scope on-disk key-value collaborator: a
// single-writer get/put store keyed by (store, key). The synchronizer uses
// exactly two logical stores, named above.
type PersistentCache interface {
	Get(store, key string) (value []byte, found bool, err error)
	Put(store, key string, value []byte) error
	Close() error
}

// wireUpdate is the msgpack-serializable twin of ComponentUpdate. A
// dedicated wire type, rather than msgpack tags directly on ComponentUpdate,
// keeps the on-disk format decoupled from the in-memory struct so the two
// can evolve independently (e.g. adding a field to ComponentUpdate that
// should not silently become part of the persisted format).
type wireUpdate struct {
	Component     []byte `msgpack:"component"`
	Entity        []byte `msgpack:"entity"`
	Value         []byte `msgpack:"value"`
	TxHash        string `msgpack:"tx_hash"`
	LastEventInTx bool   `msgpack:"last_event_in_tx"`
	BlockNumber   uint64 `msgpack:"block_number"`
}

// SerializeStore encodes a Store's sequence to bytes. Only the sequence is
// persisted — the compacted state is rebuilt by replay on load, so the
// wire format never needs its own copy of the compacted view.
func SerializeStore(store *Store) ([]byte, error) {
	seq := store.Sequence()
	wire := make([]wireUpdate, len(seq))
	for i, u := range seq {
		wire[i] = wireUpdate{
			Component:     u.Component,
			Entity:        u.Entity,
			Value:         u.Value,
			TxHash:        u.TxHash,
			LastEventInTx: u.LastEventInTx,
			BlockNumber:   u.BlockNumber,
		}
	}
	b, err := msgpack.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal cache store: %w", err)
	}
	return b, nil
}

// DeserializeStore decodes bytes produced by SerializeStore back into a
// Store. A decode failure is reported as ErrCacheCorrupt: the caller
// treats this exactly like an empty cache rather than propagating the
// error further.
func DeserializeStore(data []byte) (*Store, error) {
	var wire []wireUpdate
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %s", syncerr.ErrCacheCorrupt, err)
	}
	store := NewStore()
	for _, w := range wire {
		store.StoreEvent(ComponentUpdate{
			Component:     w.Component,
			Entity:        w.Entity,
			Value:         w.Value,
			TxHash:        w.TxHash,
			LastEventInTx: w.LastEventInTx,
			BlockNumber:   w.BlockNumber,
		})
	}
	return store, nil
}

// LoadCachedState reads the persisted block number and Store from cache.
// Any failure — including a corrupt blob — is reported through ok=false
// rather than an error: callers proceed as if the cache were empty and
// the block number zero.
func LoadCachedState(pc PersistentCache) (blockNumber uint64, store *Store, ok bool) {
	bnBytes, found, err := pc.Get(BlockNumberStoreName, BlockNumberKey)
	if err != nil || !found || len(bnBytes) != 8 {
		return 0, nil, false
	}
	blockNumber = binary.BigEndian.Uint64(bnBytes)

	stateBytes, found, err := pc.Get(StateStoreName, StateKey)
	if err != nil || !found {
		return 0, nil, false
	}

	store, err = DeserializeStore(stateBytes)
	if err != nil {
		return 0, nil, false
	}
	return blockNumber, store, true
}

// SaveCachedState persists the current block number and Store, so a future
// run of the synchronizer can seed from the cache instead of from scratch.
func SaveCachedState(pc PersistentCache, blockNumber uint64, store *Store) error {
	bnBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bnBytes, blockNumber)
	if err := pc.Put(BlockNumberStoreName, BlockNumberKey, bnBytes); err != nil {
		return fmt.Errorf("persist block number: %w", err)
	}

	stateBytes, err := SerializeStore(store)
	if err != nil {
		return err
	}
	if err := pc.Put(StateStoreName, StateKey, stateBytes); err != nil {
		return fmt.Errorf("persist cache store: %w", err)
	}
	return nil
}
