package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(component, entity, value string, block uint64) ComponentUpdate {
	return ComponentUpdate{
		Component:   []byte(component),
		Entity:      []byte(entity),
		Value:       []byte(value),
		TxHash:      "0xabc",
		BlockNumber: block,
	}
}

func TestStoreEventOverwritesCompactedState(t *testing.T) {
	s := NewStore()
	s.StoreEvent(update("position", "e1", "v1", 10))
	s.StoreEvent(update("position", "e1", "v2", 20))

	require.Equal(t, 2, s.Len())

	state := s.State()
	require.Len(t, state, 1)
	assert.Equal(t, []byte("v2"), state[0].Value)
	assert.Equal(t, uint64(20), state[0].BlockNumber)
	assert.Equal(t, CacheTxHash, state[0].TxHash)
	assert.False(t, state[0].LastEventInTx)
}

func TestCacheKeyDoesNotCollideAcrossComponentEntityBoundary(t *testing.T) {
	s := NewStore()
	s.StoreEvent(update("ab", "c", "first", 1))
	s.StoreEvent(update("a", "bc", "second", 2))

	state := s.State()
	require.Len(t, state, 2)

	values := map[string]string{}
	for _, u := range state {
		values[string(u.Component)+"|"+string(u.Entity)] = string(u.Value)
	}
	assert.Equal(t, "first", values["ab|c"])
	assert.Equal(t, "second", values["a|bc"])
}

func TestStateOrderStableAcrossRepeatedCalls(t *testing.T) {
	s := NewStore()
	s.StoreEvent(update("c1", "e1", "v1", 1))
	s.StoreEvent(update("c2", "e2", "v2", 2))
	s.StoreEvent(update("c1", "e1", "v1b", 3))

	first := s.State()
	second := s.State()
	assert.Equal(t, first, second)
}

func TestMergeFromIsAssociativeInOutcome(t *testing.T) {
	a := NewStore()
	a.StoreEvent(update("c1", "e1", "v1", 1))

	b := NewStore()
	b.StoreEvent(update("c1", "e1", "v2", 2))
	b.StoreEvent(update("c2", "e2", "v3", 3))

	c := NewStore()
	c.StoreEvent(update("c2", "e2", "v4", 4))

	merged := NewStore()
	merged.MergeFrom(a)
	merged.MergeFrom(b)
	merged.MergeFrom(c)

	sequential := NewStore()
	for _, src := range []*Store{a, b, c} {
		for _, u := range src.Sequence() {
			sequential.StoreEvent(u)
		}
	}

	toMap := func(s *Store) map[string][]byte {
		out := map[string][]byte{}
		for _, u := range s.State() {
			out[string(u.Component)+"|"+string(u.Entity)] = u.Value
		}
		return out
	}

	assert.Equal(t, toMap(sequential), toMap(merged))
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	s := NewStore()
	s.StoreEvent(update("c1", "e1", "v1", 1))
	s.StoreEvent(update("c2", "e2", "v2", 2))

	data, err := SerializeStore(s)
	require.NoError(t, err)

	restored, err := DeserializeStore(data)
	require.NoError(t, err)

	assert.Equal(t, s.State(), restored.State())
}

func TestDeserializeCorruptDataFails(t *testing.T) {
	_, err := DeserializeStore([]byte("not msgpack"))
	require.Error(t, err)
}
