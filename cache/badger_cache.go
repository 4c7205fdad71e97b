package cache

import (
	"fmt"
	"path/filepath"

	"code.chainsync.io/sync/logging"

	"github.com/dgraph-io/badger/v2"
)

// BadgerCache is the PersistentCache collaborator backed by a Badger
// key-value database on disk, one DB per synchronizer instance (one per
// chain/world-contract key space, opened by a single writer).
type BadgerCache struct {
	log *logging.Logger
	db  *badger.DB
}

// NewBadgerCache opens (creating if absent) a Badger database under dir.
func NewBadgerCache(log *logging.Logger, dir string) (*BadgerCache, error) {
	log = log.Named("badger-cache")

	opts := badger.DefaultOptions(dir).
		WithLogger(log).
		WithSyncWrites(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't open badger cache at %q: %w", dir, err)
	}
	return &BadgerCache{log: log, db: db}, nil
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// namespacedKey prefixes key with store so the two logical stores
// ("BlockNumber", "State") never collide in Badger's single flat keyspace.
func namespacedKey(store, key string) []byte {
	return []byte(filepath.Join(store, key))
}

func (c *BadgerCache) Get(store, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(namespacedKey(store, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %s/%s: %w", store, key, err)
	}
	return value, true, nil
}

func (c *BadgerCache) Put(store, key string, value []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(namespacedKey(store, key), value)
	})
	if err != nil {
		return fmt.Errorf("badger put %s/%s: %w", store, key, err)
	}
	return nil
}

var _ PersistentCache = (*BadgerCache)(nil)
