// Package resolver implements the initial-state resolution policy: given
// what the persistent cache and the snapshot service each report, decide
// which one (if either) seeds the synchronizer, and produce the seed
// CacheStore plus the block number it is current to.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"code.chainsync.io/sync/cache"
	"code.chainsync.io/sync/logging"
	"code.chainsync.io/sync/syncerr"

	"golang.org/x/sync/errgroup"
)

// SnapshotPreferThreshold is how many blocks ahead of the cache's
// candidate block a snapshot must be before it's worth its round-trip and
// merge cost instead of a direct gap fetch.
const SnapshotPreferThreshold = 100

const resolverLoggerName = "resolver"

// SnapshotSource is the subset of snapshot.Client the resolver needs.
type SnapshotSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	Fetch(ctx context.Context) (*cache.Store, uint64, error)
}

// CacheSource is the subset of the persistent cache the resolver needs,
// already deserialized into a block number and store by the caller so the
// resolver doesn't need to know the on-disk wire format.
type CacheSource interface {
	// LoadState returns the persisted block number and store, or ok=false
	// if nothing usable is on disk (including: corrupt data, which the
	// caller treats identically to "nothing there").
	LoadState() (blockNumber uint64, store *cache.Store, ok bool)
}

// Resolver decides which of the cache, the snapshot service, or neither
// seeds a synchronization session.
type Resolver struct {
	log       *logging.Logger
	snapshot  SnapshotSource
	cacheSrc  CacheSource
	threshold uint64
}

func New(log *logging.Logger, snapshot SnapshotSource, cacheSrc CacheSource) *Resolver {
	return &Resolver{
		log:       log.Named(resolverLoggerName),
		snapshot:  snapshot,
		cacheSrc:  cacheSrc,
		threshold: SnapshotPreferThreshold,
	}
}

// Resolve runs the decision algorithm: it reads the cache's block number
// and queries the snapshot service concurrently, then picks a seed.
func (r *Resolver) Resolve(ctx context.Context, initialBlockNumber uint64) (*cache.Store, uint64, error) {
	var cacheBlockNumber uint64
	var cacheStore *cache.Store
	var cacheOK bool

	var snapshotBlockNumber uint64
	var snapshotAvailable bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cacheBlockNumber, cacheStore, cacheOK = r.cacheSrc.LoadState()
		if !cacheOK {
			cacheBlockNumber = 0
		}
		return nil
	})
	g.Go(func() error {
		block, err := r.snapshot.LatestBlockNumber(gctx)
		switch {
		case err == nil:
			snapshotBlockNumber = block
			snapshotAvailable = true
		case isUnavailable(err):
			snapshotAvailable = false
		default:
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("resolver: snapshot query failed: %w", err)
	}

	candidateCache := max64(cacheBlockNumber, initialBlockNumber)

	snapshotWins := snapshotAvailable && snapshotBlockNumber > candidateCache+r.threshold
	if snapshotWins {
		store, block, err := r.snapshot.Fetch(ctx)
		if err != nil {
			if isUnavailable(err) {
				r.log.Warningf("snapshot became unavailable between latest-block query and fetch: %s", err)
			} else {
				return nil, 0, fmt.Errorf("resolver: snapshot fetch failed: %w", err)
			}
		} else {
			r.log.Infof("resolved seed from snapshot at block %d", block)
			return store, block, nil
		}
	}

	if cacheOK && candidateCache >= initialBlockNumber {
		r.log.Infof("resolved seed from persistent cache at block %d", candidateCache)
		return cacheStore, candidateCache, nil
	}

	r.log.Infof("resolved seed to empty store at floor block %d", initialBlockNumber)
	return cache.NewStore(), initialBlockNumber, nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, syncerr.ErrSnapshotUnavailable)
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// persistentCacheSource adapts a cache.PersistentCache to CacheSource by
// deserializing whatever's stored under the well-known keys.
type persistentCacheSource struct {
	pc cache.PersistentCache
}

// FromPersistentCache builds a CacheSource backed by an on-disk
// PersistentCache, using the standard block-number/state key layout.
func FromPersistentCache(pc cache.PersistentCache) CacheSource {
	return &persistentCacheSource{pc: pc}
}

func (s *persistentCacheSource) LoadState() (uint64, *cache.Store, bool) {
	return cache.LoadCachedState(s.pc)
}
