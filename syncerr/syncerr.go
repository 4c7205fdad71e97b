// Package syncerr defines the error taxonomy shared by every collaborator
// of the synchronizer: what is recoverable internally, and what escalates
// to the orchestrator as fatal.
package syncerr

import "errors"

var (
	// ErrSnapshotUnavailable covers every reason the snapshot service can't
	// be used right now: empty URL, DNS failure, non-2xx, or timeout. The
	// resolver treats all of these identically — fall back to the cache.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")

	// ErrCacheCorrupt is returned by cache.DeserializeStore when stored
	// bytes fail to deserialize. Callers treat this exactly like an empty
	// cache.
	ErrCacheCorrupt = errors.New("persistent cache corrupt")

	// ErrCancelled names the cooperative-cancellation outcome. No package
	// in this module returns it: collaborators return ctx.Err(), and the
	// orchestrator treats a cancelled context as clean shutdown.
	ErrCancelled = errors.New("sync cancelled")
)

// FatalSyncError is an unrecoverable failure that terminates the
// orchestrator: an exhausted range-fetch retry budget, or the live stream
// ending without the possibility of reconnection. It is surfaced to
// whoever is consuming the orchestrator's output stream.
type FatalSyncError struct {
	Op  string
	Err error
}

func (e *FatalSyncError) Error() string {
	return "fatal sync error during " + e.Op + ": " + e.Err.Error()
}

func (e *FatalSyncError) Unwrap() error {
	return e.Err
}

// TransientFetchError wraps a retryable RPC failure (timeout, 5xx,
// connection reset) encountered by a BlockRangeFetcher. The retry policy
// owns deciding when enough is enough; once it gives up, the last
// TransientFetchError is what gets wrapped into a FatalSyncError.
type TransientFetchError struct {
	Err error
}

func (e *TransientFetchError) Error() string {
	return "transient fetch error: " + e.Err.Error()
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}
