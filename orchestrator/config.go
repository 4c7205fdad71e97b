package orchestrator

import "code.chainsync.io/sync/config/encoding"

// Config is the orchestrator package's slice of the synchronizer's config.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`

	// InitialBlockNumber is the floor the resolver never seeds earlier
	// than, regardless of what the cache or snapshot report.
	InitialBlockNumber uint64 `long:"initial-block-number"`

	// LiveBufferHighWaterMark logs once the live-event buffer accumulated
	// during the initial phase reaches this depth. Zero disables the
	// warning; the buffer itself is never bounded, so an update is never
	// silently dropped.
	LiveBufferHighWaterMark int `long:"live-buffer-high-water-mark"`

	// OutputBufferSize sizes the channel the orchestrator emits updates
	// on. It only smooths scheduling; it has no effect on correctness.
	OutputBufferSize int `long:"output-buffer-size"`
}

func NewDefaultConfig() Config {
	return Config{
		LiveBufferHighWaterMark: 10000,
		OutputBufferSize:        256,
	}
}
