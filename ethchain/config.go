package ethchain

import (
	"time"

	"code.chainsync.io/sync/config/encoding"
	"code.chainsync.io/sync/logging"
)

const (
	// RangeFetchMaxRetries bounds the backoff retry policy for a single
	// BlockRangeFetcher.Fetch call before it escalates to a fatal error.
	RangeFetchMaxRetries = 5

	defaultRetryBase = 100 * time.Millisecond
	defaultRetryCap  = 30 * time.Second
)

// Config is the ethchain package's slice of the synchronizer's config.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`

	// RetryBase and RetryCap tune the exponential backoff used by
	// BlockRangeFetcher when the RPC endpoint returns a transient error.
	RetryBase encoding.Duration `long:"range-fetch-retry-base"`
	RetryCap  encoding.Duration `long:"range-fetch-retry-cap"`
}

func NewDefaultConfig() Config {
	return Config{
		Level:     encoding.LogLevel{Level: logging.InfoLevel},
		RetryBase: encoding.Duration{Duration: defaultRetryBase},
		RetryCap:  encoding.Duration{Duration: defaultRetryCap},
	}
}
