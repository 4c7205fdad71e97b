// Package encoding provides wrapper types so config values that are not
// natively representable in TOML (durations, log levels) can still be
// read from a config file and overridden by a CLI flag.
package encoding

import (
	"time"

	"code.chainsync.io/sync/logging"
)

// Duration wraps time.Duration so it can be expressed as a string such as
// "100ms" in TOML or on the command line.
type Duration struct {
	time.Duration
}

func (d *Duration) Get() time.Duration {
	return d.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d *Duration) UnmarshalFlag(s string) error {
	return d.UnmarshalText([]byte(s))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LogLevel wraps logging.Level for the same reason.
type LogLevel struct {
	logging.Level
}

func (l *LogLevel) Get() logging.Level {
	return l.Level
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	var err error
	l.Level, err = logging.ParseLevel(string(text))
	return err
}

func (l *LogLevel) UnmarshalFlag(s string) error {
	return l.UnmarshalText([]byte(s))
}

func (l LogLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
