// Copyright (C) 2024 ChainSync contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// Package logging wraps zap so every package in this module names and
// levels its logger the same way.
package logging

import (
	"fmt"
	"math/big"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging priority, matching zapcore's internal numbering so
// the conversion to/from zapcore.Level is a cast rather than a table.
type Level int8

const (
	DebugLevel Level = -1
	InfoLevel  Level = 0
	WarnLevel  Level = 1
	ErrorLevel Level = 2
	PanicLevel Level = 4
	FatalLevel Level = 5
)

func (l Level) String() string {
	return zapcore.Level(l).String()
}

// ParseLevel parses a level name as found in a config file or CLI flag.
func ParseLevel(s string) (Level, error) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return Level(zl), nil
}

// Logger is a named, leveled wrapper around *zap.Logger.
type Logger struct {
	*zap.Logger
	config *zap.Config
	name   string
}

// New builds a Logger writing JSON to stdout at the given level.
func New(level Level) *Logger {
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.Level(level)),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "@timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := cfg.Build()
	if err != nil {
		// Building a production zap.Config with valid paths never fails in
		// practice; a panic here means a programming error in the config above.
		panic(err)
	}
	return &Logger{Logger: built, config: &cfg}
}

// NewDevelopment builds a human-readable console logger, for local runs.
func NewDevelopment() *Logger {
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.Level(DebugLevel)),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	built, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: built, config: &cfg}
}

func (log *Logger) clone() *Logger {
	newCfg := *log.config
	newCfg.InitialFields = make(map[string]interface{}, len(log.config.InitialFields))
	for k, v := range log.config.InitialFields {
		newCfg.InitialFields[k] = v
	}
	built, err := newCfg.Build()
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: built, config: &newCfg, name: log.name}
}

// Named returns a child logger whose name is dotted onto the parent's.
func (log *Logger) Named(name string) *Logger {
	c := log.clone()
	newName := name
	if log.name != "" {
		newName = log.name + "." + name
	}
	return &Logger{
		Logger: c.Logger.Named(newName),
		config: c.config,
		name:   newName,
	}
}

func (log *Logger) With(fields ...zap.Field) *Logger {
	c := log.clone()
	return &Logger{Logger: c.Logger.With(fields...), config: c.config, name: log.name}
}

func (log *Logger) GetLevel() Level {
	return Level(log.config.Level.Level())
}

func (log *Logger) SetLevel(level Level) {
	log.config.Level.SetLevel(zapcore.Level(level))
}

func (log *Logger) IsDebug() bool {
	return log.config.Level.Level() <= zapcore.Level(DebugLevel)
}

// AtExit flushes buffered log entries. Call with defer right after New.
func (log *Logger) AtExit() {
	if log.Logger != nil {
		_ = log.Logger.Sync()
	}
}

// badger.Logger adapters: badger wants Errorf/Warningf/Infof/Debugf.

func (log *Logger) Errorf(s string, args ...interface{}) {
	log.Logger.Sugar().Errorf(s, args...)
}

func (log *Logger) Warningf(s string, args ...interface{}) {
	log.Logger.Sugar().Warnf(s, args...)
}

func (log *Logger) Infof(s string, args ...interface{}) {
	log.Logger.Sugar().Infof(s, args...)
}

func (log *Logger) Debugf(s string, args ...interface{}) {
	log.Logger.Sugar().Debugf(s, args...)
}

// Field constructors, thin wrappers over zap's so call sites don't import
// zap directly.

func String(k, v string) zap.Field    { return zap.String(k, v) }
func Int(k string, v int) zap.Field   { return zap.Int(k, v) }
func Uint64(k string, v uint64) zap.Field {
	return zap.Uint64(k, v)
}
func Bool(k string, v bool) zap.Field    { return zap.Bool(k, v) }
func Error(err error) zap.Field          { return zap.Error(err) }
func Duration(k, v string) zap.Field     { return zap.String(k, v) }
func Int64(k string, v int64) zap.Field  { return zap.Int64(k, v) }
func Strings(k string, v []string) zap.Field {
	return zap.Strings(k, v)
}
func Reflect(k string, v interface{}) zap.Field { return zap.Any(k, v) }

// Uint64Hex renders a block number as both decimal and 0x-hex, useful when
// cross-referencing against an explorer.
func Uint64Hex(k string, v uint64) zap.Field {
	return zap.String(k, strconv.FormatUint(v, 10)+" (0x"+strconv.FormatUint(v, 16)+")")
}

// BigInt renders an arbitrary-precision integer, such as a FilterQuery
// block bound, via its decimal string form.
func BigInt(k string, v *big.Int) zap.Field {
	return zap.String(k, v.String())
}

// EthereumAddress renders any address-like value (common.Address and
// similar Stringer types) via its String method, so this package doesn't
// need to import go-ethereum to log one.
func EthereumAddress(k string, v fmt.Stringer) zap.Field {
	return zap.String(k, v.String())
}
