// config.go: Logger configuration with defaults and validation
//
// Copyright (c) 2025 AGILira
// Series: AGILira System Libraries
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/agilira/go-errors"
)

// LoggerConfig configures a Logger.
type LoggerConfig struct {
	// Enabled turns the logger on. A disabled logger drops every entry.
	Enabled bool

	// MinLevel filters debug, warning, error and fatal entries by severity.
	// Default: LevelDebug (everything)
	MinLevel Level

	// TraceEnabled lets TR entries through (Trace, Tracef).
	TraceEnabled bool

	// Console receives every entry as a formatted text line. Nil disables it.
	Console io.Writer

	// OutputFile selects a persistent sink by extension:
	//   .jsonl        one JSON object per line
	//   .db, .sqlite  SQLite database (falls back to JSONL next to it)
	//   anything else formatted text lines
	// Empty disables file output.
	OutputFile string

	// Component tags every entry. Default: "talos"
	Component string

	// BufferSize is the number of debug/trace entries kept before a flush.
	// Warning, error and fatal entries are always written immediately.
	// Default: 256
	BufferSize int

	// FlushInterval drives the background flush. Zero disables the
	// background goroutine.
	FlushInterval time.Duration

	// OnFatal is called after a fatal entry has been written and flushed.
	// The logger never exits the process on its own.
	OnFatal func(Entry)
}

// DefaultLoggerConfig returns a console logger writing to stderr.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Enabled:       true,
		MinLevel:      LevelDebug,
		Console:       os.Stderr,
		Component:     "talos",
		BufferSize:    256,
		FlushInterval: time.Second,
	}
}

// WithDefaults applies sensible defaults to the configuration
func (c *LoggerConfig) WithDefaults() *LoggerConfig {
	config := *c

	if config.Component == "" {
		config.Component = "talos"
	}

	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}

	// Keep unknown levels from silently disabling the logger
	if !config.MinLevel.valid() {
		config.MinLevel = LevelDebug
	}

	return &config
}

// Validate checks the configuration and returns a coded error describing
// the first problem found.
func (c *LoggerConfig) Validate() error {
	if c.BufferSize < 0 {
		return errors.New(ErrCodeInvalidBufferSize,
			fmt.Sprintf("buffer size cannot be negative: %d", c.BufferSize))
	}

	if c.FlushInterval < 0 {
		return errors.New(ErrCodeInvalidFlush,
			fmt.Sprintf("flush interval cannot be negative: %s", c.FlushInterval))
	}

	if !c.MinLevel.valid() {
		return errors.New(ErrCodeInvalidLogConfig,
			fmt.Sprintf("unknown minimum level: %d", int(c.MinLevel)))
	}

	if c.OutputFile != "" {
		if err := ValidatePath(c.OutputFile); err != nil {
			return errors.Wrap(err, ErrCodeInvalidLogConfig, "invalid output file").
				WithContext("output_file", c.OutputFile)
		}
		dir := filepath.Dir(c.OutputFile)
		if dir != "." && FileExists(dir) && !IsDirectory(dir) {
			return errors.New(ErrCodeInvalidLogConfig, "output file parent is not a directory").
				WithContext("output_file", c.OutputFile)
		}
	}

	return nil
}
