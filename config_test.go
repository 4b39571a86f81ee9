// config_test.go: Testing logger configuration defaults and validation
//
// Copyright (c) 2025 AGILira
// Series: AGILira System Libraries
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoggerConfigWithDefaults(t *testing.T) {
	config := LoggerConfig{MinLevel: Level(99)}
	cfg := config.WithDefaults()

	if cfg.Component != "talos" {
		t.Errorf("Component = %q, want talos", cfg.Component)
	}
	if cfg.BufferSize != 256 {
		t.Errorf("BufferSize = %d, want 256", cfg.BufferSize)
	}
	if cfg.MinLevel != LevelDebug {
		t.Errorf("MinLevel = %v, want DD", cfg.MinLevel)
	}
	if config.Component != "" {
		t.Error("WithDefaults modified the receiver")
	}

	custom := LoggerConfig{Component: "lock", BufferSize: 8, MinLevel: LevelError}
	if cfg := custom.WithDefaults(); cfg.Component != "lock" || cfg.BufferSize != 8 || cfg.MinLevel != LevelError {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
}

func TestLoggerConfigValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	writeTestFile(t, file, "")

	tests := []struct {
		name     string
		mutate   func(*LoggerConfig)
		wantCode string
	}{
		{"defaults", func(*LoggerConfig) {}, ""},
		{"negative_buffer", func(c *LoggerConfig) { c.BufferSize = -1 }, ErrCodeInvalidBufferSize},
		{"negative_flush", func(c *LoggerConfig) { c.FlushInterval = -time.Second }, ErrCodeInvalidFlush},
		{"unknown_level", func(c *LoggerConfig) { c.MinLevel = Level(9) }, ErrCodeInvalidLogConfig},
		{"traversal_output", func(c *LoggerConfig) { c.OutputFile = "../talos.log" }, ErrCodeInvalidLogConfig},
		{"parent_not_directory", func(c *LoggerConfig) { c.OutputFile = filepath.Join(file, "talos.log") }, ErrCodeInvalidLogConfig},
		{"valid_output", func(c *LoggerConfig) { c.OutputFile = filepath.Join(dir, "talos.db") }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultLoggerConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if ErrorCode(err) != tt.wantCode {
				t.Errorf("Validate() = %v, want code %s", err, tt.wantCode)
			}
		})
	}

	bad := DefaultLoggerConfig()
	bad.BufferSize = -5
	if _, err := NewLogger(bad); ErrorCode(err) != ErrCodeInvalidBufferSize {
		t.Errorf("NewLogger with an invalid config = %v", err)
	}
}
