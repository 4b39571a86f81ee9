// Utility functions for the talos CLI
//
// This file provides helpers shared by the handlers: profile and log store
// loading, comparators and output formatting.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/agilira/talos"
)

// positionalArgs returns the arguments left after flag parsing, so flags may
// appear before, between or after them.
func positionalArgs(ctx *orpheus.Context) []string {
	if ctx.Flags == nil {
		return ctx.Args
	}
	return ctx.Flags.Args()
}

func positionalArg(ctx *orpheus.Context, index int) string {
	args := positionalArgs(ctx)
	if index < 0 || index >= len(args) {
		return ""
	}
	return args[index]
}

// loadProfile opens a profile and applies environment overrides.
func (m *Manager) loadProfile(filePath string) (*talos.Profile, error) {
	if filePath == "" {
		return nil, errors.New(talos.ErrCodeInvalidArgument, "profile file required")
	}

	var opts []talos.ProfileOption
	if m.logger != nil {
		opts = append(opts, talos.WithProfileLogger(m.logger))
	}
	profile, err := talos.NewProfile(filePath, opts...)
	if err != nil {
		return nil, err
	}

	if m.envPrefix != "" {
		flags := talos.NewProfileFlags("talos", m.envPrefix, profile)
		if err := flags.Parse(nil); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

func printCounts(m *Manager, title string, counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(m.out, "%s %s: %d\n", title, k, counts[k])
	}
}

func (m *Manager) openLogStore(path string) (*talos.LogStore, error) {
	if path == "" {
		return nil, errors.New(talos.ErrCodeInvalidArgument, "log database required")
	}
	if !talos.FileExists(path) {
		return nil, errors.New(talos.ErrCodeIOError, fmt.Sprintf("log database does not exist: %s", path))
	}
	return talos.OpenLogStore(path)
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func opsPerSecond(ops int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(ops) / d.Seconds()
}
