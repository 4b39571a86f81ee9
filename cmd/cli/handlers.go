// Command handlers for the talos CLI
//
// This file contains the command handler implementations for the
// Orpheus-powered CLI.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/agilira/talos"
	clihelp "github.com/agilira/talos/internal/cli"
)

// handleProfileGet resolves one parameter and prints value and source.
func (m *Manager) handleProfileGet(ctx *orpheus.Context) error {
	filePath := positionalArg(ctx, 0)
	param := positionalArg(ctx, 1)
	if param == "" {
		return errors.New(talos.ErrCodeInvalidArgument, "usage: talos profile get <file> <param>")
	}

	profile, err := m.loadProfile(filePath)
	if err != nil {
		return err
	}

	value, source, ok := profile.Lookup(param)
	if !ok {
		return errors.New(talos.ErrCodeProfileNoDefault, fmt.Sprintf("unknown parameter '%s'", param))
	}

	_, _ = fmt.Fprintf(m.out, "%s.%s = %s (%s)\n", profile.Defaults()[param].Section, param, value, source)
	return nil
}

// handleProfileList prints every known parameter with its resolved value.
func (m *Manager) handleProfileList(ctx *orpheus.Context) error {
	filePath := positionalArg(ctx, 0)
	section := ctx.GetFlagString("section")

	profile, err := m.loadProfile(filePath)
	if err != nil {
		return err
	}

	defaults := profile.Defaults()
	for _, param := range defaults.Names() {
		def := defaults[param]
		if section != "" && def.Section != section {
			continue
		}
		value, source, _ := profile.Lookup(param)
		_, _ = fmt.Fprintf(m.out, "%-22s %-32s %-8s %s\n", def.Section, param, source, value)
	}
	return nil
}

// handleProfileExport prints the resolved profile as INI or YAML.
func (m *Manager) handleProfileExport(ctx *orpheus.Context) error {
	filePath := positionalArg(ctx, 0)
	format, err := clihelp.ParseFormat(ctx.GetFlagString("format"))
	if err != nil {
		return err
	}

	profile, err := m.loadProfile(filePath)
	if err != nil {
		return err
	}

	if format == clihelp.FormatYAML {
		return profile.WriteYAML(m.out)
	}
	return profile.WriteINI(m.out)
}

// handleProfileWatch polls the profile and reports every reload.
func (m *Manager) handleProfileWatch(ctx *orpheus.Context) error {
	filePath := positionalArg(ctx, 0)
	interval, err := time.ParseDuration(ctx.GetFlagString("interval"))
	if err != nil || interval <= 0 {
		return errors.New(talos.ErrCodeInvalidArgument, fmt.Sprintf("invalid interval: %s", ctx.GetFlagString("interval")))
	}

	profile, err := m.loadProfile(filePath)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(m.out, "Watching %s (interval: %v)\n", profile.Path(), interval)
	_, _ = fmt.Fprintln(m.out, "Press Ctrl+C to stop...")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		changed, err := profile.Reload()
		if err != nil {
			_, _ = fmt.Fprintf(m.out, "Reload failed: %v\n", err)
			continue
		}
		if changed {
			_, _ = fmt.Fprintf(m.out, "Profile reloaded: %d sections\n", len(profile.Sections()))
		}
	}
	return nil
}

// handleLogQuery prints stored entries in the text log format.
func (m *Manager) handleLogQuery(ctx *orpheus.Context) error {
	level, err := clihelp.ParseLevelFilter(ctx.GetFlagString("level"))
	if err != nil {
		return err
	}
	since, err := clihelp.ParseSince(ctx.GetFlagString("since"))
	if err != nil {
		return err
	}

	store, err := m.openLogStore(positionalArg(ctx, 0))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	query := talos.LogQuery{
		MinLevel:  level,
		Component: ctx.GetFlagString("component"),
		Limit:     ctx.GetFlagInt("limit"),
	}
	if since > 0 {
		query.Since = time.Now().Add(-since)
	}

	entries, err := store.Query(query)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		_, _ = fmt.Fprint(m.out, entry.Format())
	}
	return nil
}

// handleLogStats prints entry counts per level and component.
func (m *Manager) handleLogStats(ctx *orpheus.Context) error {
	store, err := m.openLogStore(positionalArg(ctx, 0))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(m.out, "Entries: %d\n", stats.TotalEntries)
	_, _ = fmt.Fprintf(m.out, "Schema version: %d\n", stats.SchemaVersion)
	_, _ = fmt.Fprintf(m.out, "Size: %d bytes\n", stats.SizeBytes)
	if stats.OldestEntry != nil && stats.NewestEntry != nil {
		_, _ = fmt.Fprintf(m.out, "Oldest: %s\n", stats.OldestEntry.Format(time.RFC3339))
		_, _ = fmt.Fprintf(m.out, "Newest: %s\n", stats.NewestEntry.Format(time.RFC3339))
	}
	printCounts(m, "Level", stats.EntriesByLevel)
	printCounts(m, "Component", stats.EntriesByComponent)
	return nil
}

// handleFSStat prints what the file system helpers know about a path.
func (m *Manager) handleFSStat(ctx *orpheus.Context) error {
	path := positionalArg(ctx, 0)
	if err := talos.ValidatePath(path); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(m.out, "Path: %s\n", path)
	_, _ = fmt.Fprintf(m.out, "Exists: %v\n", talos.FileExists(path))
	_, _ = fmt.Fprintf(m.out, "Directory: %v\n", talos.IsDirectory(path))
	_, _ = fmt.Fprintf(m.out, "Size: %d\n", talos.FileSize(path))
	_, _ = fmt.Fprintf(m.out, "Readable: %v\n", talos.IsReadingAllowed(path))
	_, _ = fmt.Fprintf(m.out, "Writable: %v\n", talos.IsWritingAllowed(path))
	return nil
}

// handleFSList prints directory entries, sorted.
func (m *Manager) handleFSList(ctx *orpheus.Context) error {
	dir := positionalArg(ctx, 0)
	if dir == "" {
		dir = "."
	}
	if err := talos.ValidatePath(dir); err != nil {
		return err
	}
	if !talos.DirectoryExists(dir) {
		return errors.New(talos.ErrCodeIOError, fmt.Sprintf("not a directory: %s", dir))
	}

	names := talos.NewArray[string](0)
	for _, name := range talos.ListFiles(dir) {
		names.Append(name)
	}
	names.Sort(compareStrings)
	names.Each(func(_ int, name string) bool {
		_, _ = fmt.Fprintln(m.out, name)
		return true
	})
	return nil
}

// handleArraySort sorts its integer arguments with talos.Array.
func (m *Manager) handleArraySort(ctx *orpheus.Context) error {
	numbers, err := clihelp.ParseNumbers(positionalArgs(ctx))
	if err != nil {
		return err
	}

	arr := talos.NewArray[int](len(numbers))
	for _, n := range numbers {
		arr.Append(n)
	}
	if ctx.GetFlagBool("reverse") {
		arr.Sort(func(a, b int) int { return compareInts(b, a) })
	} else {
		arr.Sort(compareInts)
	}

	_, _ = fmt.Fprintln(m.out, arr.Values())
	return nil
}

// handleBench runs goroutines that contend on a ReentrantLock and an
// AtomicValue and reports the combined throughput.
func (m *Manager) handleBench(ctx *orpheus.Context) error {
	goroutines := ctx.GetFlagInt("goroutines")
	iterations := ctx.GetFlagInt("iterations")
	if goroutines <= 0 || iterations <= 0 {
		return errors.New(talos.ErrCodeInvalidArgument, "goroutines and iterations must be positive")
	}

	_, _ = fmt.Fprintf(m.out, "Running contention benchmark (%d goroutines x %d iterations)...\n", goroutines, iterations)

	result := runBench(goroutines, iterations)

	_, _ = fmt.Fprintf(m.out, "Lock:   %d ops in %v (%.0f ops/s)\n", result.ops, result.lockTime, opsPerSecond(result.ops, result.lockTime))
	_, _ = fmt.Fprintf(m.out, "Atomic: %d ops in %v (%.0f ops/s)\n", result.ops, result.atomicTime, opsPerSecond(result.ops, result.atomicTime))
	if result.counter != int64(result.ops) || result.atomic != int64(result.ops) {
		return errors.New(talos.ErrCodeInvalidArgument,
			fmt.Sprintf("lost updates: lock %d, atomic %d, expected %d", result.counter, result.atomic, result.ops))
	}
	return nil
}

type benchResult struct {
	ops        int
	lockTime   time.Duration
	atomicTime time.Duration
	counter    int64
	atomic     int64
}

func runBench(goroutines, iterations int) benchResult {
	var (
		lock    talos.ReentrantLock
		counter int64
		wg      sync.WaitGroup
	)

	start := time.Now()
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				lock.Lock()
				lock.Lock()
				counter++
				lock.Unlock()
				lock.Unlock()
			}
		}()
	}
	wg.Wait()
	lockTime := time.Since(start)

	value := talos.NewAtomicValue[int64](0)
	start = time.Now()
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				talos.PostIncrement(value)
			}
		}()
	}
	wg.Wait()

	return benchResult{
		ops:        goroutines * iterations,
		lockTime:   lockTime,
		atomicTime: time.Since(start),
		counter:    counter,
		atomic:     value.Load(),
	}
}

// handleInfo displays build and runtime information.
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	_, _ = fmt.Fprintf(m.out, "talos platform utilities\n")
	_, _ = fmt.Fprintf(m.out, "Version: %s\n", Version)
	_, _ = fmt.Fprintf(m.out, "Lock debugging: %v\n", talos.LockDebugEnabled)

	if ctx.GetFlagBool("verbose") {
		_, _ = fmt.Fprintf(m.out, "\nRuntime Details:\n")
		_, _ = fmt.Fprintf(m.out, "Go version: %s\n", runtime.Version())
		_, _ = fmt.Fprintf(m.out, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		_, _ = fmt.Fprintf(m.out, "CPUs: %d\n", runtime.NumCPU())
		_, _ = fmt.Fprintf(m.out, "Profile parameters: %d\n", len(talos.DefaultProfileTable()))
		_, _ = fmt.Fprintf(m.out, "Environment prefix: %s\n", m.envPrefix)
	}
	return nil
}
