// Package talos provides platform utilities for Go services: a growable
// generic array with in-place sorting, exclusive and reentrant locks that
// report misuse, a reader-writer lock with scoped guards, and a lock-guarded
// atomic value wrapper. Around them sit the collaborators a daemon needs on
// day one: a leveled diagnostic logger with text, JSONL and SQLite sinks, an
// INI profile with a defaults table and flag overrides, a doubly linked
// list, a listener registry and file system helpers.
//
// # Arrays
//
// Array[T] keeps its elements contiguous and grows by doubling. Operations
// that can fail report it through their result rather than panicking:
//
//	arr := talos.NewArray[int](0)
//	arr.Append(3)
//	arr.Prepend(1)
//	arr.InsertAt(1, 2)       // [1 2 3]
//	arr.RemoveRange(0, 2)    // [3]
//	arr.Sort(func(a, b int) int { return a - b })
//
// Sort is an in-place quicksort driven by an explicit work stack. It is not
// stable and its stack depth stays logarithmic on any input.
//
// # Locks
//
// ExclusiveLock and ReentrantLock are distinct types, so the policy is part
// of the type. Both satisfy sync.Locker and the Lock interface, and both
// hand out guards for scoped release:
//
//	var mu talos.ReentrantLock
//	defer mu.Acquire().Release()
//
// A second Lock by the goroutine that already holds an ExclusiveLock is
// reported with code TALOS_LOCK_DOUBLE_ACQUIRE and refused instead of
// deadlocking. Releasing a lock the caller does not hold is reported as
// TALOS_LOCK_NOT_HELD. Reports go to a MisuseHandler when configured and to
// the default Logger otherwise.
//
// Building with -tags lockdebug replaces the underlying mutexes with
// go-deadlock ones, which add lock-order and timeout detection.
//
// # Atomic values
//
// AtomicValue[T] serializes every access through an RWLock, so readers
// never observe a torn value. Update runs a read-modify-write in one
// exclusive section. PostIncrement, PostDecrement, PostSet and PostClear
// return the value held before the change.
//
// # Logging
//
// Logger writes one line per entry:
//
//	WW 20250101 12:00:00 [PID 42:TID 07] publisher.go 52 talos.(*Publisher).AddListener() Listener is already added
//
// Warning, error and fatal entries are written immediately. Debug and trace
// entries are batched. A LoggerConfig.OutputFile ending in .db or .sqlite
// persists entries in SQLite, where LogStore can query them later.
//
// # Profiles
//
// Profile reads an INI file against a table of known parameters:
//
//	profile, err := talos.NewProfile("/etc/ivdcm/profile.ini")
//	if err != nil {
//		return err
//	}
//	port, fromFile := profile.ReadInt(talos.ParamProxyServerPort)
//
// ProfileFlags turns every parameter into a --Section-Param flag and a
// TALOS_SECTION_PARAM environment variable.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package talos
