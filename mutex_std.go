// mutex_std.go: Plain runtime mutexes behind the talos locks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

//go:build !lockdebug

package talos

import "sync"

// LockDebugEnabled reports whether the deadlock detector is compiled in.
const LockDebugEnabled = false

type internalMutex struct {
	sync.Mutex
}

type internalRWMutex struct {
	sync.RWMutex
}
