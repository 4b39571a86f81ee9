// mutex_deadlock.go: Deadlock-detecting mutexes for -tags=lockdebug builds
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

//go:build lockdebug

package talos

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// LockDebugEnabled reports whether the deadlock detector is compiled in.
const LockDebugEnabled = true

func init() {
	deadlock.Opts.DeadlockTimeout = 30 * time.Second
}

type internalMutex struct {
	deadlock.Mutex
}

type internalRWMutex struct {
	deadlock.RWMutex
}
