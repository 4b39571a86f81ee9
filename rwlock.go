// rwlock.go: Reader/writer lock with scoped guards
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

// RWLock allows many concurrent readers or a single writer. Arbitration is
// the runtime's: it is not FIFO fair, but a blocked writer keeps new readers
// out so writers are not starved by a steady stream of readers.
type RWLock struct {
	mu internalRWMutex
}

// RLock acquires the lock in shared mode.
func (l *RWLock) RLock() { l.mu.RLock() }

// RUnlock releases one shared hold.
func (l *RWLock) RUnlock() { l.mu.RUnlock() }

// Lock acquires the lock in exclusive mode.
func (l *RWLock) Lock() { l.mu.Lock() }

// Unlock releases the exclusive hold.
func (l *RWLock) Unlock() { l.mu.Unlock() }

// ReadGuard acquires a shared hold released by the returned guard.
func (l *RWLock) ReadGuard() *Guard {
	l.mu.RLock()
	return &Guard{locker: (*readLocker)(l)}
}

// WriteGuard acquires the exclusive hold released by the returned guard.
func (l *RWLock) WriteGuard() *Guard {
	l.mu.Lock()
	return &Guard{locker: l}
}

// readLocker adapts the shared side of an RWLock to sync.Locker.
type readLocker RWLock

func (r *readLocker) Lock()   { (*RWLock)(r).RLock() }
func (r *readLocker) Unlock() { (*RWLock)(r).RUnlock() }
