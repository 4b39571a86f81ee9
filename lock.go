// lock.go: Exclusive and reentrant mutual-exclusion locks with misuse detection
//
// Both lock types remember which goroutine holds them and how deep. That
// bookkeeping lets them report discipline violations instead of failing
// silently:
//
//   - a second Lock by the owner of an ExclusiveLock is reported and refused
//     before it can deadlock the goroutine
//   - Unlock by a goroutine that does not hold the lock is reported and ignored
//   - Destroy while the lock is held is reported
//
// Reports are coded go-errors values. They go to the MisuseHandler when one
// is configured, otherwise to the lock's Logger (or DefaultLogger) at EE level.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"sync"
	"sync/atomic"

	"github.com/agilira/go-errors"
	"github.com/petermattis/goid"
)

// Lock is the behaviour shared by ExclusiveLock and ReentrantLock.
type Lock interface {
	sync.Locker

	// TryLock acquires the lock without blocking and reports success.
	TryLock() bool

	// Acquire blocks until the lock is held and returns a guard releasing it.
	Acquire() *Guard

	// TryAcquire is the non-blocking form of Acquire.
	TryAcquire() (*Guard, bool)

	// HoldCount is the current nesting depth of the owner, 0 when free.
	HoldCount() int

	// Reentrant reports the policy fixed at construction.
	Reentrant() bool

	// Destroy retires the lock. Later acquisitions are reported and refused.
	Destroy()
}

// MisuseHandler receives lock discipline violations.
type MisuseHandler func(err error)

// LockOption configures a lock at construction.
type LockOption func(*lockCore)

// WithLockName names the lock in misuse reports.
func WithLockName(name string) LockOption {
	return func(c *lockCore) { c.name = name }
}

// WithLockLogger sends misuse reports to logger instead of DefaultLogger.
func WithLockLogger(logger *Logger) LockOption {
	return func(c *lockCore) { c.logger = logger }
}

// WithMisuseHandler routes misuse reports to h instead of a logger.
func WithMisuseHandler(h MisuseHandler) LockOption {
	return func(c *lockCore) { c.onMisuse = h }
}

// NewLock returns a reentrant or exclusive lock depending on reentrant.
func NewLock(reentrant bool, opts ...LockOption) Lock {
	if reentrant {
		return NewReentrantLock(opts...)
	}
	return NewExclusiveLock(opts...)
}

// Guard releases a lock once. A guard returned for a refused acquisition is
// inert: Held reports false and Release does nothing.
type Guard struct {
	locker sync.Locker
}

// Release unlocks the guarded lock. Calling it again is a no-op.
func (g *Guard) Release() {
	if g == nil || g.locker == nil {
		return
	}
	l := g.locker
	g.locker = nil
	l.Unlock()
}

// Held reports whether the guard still owns its lock.
func (g *Guard) Held() bool {
	return g != nil && g.locker != nil
}

// lockCore holds the state common to both lock types. Only the owning
// goroutine ever stores its own id in owner, so comparing owner with the
// caller's id is reliable without holding mu.
type lockCore struct {
	mu        internalMutex
	owner     atomic.Int64
	holds     atomic.Int32
	destroyed atomic.Bool
	misuses   atomic.Uint64

	name     string
	logger   *Logger
	onMisuse MisuseHandler
}

func (c *lockCore) apply(opts []LockOption) {
	for _, opt := range opts {
		opt(c)
	}
}

// lock is called directly by the exported methods; report depths rely on it.
func (c *lockCore) lock(reentrant bool) bool {
	if c.destroyed.Load() {
		c.report(3, ErrCodeLockDestroyed, "acquiring a destroyed lock")
		return false
	}

	id := goid.Get()
	if c.owner.Load() == id {
		if !reentrant {
			c.report(3, ErrCodeLockDoubleAcquire, "locking an already taken non-reentrant lock")
			return false
		}
		c.holds.Add(1)
		return true
	}

	c.mu.Lock()
	c.owner.Store(id)
	c.holds.Store(1)
	return true
}

func (c *lockCore) tryLock(reentrant bool) bool {
	if c.destroyed.Load() {
		c.report(3, ErrCodeLockDestroyed, "acquiring a destroyed lock")
		return false
	}

	id := goid.Get()
	if c.owner.Load() == id {
		if !reentrant {
			return false
		}
		c.holds.Add(1)
		return true
	}

	if !c.mu.TryLock() {
		return false
	}
	c.owner.Store(id)
	c.holds.Store(1)
	return true
}

func (c *lockCore) unlock() {
	if c.owner.Load() != goid.Get() || c.holds.Load() <= 0 {
		c.report(3, ErrCodeLockNotHeld, "unlocking a lock that is not held")
		return
	}
	if c.holds.Add(-1) > 0 {
		return
	}
	c.owner.Store(0)
	c.mu.Unlock()
}

func (c *lockCore) destroy() {
	if c.holds.Load() > 0 {
		c.report(3, ErrCodeLockDestroyHeld, "destroying a lock that is still held")
	}
	c.destroyed.Store(true)
}

// report delivers a misuse. skip is the number of frames between report and
// the user code that misused the lock.
func (c *lockCore) report(skip int, code errors.ErrorCode, msg string) {
	c.misuses.Add(1)

	err := errors.New(code, msg).
		WithContext("lock", c.name).
		WithContext("goroutine", goid.Get()).
		WithContext("hold_count", c.holds.Load())

	if c.onMisuse != nil {
		c.onMisuse(err)
		return
	}

	logger := c.logger
	if logger == nil {
		logger = DefaultLogger()
	}
	logger.logErrorDepth(skip+2, LevelError, err)
}

// ExclusiveLock is a non-reentrant lock. The zero value is an unlocked lock.
type ExclusiveLock struct {
	core lockCore
}

// NewExclusiveLock creates an unlocked non-reentrant lock.
func NewExclusiveLock(opts ...LockOption) *ExclusiveLock {
	l := &ExclusiveLock{}
	l.core.apply(opts)
	return l
}

// Lock blocks until the lock is acquired. When the calling goroutine
// already holds it the call is reported as misuse and returns immediately
// without acquiring.
func (l *ExclusiveLock) Lock() { l.core.lock(false) }

// Unlock releases the lock.
func (l *ExclusiveLock) Unlock() { l.core.unlock() }

// TryLock acquires the lock if it is free. It returns false when any
// goroutine, the caller included, holds it.
func (l *ExclusiveLock) TryLock() bool { return l.core.tryLock(false) }

// Acquire locks and returns a guard:
//
//	defer l.Acquire().Release()
func (l *ExclusiveLock) Acquire() *Guard {
	if !l.core.lock(false) {
		return &Guard{}
	}
	return &Guard{locker: l}
}

// TryAcquire is the non-blocking form of Acquire.
func (l *ExclusiveLock) TryAcquire() (*Guard, bool) {
	if !l.core.tryLock(false) {
		return &Guard{}, false
	}
	return &Guard{locker: l}, true
}

// HoldCount returns 1 while the lock is held and 0 otherwise.
func (l *ExclusiveLock) HoldCount() int { return int(l.core.holds.Load()) }

// Reentrant always returns false.
func (l *ExclusiveLock) Reentrant() bool { return false }

// Destroy retires the lock, reporting if it is still held.
func (l *ExclusiveLock) Destroy() { l.core.destroy() }

// Misuses returns how many violations the lock has reported.
func (l *ExclusiveLock) Misuses() uint64 { return l.core.misuses.Load() }

// ReentrantLock may be acquired repeatedly by the goroutine holding it. Each
// Lock must be matched by an Unlock. The zero value is an unlocked lock.
type ReentrantLock struct {
	core lockCore
}

// NewReentrantLock creates an unlocked reentrant lock.
func NewReentrantLock(opts ...LockOption) *ReentrantLock {
	l := &ReentrantLock{}
	l.core.apply(opts)
	return l
}

// Lock blocks until the lock is acquired or nests one level deeper when
// the caller already holds it.
func (l *ReentrantLock) Lock() { l.core.lock(true) }

// Unlock releases one nesting level.
func (l *ReentrantLock) Unlock() { l.core.unlock() }

// TryLock acquires the lock if it is free or held by the caller.
func (l *ReentrantLock) TryLock() bool { return l.core.tryLock(true) }

// Acquire locks and returns a guard releasing one nesting level.
func (l *ReentrantLock) Acquire() *Guard {
	if !l.core.lock(true) {
		return &Guard{}
	}
	return &Guard{locker: l}
}

// TryAcquire is the non-blocking form of Acquire.
func (l *ReentrantLock) TryAcquire() (*Guard, bool) {
	if !l.core.tryLock(true) {
		return &Guard{}, false
	}
	return &Guard{locker: l}, true
}

// HoldCount returns the owner's nesting depth.
func (l *ReentrantLock) HoldCount() int { return int(l.core.holds.Load()) }

// Reentrant always returns true.
func (l *ReentrantLock) Reentrant() bool { return true }

// Destroy retires the lock, reporting if it is still held.
func (l *ReentrantLock) Destroy() { l.core.destroy() }

// Misuses returns how many violations the lock has reported.
func (l *ReentrantLock) Misuses() uint64 { return l.core.misuses.Load() }
