// atomic.go: Reader/writer-lock guarded value wrapper
//
// Every read of an AtomicValue holds its lock in shared mode and every write
// holds it exclusively, so no reader ever observes a partially written value.
// Each Load and each Store is atomic on its own; a Load followed by a Store
// is not. Use Update (or the helpers built on it) for read-modify-write.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

// AtomicValue guards a value of any type with an RWLock it owns.
type AtomicValue[T any] struct {
	lock  RWLock
	value T
}

// NewAtomicValue wraps v. Construction is not synchronized: do not share
// the wrapper with other goroutines before NewAtomicValue returns.
func NewAtomicValue[T any](v T) *AtomicValue[T] {
	return &AtomicValue[T]{value: v}
}

// Load returns a copy of the current value.
func (a *AtomicValue[T]) Load() T {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.value
}

// Store replaces the value and returns the value just stored.
func (a *AtomicValue[T]) Store(v T) T {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.value = v
	return a.value
}

// Swap replaces the value and returns the previous one.
func (a *AtomicValue[T]) Swap(v T) T {
	a.lock.Lock()
	defer a.lock.Unlock()
	old := a.value
	a.value = v
	return old
}

// Update applies fn to the current value under the exclusive lock and
// stores its result, which is also returned. fn must not touch a.
func (a *AtomicValue[T]) Update(fn func(T) T) T {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.value = fn(a.value)
	return a.value
}

// CompareAndSwap stores next when the current value equals old.
func CompareAndSwap[T comparable](a *AtomicValue[T], old, next T) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.value != old {
		return false
	}
	a.value = next
	return true
}

// Number is the set of types AtomicValue arithmetic helpers accept.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// Convert reads a and converts the value to U with Go's numeric conversion
// rules (truncating or widening as needed).
func Convert[U, T Number](a *AtomicValue[T]) U {
	return U(a.Load())
}

// PostIncrement adds one and returns the value held before.
func PostIncrement[T Number](a *AtomicValue[T]) T {
	a.lock.Lock()
	defer a.lock.Unlock()
	old := a.value
	a.value++
	return old
}

// PostDecrement subtracts one and returns the value held before.
func PostDecrement[T Number](a *AtomicValue[T]) T {
	a.lock.Lock()
	defer a.lock.Unlock()
	old := a.value
	a.value--
	return old
}

// PostSet sets a false flag to true and returns the previous value.
func PostSet(a *AtomicValue[bool]) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	old := a.value
	a.value = true
	return old
}

// PostClear sets a true flag to false and returns the previous value.
func PostClear(a *AtomicValue[bool]) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	old := a.value
	a.value = false
	return old
}

// Named instantiations for the common scalar types.
type (
	AtomicInt8   = AtomicValue[int8]
	AtomicUint8  = AtomicValue[uint8]
	AtomicInt16  = AtomicValue[int16]
	AtomicUint16 = AtomicValue[uint16]
	AtomicInt32  = AtomicValue[int32]
	AtomicUint32 = AtomicValue[uint32]
	AtomicInt64  = AtomicValue[int64]
	AtomicUint64 = AtomicValue[uint64]
	AtomicInt    = AtomicValue[int]
	AtomicSize   = AtomicValue[uintptr]
	AtomicBool   = AtomicValue[bool]
)
