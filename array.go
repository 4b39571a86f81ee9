// array.go: Generic resizable array with positional insert/remove and in-place sort
//
// Array keeps its occupied slots as a contiguous prefix of a backing slice
// whose length is the array capacity. Growth doubles the capacity, removal
// never shrinks it. The array is not synchronized: wrap it in a lock when
// several goroutines mutate the same instance (see Publisher).
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import "math"

// DefaultArrayCapacity is the capacity used when NewArray receives a
// non-positive hint.
const DefaultArrayCapacity = 16

// EqualFunc reports whether two elements are equal.
type EqualFunc[T any] func(a, b T) bool

// CompareFunc is a three-way comparator: negative when a < b, zero when
// a == b and positive when a > b.
type CompareFunc[T any] func(a, b T) int

// Array is a generic resizable sequence. The array owns its backing storage
// but not whatever the stored values refer to.
type Array[T any] struct {
	slots     []T // len(slots) is the capacity
	length    int
	destroyed bool
}

// NewArray creates an empty array with room for capacityHint elements.
// A hint <= 0 selects DefaultArrayCapacity. It returns nil when the backing
// storage cannot be allocated.
func NewArray[T any](capacityHint int) *Array[T] {
	if capacityHint <= 0 {
		capacityHint = DefaultArrayCapacity
	}
	slots, ok := allocSlots[T](capacityHint)
	if !ok {
		return nil
	}
	return &Array[T]{slots: slots}
}

// allocSlots turns an impossible allocation request into a failure result
// instead of a runtime panic.
func allocSlots[T any](n int) (slots []T, ok bool) {
	defer func() {
		if recover() != nil {
			slots, ok = nil, false
		}
	}()
	return make([]T, n), true
}

// Len returns the number of occupied slots.
func (a *Array[T]) Len() int {
	if a == nil {
		return 0
	}
	return a.length
}

// Cap returns the number of allocated slots.
func (a *Array[T]) Cap() int {
	if a == nil {
		return 0
	}
	return len(a.slots)
}

// At returns the element at index i.
func (a *Array[T]) At(i int) (T, bool) {
	var zero T
	if a == nil || i < 0 || i >= a.length {
		return zero, false
	}
	return a.slots[i], true
}

// Set replaces the element at index i.
func (a *Array[T]) Set(i int, v T) bool {
	if a == nil || i < 0 || i >= a.length {
		return false
	}
	a.slots[i] = v
	return true
}

// InsertAt stores v at index, shifting the elements at [index, Len()) one
// slot to the right. It fails without touching the array when index is out
// of [0, Len()] or when the storage cannot grow.
func (a *Array[T]) InsertAt(index int, v T) bool {
	if a == nil || a.destroyed || index < 0 || index > a.length {
		return false
	}
	if a.length+1 > len(a.slots) && !a.grow(a.length+1) {
		return false
	}

	copy(a.slots[index+1:a.length+1], a.slots[index:a.length])
	a.slots[index] = v
	a.length++
	return true
}

// Append stores v after the last element.
func (a *Array[T]) Append(v T) bool {
	return a.InsertAt(a.Len(), v)
}

// Prepend stores v before the first element.
func (a *Array[T]) Prepend(v T) bool {
	return a.InsertAt(0, v)
}

// grow doubles the capacity until it holds need slots. The old storage is
// only replaced once the new one has been obtained.
func (a *Array[T]) grow(need int) bool {
	newCap := len(a.slots)
	if newCap == 0 {
		newCap = DefaultArrayCapacity
	}
	for newCap < need {
		if newCap > math.MaxInt/2 {
			return false
		}
		newCap *= 2
	}

	slots, ok := allocSlots[T](newCap)
	if !ok {
		return false
	}
	copy(slots, a.slots[:a.length])
	a.slots = slots
	return true
}

// RemoveRange deletes count elements starting at index and closes the gap.
// An invalid range leaves the array untouched and returns false. Capacity
// is never reduced.
func (a *Array[T]) RemoveRange(index, count int) bool {
	if a == nil || index < 0 || count < 0 || index > a.length || count > a.length-index {
		return false
	}
	if count == 0 {
		return true
	}

	copy(a.slots[index:], a.slots[index+count:a.length])
	clear(a.slots[a.length-count : a.length])
	a.length -= count
	return true
}

// RemoveAt deletes the element at index.
func (a *Array[T]) RemoveAt(index int) bool {
	return a.RemoveRange(index, 1)
}

// IndexOf returns the smallest index whose element equals v according to eq,
// or -1 when there is none.
func (a *Array[T]) IndexOf(eq EqualFunc[T], v T) int {
	if a == nil || eq == nil {
		return -1
	}
	for i := 0; i < a.length; i++ {
		if eq(a.slots[i], v) {
			return i
		}
	}
	return -1
}

// Clear empties the array and keeps its storage.
func (a *Array[T]) Clear() {
	if a == nil {
		return
	}
	clear(a.slots[:a.length])
	a.length = 0
}

// Destroy releases the backing storage. Values previously stored are left
// to the caller. Any later insertion fails.
func (a *Array[T]) Destroy() {
	if a == nil {
		return
	}
	a.slots = nil
	a.length = 0
	a.destroyed = true
}

// Values returns a copy of the occupied slots in order.
func (a *Array[T]) Values() []T {
	if a == nil {
		return nil
	}
	out := make([]T, a.length)
	copy(out, a.slots[:a.length])
	return out
}

// Each calls fn for every element in order until fn returns false.
func (a *Array[T]) Each(fn func(i int, v T) bool) {
	if a == nil {
		return
	}
	for i := 0; i < a.length; i++ {
		if !fn(i, a.slots[i]) {
			return
		}
	}
}

// sortSpan is an inclusive range of slots still waiting to be partitioned.
type sortSpan struct {
	lo, hi int
}

// Sort orders the elements in place with a quicksort that partitions around
// the last element of each range. Equal elements may be reordered.
//
// Pending ranges live on an explicit stack and the smaller side of every
// partition is handled first, so the stack never holds more than about
// log2(Len()) ranges whatever the input order.
func (a *Array[T]) Sort(cmp CompareFunc[T]) {
	if a == nil || cmp == nil || a.length < 2 {
		return
	}

	s := a.slots[:a.length]
	stack := []sortSpan{{0, len(s) - 1}}
	for len(stack) > 0 {
		span := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		lo, hi := span.lo, span.hi
		for lo < hi {
			p := partition(s, lo, hi, cmp)
			if p-lo < hi-p {
				stack = append(stack, sortSpan{p + 1, hi})
				hi = p - 1
			} else {
				stack = append(stack, sortSpan{lo, p - 1})
				lo = p + 1
			}
		}
	}
}

// partition moves every element strictly less than s[hi] in front of it and
// returns the final pivot position.
func partition[T any](s []T, lo, hi int, cmp CompareFunc[T]) int {
	pivot := s[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if cmp(s[j], pivot) < 0 {
			s[i], s[j] = s[j], s[i]
			i++
		}
	}
	s[i], s[hi] = s[hi], s[i]
	return i
}
