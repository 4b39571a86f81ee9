// list.go: Generic doubly linked list
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

// Element is a node of a List.
type Element[T any] struct {
	Value T

	next, prev *Element[T]
	list       *List[T]
}

// Next returns the following element or nil.
func (e *Element[T]) Next() *Element[T] { return e.next }

// Prev returns the preceding element or nil.
func (e *Element[T]) Prev() *Element[T] { return e.prev }

// List is a doubly linked list. The zero value is an empty list ready to use.
//
// To iterate over a list l:
//
//	for e := l.Front(); e != nil; e = e.Next() {
//		// use e.Value
//	}
type List[T any] struct {
	head, tail *Element[T]
	length     int
}

// NewList returns an empty list.
func NewList[T any]() *List[T] {
	return &List[T]{}
}

// Len returns the number of elements.
func (l *List[T]) Len() int { return l.length }

// Front returns the first element or nil.
func (l *List[T]) Front() *Element[T] { return l.head }

// Back returns the last element or nil.
func (l *List[T]) Back() *Element[T] { return l.tail }

// PushFront inserts v at the front of the list.
func (l *List[T]) PushFront(v T) *Element[T] {
	e := &Element[T]{Value: v, list: l}
	l.linkBefore(e, l.head)
	return e
}

// PushBack inserts v at the back of the list.
func (l *List[T]) PushBack(v T) *Element[T] {
	e := &Element[T]{Value: v, list: l}
	l.linkBefore(e, nil)
	return e
}

// InsertBefore inserts v immediately before mark. It returns nil when mark
// does not belong to l.
func (l *List[T]) InsertBefore(v T, mark *Element[T]) *Element[T] {
	if mark == nil || mark.list != l {
		return nil
	}
	e := &Element[T]{Value: v, list: l}
	l.linkBefore(e, mark)
	return e
}

// InsertAfter inserts v immediately after mark. It returns nil when mark
// does not belong to l.
func (l *List[T]) InsertAfter(v T, mark *Element[T]) *Element[T] {
	if mark == nil || mark.list != l {
		return nil
	}
	e := &Element[T]{Value: v, list: l}
	l.linkBefore(e, mark.next)
	return e
}

// linkBefore links e in front of at, or at the tail when at is nil.
func (l *List[T]) linkBefore(e, at *Element[T]) {
	if at == nil {
		e.prev = l.tail
		e.next = nil
		if l.tail != nil {
			l.tail.next = e
		} else {
			l.head = e
		}
		l.tail = e
	} else {
		e.next = at
		e.prev = at.prev
		if at.prev != nil {
			at.prev.next = e
		} else {
			l.head = e
		}
		at.prev = e
	}
	l.length++
}

// Remove unlinks e from l and returns its value. It reports false when e
// does not belong to l.
func (l *List[T]) Remove(e *Element[T]) (T, bool) {
	if e == nil || e.list != l {
		var zero T
		return zero, false
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.next, e.prev, e.list = nil, nil, nil
	l.length--
	return e.Value, true
}

// Find returns the first element whose value equals v, or nil.
func (l *List[T]) Find(eq EqualFunc[T], v T) *Element[T] {
	for e := l.head; e != nil; e = e.next {
		if eq(e.Value, v) {
			return e
		}
	}
	return nil
}

// RemoveValue removes the first element whose value equals v.
func (l *List[T]) RemoveValue(eq EqualFunc[T], v T) bool {
	_, ok := l.Remove(l.Find(eq, v))
	return ok
}

// Nth returns the element at position i, or nil when i is out of range.
func (l *List[T]) Nth(i int) *Element[T] {
	if i < 0 || i >= l.length {
		return nil
	}
	if i < l.length/2 {
		e := l.head
		for ; i > 0; i-- {
			e = e.next
		}
		return e
	}
	e := l.tail
	for i = l.length - 1 - i; i > 0; i-- {
		e = e.prev
	}
	return e
}

// Each calls fn for every value from front to back until fn returns false.
func (l *List[T]) Each(fn func(v T) bool) {
	for e := l.head; e != nil; e = e.next {
		if !fn(e.Value) {
			return
		}
	}
}

// Values returns the values from front to back.
func (l *List[T]) Values() []T {
	out := make([]T, 0, l.length)
	for e := l.head; e != nil; e = e.next {
		out = append(out, e.Value)
	}
	return out
}

// Sort orders the list with a stable merge sort. Elements are relinked, not
// copied, so outstanding *Element values stay valid.
func (l *List[T]) Sort(cmp CompareFunc[T]) {
	if l.length < 2 {
		return
	}
	head := mergeSort(l.head, l.length, cmp)

	var prev *Element[T]
	for e := head; e != nil; e = e.next {
		e.prev = prev
		prev = e
	}
	l.head, l.tail = head, prev
}

// mergeSort sorts the n forward-linked nodes starting at head and returns
// the new head. Only next pointers are maintained.
func mergeSort[T any](head *Element[T], n int, cmp CompareFunc[T]) *Element[T] {
	if n < 2 {
		if head != nil {
			head.next = nil
		}
		return head
	}
	half := n / 2
	mid := head
	for i := 0; i < half; i++ {
		mid = mid.next
	}
	left := mergeSort(head, half, cmp)
	right := mergeSort(mid, n-half, cmp)

	var dummy Element[T]
	tail := &dummy
	for left != nil && right != nil {
		// Ties take from the left run to keep the sort stable.
		if cmp(right.Value, left.Value) < 0 {
			tail.next, right = right, right.next
		} else {
			tail.next, left = left, left.next
		}
		tail = tail.next
	}
	if left != nil {
		tail.next = left
	} else {
		tail.next = right
	}
	return dummy.next
}
