// publisher.go: Listener registry with reentrant notification
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

// Publisher keeps a set of listeners and delivers notifications to them.
// The registry is guarded by a ReentrantLock, so listeners may add or remove
// listeners (themselves included) while being notified. Changes made during
// a notification take effect from the next one.
type Publisher[L comparable] struct {
	lock      ReentrantLock
	listeners *Array[L]
	logger    *Logger
}

// NewPublisher creates an empty publisher. A nil logger selects
// DefaultLogger for its warnings.
func NewPublisher[L comparable](logger *Logger) *Publisher[L] {
	p := &Publisher[L]{
		listeners: NewArray[L](0),
		logger:    logger,
	}
	p.lock.core.name = "publisher"
	p.lock.core.logger = logger
	return p
}

func (p *Publisher[L]) log() *Logger {
	if p.logger != nil {
		return p.logger
	}
	return DefaultLogger()
}

func sameListener[L comparable](a, b L) bool { return a == b }

// AddListener registers l. Adding a listener twice is a no-op reported at
// WW level.
func (p *Publisher[L]) AddListener(l L) bool {
	defer p.lock.Acquire().Release()

	if p.listeners.IndexOf(sameListener[L], l) >= 0 {
		p.log().Warningf("Listener is already added")
		return false
	}
	if !p.listeners.Append(l) {
		p.log().Errorf("Unable to add listener")
		return false
	}
	p.log().Debugf("AddListener")
	return true
}

// RemoveListener unregisters l, reporting at WW level when it was not
// registered.
func (p *Publisher[L]) RemoveListener(l L) bool {
	defer p.lock.Acquire().Release()

	i := p.listeners.IndexOf(sameListener[L], l)
	if i < 0 {
		p.log().Warningf("Unable to remove listener")
		return false
	}
	p.listeners.RemoveAt(i)
	p.log().Debugf("Remove listener")
	return true
}

// Len returns the number of registered listeners.
func (p *Publisher[L]) Len() int {
	defer p.lock.Acquire().Release()
	return p.listeners.Len()
}

// Listeners returns a snapshot of the registered listeners.
func (p *Publisher[L]) Listeners() []L {
	defer p.lock.Acquire().Release()
	return p.listeners.Values()
}

// WithListeners runs fn with the registry locked. fn may call back into the
// publisher from the same goroutine.
func (p *Publisher[L]) WithListeners(fn func(listeners []L)) {
	defer p.lock.Acquire().Release()
	fn(p.listeners.Values())
}

// Notify calls fn for every listener registered when Notify started, in
// registration order.
func (p *Publisher[L]) Notify(fn func(L)) {
	p.WithListeners(func(listeners []L) {
		for _, l := range listeners {
			fn(l)
		}
	})
}
