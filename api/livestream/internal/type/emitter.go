// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "sync"

// Emitter is a typed, ordered, synchronous fan-out for one kind of event.
// Handlers run on the emitting goroutine in subscription order. The zero
// value is ready to use.
type Emitter[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []emitterHandler[T]
}

type emitterHandler[T any] struct {
	id uint64
	fn func(T)
}

// On subscribes fn and returns a function that removes it. Removing twice is
// a no-op.
func (e *Emitter[T]) On(fn func(T)) (off func()) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, emitterHandler[T]{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, h := range e.handlers {
				if h.id == id {
					e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit delivers v to a snapshot of the current subscribers, so handlers may
// subscribe or unsubscribe while being called.
func (e *Emitter[T]) Emit(v T) {
	e.mu.RLock()
	snapshot := make([]emitterHandler[T], len(e.handlers))
	copy(snapshot, e.handlers)
	e.mu.RUnlock()

	for _, h := range snapshot {
		h.fn(v)
	}
}

func (e *Emitter[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// Clear drops every subscriber.
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	e.handlers = nil
	e.mu.Unlock()
}
