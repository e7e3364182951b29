// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_media

import (
	"sync"

	"github.com/google/uuid"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
)

// baseTrack carries the lifecycle shared by every local track.
type baseTrack struct {
	id    string
	kind  internal_type.TrackKind
	label string

	mu      sync.Mutex
	stopped bool
	ended   internal_type.Emitter[struct{}]
}

func (t *baseTrack) init(kind internal_type.TrackKind, label string) {
	t.id = uuid.NewString()
	t.kind = kind
	t.label = label
}

func (t *baseTrack) ID() string {
	return t.id
}

func (t *baseTrack) Kind() internal_type.TrackKind {
	return t.kind
}

func (t *baseTrack) Label() string {
	return t.label
}

func (t *baseTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *baseTrack) OnEnded(fn func()) (off func()) {
	return t.ended.On(func(struct{}) { fn() })
}

// markStopped reports whether this call performed the transition.
func (t *baseTrack) markStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Stop releases the track without notifying ended listeners.
func (t *baseTrack) Stop() {
	t.markStopped()
}

// End simulates the source going away: the track stops and ended listeners
// fire once.
func (t *baseTrack) End() {
	if t.markStopped() {
		t.ended.Emit(struct{}{})
	}
}
