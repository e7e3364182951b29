// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_media

import (
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
)

// LocalAudioTrack is an in-process audio track. Whatever writes frames into
// it (a device driver binding, a mixer, a test) plays the role of the
// hardware source.
type LocalAudioTrack struct {
	baseTrack
	sampleRate int
	frames     internal_type.Emitter[internal_type.AudioFrame]
}

func NewLocalAudioTrack(label string, sampleRate int) *LocalAudioTrack {
	t := &LocalAudioTrack{sampleRate: sampleRate}
	t.init(internal_type.TrackKindAudio, label)
	return t
}

func (t *LocalAudioTrack) SampleRate() int {
	return t.sampleRate
}

func (t *LocalAudioTrack) OnFrame(fn func(internal_type.AudioFrame)) (off func()) {
	return t.frames.On(fn)
}

// WriteFrame delivers samples to subscribers. Frames written after Stop are
// dropped.
func (t *LocalAudioTrack) WriteFrame(samples []float32) bool {
	if t.Stopped() {
		return false
	}
	t.frames.Emit(internal_type.AudioFrame{Samples: samples, SampleRate: t.sampleRate})
	return true
}
