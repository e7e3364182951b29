// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"context"
	"image"

	"github.com/google/uuid"
)

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// Track is one independently stoppable media source.
type Track interface {
	ID() string
	Kind() TrackKind
	Label() string
	// Stop releases the underlying device. Calling it again is a no-op and
	// does not fire ended listeners.
	Stop()
	Stopped() bool
	// OnEnded fires when the source ends on its own (device unplugged, share
	// revoked from the browser chrome), never because of Stop.
	OnEnded(fn func()) (off func())
}

// AudioFrame is one block of mono float32 samples in [-1, 1].
type AudioFrame struct {
	Samples    []float32
	SampleRate int
}

type AudioTrack interface {
	Track
	SampleRate() int
	// OnFrame delivers frames in capture order.
	OnFrame(fn func(AudioFrame)) (off func())
}

type VideoTrack interface {
	Track
	// ReadFrame returns the most recent frame, ErrFrameNotReady before the
	// first one and ErrInvalidState once the track is stopped.
	ReadFrame() (image.Image, error)
}

// MediaStream is an ordered set of tracks. It never owns them: stopping is
// the job of whoever acquired them.
type MediaStream struct {
	id     string
	tracks []Track
}

func NewMediaStream(tracks ...Track) *MediaStream {
	return &MediaStream{id: uuid.NewString(), tracks: append([]Track(nil), tracks...)}
}

func (s *MediaStream) ID() string {
	return s.id
}

func (s *MediaStream) Tracks() []Track {
	if s == nil {
		return nil
	}
	return append([]Track(nil), s.tracks...)
}

func (s *MediaStream) AudioTracks() []AudioTrack {
	if s == nil {
		return nil
	}
	out := make([]AudioTrack, 0, len(s.tracks))
	for _, t := range s.tracks {
		if at, ok := t.(AudioTrack); ok && t.Kind() == TrackKindAudio {
			out = append(out, at)
		}
	}
	return out
}

func (s *MediaStream) VideoTracks() []VideoTrack {
	if s == nil {
		return nil
	}
	out := make([]VideoTrack, 0, len(s.tracks))
	for _, t := range s.tracks {
		if vt, ok := t.(VideoTrack); ok && t.Kind() == TrackKindVideo {
			out = append(out, vt)
		}
	}
	return out
}

// Constraints selects what GetUserMedia should acquire.
type Constraints struct {
	Audio bool
	Video bool
}

// MediaDevices is the platform capture surface.
type MediaDevices interface {
	// GetDisplayMedia acquires screen video plus its own audio if available.
	GetDisplayMedia(ctx context.Context) (*MediaStream, error)
	GetUserMedia(ctx context.Context, constraints Constraints) (*MediaStream, error)
}

// AudioOutput is a speaker-like sink for played audio.
type AudioOutput interface {
	Write(frame AudioFrame) error
}
