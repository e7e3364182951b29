// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_media

import (
	"context"
	"fmt"
	"sync"

	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
)

// Devices is a MediaDevices backed by local tracks. Each acquisition hands
// out fresh tracks so that stopping one session never affects the next.
type Devices struct {
	mu sync.Mutex

	DisplayErr    error
	MicrophoneErr error
	// DisplayAudio adds a system-audio track to the display stream.
	DisplayAudio bool
	SampleRate   int

	displays []*internal_type.MediaStream
	mics     []*LocalAudioTrack
}

func NewDevices(sampleRate int) *Devices {
	return &Devices{SampleRate: sampleRate, DisplayAudio: true}
}

func (d *Devices) GetDisplayMedia(ctx context.Context) (*internal_type.MediaStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.DisplayErr != nil {
		return nil, fmt.Errorf("%w: %v", internal_type.ErrCaptureDenied, d.DisplayErr)
	}
	tracks := []internal_type.Track{NewLocalVideoTrack("screen")}
	if d.DisplayAudio {
		tracks = append(tracks, NewLocalAudioTrack("screen-audio", d.SampleRate))
	}
	s := internal_type.NewMediaStream(tracks...)
	d.displays = append(d.displays, s)
	return s, nil
}

func (d *Devices) GetUserMedia(ctx context.Context, c internal_type.Constraints) (*internal_type.MediaStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Audio {
		return nil, fmt.Errorf("%w: only audio constraints are supported", internal_type.ErrCaptureDenied)
	}
	if d.MicrophoneErr != nil {
		return nil, fmt.Errorf("%w: %v", internal_type.ErrCaptureDenied, d.MicrophoneErr)
	}
	mic := NewLocalAudioTrack("microphone", d.SampleRate)
	d.mics = append(d.mics, mic)
	return internal_type.NewMediaStream(mic), nil
}

// LastDisplay returns the most recently acquired display stream.
func (d *Devices) LastDisplay() *internal_type.MediaStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.displays) == 0 {
		return nil
	}
	return d.displays[len(d.displays)-1]
}

// Microphones returns every microphone track handed out so far.
func (d *Devices) Microphones() []*LocalAudioTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*LocalAudioTrack(nil), d.mics...)
}

// AllStopped reports whether every track ever handed out has been released.
func (d *Devices) AllStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.displays {
		for _, t := range s.Tracks() {
			if !t.Stopped() {
				return false
			}
		}
	}
	for _, m := range d.mics {
		if !m.Stopped() {
			return false
		}
	}
	return true
}
