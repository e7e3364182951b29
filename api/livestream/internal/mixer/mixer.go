// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_mixer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	internal_audio "github.com/kairoscomputer/api/livestream/internal/audio"
	internal_recorder "github.com/kairoscomputer/api/livestream/internal/recorder"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/utils"
)

type Option func(*Mixer)

// WithRecorderFactory replaces the default Matroska/Ogg recorder choice.
// A nil factory disables recording.
func WithRecorderFactory(factory internal_type.MediaRecorderFactory) Option {
	return func(m *Mixer) { m.recorderFactory = factory }
}

// WithBlobRegistry shares the registry that owns the finished recording's
// URL.
func WithBlobRegistry(registry *internal_type.BlobRegistry) Option {
	return func(m *Mixer) { m.blobs = registry }
}

// Mixer captures the screen, mixes every audio source into one track and
// records the result.
type Mixer struct {
	logger          commons.Logger
	devices         internal_type.MediaDevices
	blobs           *internal_type.BlobRegistry
	recorderFactory internal_type.MediaRecorderFactory

	mu        sync.Mutex
	streaming bool
	cancel    context.CancelFunc
	graph     *internal_audio.Graph
	dest      *internal_audio.DestinationNode
	display   *internal_type.MediaStream
	mic       *internal_type.MediaStream
	composite *internal_type.MediaStream
	recorder  internal_type.MediaRecorder
	endedOffs []func()

	chunkMu sync.Mutex
	chunks  [][]byte

	stopped internal_type.Emitter[Recording]
}

// Recording is what a finished session leaves behind. URL and Blob are empty
// when nothing was recorded.
type Recording struct {
	URL  string
	Blob *internal_type.Blob
}

func NewMixer(logger commons.Logger, devices internal_type.MediaDevices, opts ...Option) *Mixer {
	m := &Mixer{
		logger:          logger,
		devices:         devices,
		blobs:           internal_type.NewBlobRegistry(),
		recorderFactory: internal_recorder.Factory(logger),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnStop fires exactly once per session, whichever path stopped it.
func (m *Mixer) OnStop(fn func(blobURL string, blob *internal_type.Blob)) (off func()) {
	return m.stopped.On(func(r Recording) { fn(r.URL, r.Blob) })
}

func (m *Mixer) BlobRegistry() *internal_type.BlobRegistry {
	return m.blobs
}

func (m *Mixer) IsStreaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaming
}

// Stream is the composite stream of the running session, nil otherwise.
func (m *Mixer) Stream() *internal_type.MediaStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.composite
}

// Start acquires the display (required) and the microphone (best effort),
// mixes them together with remoteAudio and starts recording. A denied display
// returns ErrCaptureDenied with nothing acquired.
func (m *Mixer) Start(ctx context.Context, remoteAudio *internal_type.MediaStream) (*internal_type.MediaStream, error) {
	m.mu.Lock()
	if m.streaming {
		m.mu.Unlock()
		return nil, internal_type.ErrSessionActive
	}
	m.mu.Unlock()

	display, err := m.devices.GetDisplayMedia(ctx)
	if err != nil {
		if !errors.Is(err, internal_type.ErrCaptureDenied) {
			err = fmt.Errorf("%w: %v", internal_type.ErrCaptureDenied, err)
		}
		return nil, err
	}

	mic, err := m.devices.GetUserMedia(ctx, internal_type.Constraints{Audio: true})
	if err != nil {
		m.logger.Warnw("microphone unavailable, continuing without it", "error", err)
		mic = nil
	}

	graph := internal_audio.NewGraph(m.logger, internal_audio.MixConfig)
	dest, err := graph.CreateMediaStreamDestination()
	if err != nil {
		graph.Close()
		stopTracks(display, mic)
		return nil, err
	}
	sources := 0
	for _, s := range []*internal_type.MediaStream{display, mic, remoteAudio} {
		sources += connectAudio(graph, dest, s)
	}

	tracks := make([]internal_type.Track, 0, 2)
	for _, vt := range display.VideoTracks() {
		tracks = append(tracks, vt)
	}
	tracks = append(tracks, dest.Track())
	composite := internal_type.NewMediaStream(tracks...)

	renderCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	dest.Start(renderCtx)

	m.mu.Lock()
	m.streaming = true
	m.cancel = cancel
	m.graph = graph
	m.dest = dest
	m.display = display
	m.mic = mic
	m.composite = composite
	m.mu.Unlock()

	m.chunkMu.Lock()
	m.chunks = nil
	m.chunkMu.Unlock()

	// ended listeners go on every acquired track, so any of them going away
	// takes the same path as an explicit stop
	var offs []func()
	for _, s := range []*internal_type.MediaStream{display, mic} {
		for _, t := range s.Tracks() {
			track := t
			offs = append(offs, track.OnEnded(func() {
				m.logger.Infow("capture track ended", "track", track.ID(), "kind", string(track.Kind()))
				if err := m.Stop(); err != nil {
					m.logger.Errorw("stop after track ended failed", "error", err)
				}
			}))
		}
	}
	m.mu.Lock()
	m.endedOffs = offs
	m.mu.Unlock()

	m.startRecording(composite)

	m.logger.Infow("screen capture started",
		"stream", composite.ID(),
		"video", len(display.VideoTracks()),
		"audio_sources", sources,
		"microphone", mic != nil)
	return composite, nil
}

// ConnectSource mixes a stream that became available after Start.
func (m *Mixer) ConnectSource(stream *internal_type.MediaStream) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.streaming {
		return 0
	}
	return connectAudio(m.graph, m.dest, stream)
}

func (m *Mixer) startRecording(composite *internal_type.MediaStream) {
	if m.recorderFactory == nil {
		return
	}
	rec, err := m.recorderFactory(composite)
	if err != nil {
		m.logger.Warnw("unable to create recorder, session will not be recorded", "error", err)
		return
	}
	if err := rec.Start(composite, m.appendChunk); err != nil {
		m.logger.Warnw("unable to start recorder, session will not be recorded", "error", err)
		return
	}
	m.mu.Lock()
	m.recorder = rec
	m.mu.Unlock()
}

func (m *Mixer) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	m.chunkMu.Lock()
	m.chunks = append(m.chunks, chunk)
	m.chunkMu.Unlock()
}

// Stop releases every track exactly once, finalizes the recording and fires
// OnStop. Calling it when not streaming is a no-op.
func (m *Mixer) Stop() error {
	m.mu.Lock()
	if !m.streaming {
		m.mu.Unlock()
		return nil
	}
	m.streaming = false
	cancel, graph := m.cancel, m.graph
	display, mic, composite := m.display, m.mic, m.composite
	rec, offs := m.recorder, m.endedOffs
	m.cancel, m.graph, m.dest = nil, nil, nil
	m.display, m.mic, m.composite = nil, nil, nil
	m.recorder, m.endedOffs = nil, nil
	m.mu.Unlock()

	for _, off := range offs {
		off()
	}

	var errs []error
	if rec != nil {
		if err := utils.Recover(rec.Stop); err != nil {
			errs = append(errs, fmt.Errorf("recorder: %w", err))
		}
	}
	stopTracks(composite, display, mic)
	cancel()
	graph.Close()

	recording := Recording{}
	if rec != nil {
		m.chunkMu.Lock()
		blob := internal_type.NewBlob(m.chunks, rec.MimeType())
		m.chunks = nil
		m.chunkMu.Unlock()
		recording.Blob = blob
		recording.URL = m.blobs.CreateObjectURL(blob)
	}

	m.logger.Infow("screen capture stopped", "recording_bytes", recording.Blob.Size())
	m.stopped.Emit(recording)
	return errors.Join(errs...)
}

func connectAudio(graph *internal_audio.Graph, dest *internal_audio.DestinationNode, stream *internal_type.MediaStream) int {
	n := 0
	for _, t := range stream.AudioTracks() {
		src, err := graph.CreateMediaStreamSource(t)
		if err != nil {
			continue
		}
		src.Connect(dest)
		n++
	}
	return n
}

func stopTracks(streams ...*internal_type.MediaStream) {
	for _, s := range streams {
		for _, t := range s.Tracks() {
			t.Stop()
		}
	}
}
