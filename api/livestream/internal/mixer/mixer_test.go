// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_mixer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
	internal_media "github.com/kairoscomputer/api/livestream/internal/media"
	internal_recorder "github.com/kairoscomputer/api/livestream/internal/recorder"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu       sync.Mutex
	ondata   func([]byte)
	stream   *internal_type.MediaStream
	stops    int
	tail     []byte
	startErr error
}

func (r *fakeRecorder) MimeType() string { return "video/mp4" }

func (r *fakeRecorder) Start(stream *internal_type.MediaStream, ondata func([]byte)) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stream = stream
	r.ondata = ondata
	return nil
}

func (r *fakeRecorder) Emit(b []byte) {
	r.mu.Lock()
	fn := r.ondata
	r.mu.Unlock()
	fn(b)
}

func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	r.stops++
	tail, fn := r.tail, r.ondata
	r.mu.Unlock()
	if tail != nil {
		fn(tail)
	}
	return nil
}

type stopEvent struct {
	url  string
	blob *internal_type.Blob
}

func newTestMixer(t *testing.T, devices *internal_media.Devices, rec *fakeRecorder) (*Mixer, *[]stopEvent) {
	t.Helper()
	m := NewMixer(commons.NewNopLogger(), devices, WithRecorderFactory(func(*internal_type.MediaStream) (internal_type.MediaRecorder, error) {
		return rec, nil
	}))
	events := &[]stopEvent{}
	m.OnStop(func(url string, blob *internal_type.Blob) {
		*events = append(*events, stopEvent{url, blob})
	})
	t.Cleanup(func() { _ = m.Stop() })
	return m, events
}

func TestMixer_DisplayDeniedLeavesNothingBehind(t *testing.T) {
	devices := internal_media.NewDevices(48000)
	devices.DisplayErr = errors.New("NotAllowedError: permission denied")
	m, events := newTestMixer(t, devices, &fakeRecorder{})

	stream, err := m.Start(context.Background(), nil)
	assert.ErrorIs(t, err, internal_type.ErrCaptureDenied)
	assert.Nil(t, stream)
	assert.False(t, m.IsStreaming())
	assert.Empty(t, devices.Microphones(), "microphone is never requested")

	require.NoError(t, m.Stop())
	assert.Empty(t, *events)
}

func TestMixer_MicrophoneFailureIsNotFatal(t *testing.T) {
	devices := internal_media.NewDevices(48000)
	devices.MicrophoneErr = errors.New("NotFoundError")
	m, _ := newTestMixer(t, devices, &fakeRecorder{})

	stream, err := m.Start(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, m.IsStreaming())
	assert.Len(t, stream.VideoTracks(), 1)
	assert.Len(t, stream.AudioTracks(), 1)
	assert.Same(t, stream, m.Stream())
}

func TestMixer_MixesEverySourceIntoOneTrack(t *testing.T) {
	devices := internal_media.NewDevices(48000)
	m, _ := newTestMixer(t, devices, &fakeRecorder{})
	remote := internal_type.NewMediaStream(internal_media.NewLocalAudioTrack("ai", 24000))

	stream, err := m.Start(context.Background(), remote)
	require.NoError(t, err)
	require.Len(t, stream.AudioTracks(), 1)
	assert.Equal(t, 3, m.dest.Inputs(), "display audio, microphone and remote audio")

	late := internal_type.NewMediaStream(internal_media.NewLocalAudioTrack("late", 16000))
	assert.Equal(t, 1, m.ConnectSource(late))
	assert.Equal(t, 0, m.ConnectSource(internal_type.NewMediaStream(internal_media.NewLocalVideoTrack("v"))))
	assert.Equal(t, 4, m.dest.Inputs())
}

func TestMixer_ToleratesNoAudioSources(t *testing.T) {
	devices := internal_media.NewDevices(48000)
	devices.DisplayAudio = false
	devices.MicrophoneErr = errors.New("NotFoundError")
	m, _ := newTestMixer(t, devices, &fakeRecorder{})

	stream, err := m.Start(context.Background(), internal_type.NewMediaStream())
	require.NoError(t, err)
	assert.Len(t, stream.AudioTracks(), 1)
	assert.Equal(t, 0, m.dest.Inputs())
}

func TestMixer_StopFinalizesRecordingOnce(t *testing.T) {
	devices := internal_media.NewDevices(48000)
	rec := &fakeRecorder{tail: []byte("-tail")}
	m, events := newTestMixer(t, devices, rec)

	stream, err := m.Start(context.Background(), nil)
	require.NoError(t, err)
	assert.Same(t, stream, rec.stream)

	rec.Emit([]byte("one"))
	rec.Emit(nil)
	rec.Emit([]byte("-two"))

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())

	require.Len(t, *events, 1)
	ev := (*events)[0]
	assert.Equal(t, "one-two-tail", string(ev.blob.Data))
	assert.Equal(t, "video/mp4", ev.blob.Type)
	got, ok := m.BlobRegistry().Resolve(ev.url)
	require.True(t, ok)
	assert.Same(t, ev.blob, got)

	assert.Equal(t, 1, rec.stops)
	assert.True(t, devices.AllStopped())
	for _, tr := range stream.Tracks() {
		assert.True(t, tr.Stopped())
	}
	assert.False(t, m.IsStreaming())
	assert.Nil(t, m.Stream())
}

func TestMixer_TrackEndedTakesStopPath(t *testing.T) {
	devices := internal_media.NewDevices(48000)
	rec := &fakeRecorder{}
	m, events := newTestMixer(t, devices, rec)

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	screen := devices.LastDisplay().VideoTracks()[0].(*internal_media.LocalVideoTrack)
	screen.End()

	assert.False(t, m.IsStreaming())
	require.Len(t, *events, 1)
	assert.True(t, devices.AllStopped())

	devices.Microphones()[0].End()
	assert.Len(t, *events, 1, "listeners are removed once stopped")
}

func TestMixer_RecorderFailureDoesNotBlockCapture(t *testing.T) {
	devices := internal_media.NewDevices(48000)
	m, events := newTestMixer(t, devices, &fakeRecorder{startErr: errors.New("unsupported")})

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, m.Stop())

	require.Len(t, *events, 1)
	assert.Empty(t, (*events)[0].url)
	assert.Nil(t, (*events)[0].blob)
}

func TestMixer_SecondStartWhileStreaming(t *testing.T) {
	devices := internal_media.NewDevices(48000)
	m, _ := newTestMixer(t, devices, &fakeRecorder{})

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)
	_, err = m.Start(context.Background(), nil)
	assert.ErrorIs(t, err, internal_type.ErrSessionActive)
}

func TestMixer_DefaultRecorderKeepsScreenAndAudio(t *testing.T) {
	devices := internal_media.NewDevices(48000)
	tick := make(chan time.Time)
	logger := commons.NewNopLogger()
	m := NewMixer(logger, devices, WithRecorderFactory(internal_recorder.Factory(logger,
		internal_recorder.WithTicker(func(time.Duration) (<-chan time.Time, func()) { return tick, func() {} }),
		internal_recorder.WithFrameEncoding(320, 80))))
	var recording *internal_type.Blob
	m.OnStop(func(_ string, blob *internal_type.Blob) { recording = blob })

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)
	screen := devices.LastDisplay().VideoTracks()[0].(*internal_media.LocalVideoTrack)
	screen.WriteFrame(image.NewRGBA(image.Rect(0, 0, 640, 360)))
	tick <- time.Now()
	tick <- time.Now()
	require.NoError(t, m.Stop())

	require.NotNil(t, recording)
	assert.Equal(t, internal_recorder.MatroskaMimeType, recording.Type)
	assert.True(t, strings.HasPrefix(recording.Type, "video/"))

	var doc struct {
		Segment struct {
			Tracks struct {
				TrackEntry []webm.TrackEntry `ebml:"TrackEntry"`
			} `ebml:"Tracks"`
			Cluster []struct {
				SimpleBlock []ebml.Block `ebml:"SimpleBlock"`
			} `ebml:"Cluster"`
		} `ebml:"Segment"`
	}
	require.NoError(t, ebml.Unmarshal(bytes.NewReader(recording.Data), &doc))

	codecs := map[uint64]string{}
	for _, e := range doc.Segment.Tracks.TrackEntry {
		codecs[e.TrackNumber] = e.CodecID
	}
	assert.ElementsMatch(t, []string{internal_recorder.VideoCodecID, internal_recorder.AudioCodecID}, []string{codecs[1], codecs[2]})

	var frames int
	for _, cluster := range doc.Segment.Cluster {
		for _, b := range cluster.SimpleBlock {
			if codecs[b.TrackNumber] == internal_recorder.VideoCodecID {
				frames++
				assert.True(t, bytes.HasPrefix(b.Data[0], []byte{0xff, 0xd8}))
			}
		}
	}
	assert.GreaterOrEqual(t, frames, 1, "the recording carries screen frames")
}

// panickingRecorder blows up while finalizing.
type panickingRecorder struct{ fakeRecorder }

func (r *panickingRecorder) Stop() error { panic("encoder crashed") }

func TestMixer_RecorderPanicStillReleasesCapture(t *testing.T) {
	devices := internal_media.NewDevices(48000)
	m := NewMixer(commons.NewNopLogger(), devices, WithRecorderFactory(func(*internal_type.MediaStream) (internal_type.MediaRecorder, error) {
		return &panickingRecorder{}, nil
	}))
	var events int
	m.OnStop(func(string, *internal_type.Blob) { events++ })

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	err = m.Stop()
	assert.ErrorContains(t, err, "encoder crashed")
	assert.True(t, devices.AllStopped())
	assert.False(t, m.IsStreaming())
	assert.Equal(t, 1, events)
}
