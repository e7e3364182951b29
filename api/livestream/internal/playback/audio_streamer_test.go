// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_playback

import (
	"context"
	"sync"
	"testing"
	"time"

	internal_audio "github.com/kairoscomputer/api/livestream/internal/audio"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureOutput struct {
	frames []internal_type.AudioFrame
}

func (o *captureOutput) Write(f internal_type.AudioFrame) error {
	o.frames = append(o.frames, f)
	return nil
}

// 24000 bytes of PCM16 at 24kHz is 500ms
func halfSecond(v float32) []byte {
	samples := make([]float32, 12000)
	for i := range samples {
		samples[i] = v
	}
	return internal_audio.Float32ToPCM16(samples)
}

func newTestStreamer(t *testing.T, clock *fakeClock, opts ...Option) *AudioStreamer {
	t.Helper()
	s := NewAudioStreamer(commons.NewNopLogger(), append([]Option{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(s.Close)
	return s
}

func TestAudioStreamer_SchedulesBackToBack(t *testing.T) {
	t0 := time.Unix(1000, 0)
	clock := &fakeClock{now: t0}
	s := newTestStreamer(t, clock)

	a := s.AddPCM16(halfSecond(0.1))
	b := s.AddPCM16(halfSecond(0.1))
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, t0, a.Start)
	assert.Equal(t, t0.Add(500*time.Millisecond), a.End)
	assert.Equal(t, a.End, b.Start, "no gap and no overlap")

	clock.Advance(100 * time.Millisecond)
	c := s.AddPCM16(halfSecond(0.1))
	assert.Equal(t, b.End, c.Start, "jitter does not move a queued chunk earlier")

	clock.Advance(5 * time.Second)
	d := s.AddPCM16(halfSecond(0.1))
	assert.Equal(t, clock.Now(), d.Start, "after a gap playback starts now")
}

func TestAudioStreamer_StartTimesAreNonDecreasing(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s := newTestStreamer(t, clock)

	steps := []time.Duration{0, 10 * time.Millisecond, 2 * time.Second, 0, 300 * time.Millisecond, 700 * time.Millisecond}
	var prev *Segment
	for i, step := range steps {
		clock.Advance(step)
		seg := s.AddPCM16(halfSecond(0.2)[:4000*(i+1)])
		require.NotNil(t, seg)
		expected := clock.Now()
		if prev != nil && prev.End.After(expected) {
			expected = prev.End
		}
		assert.Equal(t, expected, seg.Start)
		if prev != nil {
			assert.False(t, seg.Start.Before(prev.Start))
		}
		prev = seg
	}
}

func TestAudioStreamer_EmptyChunkIsNoop(t *testing.T) {
	s := newTestStreamer(t, &fakeClock{now: time.Unix(0, 0)})
	assert.Nil(t, s.AddPCM16(nil))
	assert.Nil(t, s.AddPCM16([]byte{0x01}))
	assert.Empty(t, s.Scheduled())
}

func TestAudioStreamer_InterruptResetsTimeline(t *testing.T) {
	t0 := time.Unix(0, 0)
	clock := &fakeClock{now: t0}
	s := newTestStreamer(t, clock)

	s.AddPCM16(halfSecond(0.1))
	s.AddPCM16(halfSecond(0.1))
	require.Len(t, s.Scheduled(), 2)

	s.Interrupt()
	assert.Empty(t, s.Scheduled())
	assert.Nil(t, s.Render())

	seg := s.AddPCM16(halfSecond(0.1))
	assert.Equal(t, t0, seg.Start)

	s.Stop()
	assert.Empty(t, s.Scheduled())
}

func TestAudioStreamer_RenderPlaysOnlyDueAudio(t *testing.T) {
	t0 := time.Unix(0, 0)
	clock := &fakeClock{now: t0}
	out := &captureOutput{}
	s := newTestStreamer(t, clock, WithOutput(out))

	var played []internal_type.AudioFrame
	s.OutputStream().AudioTracks()[0].OnFrame(func(f internal_type.AudioFrame) { played = append(played, f) })
	var volumes []float64
	s.OnVolume(func(v float64) { volumes = append(volumes, v) })

	// a short chunk and a second one that starts where it ends
	s.AddPCM16(internal_audio.Float32ToPCM16([]float32{0.5, 0.5, 0.5, 0.5}))
	s.AddPCM16(halfSecond(0.25))
	clock.Advance(time.Millisecond)

	frame := s.Render()
	require.Len(t, frame, 480, "one 20ms quantum at 24kHz")
	assert.Equal(t, float32(0.5), frame[0])
	assert.Equal(t, float32(0.25), frame[4])

	require.Len(t, played, 1)
	require.Len(t, out.frames, 1)
	assert.Equal(t, 24000, out.frames[0].SampleRate)
	require.Len(t, volumes, 1)
	assert.Greater(t, s.Volume(), 0.0)
}

func TestAudioStreamer_FutureSegmentsWait(t *testing.T) {
	t0 := time.Unix(0, 0)
	clock := &fakeClock{now: t0}
	s := newTestStreamer(t, clock)

	s.AddPCM16(halfSecond(0.1))
	s.AddPCM16(halfSecond(0.9))
	for i := 0; i < 25; i++ {
		require.NotNil(t, s.Render())
	}
	assert.Nil(t, s.Render(), "second segment is not due yet")

	clock.Advance(500 * time.Millisecond)
	frame := s.Render()
	require.NotNil(t, frame)
	assert.InDelta(t, 0.9, frame[0], 1e-4)
}

func TestAudioStreamer_CloseEndsOutput(t *testing.T) {
	s := NewAudioStreamer(commons.NewNopLogger())
	s.Start(context.Background())
	s.Close()
	s.Close()
	assert.True(t, s.OutputStream().AudioTracks()[0].Stopped())
	assert.Nil(t, s.AddPCM16(halfSecond(0.1)))
}
