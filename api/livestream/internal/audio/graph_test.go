// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"context"
	"testing"
	"time"

	internal_media "github.com/kairoscomputer/api/livestream/internal/media"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t *testing.T, cfg AudioConfig) *Graph {
	t.Helper()
	g := NewGraph(commons.NewNopLogger(), cfg)
	t.Cleanup(g.Close)
	return g
}

func constant(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestProcessorRegistry_DuplicateIsRejected(t *testing.T) {
	r := NewProcessorRegistry()
	first := func() Processor { return ProcessorFunc(func(s []float32) []float32 { return s }) }
	assert.True(t, r.Register("worklet", first))
	assert.False(t, r.Register("worklet", func() Processor { return NewVolumeMeter() }))

	p, err := r.New("worklet")
	require.NoError(t, err)
	_, isMeter := p.(*VolumeMeter)
	assert.False(t, isMeter, "first registration wins")

	_, err = r.New("missing")
	assert.Error(t, err)
}

func TestGraph_RegistriesAreIndependent(t *testing.T) {
	a := newTestGraph(t, CaptureConfig)
	b := newTestGraph(t, CaptureConfig)
	assert.True(t, a.Registry().Register("vu-meter", func() Processor { return NewVolumeMeter() }))
	assert.True(t, b.Registry().Register("vu-meter", func() Processor { return NewVolumeMeter() }))
}

func TestDestination_SingleOutputTrackForManySources(t *testing.T) {
	g := newTestGraph(t, AudioConfig{SampleRate: 1000, Channels: 1})
	dest, err := g.CreateMediaStreamDestination()
	require.NoError(t, err)

	a := internal_media.NewLocalAudioTrack("a", 1000)
	b := internal_media.NewLocalAudioTrack("b", 1000)
	for _, tr := range []*internal_media.LocalAudioTrack{a, b} {
		src, err := g.CreateMediaStreamSource(tr)
		require.NoError(t, err)
		src.Connect(dest)
	}
	assert.Equal(t, 2, dest.Inputs())
	require.Len(t, dest.Stream().AudioTracks(), 1)

	var rendered []internal_type.AudioFrame
	dest.Track().OnFrame(func(f internal_type.AudioFrame) { rendered = append(rendered, f) })

	// 20 samples per quantum at 1 kHz
	a.WriteFrame(constant(0.25, 20))
	b.WriteFrame(constant(0.5, 10))
	mix := dest.Render()
	require.Len(t, mix, 20)
	assert.InDelta(t, 0.75, mix[0], 1e-6)
	assert.InDelta(t, 0.25, mix[19], 1e-6, "underrun fills silence")

	a.WriteFrame(constant(0.9, 20))
	b.WriteFrame(constant(0.9, 20))
	mix = dest.Render()
	assert.Equal(t, float32(1), mix[0], "sum is clamped")
	assert.Len(t, rendered, 2)
}

func TestSource_ResamplesToGraphRate(t *testing.T) {
	g := newTestGraph(t, CaptureConfig)
	require.True(t, g.Registry().Register("tap", func() Processor {
		return ProcessorFunc(func(s []float32) []float32 { return s })
	}))
	tap, err := g.CreateProcessor("tap")
	require.NoError(t, err)

	var sizes []int
	tap.OnOutput(func(s []float32) { sizes = append(sizes, len(s)) })

	mic := internal_media.NewLocalAudioTrack("mic", 48000)
	src, err := g.CreateMediaStreamSource(mic)
	require.NoError(t, err)
	src.Connect(tap)

	in := tone(48000, 48000, 440, 0.5)
	for off := 0; off < len(in); off += 960 {
		mic.WriteFrame(in[off : off+960])
	}
	total := 0
	for _, n := range sizes {
		assert.Positive(t, n, "empty blocks are not pushed")
		total += n
	}
	assert.InDelta(t, 16000, total, 1600, "one second at the graph rate")

	src.Disconnect()
	src.Disconnect()
	pushed := len(sizes)
	mic.WriteFrame(make([]float32, 960))
	assert.Len(t, sizes, pushed)
}

func TestGraph_CloseDisconnectsEverything(t *testing.T) {
	g := NewGraph(commons.NewNopLogger(), AudioConfig{SampleRate: 1000, Channels: 1})
	g.Registry().Register("vu-meter", func() Processor { return NewVolumeMeter() })
	dest, err := g.CreateMediaStreamDestination()
	require.NoError(t, err)
	mic := internal_media.NewLocalAudioTrack("mic", 1000)
	src, err := g.CreateMediaStreamSource(mic)
	require.NoError(t, err)
	src.Connect(dest)

	g.Close()
	g.Close()

	assert.Equal(t, 0, dest.Inputs())
	assert.True(t, dest.Track().Stopped())
	assert.False(t, g.Registry().Has("vu-meter"))
	_, err = g.CreateMediaStreamDestination()
	assert.ErrorIs(t, err, ErrGraphClosed)
	_, err = g.CreateProcessor("vu-meter")
	assert.Error(t, err)
}

func TestDestination_StartRendersUntilStopped(t *testing.T) {
	g := newTestGraph(t, AudioConfig{SampleRate: 1000, Channels: 1})
	dest, err := g.CreateMediaStreamDestination()
	require.NoError(t, err)

	frames := make(chan struct{}, 64)
	dest.Track().OnFrame(func(internal_type.AudioFrame) {
		select {
		case frames <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dest.Start(ctx)

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("destination never rendered")
	}
	dest.Stop()
	assert.True(t, dest.Track().Stopped())
}
