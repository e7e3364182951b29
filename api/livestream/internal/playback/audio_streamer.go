// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_playback

import (
	"context"
	"sync"
	"time"

	internal_audio "github.com/kairoscomputer/api/livestream/internal/audio"
	internal_media "github.com/kairoscomputer/api/livestream/internal/media"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/utils"
)

// Segment is one chunk of received audio placed on the playback timeline.
type Segment struct {
	Start   time.Time
	End     time.Time
	Samples []float32
}

type Option func(*AudioStreamer)

// WithClock replaces time.Now, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *AudioStreamer) { s.clock = clock }
}

// WithOutput plays rendered audio on a device as well as the output stream.
func WithOutput(out internal_type.AudioOutput) Option {
	return func(s *AudioStreamer) { s.output = out }
}

// AudioStreamer schedules inbound PCM16 chunks back to back and renders them
// to an output track that can be both heard and recorded.
type AudioStreamer struct {
	logger commons.Logger
	config internal_audio.AudioConfig
	clock  func() time.Time
	output internal_type.AudioOutput

	track  *internal_media.LocalAudioTrack
	stream *internal_type.MediaStream
	meter  *internal_audio.VolumeMeter

	mu      sync.Mutex
	queue   []*Segment
	offset  int
	lastEnd time.Time
	cancel  context.CancelFunc
	closed  bool
}

func NewAudioStreamer(logger commons.Logger, opts ...Option) *AudioStreamer {
	s := &AudioStreamer{
		logger: logger,
		config: internal_audio.PlaybackConfig,
		clock:  time.Now,
		meter:  internal_audio.NewVolumeMeter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.track = internal_media.NewLocalAudioTrack("playback", s.config.SampleRate)
	s.stream = internal_type.NewMediaStream(s.track)
	return s
}

// OutputStream carries exactly what is played.
func (s *AudioStreamer) OutputStream() *internal_type.MediaStream {
	return s.stream
}

func (s *AudioStreamer) OnVolume(fn func(float64)) (off func()) {
	return s.meter.OnVolume(fn)
}

func (s *AudioStreamer) Volume() float64 {
	return s.meter.Volume()
}

// AddPCM16 schedules raw little-endian PCM16 at max(now, end of the previous
// segment). Empty input is a no-op and returns nil.
func (s *AudioStreamer) AddPCM16(raw []byte) *Segment {
	samples := internal_audio.PCM16ToFloat32(raw)
	if len(samples) == 0 {
		return nil
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	start := now
	if s.lastEnd.After(start) {
		start = s.lastEnd
	}
	seg := &Segment{
		Start:   start,
		End:     start.Add(s.config.Duration(len(samples) * internal_audio.BytesPerSample)),
		Samples: samples,
	}
	s.queue = append(s.queue, seg)
	s.lastEnd = seg.End
	return seg
}

// Scheduled returns the segments not yet fully played.
func (s *AudioStreamer) Scheduled() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Segment, 0, len(s.queue))
	for _, seg := range s.queue {
		out = append(out, *seg)
	}
	return out
}

// Render plays up to one quantum of audio whose start time has been reached.
// It returns nil when nothing was due.
func (s *AudioStreamer) Render() []float32 {
	quantum := s.config.SamplesPer(internal_audio.Quantum)
	now := s.clock()

	s.mu.Lock()
	out := make([]float32, 0, quantum)
	for len(out) < quantum && len(s.queue) > 0 {
		seg := s.queue[0]
		if seg.Start.After(now) {
			break
		}
		n := quantum - len(out)
		if left := len(seg.Samples) - s.offset; left < n {
			n = left
		}
		out = append(out, seg.Samples[s.offset:s.offset+n]...)
		s.offset += n
		if s.offset == len(seg.Samples) {
			s.queue = s.queue[1:]
			s.offset = 0
		}
	}
	s.mu.Unlock()

	if len(out) == 0 {
		return nil
	}
	s.track.WriteFrame(out)
	s.meter.Measure(out)
	if s.output != nil {
		if err := s.output.Write(internal_type.AudioFrame{Samples: out, SampleRate: s.config.SampleRate}); err != nil {
			s.logger.Debugw("audio output write failed", "error", err)
		}
	}
	return out
}

// Start renders on a real-time ticker until ctx ends or Close is called.
func (s *AudioStreamer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil || s.closed {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	utils.Go(ctx, s.logger, func() {
		ticker := time.NewTicker(internal_audio.Quantum)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Render()
			}
		}
	})
}

// Interrupt drops everything not yet played and resets the timeline so the
// next chunk starts immediately.
func (s *AudioStreamer) Interrupt() {
	s.mu.Lock()
	dropped := len(s.queue)
	s.queue = nil
	s.offset = 0
	s.lastEnd = time.Time{}
	s.mu.Unlock()
	s.meter.Reset()
	if dropped > 0 {
		s.logger.Debugw("playback interrupted", "dropped_segments", dropped)
	}
}

// Stop halts playback the same way Interrupt does.
func (s *AudioStreamer) Stop() {
	s.Interrupt()
}

// Close stops the render loop and ends the output track.
func (s *AudioStreamer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.queue = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.track.Stop()
}
