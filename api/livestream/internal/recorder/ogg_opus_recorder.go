// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const (
	OggMimeType     = "audio/ogg; codecs=opus"
	OpusPayloadType = 111
)

var ErrNoAudioTrack = errors.New("stream has no audio track to record")

type oggOpusRecorder struct {
	logger commons.Logger
	opts   options

	mu        sync.Mutex
	started   bool
	stopped   bool
	rate      int
	audio     *opusStream
	writer    *oggwriter.OggWriter
	sink      *sink
	sequence  uint16
	timestamp uint32
	ssrc      uint32
	off       func()
}

// NewOggOpusRecorder records the first audio track of a stream as Ogg/Opus.
func NewOggOpusRecorder(logger commons.Logger, opts ...Option) internal_type.MediaRecorder {
	return &oggOpusRecorder{logger: logger, opts: newOptions(opts)}
}

func (r *oggOpusRecorder) MimeType() string {
	return OggMimeType
}

func (r *oggOpusRecorder) Start(stream *internal_type.MediaStream, ondata func([]byte)) error {
	tracks := stream.AudioTracks()
	if len(tracks) == 0 {
		return ErrNoAudioTrack
	}
	track := tracks[0]

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("recorder already started")
	}

	audio, err := newOpusStream(r.logger)
	if err != nil {
		return err
	}
	out := newSink(r.opts, ondata)
	writer, err := oggwriter.NewWith(out, OpusSampleRate, OpusChannels)
	if err != nil {
		return fmt.Errorf("unable to create ogg writer: %w", err)
	}

	r.audio = audio
	r.sink = out
	r.writer = writer
	r.rate = track.SampleRate()
	r.ssrc = rand.Uint32()
	r.started = true
	r.off = track.OnFrame(r.onFrame)

	r.logger.Debugw("ogg/opus recorder started", "track", track.ID(), "timeslice", r.opts.timeslice.String())
	return nil
}

func (r *oggOpusRecorder) onFrame(f internal_type.AudioFrame) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	for _, p := range r.audio.push(f, r.rate) {
		r.writePacket(p)
	}
	r.mu.Unlock()

	r.sink.flushIfDue()
}

// writePacket expects r.mu to be held.
func (r *oggOpusRecorder) writePacket(p opusPacket) {
	r.sequence++
	r.timestamp += OpusFrameSamples
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    OpusPayloadType,
			SequenceNumber: r.sequence,
			Timestamp:      r.timestamp,
			SSRC:           r.ssrc,
		},
		Payload: p.data,
	}
	if err := r.writer.WriteRTP(pkt); err != nil {
		r.logger.Warnw("ogg page write failed", "error", err)
	}
}

// Stop pads and encodes the last partial frame, closes the stream and flushes
// the remainder. Calling Stop again is a no-op.
func (r *oggOpusRecorder) Stop() error {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	off := r.off
	r.off = nil
	r.mu.Unlock()

	if off != nil {
		off()
	}

	r.mu.Lock()
	if p, ok := r.audio.drain(); ok {
		r.writePacket(p)
	}
	err := r.writer.Close()
	frames, duration := r.audio.frames, r.audio.duration()
	r.mu.Unlock()

	r.sink.flush()
	r.logger.Infow("ogg/opus recorder stopped", "frames", frames, "duration", duration.String())
	if err != nil {
		return fmt.Errorf("unable to close ogg stream: %w", err)
	}
	return nil
}
