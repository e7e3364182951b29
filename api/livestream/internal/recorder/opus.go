// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"encoding/binary"
	"fmt"
	"time"

	internal_audio "github.com/kairoscomputer/api/livestream/internal/audio"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
	"gopkg.in/hraban/opus.v2"
)

const (
	OpusSampleRate    = 48000
	OpusChannels      = 1
	OpusFrameSamples  = 960 // 20ms at 48kHz
	OpusFrameDuration = 20 * time.Millisecond
	OpusMaxPacket     = 4000

	opusPreSkip = 312
)

var opusConfig = internal_audio.AudioConfig{SampleRate: OpusSampleRate, Channels: OpusChannels}

type opusPacket struct {
	data []byte
	pts  time.Duration
}

// opusStream turns mono frames of any rate into 20ms Opus packets. It is not
// safe for concurrent use.
type opusStream struct {
	logger    commons.Logger
	encoder   *opus.Encoder
	resampler internal_audio.AudioResampler
	pending   []int16
	buf       []byte
	frames    int
}

func newOpusStream(logger commons.Logger) (*opusStream, error) {
	encoder, err := opus.NewEncoder(OpusSampleRate, OpusChannels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("unable to create opus encoder: %w", err)
	}
	return &opusStream{
		logger:    logger,
		encoder:   encoder,
		resampler: internal_audio.GetResampler(logger),
		buf:       make([]byte, OpusMaxPacket),
	}, nil
}

// push returns the packets completed by f. trackRate is used when the frame
// does not carry its own rate.
func (s *opusStream) push(f internal_type.AudioFrame, trackRate int) []opusPacket {
	rate := f.SampleRate
	if rate == 0 {
		rate = trackRate
	}
	samples, err := s.resampler.Resample(f.Samples, internal_audio.AudioConfig{SampleRate: rate, Channels: 1}, opusConfig)
	if err != nil {
		s.logger.Warnw("dropping audio frame before opus encode", "error", err)
		return nil
	}
	s.pending = append(s.pending, internal_audio.PCM16ToInt16(internal_audio.Float32ToPCM16(samples))...)

	var packets []opusPacket
	for len(s.pending) >= OpusFrameSamples {
		if p, ok := s.encode(s.pending[:OpusFrameSamples]); ok {
			packets = append(packets, p)
		}
		s.pending = s.pending[OpusFrameSamples:]
	}
	return packets
}

// drain pads the partial frame with silence and encodes it.
func (s *opusStream) drain() (opusPacket, bool) {
	if len(s.pending) == 0 {
		return opusPacket{}, false
	}
	frame := make([]int16, OpusFrameSamples)
	copy(frame, s.pending)
	s.pending = nil
	return s.encode(frame)
}

func (s *opusStream) encode(frame []int16) (opusPacket, bool) {
	n, err := s.encoder.Encode(frame, s.buf)
	if err != nil {
		s.logger.Warnw("opus encode failed", "error", err)
		return opusPacket{}, false
	}
	p := opusPacket{
		data: append([]byte(nil), s.buf[:n]...),
		pts:  time.Duration(s.frames) * OpusFrameDuration,
	}
	s.frames++
	return p, true
}

func (s *opusStream) duration() time.Duration {
	return time.Duration(s.frames) * OpusFrameDuration
}

// opusHead is the identification header Matroska carries as codec private
// data. Output gain and channel mapping family stay zero.
func opusHead() []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1
	head[9] = OpusChannels
	binary.LittleEndian.PutUint16(head[10:], opusPreSkip)
	binary.LittleEndian.PutUint32(head[12:], OpusSampleRate)
	return head
}
