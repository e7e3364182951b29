// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"strconv"
	"time"
)

type AudioConfig struct {
	SampleRate int
	Channels   int
}

var (
	// CaptureConfig is what the realtime peer expects from the microphone.
	CaptureConfig = AudioConfig{SampleRate: 16000, Channels: 1}

	// PlaybackConfig matches the PCM16 the realtime peer sends back.
	PlaybackConfig = AudioConfig{SampleRate: 24000, Channels: 1}

	// MixConfig is the rate of the composite stream and its recording.
	MixConfig = AudioConfig{SampleRate: 48000, Channels: 1}
)

// Quantum is how much audio a destination renders per tick.
const Quantum = 20 * time.Millisecond

func (c AudioConfig) SamplesPer(d time.Duration) int {
	return int(int64(c.SampleRate) * int64(c.Channels) * int64(d) / int64(time.Second))
}

func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * BytesPerSample
}

// Duration of n PCM16 bytes at this config.
func (c AudioConfig) Duration(n int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

func (c AudioConfig) MimeType() string {
	return "audio/pcm;rate=" + strconv.Itoa(c.SampleRate)
}
