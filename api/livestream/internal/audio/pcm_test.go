// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat32ToPCM16_ClampsAndEncodesLittleEndian(t *testing.T) {
	out := Float32ToPCM16([]float32{0, 1, -1, 2, -2})
	require.Len(t, out, 10)

	assert.Equal(t, []byte{0x00, 0x00}, out[0:2])
	assert.Equal(t, []byte{0xff, 0x7f}, out[2:4])
	assert.Equal(t, []byte{0x00, 0x80}, out[4:6])
	assert.Equal(t, out[2:4], out[6:8], "values above 1 clamp to max")
	assert.Equal(t, out[4:6], out[8:10], "values below -1 clamp to min")
}

func TestPCM16ToFloat32_DividesBy32768(t *testing.T) {
	got := PCM16ToFloat32([]byte{0x00, 0x80, 0x00, 0x40, 0x01})
	require.Len(t, got, 2, "odd trailing byte is ignored")
	assert.Equal(t, float32(-1), got[0])
	assert.Equal(t, float32(0.5), got[1])
}

func TestPCM16RoundTripIsLossless(t *testing.T) {
	raw := []byte{0x34, 0x12, 0xcc, 0xfe, 0x00, 0x00, 0xff, 0x7f}
	assert.Equal(t, raw, Float32ToPCM16(PCM16ToFloat32(raw)))
	assert.Equal(t, []int16{0x1234, -0x0134, 0, 0x7fff}, PCM16ToInt16(raw))
}

func TestBase64RoundTrip(t *testing.T) {
	for _, data := range [][]byte{{}, {0}, {1, 2, 3}, {0xff, 0xfe, 0xfd, 0xfc}} {
		decoded, err := DecodeBase64(EncodeBase64(data))
		require.NoError(t, err)
		assert.Equal(t, len(data), len(decoded))
		assert.Equal(t, string(data), string(decoded))
	}
	_, err := DecodeBase64("not base64!")
	assert.Error(t, err)
}

func TestAudioConfig(t *testing.T) {
	assert.Equal(t, 320, CaptureConfig.SamplesPer(Quantum))
	assert.Equal(t, 960, MixConfig.SamplesPer(Quantum))
	assert.Equal(t, 48000, PlaybackConfig.BytesPerSecond())
	assert.Equal(t, 500*time.Millisecond, PlaybackConfig.Duration(24000))
	assert.Equal(t, "audio/pcm;rate=16000", CaptureConfig.MimeType())
}

func TestVolumeMeter_SmoothsWithDecay(t *testing.T) {
	m := NewVolumeMeter()
	var seen []float64
	m.OnVolume(func(v float64) { seen = append(seen, v) })

	loud := []float32{0.5, -0.5, 0.5, -0.5}
	assert.InDelta(t, 0.5, m.Measure(loud), 1e-9)
	assert.InDelta(t, 0.35, m.Measure([]float32{0, 0}), 1e-9)
	assert.InDelta(t, 0.245, m.Measure(nil), 1e-9)
	assert.InDelta(t, 0.5, m.Measure(loud), 1e-9)
	assert.Len(t, seen, 4)

	assert.Nil(t, m.Process(loud))
	m.Reset()
	assert.Equal(t, float64(0), m.Volume())
}
