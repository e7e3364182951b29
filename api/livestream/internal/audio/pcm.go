// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kairoscomputer/pkg/utils"
)

const BytesPerSample = 2

// Float32ToPCM16 clamps every sample to [-1, 1] and encodes it as a
// little-endian signed 16-bit integer.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := utils.Clamp(s, -1, 1) * 32768
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(int16(v)))
	}
	return out
}

// PCM16ToFloat32 decodes little-endian int16 samples, dividing by 32768. A
// trailing odd byte is ignored.
func PCM16ToFloat32(data []byte) []float32 {
	n := len(data) / BytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
		out[i] = float32(v) / 32768
	}
	return out
}

func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio payload: %w", err)
	}
	return data, nil
}

// PCM16ToInt16 is used by encoders that want native samples.
func PCM16ToInt16(data []byte) []int16 {
	n := len(data) / BytesPerSample
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return out
}
