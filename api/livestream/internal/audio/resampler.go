// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"fmt"
	"sync"

	"github.com/kairoscomputer/pkg/commons"
	resampler "github.com/tphakala/go-audio-resampler"
)

// ResampleQuality is enough for speech going to the model and into the
// recording.
const ResampleQuality = resampler.QualityMedium

// AudioResampler converts one mono stream between sample rates. Filter state
// carries across calls, so every stream needs its own instance.
type AudioResampler interface {
	Resample(samples []float32, from, to AudioConfig) ([]float32, error)
}

type audioResampler struct {
	logger commons.Logger

	mu     sync.Mutex
	from   int
	to     int
	engine *resampler.SimpleResamplerFloat32
}

func GetResampler(logger commons.Logger) AudioResampler {
	return &audioResampler{logger: logger}
}

// Resample returns samples untouched when the rates match. Output can be
// shorter than the input ratio suggests while the filter fills up.
func (r *audioResampler) Resample(samples []float32, from, to AudioConfig) ([]float32, error) {
	if from.SampleRate == to.SampleRate || len(samples) == 0 {
		return samples, nil
	}
	if from.SampleRate <= 0 || to.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", from.SampleRate, to.SampleRate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil || r.from != from.SampleRate || r.to != to.SampleRate {
		engine, err := resampler.NewEngineFloat32(float64(from.SampleRate), float64(to.SampleRate), ResampleQuality)
		if err != nil {
			return nil, fmt.Errorf("unable to create resampler %d -> %d: %w", from.SampleRate, to.SampleRate, err)
		}
		if r.engine != nil {
			r.logger.Debugw("resampler rate changed", "from", from.SampleRate, "to", to.SampleRate)
		}
		r.engine, r.from, r.to = engine, from.SampleRate, to.SampleRate
	}
	return r.engine.Process(samples)
}
