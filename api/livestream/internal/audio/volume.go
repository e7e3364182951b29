// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"math"
	"sync"

	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
)

// volumeDecay keeps the meter from collapsing between syllables.
const volumeDecay = 0.7

// VolumeMeter reports a smoothed RMS level per processed block. It is also a
// Processor so it can sit in a graph as a tap.
type VolumeMeter struct {
	mu     sync.Mutex
	volume float64
	events internal_type.Emitter[float64]
}

func NewVolumeMeter() *VolumeMeter {
	return &VolumeMeter{}
}

// Measure folds one block into the meter and returns the new level.
func (m *VolumeMeter) Measure(samples []float32) float64 {
	m.mu.Lock()
	m.volume = math.Max(RMS(samples), m.volume*volumeDecay)
	v := m.volume
	m.mu.Unlock()
	m.events.Emit(v)
	return v
}

func (m *VolumeMeter) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *VolumeMeter) Reset() {
	m.mu.Lock()
	m.volume = 0
	m.mu.Unlock()
}

func (m *VolumeMeter) OnVolume(fn func(float64)) (off func()) {
	return m.events.On(fn)
}

// Process measures and swallows the block.
func (m *VolumeMeter) Process(samples []float32) []float32 {
	m.Measure(samples)
	return nil
}

func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
