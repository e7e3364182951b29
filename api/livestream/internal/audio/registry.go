// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"fmt"
	"sync"
)

// Processor transforms one block of samples at the graph rate. Returning nil
// ends the block at this node.
type Processor interface {
	Process(samples []float32) []float32
}

type ProcessorFunc func(samples []float32) []float32

func (f ProcessorFunc) Process(samples []float32) []float32 {
	return f(samples)
}

type ProcessorFactory func() Processor

// ProcessorRegistry maps names to processor factories. Every graph owns its
// own registry.
type ProcessorRegistry struct {
	mu        sync.RWMutex
	factories map[string]ProcessorFactory
}

func NewProcessorRegistry() *ProcessorRegistry {
	return &ProcessorRegistry{factories: make(map[string]ProcessorFactory)}
}

// Register returns false when name is already taken; the first factory wins.
func (r *ProcessorRegistry) Register(name string, factory ProcessorFactory) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return false
	}
	r.factories[name] = factory
	return true
}

func (r *ProcessorRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

func (r *ProcessorRegistry) New(name string) (Processor, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("audio processor %q is not registered", name)
	}
	return factory(), nil
}

func (r *ProcessorRegistry) Clear() {
	r.mu.Lock()
	r.factories = make(map[string]ProcessorFactory)
	r.mu.Unlock()
}
