// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"context"
	"errors"
	"sync"
	"time"

	internal_media "github.com/kairoscomputer/api/livestream/internal/media"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/utils"
)

var ErrGraphClosed = errors.New("audio graph is closed")

// Sink receives blocks of samples at the graph rate.
type Sink interface {
	Push(samples []float32)
}

// Node is anything a source or processor can connect to.
type Node interface {
	input() (Sink, func())
}

// Graph is a small processing graph running at a single sample rate.
type Graph struct {
	logger   commons.Logger
	config   AudioConfig
	registry *ProcessorRegistry

	mu           sync.Mutex
	closed       bool
	sources      []*SourceNode
	processors   []*ProcessorNode
	destinations []*DestinationNode
}

func NewGraph(logger commons.Logger, config AudioConfig) *Graph {
	return &Graph{
		logger:   logger,
		config:   config,
		registry: NewProcessorRegistry(),
	}
}

func (g *Graph) Config() AudioConfig {
	return g.config
}

func (g *Graph) Registry() *ProcessorRegistry {
	return g.registry
}

func (g *Graph) CreateMediaStreamSource(track internal_type.AudioTrack) (*SourceNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrGraphClosed
	}
	n := &SourceNode{graph: g, track: track}
	g.sources = append(g.sources, n)
	return n, nil
}

func (g *Graph) CreateMediaStreamDestination() (*DestinationNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrGraphClosed
	}
	n := &DestinationNode{
		graph:   g,
		quantum: g.config.SamplesPer(Quantum),
		track:   internal_media.NewLocalAudioTrack("destination", g.config.SampleRate),
	}
	n.stream = internal_type.NewMediaStream(n.track)
	g.destinations = append(g.destinations, n)
	return n, nil
}

func (g *Graph) CreateProcessor(name string) (*ProcessorNode, error) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return nil, ErrGraphClosed
	}
	p, err := g.registry.New(name)
	if err != nil {
		return nil, err
	}
	n := &ProcessorNode{name: name, processor: p}
	g.mu.Lock()
	g.processors = append(g.processors, n)
	g.mu.Unlock()
	return n, nil
}

// Close disconnects every node, stops every destination and clears the
// registry. It is safe to call more than once.
func (g *Graph) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	sources, processors, destinations := g.sources, g.processors, g.destinations
	g.sources, g.processors, g.destinations = nil, nil, nil
	g.mu.Unlock()

	for _, s := range sources {
		s.Disconnect()
	}
	for _, p := range processors {
		p.Disconnect()
	}
	for _, d := range destinations {
		d.Stop()
	}
	g.registry.Clear()
	g.logger.Debugw("audio graph closed",
		"sources", len(sources), "processors", len(processors), "destinations", len(destinations))
}

// SourceNode feeds one track into the graph.
type SourceNode struct {
	graph *Graph
	track internal_type.AudioTrack

	mu    sync.Mutex
	conns []func()
}

func (s *SourceNode) Track() internal_type.AudioTrack {
	return s.track
}

// Connect forwards every frame of the track to n, resampled to the graph
// rate, in capture order.
func (s *SourceNode) Connect(n Node) {
	sink, detach := n.input()
	to := s.graph.config
	resampler := GetResampler(s.graph.logger)
	off := s.track.OnFrame(func(f internal_type.AudioFrame) {
		from := AudioConfig{SampleRate: f.SampleRate, Channels: 1}
		if from.SampleRate == 0 {
			from.SampleRate = s.track.SampleRate()
		}
		samples, err := resampler.Resample(f.Samples, from, to)
		if err != nil {
			s.graph.logger.Warnw("dropping audio frame", "track", s.track.ID(), "error", err)
			return
		}
		if len(samples) == 0 {
			return
		}
		sink.Push(samples)
	})
	s.mu.Lock()
	s.conns = append(s.conns, func() {
		off()
		detach()
	})
	s.mu.Unlock()
}

func (s *SourceNode) Disconnect() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c()
	}
}

// ProcessorNode runs a Processor over every block and hands the result to
// its outputs.
type ProcessorNode struct {
	name      string
	processor Processor

	mu     sync.Mutex
	conns  []func()
	sinks  []Sink
	output internal_type.Emitter[[]float32]
}

func (p *ProcessorNode) Name() string {
	return p.name
}

func (p *ProcessorNode) Processor() Processor {
	return p.processor
}

func (p *ProcessorNode) input() (Sink, func()) {
	return p, func() {}
}

func (p *ProcessorNode) Push(samples []float32) {
	out := p.processor.Process(samples)
	if out == nil {
		return
	}
	p.mu.Lock()
	sinks := append([]Sink(nil), p.sinks...)
	p.mu.Unlock()
	for _, s := range sinks {
		s.Push(out)
	}
	p.output.Emit(out)
}

// OnOutput observes processed blocks.
func (p *ProcessorNode) OnOutput(fn func([]float32)) (off func()) {
	return p.output.On(fn)
}

func (p *ProcessorNode) Connect(n Node) {
	sink, detach := n.input()
	p.mu.Lock()
	p.sinks = append(p.sinks, sink)
	p.conns = append(p.conns, detach)
	p.mu.Unlock()
}

func (p *ProcessorNode) Disconnect() {
	p.mu.Lock()
	conns := p.conns
	p.conns = nil
	p.sinks = nil
	p.mu.Unlock()
	for _, c := range conns {
		c()
	}
	p.output.Clear()
}

// DestinationNode mixes every connected input into exactly one output
// track.
type DestinationNode struct {
	graph   *Graph
	quantum int
	track   *internal_media.LocalAudioTrack
	stream  *internal_type.MediaStream

	mu      sync.Mutex
	nextID  int
	inputs  map[int]*destinationInput
	cancel  context.CancelFunc
	stopped bool
}

type destinationInput struct {
	mu  sync.Mutex
	buf []float32
	max int
}

func (in *destinationInput) Push(samples []float32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.buf = append(in.buf, samples...)
	if over := len(in.buf) - in.max; over > 0 {
		in.buf = in.buf[over:]
	}
}

func (in *destinationInput) take(n int) []float32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	k := n
	if k > len(in.buf) {
		k = len(in.buf)
	}
	out := make([]float32, n)
	copy(out, in.buf[:k])
	in.buf = in.buf[k:]
	return out
}

func (d *DestinationNode) input() (Sink, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inputs == nil {
		d.inputs = make(map[int]*destinationInput)
	}
	d.nextID++
	id := d.nextID
	in := &destinationInput{max: d.graph.config.SampleRate}
	d.inputs[id] = in
	return in, func() {
		d.mu.Lock()
		delete(d.inputs, id)
		d.mu.Unlock()
	}
}

// Stream holds the single mixed output track.
func (d *DestinationNode) Stream() *internal_type.MediaStream {
	return d.stream
}

func (d *DestinationNode) Track() internal_type.AudioTrack {
	return d.track
}

func (d *DestinationNode) Inputs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inputs)
}

// Render mixes one quantum from every input and writes it to the output
// track. Inputs that underrun contribute silence.
func (d *DestinationNode) Render() []float32 {
	d.mu.Lock()
	inputs := make([]*destinationInput, 0, len(d.inputs))
	for _, in := range d.inputs {
		inputs = append(inputs, in)
	}
	d.mu.Unlock()

	mix := make([]float32, d.quantum)
	for _, in := range inputs {
		for i, s := range in.take(d.quantum) {
			mix[i] += s
		}
	}
	for i := range mix {
		mix[i] = utils.Clamp(mix[i], -1, 1)
	}
	d.track.WriteFrame(mix)
	return mix
}

// Start renders on a real-time ticker until ctx ends or Stop is called.
func (d *DestinationNode) Start(ctx context.Context) {
	d.mu.Lock()
	if d.cancel != nil || d.stopped {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	utils.Go(ctx, d.graph.logger, func() {
		ticker := time.NewTicker(Quantum)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.Render()
			}
		}
	})
}

// Stop halts rendering and stops the output track.
func (d *DestinationNode) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	cancel := d.cancel
	d.inputs = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.track.Stop()
}
