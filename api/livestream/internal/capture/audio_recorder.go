// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"context"
	"fmt"
	"sync"

	internal_audio "github.com/kairoscomputer/api/livestream/internal/audio"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
)

type State string

const (
	StateIdle        State = "idle"
	StateStarting    State = "starting"
	StateStarted     State = "started"
	StateStopPending State = "stop_pending"
	StateStopped     State = "stopped"
)

const (
	recorderWorklet = "audio-recorder-worklet"
	vuMeterWorklet  = "vu-meter"
)

// AudioRecorder turns microphone audio into base64 PCM16 chunks at the
// capture rate, one data event per captured frame.
type AudioRecorder struct {
	logger  commons.Logger
	devices internal_type.MediaDevices
	config  internal_audio.AudioConfig

	newGraph func(commons.Logger, internal_audio.AudioConfig) *internal_audio.Graph

	mu    sync.Mutex
	state State
	graph *internal_audio.Graph
	mic   *internal_type.MediaStream

	data   internal_type.Emitter[string]
	volume internal_type.Emitter[float64]
}

func NewAudioRecorder(logger commons.Logger, devices internal_type.MediaDevices) *AudioRecorder {
	return &AudioRecorder{
		logger:  logger,
		devices: devices,
		config:  internal_audio.CaptureConfig,
		state:   StateIdle,

		newGraph: internal_audio.NewGraph,
	}
}

func (r *AudioRecorder) OnData(fn func(base64PCM string)) (off func()) {
	return r.data.On(fn)
}

func (r *AudioRecorder) OnVolume(fn func(float64)) (off func()) {
	return r.volume.On(fn)
}

func (r *AudioRecorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *AudioRecorder) Config() internal_audio.AudioConfig {
	return r.config
}

// Start acquires the microphone and begins emitting data. It returns
// ErrNoAudioInput when no microphone can be acquired and ErrStopped when Stop
// was called while setup was still in flight; in that case everything is
// already released.
func (r *AudioRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case StateStarting, StateStarted, StateStopPending:
		r.mu.Unlock()
		return nil
	}
	r.state = StateStarting
	r.mu.Unlock()

	mic, err := r.devices.GetUserMedia(ctx, internal_type.Constraints{Audio: true})
	if err == nil && len(mic.AudioTracks()) == 0 {
		err = fmt.Errorf("stream has no audio track")
	}
	if err != nil {
		r.mu.Lock()
		if r.state == StateStopPending {
			r.state = StateStopped
		} else {
			r.state = StateIdle
		}
		r.mu.Unlock()
		stopTracks(mic)
		return fmt.Errorf("%w: %v", internal_type.ErrNoAudioInput, err)
	}

	graph, worklet, meter, err := r.buildGraph()
	if err != nil {
		r.mu.Lock()
		pending := r.state == StateStopPending
		if pending {
			r.state = StateStopped
		} else {
			r.state = StateIdle
		}
		r.mu.Unlock()
		stopTracks(mic)
		if pending {
			return internal_type.ErrStopped
		}
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateStopPending {
		r.state = StateStopped
		graph.Close()
		stopTracks(mic)
		r.logger.Debugw("audio capture stopped during setup")
		return internal_type.ErrStopped
	}

	track := mic.AudioTracks()[0]
	source, err := graph.CreateMediaStreamSource(track)
	if err != nil {
		r.state = StateIdle
		graph.Close()
		stopTracks(mic)
		return err
	}
	source.Connect(worklet)
	source.Connect(meter)

	r.graph = graph
	r.mic = mic
	r.state = StateStarted
	r.logger.Debugw("audio capture started", "track", track.ID(), "rate", r.config.SampleRate)
	return nil
}

func (r *AudioRecorder) buildGraph() (*internal_audio.Graph, *internal_audio.ProcessorNode, *internal_audio.ProcessorNode, error) {
	graph := r.newGraph(r.logger, r.config)
	registry := graph.Registry()
	registry.Register(recorderWorklet, func() internal_audio.Processor {
		return internal_audio.ProcessorFunc(func(s []float32) []float32 { return s })
	})
	registry.Register(vuMeterWorklet, func() internal_audio.Processor {
		return internal_audio.NewVolumeMeter()
	})

	worklet, err := graph.CreateProcessor(recorderWorklet)
	if err != nil {
		graph.Close()
		return nil, nil, nil, err
	}
	meter, err := graph.CreateProcessor(vuMeterWorklet)
	if err != nil {
		graph.Close()
		return nil, nil, nil, err
	}

	worklet.OnOutput(func(samples []float32) {
		r.data.Emit(internal_audio.EncodeBase64(internal_audio.Float32ToPCM16(samples)))
	})
	meter.Processor().(*internal_audio.VolumeMeter).OnVolume(func(v float64) {
		r.volume.Emit(v)
	})
	return graph, worklet, meter, nil
}

// Stop is safe at any time. During setup it only marks the stop as pending
// and Start finishes the teardown.
func (r *AudioRecorder) Stop() {
	r.mu.Lock()
	switch r.state {
	case StateStarting:
		r.state = StateStopPending
		r.mu.Unlock()
		return
	case StateStarted:
	default:
		r.mu.Unlock()
		return
	}
	graph, mic := r.graph, r.mic
	r.graph, r.mic = nil, nil
	r.state = StateStopped
	r.mu.Unlock()

	graph.Close()
	stopTracks(mic)
	r.logger.Debugw("audio capture stopped")
}

func stopTracks(s *internal_type.MediaStream) {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
