// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	internal_capture "github.com/kairoscomputer/api/livestream/internal/capture"
	internal_mixer "github.com/kairoscomputer/api/livestream/internal/mixer"
	internal_realtime "github.com/kairoscomputer/api/livestream/internal/realtime"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	internal_video "github.com/kairoscomputer/api/livestream/internal/video"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/utils"
	"google.golang.org/genai"
)

const (
	MessageStartFailed    = "Failed to start streaming"
	MessageAudioFailed    = "Failed to start audio"
	MessageConnectionLost = "Connection lost. Please stop and start streaming again."
)

type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopped  State = "stopped"
)

// Status is what a UI renders: the session state, whether the model session
// is set up, the last user-facing error and the last recording.
type Status struct {
	State       State
	Connected   bool
	StreamError string
	BlobURL     string
}

type Config struct {
	FrameInterval     time.Duration
	MaxFrameDimension int
	JpegQuality       int
	RequireMicrophone bool
}

func DefaultConfig() Config {
	return Config{
		FrameInterval:     500 * time.Millisecond,
		MaxFrameDimension: internal_video.DefaultMaxDimension,
		JpegQuality:       internal_video.DefaultQuality,
		RequireMicrophone: true,
	}
}

// ToolHandler answers one function call from the model. A returned error is
// sent back to the model as {"error": msg}.
type ToolHandler func(ctx context.Context, call *genai.FunctionCall) (map[string]any, error)

// TickerFunc returns a tick channel and its stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Option func(*Orchestrator)

func WithConfig(config Config) Option {
	return func(o *Orchestrator) { o.config = config }
}

func WithToolHandler(handler ToolHandler) Option {
	return func(o *Orchestrator) { o.tools = handler }
}

func WithTicker(ticker TickerFunc) Option {
	return func(o *Orchestrator) { o.ticker = ticker }
}

// forwarding is one run of the audio and video loops toward the model.
type forwarding struct {
	cancel  context.CancelFunc
	done    chan struct{}
	dataOff func()
}

// Orchestrator ties screen capture, microphone capture and the live model
// session into one start/stop lifecycle.
type Orchestrator struct {
	logger  commons.Logger
	live    *LiveAPI
	mixer   *internal_mixer.Mixer
	capture *internal_capture.AudioRecorder
	config  Config
	tools   ToolHandler
	ticker  TickerFunc

	mu          sync.Mutex
	state       State
	connected   bool
	streamError string
	blobURL     string
	blob        *internal_type.Blob
	composite   *internal_type.MediaStream
	closed      bool
	// wentActive is set once the current session reaches Active; only such
	// sessions keep their recording.
	wentActive bool

	// fwdMu serializes starting and stopping the forwarding loops.
	fwdMu sync.Mutex
	fwd   *forwarding

	// sendMu is held by every forwarding send; stopping takes it exclusively
	// so no send outlives StopStreaming.
	sendMu  sync.RWMutex
	sending bool

	status    internal_type.Emitter[Status]
	recording internal_type.Emitter[internal_mixer.Recording]
	offs      []func()
}

func NewOrchestrator(
	logger commons.Logger,
	live *LiveAPI,
	mixer *internal_mixer.Mixer,
	capture *internal_capture.AudioRecorder,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		logger:  logger,
		live:    live,
		mixer:   mixer,
		capture: capture,
		config:  DefaultConfig(),
		ticker:  realTicker,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}

	client := live.Client()
	o.offs = append(o.offs,
		client.OnSetupComplete(o.onSetupComplete),
		client.OnClose(o.onClose),
		client.OnToolCall(o.onToolCall),
		client.OnToolCallCancellation(func(c *internal_realtime.ToolCallCancellation) {
			o.logger.Debugw("tool calls cancelled", "ids", c.IDs)
		}),
		mixer.OnStop(o.onMixerStop),
	)
	return o
}

// OnStatus fires after every change, outside any lock.
func (o *Orchestrator) OnStatus(fn func(Status)) (off func()) {
	return o.status.On(fn)
}

// OnRecordingComplete fires once per session that went active, with the
// finalized recording.
func (o *Orchestrator) OnRecordingComplete(fn func(internal_mixer.Recording)) (off func()) {
	return o.recording.On(fn)
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}

func (o *Orchestrator) snapshot() Status {
	return Status{
		State:       o.state,
		Connected:   o.connected,
		StreamError: o.streamError,
		BlobURL:     o.blobURL,
	}
}

func (o *Orchestrator) publish() {
	o.status.Emit(o.Status())
}

// Recording returns the blob URL and blob of the last finished session.
func (o *Orchestrator) Recording() (string, *internal_type.Blob) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.blobURL, o.blob
}

// Composite is the display video plus mixed audio of the running session.
func (o *Orchestrator) Composite() *internal_type.MediaStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.composite
}

// StartStreaming acquires the screen, the microphone and the model session in
// that order. Any failure releases everything acquired so far and leaves the
// orchestrator Idle with StreamError set.
func (o *Orchestrator) StartStreaming(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return internal_type.ErrStopped
	}
	if o.state == StateStarting || o.state == StateActive {
		o.mu.Unlock()
		return internal_type.ErrSessionActive
	}
	previous := o.blobURL
	o.state = StateStarting
	o.wentActive = false
	o.streamError = ""
	o.blobURL, o.blob = "", nil
	o.mu.Unlock()

	if previous != "" {
		o.mixer.BlobRegistry().RevokeObjectURL(previous)
	}
	o.publish()

	composite, err := o.mixer.Start(ctx, o.live.AiAudioStream())
	if err != nil {
		return o.failStart(err, MessageStartFailed)
	}
	o.mu.Lock()
	o.composite = composite
	o.mu.Unlock()
	if o.aborted() {
		return o.abortStart()
	}

	if o.config.RequireMicrophone {
		if err := o.capture.Start(ctx); err != nil {
			if errors.Is(err, internal_type.ErrStopped) {
				return o.abortStart()
			}
			return o.failStart(err, fmt.Sprintf("%s: %v", MessageAudioFailed, err))
		}
		if o.aborted() {
			return o.abortStart()
		}
	}

	if err := o.live.Connect(ctx); err != nil {
		return o.failStart(err, MessageStartFailed)
	}

	o.mu.Lock()
	if o.state != StateStarting {
		o.mu.Unlock()
		return o.abortStart()
	}
	o.state = StateActive
	o.wentActive = true
	o.mu.Unlock()

	o.logger.Infow("streaming started", "url", o.live.Client().URL())
	o.publish()
	return nil
}

func (o *Orchestrator) aborted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state != StateStarting
}

// abortStart releases whatever StartStreaming acquired after a concurrent stop.
func (o *Orchestrator) abortStart() error {
	o.teardown()
	o.discardRecording()
	o.logger.Debugw("streaming stopped during start")
	return internal_type.ErrStopped
}

func (o *Orchestrator) failStart(err error, message string) error {
	o.logger.Errorw("unable to start streaming", "error", err)
	o.mu.Lock()
	if o.state == StateStarting {
		o.state = StateIdle
	}
	o.mu.Unlock()

	o.teardown()
	o.discardRecording()

	o.mu.Lock()
	o.streamError = message
	o.connected = false
	o.composite = nil
	o.mu.Unlock()
	o.publish()
	return err
}

// discardRecording revokes whatever recording a failed start left behind.
func (o *Orchestrator) discardRecording() {
	o.mu.Lock()
	url := o.blobURL
	o.blobURL, o.blob = "", nil
	o.mu.Unlock()
	if url != "" {
		o.mixer.BlobRegistry().RevokeObjectURL(url)
	}
}

// StopStreaming ends the session. Every step runs even when an earlier one
// fails; the failures are joined.
func (o *Orchestrator) StopStreaming() error {
	o.mu.Lock()
	if o.state != StateStarting && o.state != StateActive {
		o.mu.Unlock()
		return nil
	}
	o.state = StateStopped
	o.mu.Unlock()

	err := o.teardown()

	o.mu.Lock()
	o.connected = false
	o.composite = nil
	o.mu.Unlock()

	if err != nil {
		o.logger.Warnw("errors while stopping streaming", "error", err)
	}
	o.logger.Infow("streaming stopped")
	o.publish()
	return err
}

func (o *Orchestrator) teardown() error {
	var errs []error
	step := func(name string, fn func() error) {
		if err := utils.Recover(fn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("forwarding", func() error { o.stopForwarding(); return nil })
	step("live", func() error { o.live.Disconnect(); return nil })
	step("screen capture", o.mixer.Stop)
	step("audio capture", func() error { o.capture.Stop(); return nil })
	return errors.Join(errs...)
}

func (o *Orchestrator) onSetupComplete() {
	o.mu.Lock()
	if o.state != StateStarting && o.state != StateActive {
		o.mu.Unlock()
		return
	}
	o.connected = true
	o.mu.Unlock()

	o.startForwarding()
	o.publish()
}

// startForwarding sends microphone audio as it arrives and one screen frame
// per FrameInterval.
func (o *Orchestrator) startForwarding() {
	o.fwdMu.Lock()
	defer o.fwdMu.Unlock()
	if o.fwd != nil {
		return
	}
	o.mu.Lock()
	running := o.state == StateStarting || o.state == StateActive
	composite := o.composite
	o.mu.Unlock()
	if !running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	fwd := &forwarding{cancel: cancel, done: make(chan struct{})}

	client := o.live.Client()
	mime := o.capture.Config().MimeType()
	fwd.dataOff = o.capture.OnData(func(data string) {
		o.sendMu.RLock()
		defer o.sendMu.RUnlock()
		if !o.sending {
			return
		}
		if err := client.SendMediaChunks([]internal_realtime.MediaChunk{{MimeType: mime, Data: data}}); err != nil {
			o.logger.Debugw("unable to send audio chunk", "error", err)
		}
	})

	if !o.config.RequireMicrophone {
		if err := o.capture.Start(ctx); err != nil {
			o.logger.Warnw("streaming without microphone", "error", err)
		}
	}

	o.sendMu.Lock()
	o.sending = true
	o.sendMu.Unlock()

	tick, stop := o.ticker(o.config.FrameInterval)
	utils.Go(ctx, o.logger, func() {
		defer close(fwd.done)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				o.sendFrame(composite)
			}
		}
	})
	o.fwd = fwd
	o.logger.Debugw("forwarding started", "frame_interval", o.config.FrameInterval.String())
}

func (o *Orchestrator) sendFrame(composite *internal_type.MediaStream) {
	tracks := composite.VideoTracks()
	if len(tracks) == 0 {
		return
	}
	frame, err := internal_video.CaptureFrame(tracks[0], o.config.MaxFrameDimension, o.config.JpegQuality)
	switch {
	case errors.Is(err, internal_type.ErrFrameNotReady):
		return
	case errors.Is(err, internal_type.ErrInvalidState):
		o.logger.Debugw("video track no longer readable", "error", err)
		return
	case err != nil:
		o.logger.Errorw("unable to capture frame", "error", err)
		o.mu.Lock()
		o.streamError = err.Error()
		o.mu.Unlock()
		o.publish()
		return
	}

	o.sendMu.RLock()
	defer o.sendMu.RUnlock()
	if !o.sending {
		return
	}
	if err := o.live.Client().SendMediaChunks([]internal_realtime.MediaChunk{{
		MimeType: frame.MimeType,
		Data:     frame.Base64(),
	}}); err != nil {
		o.logger.Debugw("unable to send frame", "error", err)
	}
}

func (o *Orchestrator) stopForwarding() {
	o.fwdMu.Lock()
	defer o.fwdMu.Unlock()

	o.sendMu.Lock()
	o.sending = false
	o.sendMu.Unlock()

	fwd := o.fwd
	o.fwd = nil
	if fwd == nil {
		return
	}
	fwd.cancel()
	<-fwd.done
	fwd.dataOff()
	if !o.config.RequireMicrophone {
		o.capture.Stop()
	}
}

// onClose handles transport loss. An unrequested close during an active
// session stops forwarding and reports the loss; it never reconnects.
func (o *Orchestrator) onClose(ev internal_realtime.CloseEvent) {
	o.mu.Lock()
	o.connected = false
	lost := !ev.Requested && o.state == StateActive
	if lost {
		o.streamError = MessageConnectionLost
	}
	o.mu.Unlock()

	if lost {
		o.logger.Warnw("realtime connection lost", "code", ev.Code, "reason", ev.Reason)
		o.stopForwarding()
	}
	o.publish()
}

func (o *Orchestrator) onToolCall(call *internal_realtime.ToolCall) {
	if o.tools == nil {
		o.logger.Debugw("ignoring tool call without handler", "calls", len(call.FunctionCalls))
		return
	}
	responses := make([]*genai.FunctionResponse, 0, len(call.FunctionCalls))
	for _, fc := range call.FunctionCalls {
		var result map[string]any
		err := utils.Recover(func() error {
			var err error
			result, err = o.tools(context.Background(), fc)
			return err
		})
		if err != nil {
			o.logger.Warnw("tool call failed", "name", fc.Name, "error", err)
			result = map[string]any{"error": err.Error()}
		}
		responses = append(responses, &genai.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result})
	}
	if err := o.live.Client().SendToolResponse(internal_realtime.ToolResponse{FunctionResponses: responses}); err != nil {
		o.logger.Warnw("unable to send tool response", "error", err)
	}
}

// onMixerStop records the finished recording and, when the screen share was
// ended from outside, stops the rest of the session.
func (o *Orchestrator) onMixerStop(url string, blob *internal_type.Blob) {
	o.mu.Lock()
	running := o.state == StateStarting || o.state == StateActive
	keep := o.wentActive
	if keep {
		o.blobURL, o.blob = url, blob
	}
	o.mu.Unlock()

	if keep {
		o.recording.Emit(internal_mixer.Recording{URL: url, Blob: blob})
	} else if url != "" {
		o.mixer.BlobRegistry().RevokeObjectURL(url)
		o.logger.Debugw("discarding recording of a session that never went active")
	}
	if running {
		o.logger.Infow("screen capture ended, stopping streaming")
		_ = o.StopStreaming()
		return
	}
	o.publish()
}

// Close stops any session, revokes the held recording URL and releases the
// model session. It is idempotent.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	err := o.StopStreaming()

	o.mu.Lock()
	o.closed = true
	url := o.blobURL
	o.blobURL, o.blob = "", nil
	offs := o.offs
	o.offs = nil
	o.mu.Unlock()

	if url != "" {
		o.mixer.BlobRegistry().RevokeObjectURL(url)
	}
	for _, off := range offs {
		off()
	}
	o.live.Close()
	return err
}
