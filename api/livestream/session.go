// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package livestream

import (
	"context"
	"errors"
	"fmt"

	internal_capture "github.com/kairoscomputer/api/livestream/internal/capture"
	internal_mixer "github.com/kairoscomputer/api/livestream/internal/mixer"
	internal_orchestrator "github.com/kairoscomputer/api/livestream/internal/orchestrator"
	internal_realtime "github.com/kairoscomputer/api/livestream/internal/realtime"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	internal_workflow "github.com/kairoscomputer/api/livestream/internal/workflow"
	"github.com/kairoscomputer/config"
	"github.com/kairoscomputer/pkg/commons"
)

var ErrNoRecording = errors.New("no recording to confirm")

type sessionOptions struct {
	live         []internal_orchestrator.LiveOption
	mixer        []internal_mixer.Option
	orchestrator []internal_orchestrator.Option
	upload       []internal_workflow.Option
	tools        internal_orchestrator.ToolHandler
}

type SessionOption func(*sessionOptions)

func WithLiveOptions(opts ...internal_orchestrator.LiveOption) SessionOption {
	return func(o *sessionOptions) { o.live = append(o.live, opts...) }
}

func WithMixerOptions(opts ...internal_mixer.Option) SessionOption {
	return func(o *sessionOptions) { o.mixer = append(o.mixer, opts...) }
}

func WithOrchestratorOptions(opts ...internal_orchestrator.Option) SessionOption {
	return func(o *sessionOptions) { o.orchestrator = append(o.orchestrator, opts...) }
}

func WithUploadOptions(opts ...internal_workflow.Option) SessionOption {
	return func(o *sessionOptions) { o.upload = append(o.upload, opts...) }
}

// WithWorkflowTool lets the model edit the workflow being recorded through
// the update_workflow function.
func WithWorkflowTool(handler internal_orchestrator.ToolHandler) SessionOption {
	return func(o *sessionOptions) { o.tools = handler }
}

// Session is one recorder page: a live streaming session whose recording can
// be confirmed into a workflow.
type Session struct {
	logger       commons.Logger
	orchestrator *internal_orchestrator.Orchestrator
	uploader     *internal_workflow.Uploader
}

func SetupConfig(cfg *config.AppConfig) *internal_realtime.SetupConfig {
	setup := internal_realtime.DefaultSetupConfig(cfg.Livestream.Model)
	setup.GenerationConfig.ResponseModalities = cfg.Livestream.ResponseModality
	return setup
}

func OrchestratorConfig(cfg *config.AppConfig) internal_orchestrator.Config {
	return internal_orchestrator.Config{
		FrameInterval:     cfg.Livestream.FrameInterval(),
		MaxFrameDimension: cfg.Livestream.MaxFrameDimension,
		JpegQuality:       cfg.Livestream.JpegQuality,
		RequireMicrophone: cfg.Livestream.RequireMicrophone,
	}
}

func NewSession(logger commons.Logger, cfg *config.AppConfig, devices internal_type.MediaDevices, opts ...SessionOption) (*Session, error) {
	o := &sessionOptions{}
	for _, opt := range opts {
		opt(o)
	}

	setup := SetupConfig(cfg)
	orchestratorOpts := []internal_orchestrator.Option{internal_orchestrator.WithConfig(OrchestratorConfig(cfg))}
	if o.tools != nil {
		setup = internal_realtime.WithFunctionDeclarations(setup, internal_realtime.UpdateWorkflowDeclaration())
		orchestratorOpts = append(orchestratorOpts, internal_orchestrator.WithToolHandler(o.tools))
	}

	cookies, err := internal_workflow.NewCookieStore(cfg.Workflow.CookieDomain)
	if err != nil {
		return nil, fmt.Errorf("unable to create cookie store: %w", err)
	}

	live := internal_orchestrator.NewLiveAPI(logger, cfg.ScreenShareSocketURL(),
		append([]internal_orchestrator.LiveOption{internal_orchestrator.WithSetupConfig(setup)}, o.live...)...)
	mixer := internal_mixer.NewMixer(logger, devices, o.mixer...)
	recorder := internal_capture.NewAudioRecorder(logger, devices)

	uploader := internal_workflow.NewUploader(logger, cfg.Workflow.SiteURL, append([]internal_workflow.Option{
		internal_workflow.WithCookieStore(cookies),
		internal_workflow.WithPolling(cfg.Workflow.PollInterval(), cfg.Workflow.PollAttempts),
		internal_workflow.WithDefaultMime(cfg.Workflow.DefaultMime),
	}, o.upload...)...)

	return &Session{
		logger:       logger,
		orchestrator: internal_orchestrator.NewOrchestrator(logger, live, mixer, recorder, append(orchestratorOpts, o.orchestrator...)...),
		uploader:     uploader,
	}, nil
}

func (s *Session) StartStreaming(ctx context.Context) error {
	return s.orchestrator.StartStreaming(ctx)
}

func (s *Session) StopStreaming() error {
	return s.orchestrator.StopStreaming()
}

func (s *Session) Status() internal_orchestrator.Status {
	return s.orchestrator.Status()
}

func (s *Session) OnStatus(fn func(internal_orchestrator.Status)) (off func()) {
	return s.orchestrator.OnStatus(fn)
}

// Confirm uploads the last recording. It can be retried after a failure
// without recording again.
func (s *Session) Confirm(ctx context.Context) (*internal_workflow.Workflow, error) {
	if st := s.orchestrator.Status().State; st == internal_orchestrator.StateStarting || st == internal_orchestrator.StateActive {
		return nil, internal_type.ErrSessionActive
	}
	_, blob := s.orchestrator.Recording()
	if blob.Size() == 0 {
		return nil, ErrNoRecording
	}
	return s.uploader.Upload(ctx, blob)
}

func (s *Session) Close() error {
	return s.orchestrator.Close()
}
