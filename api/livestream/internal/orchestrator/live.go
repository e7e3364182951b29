// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_orchestrator

import (
	"context"
	"sync"

	internal_playback "github.com/kairoscomputer/api/livestream/internal/playback"
	internal_realtime "github.com/kairoscomputer/api/livestream/internal/realtime"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
)

type LiveOption func(*liveOptions)

type liveOptions struct {
	client   []internal_realtime.Option
	playback []internal_playback.Option
	config   *internal_realtime.SetupConfig
}

func WithClientOptions(opts ...internal_realtime.Option) LiveOption {
	return func(o *liveOptions) { o.client = append(o.client, opts...) }
}

func WithPlaybackOptions(opts ...internal_playback.Option) LiveOption {
	return func(o *liveOptions) { o.playback = append(o.playback, opts...) }
}

func WithSetupConfig(config *internal_realtime.SetupConfig) LiveOption {
	return func(o *liveOptions) { o.config = config }
}

// LiveAPI binds one realtime client to one playback pipeline: model audio is
// played as it arrives and interruptions cut playback short.
type LiveAPI struct {
	logger   commons.Logger
	client   *internal_realtime.Client
	streamer *internal_playback.AudioStreamer
	cancel   context.CancelFunc

	mu        sync.Mutex
	config    *internal_realtime.SetupConfig
	connected bool
	offs      []func()
}

func NewLiveAPI(logger commons.Logger, url string, opts ...LiveOption) *LiveAPI {
	o := &liveOptions{config: internal_realtime.DefaultSetupConfig("")}
	for _, opt := range opts {
		opt(o)
	}

	l := &LiveAPI{
		logger:   logger,
		client:   internal_realtime.NewClient(logger, url, o.client...),
		streamer: internal_playback.NewAudioStreamer(logger, o.playback...),
		config:   o.config,
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.streamer.Start(ctx)

	l.offs = append(l.offs,
		l.client.OnAudio(func(pcm []byte) { l.streamer.AddPCM16(pcm) }),
		l.client.OnInterrupted(l.streamer.Stop),
		l.client.OnClose(func(internal_realtime.CloseEvent) {
			l.mu.Lock()
			l.connected = false
			l.mu.Unlock()
		}),
	)
	return l
}

func (l *LiveAPI) Client() *internal_realtime.Client {
	return l.client
}

func (l *LiveAPI) SetConfig(config *internal_realtime.SetupConfig) {
	l.mu.Lock()
	l.config = config
	l.mu.Unlock()
}

func (l *LiveAPI) Config() *internal_realtime.SetupConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config
}

// Connect replaces any open connection with a new one using the current
// config.
func (l *LiveAPI) Connect(ctx context.Context) error {
	config := l.Config()
	if config == nil {
		return internal_type.ErrConfiguration
	}
	if err := l.client.Connect(ctx, config); err != nil {
		return err
	}
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	return nil
}

func (l *LiveAPI) Disconnect() {
	l.client.Disconnect()
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
}

// Connected is true from a successful Connect until the transport closes.
func (l *LiveAPI) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// AiAudioStream is the model's voice as a capturable stream.
func (l *LiveAPI) AiAudioStream() *internal_type.MediaStream {
	return l.streamer.OutputStream()
}

func (l *LiveAPI) Volume() float64 {
	return l.streamer.Volume()
}

func (l *LiveAPI) OnVolume(fn func(float64)) (off func()) {
	return l.streamer.OnVolume(fn)
}

func (l *LiveAPI) Close() {
	l.Disconnect()
	l.mu.Lock()
	offs := l.offs
	l.offs = nil
	l.mu.Unlock()
	for _, off := range offs {
		off()
	}
	l.cancel()
	l.streamer.Close()
}
