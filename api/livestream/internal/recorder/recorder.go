// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"bytes"
	"errors"
	"sync"
	"time"

	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
)

const (
	DefaultTimeslice     = time.Second
	DefaultFrameInterval = 200 * time.Millisecond
	DefaultMaxDimension  = 1280
	DefaultJpegQuality   = 80
)

var ErrNothingToRecord = errors.New("stream has no track to record")

// TickerFunc returns a tick channel and its stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

type options struct {
	timeslice     time.Duration
	clock         func() time.Time
	ticker        TickerFunc
	frameInterval time.Duration
	maxDimension  int
	jpegQuality   int
}

type Option func(*options)

// WithTimeslice sets how often buffered container bytes are handed to ondata.
func WithTimeslice(d time.Duration) Option {
	return func(o *options) { o.timeslice = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithTicker replaces the ticker that samples video frames.
func WithTicker(ticker TickerFunc) Option {
	return func(o *options) { o.ticker = ticker }
}

// WithFrameInterval sets how often the screen is sampled into the recording.
func WithFrameInterval(d time.Duration) Option {
	return func(o *options) { o.frameInterval = d }
}

// WithFrameEncoding bounds the recorded frame size and sets the JPEG quality.
func WithFrameEncoding(maxDimension, quality int) Option {
	return func(o *options) {
		o.maxDimension = maxDimension
		o.jpegQuality = quality
	}
}

func newOptions(opts []Option) options {
	o := options{
		timeslice:     DefaultTimeslice,
		clock:         time.Now,
		ticker:        realTicker,
		frameInterval: DefaultFrameInterval,
		maxDimension:  DefaultMaxDimension,
		jpegQuality:   DefaultJpegQuality,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Factory records streams carrying video as Matroska and audio-only streams
// as Ogg/Opus.
func Factory(logger commons.Logger, opts ...Option) internal_type.MediaRecorderFactory {
	return func(stream *internal_type.MediaStream) (internal_type.MediaRecorder, error) {
		switch {
		case len(stream.VideoTracks()) > 0:
			return NewMatroskaRecorder(logger, opts...), nil
		case len(stream.AudioTracks()) > 0:
			return NewOggOpusRecorder(logger, opts...), nil
		}
		return nil, ErrNothingToRecord
	}
}

// sink buffers container output and hands it to ondata at most once per
// timeslice. Close marks the end of the container.
type sink struct {
	timeslice time.Duration
	clock     func() time.Time
	ondata    func([]byte)

	mu        sync.Mutex
	buf       bytes.Buffer
	lastFlush time.Time

	// flushMu keeps ondata calls in write order.
	flushMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
}

func newSink(o options, ondata func([]byte)) *sink {
	return &sink{
		timeslice: o.timeslice,
		clock:     o.clock,
		ondata:    ondata,
		lastFlush: o.clock(),
		closed:    make(chan struct{}),
	}
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *sink) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// wait reports whether the writer closed the sink within timeout.
func (s *sink) wait(timeout time.Duration) bool {
	select {
	case <-s.closed:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *sink) flushIfDue() {
	s.mu.Lock()
	due := s.clock().Sub(s.lastFlush) >= s.timeslice
	s.mu.Unlock()
	if due {
		s.flush()
	}
}

func (s *sink) flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	s.lastFlush = s.clock()
	if s.buf.Len() == 0 {
		s.mu.Unlock()
		return
	}
	chunk := bytes.Clone(s.buf.Bytes())
	s.buf.Reset()
	s.mu.Unlock()

	if s.ondata != nil {
		s.ondata(chunk)
	}
}
