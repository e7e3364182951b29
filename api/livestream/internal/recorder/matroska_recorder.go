// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	internal_video "github.com/kairoscomputer/api/livestream/internal/video"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/utils"
)

const (
	MatroskaMimeType = "video/x-matroska;codecs=mjpeg,opus"

	VideoCodecID = "V_MJPEG"
	AudioCodecID = "A_OPUS"

	videoTrackNumber = 1
	audioTrackNumber = 2
	trackTypeVideo   = 1
	trackTypeAudio   = 2

	opusCodecDelay  = 6500000  // ns, pre-skip at 48kHz
	opusSeekPreRoll = 80000000 // ns

	muxerCloseWait = 5 * time.Second
)

var ErrNoVideoTrack = errors.New("stream has no video track to record")

var (
	matroskaHeader = &webm.EBMLHeader{
		EBMLVersion:        1,
		EBMLReadVersion:    1,
		EBMLMaxIDLength:    4,
		EBMLMaxSizeLength:  8,
		DocType:            "matroska",
		DocTypeVersion:     4,
		DocTypeReadVersion: 2,
	}
	matroskaInfo = &webm.Info{
		TimecodeScale: 1000000, // block timestamps in ms
		MuxingApp:     "kairos",
		WritingApp:    "kairos",
	}
)

// matroskaRecorder records the composite as Matroska: the screen sampled as
// Motion JPEG on track 1 and, when present, the first audio track as Opus on
// track 2.
type matroskaRecorder struct {
	logger commons.Logger
	opts   options

	mu          sync.Mutex
	started     bool
	stopped     bool
	start       time.Time
	screen      internal_type.VideoTrack
	rate        int
	audio       *opusStream
	videoOut    mkvcore.BlockWriteCloser
	audioOut    mkvcore.BlockWriteCloser
	sink        *sink
	videoFrames int
	off         func()
	quit        chan struct{}
	done        chan struct{}
}

func NewMatroskaRecorder(logger commons.Logger, opts ...Option) internal_type.MediaRecorder {
	return &matroskaRecorder{logger: logger, opts: newOptions(opts)}
}

func (r *matroskaRecorder) MimeType() string {
	return MatroskaMimeType
}

func (r *matroskaRecorder) Start(stream *internal_type.MediaStream, ondata func([]byte)) error {
	videos := stream.VideoTracks()
	if len(videos) == 0 {
		return ErrNoVideoTrack
	}
	screen := videos[0]

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("recorder already started")
	}

	width, height := r.frameSize(screen)
	tracks := []mkvcore.TrackDescription{{
		TrackNumber: videoTrackNumber,
		TrackEntry: webm.TrackEntry{
			Name:        "screen",
			TrackNumber: videoTrackNumber,
			TrackUID:    rand.Uint64(),
			CodecID:     VideoCodecID,
			TrackType:   trackTypeVideo,
			Video: &webm.Video{
				PixelWidth:  uint64(width),
				PixelHeight: uint64(height),
			},
		},
	}}

	var mix internal_type.AudioTrack
	if audioTracks := stream.AudioTracks(); len(audioTracks) > 0 {
		audio, err := newOpusStream(r.logger)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		mix = audioTracks[0]
		r.audio = audio
		tracks = append(tracks, mkvcore.TrackDescription{
			TrackNumber: audioTrackNumber,
			TrackEntry: webm.TrackEntry{
				Name:         "audio",
				TrackNumber:  audioTrackNumber,
				TrackUID:     rand.Uint64(),
				CodecID:      AudioCodecID,
				CodecPrivate: opusHead(),
				CodecDelay:   opusCodecDelay,
				SeekPreRoll:  opusSeekPreRoll,
				TrackType:    trackTypeAudio,
				Audio: &webm.Audio{
					SamplingFrequency: OpusSampleRate,
					Channels:          OpusChannels,
				},
			},
		})
	}

	out := newSink(r.opts, ondata)
	writers, err := mkvcore.NewSimpleBlockWriter(out, tracks,
		mkvcore.WithEBMLHeader(matroskaHeader),
		mkvcore.WithSegmentInfo(matroskaInfo),
		mkvcore.WithOnErrorHandler(func(err error) {
			r.logger.Warnw("matroska muxer error", "error", err)
		}),
		mkvcore.WithOnFatalHandler(func(err error) {
			r.logger.Errorw("matroska muxer failed", "error", err)
		}),
	)
	if err != nil {
		r.audio = nil
		r.mu.Unlock()
		return fmt.Errorf("unable to create matroska writer: %w", err)
	}

	r.sink = out
	r.screen = screen
	r.videoOut = writers[0]
	if mix != nil {
		r.audioOut = writers[1]
		r.rate = mix.SampleRate()
		r.off = mix.OnFrame(r.onAudio)
	}
	r.start = r.opts.clock()
	r.started = true
	quit, done := make(chan struct{}), make(chan struct{})
	r.quit, r.done = quit, done
	tick, stopTick := r.opts.ticker(r.opts.frameInterval)
	r.mu.Unlock()

	r.captureFrame()
	utils.Go(context.Background(), r.logger, func() {
		defer close(done)
		defer stopTick()
		for {
			select {
			case <-quit:
				return
			case <-tick:
				r.captureFrame()
			}
		}
	})

	r.logger.Debugw("matroska recorder started",
		"screen", screen.ID(),
		"audio", mix != nil,
		"frame_interval", r.opts.frameInterval.String(),
		"timeslice", r.opts.timeslice.String())
	return nil
}

// frameSize is the display size declared for the video track. Frames keep
// their own dimensions inside each JPEG.
func (r *matroskaRecorder) frameSize(screen internal_type.VideoTrack) (int, int) {
	if img, err := screen.ReadFrame(); err == nil {
		b := img.Bounds()
		return internal_video.FitWithin(b.Dx(), b.Dy(), r.opts.maxDimension)
	}
	return r.opts.maxDimension, r.opts.maxDimension * 9 / 16
}

func (r *matroskaRecorder) captureFrame() {
	img, err := r.screen.ReadFrame()
	if err != nil {
		return
	}
	frame, err := internal_video.EncodeFrame(img, r.opts.maxDimension, r.opts.jpegQuality)
	if err != nil {
		r.logger.Debugw("skipping screen frame", "error", err)
		return
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	ts := r.opts.clock().Sub(r.start).Milliseconds()
	if _, err := r.videoOut.Write(true, ts, frame.Data); err != nil {
		r.logger.Warnw("matroska video write failed", "error", err)
	} else {
		r.videoFrames++
	}
	r.mu.Unlock()

	r.sink.flushIfDue()
}

func (r *matroskaRecorder) onAudio(f internal_type.AudioFrame) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	for _, p := range r.audio.push(f, r.rate) {
		r.writeAudio(p)
	}
	r.mu.Unlock()

	r.sink.flushIfDue()
}

// writeAudio expects r.mu to be held.
func (r *matroskaRecorder) writeAudio(p opusPacket) {
	if _, err := r.audioOut.Write(true, p.pts.Milliseconds(), p.data); err != nil {
		r.logger.Warnw("matroska audio write failed", "error", err)
	}
}

// Stop ends sampling, encodes the last partial audio frame, closes every
// track and flushes the finished container. Calling Stop again is a no-op.
func (r *matroskaRecorder) Stop() error {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	off, quit, done := r.off, r.quit, r.done
	r.off = nil
	r.mu.Unlock()

	if off != nil {
		off()
	}
	close(quit)
	<-done

	var errs []error
	r.mu.Lock()
	if r.audio != nil {
		if p, ok := r.audio.drain(); ok {
			r.writeAudio(p)
		}
	}
	for _, w := range []mkvcore.BlockWriteCloser{r.videoOut, r.audioOut} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	videoFrames := r.videoFrames
	var audioDuration time.Duration
	if r.audio != nil {
		audioDuration = r.audio.duration()
	}
	r.mu.Unlock()

	if !r.sink.wait(muxerCloseWait) {
		errs = append(errs, errors.New("matroska muxer did not finish in time"))
	}
	r.sink.flush()

	r.logger.Infow("matroska recorder stopped",
		"video_frames", videoFrames,
		"audio_duration", audioDuration.String())
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("unable to close matroska stream: %w", err)
	}
	return nil
}
