// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"bytes"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
	internal_media "github.com/kairoscomputer/api/livestream/internal/media"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTicker ticks only when the test sends on it.
func manualTicker(ch chan time.Time) TickerFunc {
	return func(time.Duration) (<-chan time.Time, func()) {
		return ch, func() {}
	}
}

func screenImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	return img
}

func TestMatroskaRecorder_RejectsStreamWithoutVideo(t *testing.T) {
	rec := NewMatroskaRecorder(newTestLogger(t))
	stream := internal_type.NewMediaStream(internal_media.NewLocalAudioTrack("mix", 48000))
	assert.ErrorIs(t, rec.Start(stream, func([]byte) {}), ErrNoVideoTrack)
	assert.NoError(t, rec.Stop(), "stop before start is a no-op")
}

func TestMatroskaRecorder_RecordsScreenAndAudio(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	tick := make(chan time.Time)
	rec := NewMatroskaRecorder(newTestLogger(t),
		WithClock(clock.Now),
		WithTicker(manualTicker(tick)),
		WithTimeslice(100*time.Millisecond),
		WithFrameEncoding(160, 80))
	assert.Equal(t, MatroskaMimeType, rec.MimeType())

	screen := internal_media.NewLocalVideoTrack("screen")
	screen.WriteFrame(screenImage(320, 180))
	mix := internal_media.NewLocalAudioTrack("mix", 48000)
	c := &collector{}
	require.NoError(t, rec.Start(internal_type.NewMediaStream(screen, mix), c.ondata))

	// 200ms of audio with the screen sampled every 100ms
	for i := 0; i < 10; i++ {
		mix.WriteFrame(sine(960, 48000, 440))
		clock.Advance(20 * time.Millisecond)
		if i%5 == 4 {
			tick <- clock.Now()
		}
	}
	// the ticker loop is back in select once a second tick is taken
	tick <- clock.Now()
	require.NoError(t, rec.Stop())
	require.NoError(t, rec.Stop())

	c.mu.Lock()
	chunks := len(c.chunks)
	c.mu.Unlock()
	assert.GreaterOrEqual(t, chunks, 2, "container bytes are handed out every timeslice")

	data := c.all()
	require.True(t, bytes.HasPrefix(data, []byte{0x1a, 0x45, 0xdf, 0xa3}), "EBML magic")
	doc := parseMatroska(t, data)
	assert.Equal(t, "matroska", doc.Header.DocType)

	entries := doc.Segment.Tracks.TrackEntry
	require.Len(t, entries, 2)
	assert.Equal(t, VideoCodecID, entries[0].CodecID)
	require.NotNil(t, entries[0].Video)
	assert.Equal(t, uint64(160), entries[0].Video.PixelWidth)
	assert.Equal(t, uint64(90), entries[0].Video.PixelHeight)
	assert.Equal(t, AudioCodecID, entries[1].CodecID)
	assert.True(t, bytes.HasPrefix(entries[1].CodecPrivate, []byte("OpusHead")))

	video := doc.blocks(videoTrackNumber)
	assert.GreaterOrEqual(t, len(video), 3, "one frame at start and one per tick")
	for _, b := range video {
		require.NotEmpty(t, b.Data)
		assert.True(t, bytes.HasPrefix(b.Data[0], []byte{0xff, 0xd8}), "each video block is a JPEG")
	}
	assert.Len(t, doc.blocks(audioTrackNumber), 10, "one Opus packet per 20ms")
}

func TestMatroskaRecorder_VideoOnly(t *testing.T) {
	tick := make(chan time.Time)
	rec := NewMatroskaRecorder(newTestLogger(t), WithTicker(manualTicker(tick)))
	screen := internal_media.NewLocalVideoTrack("screen")
	c := &collector{}
	require.NoError(t, rec.Start(internal_type.NewMediaStream(screen), c.ondata))

	// nothing is recorded until the screen has produced a frame
	tick <- time.Now()
	screen.WriteFrame(screenImage(64, 48))
	tick <- time.Now()
	tick <- time.Now()
	require.NoError(t, rec.Stop())

	doc := parseMatroska(t, c.all())
	require.Len(t, doc.Segment.Tracks.TrackEntry, 1)
	assert.NotEmpty(t, doc.blocks(videoTrackNumber))
	assert.Empty(t, doc.blocks(audioTrackNumber))
}

func TestFactory_PicksContainerByTracks(t *testing.T) {
	factory := Factory(newTestLogger(t))

	rec, err := factory(internal_type.NewMediaStream(
		internal_media.NewLocalVideoTrack("screen"),
		internal_media.NewLocalAudioTrack("mix", 48000)))
	require.NoError(t, err)
	assert.Equal(t, MatroskaMimeType, rec.MimeType())

	rec, err = factory(internal_type.NewMediaStream(internal_media.NewLocalAudioTrack("mix", 48000)))
	require.NoError(t, err)
	assert.Equal(t, OggMimeType, rec.MimeType())

	_, err = factory(internal_type.NewMediaStream())
	assert.ErrorIs(t, err, ErrNothingToRecord)
}

type matroskaDoc struct {
	Header  webm.EBMLHeader `ebml:"EBML"`
	Segment struct {
		Info   webm.Info `ebml:"Info"`
		Tracks struct {
			TrackEntry []webm.TrackEntry `ebml:"TrackEntry"`
		} `ebml:"Tracks"`
		Cluster []struct {
			Timecode    uint64       `ebml:"Timecode"`
			SimpleBlock []ebml.Block `ebml:"SimpleBlock"`
		} `ebml:"Cluster"`
	} `ebml:"Segment"`
}

func parseMatroska(t *testing.T, data []byte) matroskaDoc {
	t.Helper()
	var doc matroskaDoc
	require.NoError(t, ebml.Unmarshal(bytes.NewReader(data), &doc))
	return doc
}

func (d matroskaDoc) blocks(track uint64) []ebml.Block {
	var out []ebml.Block
	for _, cluster := range d.Segment.Cluster {
		for _, b := range cluster.SimpleBlock {
			if b.TrackNumber == track {
				out = append(out, b)
			}
		}
	}
	return out
}
