// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_video

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	internal_media "github.com/kairoscomputer/api/livestream/internal/media"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, max int
		ww, wh    int
	}{
		{1920, 1080, 640, 640, 360},
		{1080, 1920, 640, 360, 640},
		{640, 480, 640, 640, 480},
		{320, 200, 640, 320, 200},
		{3000, 10, 640, 640, 2},
		{10000, 1, 640, 640, 1},
	}
	for _, tt := range tests {
		w, h := FitWithin(tt.w, tt.h, tt.max)
		assert.Equal(t, tt.ww, w, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wh, h, "%dx%d", tt.w, tt.h)
	}
}

func TestEncodeFrame_ScalesAndEncodesJPEG(t *testing.T) {
	frame, err := EncodeFrame(solid(1280, 720), 640, 90)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", frame.MimeType)
	assert.Equal(t, 640, frame.Width)
	assert.Equal(t, 360, frame.Height)

	decoded, err := jpeg.Decode(bytes.NewReader(frame.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 360), decoded.Bounds())
	assert.NotEmpty(t, frame.Base64())
}

func TestEncodeFrame_SmallFramesKeepSize(t *testing.T) {
	frame, err := EncodeFrame(solid(100, 50), 640, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, frame.Width)
	assert.Equal(t, 50, frame.Height)
}

func TestEncodeFrame_NotReady(t *testing.T) {
	_, err := EncodeFrame(nil, 640, 90)
	assert.ErrorIs(t, err, internal_type.ErrFrameNotReady)
	_, err = EncodeFrame(image.NewRGBA(image.Rect(0, 0, 0, 10)), 640, 90)
	assert.ErrorIs(t, err, internal_type.ErrFrameNotReady)
}

func TestCaptureFrame_FollowsTrackState(t *testing.T) {
	track := internal_media.NewLocalVideoTrack("screen")
	_, err := CaptureFrame(track, 640, 90)
	assert.ErrorIs(t, err, internal_type.ErrFrameNotReady)

	track.WriteFrame(solid(800, 800))
	frame, err := CaptureFrame(track, 640, 90)
	require.NoError(t, err)
	assert.Equal(t, 640, frame.Width)

	track.Stop()
	_, err = CaptureFrame(track, 640, 90)
	assert.ErrorIs(t, err, internal_type.ErrInvalidState)
}
