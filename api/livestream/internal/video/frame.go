// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_video

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"golang.org/x/image/draw"
)

const (
	MimeType = "image/jpeg"

	DefaultMaxDimension = 640
	DefaultQuality      = 100
)

// Frame is one encoded still ready to send.
type Frame struct {
	Width    int
	Height   int
	MimeType string
	Data     []byte
}

func (f Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// FitWithin scales (w, h) so the longer side is at most limit, keeping the
// aspect ratio. Sizes that already fit are returned unchanged.
func FitWithin(w, h, limit int) (int, int) {
	if w <= 0 || h <= 0 || limit <= 0 {
		return w, h
	}
	longer := w
	if h > longer {
		longer = h
	}
	if longer <= limit {
		return w, h
	}
	nw := w * limit / longer
	nh := h * limit / longer
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// EncodeFrame downscales img to fit maxDimension and encodes it as JPEG.
// An empty image is reported as ErrFrameNotReady.
func EncodeFrame(img image.Image, maxDimension, quality int) (Frame, error) {
	if img == nil {
		return Frame{}, internal_type.ErrFrameNotReady
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Frame{}, internal_type.ErrFrameNotReady
	}
	w, h := FitWithin(b.Dx(), b.Dy(), maxDimension)

	var src image.Image = img
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		src = dst
	}

	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return Frame{}, fmt.Errorf("unable to encode frame: %w", err)
	}
	return Frame{Width: w, Height: h, MimeType: MimeType, Data: buf.Bytes()}, nil
}

// CaptureFrame reads the current frame of track and encodes it.
func CaptureFrame(track internal_type.VideoTrack, maxDimension, quality int) (Frame, error) {
	img, err := track.ReadFrame()
	if err != nil {
		return Frame{}, err
	}
	return EncodeFrame(img, maxDimension, quality)
}
