// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_media

import (
	"image"
	"sync"

	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
)

// LocalVideoTrack holds the latest frame pushed by its source.
type LocalVideoTrack struct {
	baseTrack
	frameMu sync.RWMutex
	frame   image.Image
}

func NewLocalVideoTrack(label string) *LocalVideoTrack {
	t := &LocalVideoTrack{}
	t.init(internal_type.TrackKindVideo, label)
	return t
}

func (t *LocalVideoTrack) WriteFrame(img image.Image) bool {
	if t.Stopped() {
		return false
	}
	t.frameMu.Lock()
	t.frame = img
	t.frameMu.Unlock()
	return true
}

func (t *LocalVideoTrack) ReadFrame() (image.Image, error) {
	if t.Stopped() {
		return nil, internal_type.ErrInvalidState
	}
	t.frameMu.RLock()
	defer t.frameMu.RUnlock()
	if t.frame == nil {
		return nil, internal_type.ErrFrameNotReady
	}
	b := t.frame.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, internal_type.ErrFrameNotReady
	}
	return t.frame, nil
}
