// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "errors"

var (
	// ErrCaptureDenied: display or microphone capture was refused by the user or
	// the OS, or no capture device exists. Needs a new user gesture to retry.
	ErrCaptureDenied = errors.New("capture denied")

	// ErrNoAudioInput: no microphone could be acquired.
	ErrNoAudioInput = errors.New("no audio input")

	// ErrConfiguration: connect attempted without a setup config.
	ErrConfiguration = errors.New("setup config has not been set")

	// ErrProcessingTimeout: the backend did not finish processing a workflow
	// within the poll ceiling.
	ErrProcessingTimeout = errors.New("workflow processing timed out")

	ErrNotConnected  = errors.New("realtime session is not connected")
	ErrSessionActive = errors.New("a streaming session is already active")
	ErrStopped       = errors.New("stopped before start completed")

	// ErrInvalidState is the transient class raised when a frame is read from a
	// track that is changing state. Callers log it and move on.
	ErrInvalidState = errors.New("invalid state")

	// ErrFrameNotReady: the video track has not produced a frame yet.
	ErrFrameNotReady = errors.New("frame not ready")
)
