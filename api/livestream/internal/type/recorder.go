// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

// MediaRecorder encodes a stream into a container, handing encoded chunks to
// ondata as they become available.
type MediaRecorder interface {
	MimeType() string
	Start(stream *MediaStream, ondata func(chunk []byte)) error
	// Stop flushes whatever is buffered through ondata before returning.
	Stop() error
}

// MediaRecorderFactory picks a recorder able to record stream.
type MediaRecorderFactory func(stream *MediaStream) (MediaRecorder, error)
