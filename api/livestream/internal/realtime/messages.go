// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_realtime

import (
	"google.golang.org/genai"
)

// =============================================================================
// Outgoing
// =============================================================================

// SetupConfig is sent once as the first frame of every connection.
type SetupConfig struct {
	Model             string            `json:"model"`
	SystemInstruction *genai.Content    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	Tools             []*genai.Tool     `json:"tools,omitempty"`
}

// GenerationConfig carries a single response modality as a plain string
// ("text", "audio" or "image"), which is what the screenshare endpoint reads.
type GenerationConfig struct {
	ResponseModalities string              `json:"responseModalities,omitempty"`
	SpeechConfig       *genai.SpeechConfig `json:"speechConfig,omitempty"`
	Temperature        *float32            `json:"temperature,omitempty"`
	MaxOutputTokens    int32               `json:"maxOutputTokens,omitempty"`
}

const (
	ModalityText  = "text"
	ModalityAudio = "audio"
	ModalityImage = "image"
)

// MediaChunk is one base64 payload of realtime input.
type MediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type ToolResponse struct {
	FunctionResponses []*genai.FunctionResponse `json:"functionResponses"`
}

type clientContent struct {
	Turns        []*genai.Content `json:"turns"`
	TurnComplete bool             `json:"turnComplete"`
}

type realtimeInput struct {
	MediaChunks []MediaChunk `json:"mediaChunks"`
}

// outgoingMessage sets exactly one field per frame.
type outgoingMessage struct {
	Setup         *SetupConfig   `json:"setup,omitempty"`
	ClientContent *clientContent `json:"clientContent,omitempty"`
	RealtimeInput *realtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponse  `json:"toolResponse,omitempty"`
}

// =============================================================================
// Incoming
// =============================================================================

type ToolCall struct {
	FunctionCalls []*genai.FunctionCall `json:"functionCalls"`
}

type ToolCallCancellation struct {
	IDs []string `json:"ids"`
}

// CloseEvent describes the end of one connection. Requested is true when
// Disconnect caused it.
type CloseEvent struct {
	Code      int
	Reason    string
	Requested bool
}
