// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ServerMessage is one parsed inbound frame. The concrete type is one of
// SetupComplete, ModelTurn, TurnComplete, Interrupted, ToolCallMessage,
// ToolCallCancellationMessage or Unknown.
type ServerMessage interface {
	serverMessage()
}

type SetupComplete struct{}

// ModelTurn is a content turn. Audio holds the decoded PCM of every inline
// audio part in order; Content keeps the remaining parts. TurnComplete is
// set when the same frame also closed the turn.
type ModelTurn struct {
	Audio        [][]byte
	Content      *genai.Content
	TurnComplete bool
}

type TurnComplete struct{}

type Interrupted struct{}

type ToolCallMessage struct {
	ToolCall *ToolCall
}

type ToolCallCancellationMessage struct {
	Cancellation *ToolCallCancellation
}

// Unknown is anything the client does not understand.
type Unknown struct {
	Raw []byte
}

func (SetupComplete) serverMessage()               {}
func (ModelTurn) serverMessage()                   {}
func (TurnComplete) serverMessage()                {}
func (Interrupted) serverMessage()                 {}
func (ToolCallMessage) serverMessage()             {}
func (ToolCallCancellationMessage) serverMessage() {}
func (Unknown) serverMessage()                     {}

type incomingMessage struct {
	SetupComplete        *json.RawMessage      `json:"setupComplete"`
	ServerContent        *serverContent        `json:"serverContent"`
	ToolCall             *ToolCall             `json:"toolCall"`
	ToolCallCancellation *ToolCallCancellation `json:"toolCallCancellation"`
}

type serverContent struct {
	ModelTurn    *genai.Content `json:"modelTurn"`
	TurnComplete *bool          `json:"turnComplete"`
	Interrupted  *bool          `json:"interrupted"`
}

// ParseServerMessage decodes one frame. Frames that are valid JSON but match
// no known shape come back as Unknown with a nil error.
func ParseServerMessage(data []byte) (ServerMessage, error) {
	var msg incomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Unknown{Raw: data}, fmt.Errorf("invalid realtime frame: %w", err)
	}

	switch {
	case msg.SetupComplete != nil:
		return SetupComplete{}, nil

	case msg.ServerContent != nil:
		sc := msg.ServerContent
		if sc.Interrupted != nil && *sc.Interrupted {
			return Interrupted{}, nil
		}
		turnComplete := sc.TurnComplete != nil && *sc.TurnComplete
		if sc.ModelTurn != nil {
			return splitModelTurn(sc.ModelTurn, turnComplete), nil
		}
		if turnComplete {
			return TurnComplete{}, nil
		}

	case msg.ToolCall != nil:
		return ToolCallMessage{ToolCall: msg.ToolCall}, nil

	case msg.ToolCallCancellation != nil:
		if msg.ToolCallCancellation.IDs == nil {
			break
		}
		return ToolCallCancellationMessage{Cancellation: msg.ToolCallCancellation}, nil
	}
	return Unknown{Raw: data}, nil
}

func splitModelTurn(content *genai.Content, turnComplete bool) ModelTurn {
	turn := ModelTurn{
		Content:      &genai.Content{Role: content.Role},
		TurnComplete: turnComplete,
	}
	for _, p := range content.Parts {
		if p != nil && isAudioPart(p) {
			turn.Audio = append(turn.Audio, p.InlineData.Data)
			continue
		}
		turn.Content.Parts = append(turn.Content.Parts, p)
	}
	return turn
}

// isAudioPart treats inline data with no mime type as PCM audio.
func isAudioPart(p *genai.Part) bool {
	if p.InlineData == nil {
		return false
	}
	mime := p.InlineData.MIMEType
	return mime == "" || strings.HasPrefix(mime, "audio/pcm")
}
