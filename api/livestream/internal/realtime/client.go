// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/utils"
	"google.golang.org/genai"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const (
	handshakeTimeout = 30 * time.Second
	readLimit        = 10 * 1024 * 1024
	closeWait        = 5 * time.Second
	writeWait        = 10 * time.Second
)

type Option func(*Client)

// WithHeader adds headers to the websocket handshake.
func WithHeader(header http.Header) Option {
	return func(c *Client) { c.header = header }
}

// connection is one transport plus the goroutine reading it.
type connection struct {
	conn      *websocket.Conn
	done      chan struct{}
	requested atomic.Bool
}

// Client speaks the live session protocol over a websocket. At most one
// transport is open per client.
type Client struct {
	logger commons.Logger
	url    string
	header http.Header
	dialer *websocket.Dialer

	mu     sync.Mutex
	state  State
	active *connection
	config *SetupConfig
	// gen changes on every detach; a dial started under an older gen is stale.
	gen uint64

	writeMu sync.Mutex

	setupComplete        internal_type.Emitter[struct{}]
	content              internal_type.Emitter[*genai.Content]
	audio                internal_type.Emitter[[]byte]
	turnComplete         internal_type.Emitter[struct{}]
	interrupted          internal_type.Emitter[struct{}]
	toolCall             internal_type.Emitter[*ToolCall]
	toolCallCancellation internal_type.Emitter[*ToolCallCancellation]
	closed               internal_type.Emitter[CloseEvent]
}

func NewClient(logger commons.Logger, url string, opts ...Option) *Client {
	c := &Client{
		logger: logger,
		url:    url,
		header: http.Header{},
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config is the setup sent on the current or last connection.
func (c *Client) Config() *SetupConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

func (c *Client) OnSetupComplete(fn func()) (off func()) {
	return c.setupComplete.On(func(struct{}) { fn() })
}

// OnContent receives model turns without their audio parts.
func (c *Client) OnContent(fn func(*genai.Content)) (off func()) {
	return c.content.On(fn)
}

// OnAudio receives decoded PCM16 before the OnContent of the same turn.
func (c *Client) OnAudio(fn func([]byte)) (off func()) {
	return c.audio.On(fn)
}

func (c *Client) OnTurnComplete(fn func()) (off func()) {
	return c.turnComplete.On(func(struct{}) { fn() })
}

func (c *Client) OnInterrupted(fn func()) (off func()) {
	return c.interrupted.On(func(struct{}) { fn() })
}

func (c *Client) OnToolCall(fn func(*ToolCall)) (off func()) {
	return c.toolCall.On(fn)
}

func (c *Client) OnToolCallCancellation(fn func(*ToolCallCancellation)) (off func()) {
	return c.toolCallCancellation.On(fn)
}

// OnClose fires once for every transport that closes, whoever closed it.
func (c *Client) OnClose(fn func(CloseEvent)) (off func()) {
	return c.closed.On(fn)
}

// Connect closes any previous transport, dials, and sends config as the first
// frame. It returns once the transport is open; State becomes Connected when
// the peer acknowledges the setup.
func (c *Client) Connect(ctx context.Context, config *SetupConfig) error {
	if config == nil {
		return internal_type.ErrConfiguration
	}
	start := time.Now()

	if prev := c.detach(); prev != nil {
		c.closeConnection(prev)
		select {
		case <-prev.done:
		case <-time.After(closeWait):
			c.logger.Warnw("previous realtime connection did not close in time")
		}
	}

	c.mu.Lock()
	c.state = StateConnecting
	c.config = config
	gen := c.gen
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return fmt.Errorf("failed to connect to realtime session: %w", err)
	}
	conn.SetReadLimit(readLimit)

	active := &connection{conn: conn, done: make(chan struct{})}
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.closeConnection(active)
		c.logger.Debugw("realtime dial finished after disconnect, transport dropped")
		return internal_type.ErrStopped
	}
	c.active = active
	c.mu.Unlock()

	utils.Go(context.Background(), c.logger, func() {
		c.listen(active)
	})

	if err := c.write(active, outgoingMessage{Setup: config}); err != nil {
		if c.detach() == active {
			c.closeConnection(active)
		}
		return fmt.Errorf("failed to send setup: %w", err)
	}

	c.logger.Benchmark("realtime.Connect", time.Since(start))
	c.logger.Debugw("realtime transport open", "url", c.url, "model", config.Model)
	return nil
}

// Disconnect closes the transport and cancels a dial in flight. It reports
// whether there was an open transport.
func (c *Client) Disconnect() bool {
	active := c.detach()
	if active == nil {
		return false
	}
	c.closeConnection(active)
	c.logger.Debugw("realtime client disconnected")
	return true
}

func (c *Client) detach() *connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	active := c.active
	c.active = nil
	c.state = StateDisconnected
	c.gen++
	return active
}

func (c *Client) closeConnection(active *connection) {
	active.requested.Store(true)
	c.writeMu.Lock()
	err := active.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	c.writeMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debugw("error sending close frame", "error", err)
	}
	if err := active.conn.Close(); err != nil {
		c.logger.Debugw("error closing realtime transport", "error", err)
	}
}

// SendMediaChunks streams realtime input. While not Connected the chunks are
// dropped, never queued.
func (c *Client) SendMediaChunks(chunks []MediaChunk) error {
	c.mu.Lock()
	active, state := c.active, c.state
	c.mu.Unlock()
	if active == nil || state != StateConnected {
		c.logger.Debugw("dropping media chunks, realtime session not connected", "chunks", len(chunks), "state", string(state))
		return nil
	}
	return c.write(active, outgoingMessage{RealtimeInput: &realtimeInput{MediaChunks: chunks}})
}

func (c *Client) SendToolResponse(response ToolResponse) error {
	active := c.current()
	if active == nil {
		return internal_type.ErrNotConnected
	}
	return c.write(active, outgoingMessage{ToolResponse: &response})
}

// Send adds a user turn made of parts.
func (c *Client) Send(parts []*genai.Part, turnComplete bool) error {
	active := c.current()
	if active == nil {
		return internal_type.ErrNotConnected
	}
	return c.write(active, outgoingMessage{ClientContent: &clientContent{
		Turns:        []*genai.Content{{Role: "user", Parts: parts}},
		TurnComplete: turnComplete,
	}})
}

func (c *Client) current() *connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Client) write(active *connection, msg outgoingMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := active.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (c *Client) listen(active *connection) {
	defer close(active.done)
	for {
		_, message, err := active.conn.ReadMessage()
		if err != nil {
			c.handleClose(active, err)
			return
		}
		msg, err := ParseServerMessage(message)
		if err != nil {
			c.logger.Warnw("dropping unparseable realtime frame", "error", err, "size", len(message))
			continue
		}
		c.dispatch(active, msg)
	}
}

func (c *Client) dispatch(active *connection, msg ServerMessage) {
	switch m := msg.(type) {
	case SetupComplete:
		c.mu.Lock()
		if c.active == active {
			c.state = StateConnected
		}
		c.mu.Unlock()
		c.logger.Debugw("realtime setup complete")
		c.setupComplete.Emit(struct{}{})

	case ModelTurn:
		if m.TurnComplete {
			c.turnComplete.Emit(struct{}{})
		}
		for _, pcm := range m.Audio {
			c.audio.Emit(pcm)
		}
		c.content.Emit(m.Content)

	case TurnComplete:
		c.turnComplete.Emit(struct{}{})

	case Interrupted:
		c.logger.Debugw("realtime turn interrupted")
		c.interrupted.Emit(struct{}{})

	case ToolCallMessage:
		c.toolCall.Emit(m.ToolCall)

	case ToolCallCancellationMessage:
		c.toolCallCancellation.Emit(m.Cancellation)

	case Unknown:
		c.logger.Warnw("dropping unrecognized realtime frame", "frame", string(m.Raw))
	}
}

func (c *Client) handleClose(active *connection, err error) {
	c.mu.Lock()
	if c.active == active {
		c.active = nil
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	active.conn.Close()

	event := CloseEvent{Code: websocket.CloseAbnormalClosure, Requested: active.requested.Load()}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		event.Code = closeErr.Code
		event.Reason = closeErr.Text
	} else if !event.Requested {
		event.Reason = err.Error()
	}
	if event.Requested {
		c.logger.Debugw("realtime transport closed", "code", event.Code)
	} else {
		c.logger.Warnw("realtime transport closed unexpectedly", "code", event.Code, "reason", event.Reason)
	}
	c.closed.Emit(event)
}
