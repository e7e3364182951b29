// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/stretchr/testify/require"
)

// testPeer is the server side of the live session.
type testPeer struct {
	server  *httptest.Server
	conns   chan *websocket.Conn
	headers chan http.Header
	// hold, when set, delays every upgrade until it is closed.
	hold chan struct{}
}

func newTestPeer(t *testing.T) *testPeer {
	t.Helper()
	return startTestPeer(t, nil)
}

// newHeldTestPeer answers handshakes only after release is called.
func newHeldTestPeer(t *testing.T) (p *testPeer, release func()) {
	t.Helper()
	hold := make(chan struct{})
	var once sync.Once
	release = func() { once.Do(func() { close(hold) }) }
	p = startTestPeer(t, hold)
	t.Cleanup(release)
	return p, release
}

func startTestPeer(t *testing.T, hold chan struct{}) *testPeer {
	t.Helper()
	p := &testPeer{conns: make(chan *websocket.Conn, 4), headers: make(chan http.Header, 4), hold: hold}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.headers <- r.Header.Clone()
		if p.hold != nil {
			<-p.hold
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.conns <- conn
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *testPeer) URL() string {
	return "ws" + strings.TrimPrefix(p.server.URL, "http")
}

func (p *testPeer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-p.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func wait[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c := NewClient(commons.NewNopLogger(), url)
	t.Cleanup(func() { c.Disconnect() })
	return c
}
