// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guacd/gcore/status"
	"github.com/guacd/gcore/tunnel"
	"github.com/guacd/gcore/tunnel/ws"
)

type recordingSink struct {
	mu         sync.Mutex
	opcodes    []string
	uuid       string
	stateFlips []tunnel.State
	errs       []status.Status
}

func (s *recordingSink) OnInstruction(opcode string, _ []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opcodes = append(s.opcodes, opcode)
	return nil
}
func (s *recordingSink) OnStateChange(st tunnel.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateFlips = append(s.stateFlips, st)
}
func (s *recordingSink) OnUUID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uuid = id
}
func (s *recordingSink) OnError(st status.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, st)
}

func (s *recordingSink) errList() []status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]status.Status(nil), s.errs...)
}

func (s *recordingSink) opcodeList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opcodes...)
}

func (s *recordingSink) uuidValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uuid
}

func TestWSTunnelReceivesReadyAndSubsequentInstructions(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, _, _ = conn.ReadMessage() // the client's rendered handshake/connect data
		_ = conn.WriteMessage(websocket.TextMessage, []byte("5.ready,4.abcd;"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("3.nop;"))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sink := &recordingSink{}
	tun := ws.New(wsURL, nil, sink)

	require.NoError(t, tun.Connect(context.Background(), "3.nop;"))

	require.Eventually(t, func() bool {
		return len(sink.opcodeList()) >= 2
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"ready", "nop"}, sink.opcodeList())
	assert.Equal(t, "abcd", sink.uuidValue())
	assert.Equal(t, tunnel.StateOpen, tun.State())

	require.NoError(t, tun.Disconnect())
}

func TestWSTunnelNonReadyFirstInstructionIsServerError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, _, _ = conn.ReadMessage()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("3.nop;"))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sink := &recordingSink{}
	tun := ws.New(wsURL, nil, sink)

	require.NoError(t, tun.Connect(context.Background(), ""))

	require.Eventually(t, func() bool {
		return len(sink.errList()) >= 1
	}, time.Second, 10*time.Millisecond)

	require.Len(t, sink.errList(), 1)
	assert.Equal(t, status.ServerError, sink.errList()[0].Code)
	assert.Equal(t, tunnel.StateClosed, tun.State())
}
