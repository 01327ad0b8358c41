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

// Package ws implements the full-duplex WebSocket tunnel variant.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/guacd/gcore/codec"
	"github.com/guacd/gcore/instruction"
	"github.com/guacd/gcore/logger"
	"github.com/guacd/gcore/status"
	"github.com/guacd/gcore/tunnel"
)

// Tunnel is a tunnel.Tunnel backed by a single gorilla/websocket
// connection: reads and writes happen concurrently over the same
// socket, so instructions from the server and instructions to the
// server never block on each other.
type Tunnel struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	sink   tunnel.Sink

	writeMu sync.Mutex

	mu    sync.Mutex
	conn  *websocket.Conn
	state tunnel.State
	uuid  string

	lastReceive   time.Time
	readyReceived bool
	readyCh       chan struct{}
	stopMonitor   chan struct{}
	monitorOnce   sync.Once
	disconnectOne sync.Once
}

// New returns a Tunnel that will dial url (an "ws://" or "wss://" URL)
// with the given headers when Connect is called. A nil sink is
// replaced with tunnel.NullSink.
func New(url string, header http.Header, sink tunnel.Sink) *Tunnel {
	if sink == nil {
		sink = tunnel.NullSink{}
	}
	return &Tunnel{
		url:         url,
		header:      header,
		dialer:      websocket.DefaultDialer,
		sink:        sink,
		state:       tunnel.StateConnecting,
		readyCh:     make(chan struct{}),
		stopMonitor: make(chan struct{}),
	}
}

// Connect dials the server and, once connected, sends connectData (the
// rendered handshake instruction stream) as the first WS text message.
// It returns once the dial succeeds and the read loop has started -
// not once the server's `ready` instruction has arrived.
func (t *Tunnel) Connect(ctx context.Context, connectData string) error {
	conn, _, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return errors.Wrap(err, "ws tunnel: dial")
	}

	t.mu.Lock()
	t.conn = conn
	t.lastReceive = time.Now()
	t.state = tunnel.StateConnecting
	t.mu.Unlock()

	if connectData != "" {
		if err := t.SendMessage(ctx, connectData); err != nil {
			_ = conn.Close()
			return err
		}
	}

	go t.readLoop()
	go t.monitor()
	go t.awaitReady()
	return nil
}

// SendMessage writes data as a single WS text frame. Safe for
// concurrent use; gorilla/websocket connections support only one
// concurrent writer, serialized here with writeMu.
func (t *Tunnel) SendMessage(ctx context.Context, data string) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("ws tunnel: not connected")
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(data))
}

// Disconnect closes the underlying connection and stops the monitor
// goroutine. Idempotent.
func (t *Tunnel) Disconnect() error {
	var err error
	t.disconnectOne.Do(func() {
		t.setState(tunnel.StateClosed)
		close(t.stopMonitor)

		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}

// State returns the tunnel's current connectivity state.
func (t *Tunnel) State() tunnel.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UUID returns the server-assigned connection UUID, or "" before the
// server's `ready` instruction has arrived.
func (t *Tunnel) UUID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.uuid
}

func (t *Tunnel) setState(s tunnel.State) {
	t.mu.Lock()
	changed := t.state != s
	t.state = s
	t.mu.Unlock()
	if changed {
		t.sink.OnStateChange(s)
	}
}

func (t *Tunnel) touchReceive() {
	t.mu.Lock()
	t.lastReceive = time.Now()
	t.mu.Unlock()
}

func (t *Tunnel) readLoop() {
	dec := codec.NewDecoder(func(opcode string, args []string) error {
		t.touchReceive()
		t.setState(tunnel.StateOpen)

		t.mu.Lock()
		ready := t.readyReceived
		t.mu.Unlock()

		// spec.md §4.3/§7: the first inbound instruction must be `ready`
		// carrying the connection UUID; anything else here is a
		// handshake fault and fatal.
		if !ready {
			if opcode != instruction.OpReady {
				return errors.Errorf("ws tunnel: expected ready, got %q", opcode)
			}
			id, err := instruction.ParseReady(instruction.New(opcode, args...))
			if err != nil {
				return errors.Wrap(err, "ws tunnel: malformed ready")
			}
			t.mu.Lock()
			t.readyReceived = true
			t.uuid = id
			t.mu.Unlock()
			close(t.readyCh)
			t.sink.OnUUID(id)
		}

		return t.sink.OnInstruction(opcode, args)
	})

	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.sink.OnError(tunnel.NetworkError(err))
			_ = t.Disconnect()
			return
		}

		if err := dec.Receive(data); err != nil {
			logger.Errorf("ws tunnel: decode error: %v", err)
			t.sink.OnError(status.New(status.ServerError, err.Error()))
			_ = t.Disconnect()
			return
		}
	}
}

// awaitReady enforces the handshake deadline: if the server's `ready`
// instruction hasn't arrived within tunnel.ReceiveTimeout, that's a
// handshake fault per spec.md §7 and fatal, reported as SERVER_ERROR
// rather than the generic UPSTREAM_TIMEOUT the monitor loop reports for
// an established connection going idle.
func (t *Tunnel) awaitReady() {
	timer := time.NewTimer(tunnel.ReceiveTimeout)
	defer timer.Stop()

	select {
	case <-t.readyCh:
		return
	case <-t.stopMonitor:
		return
	case <-timer.C:
		t.mu.Lock()
		ready := t.readyReceived
		closed := t.state == tunnel.StateClosed
		t.mu.Unlock()
		if !ready && !closed {
			t.sink.OnError(status.New(status.ServerError, "ws tunnel: handshake timed out waiting for ready"))
			_ = t.Disconnect()
		}
	}
}

// monitor periodically checks how long it has been since the last
// instruction arrived, reporting StateUnstable past
// tunnel.UnstableThreshold and disconnecting with an error past
// tunnel.ReceiveTimeout.
func (t *Tunnel) monitor() {
	ticker := time.NewTicker(tunnel.UnstableThreshold / 2)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopMonitor:
			return
		case <-ticker.C:
			t.mu.Lock()
			idle := time.Since(t.lastReceive)
			current := t.state
			t.mu.Unlock()

			if current == tunnel.StateClosed {
				return
			}

			switch {
			case idle >= tunnel.ReceiveTimeout:
				t.sink.OnError(status.New(status.UpstreamTimeout, "ws tunnel: receive timeout"))
				_ = t.Disconnect()
				return
			case idle >= tunnel.UnstableThreshold:
				t.setState(tunnel.StateUnstable)
			}
		}
	}
}
