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

// Package tunnel implements the transport layer beneath a Client: a
// shared Tunnel interface, and three variants - a WS full-duplex
// tunnel, an HTTP half-duplex long-poll tunnel, and a chained tunnel
// that falls back from one to the other on the first connection
// attempt.
package tunnel

import (
	"context"
	"sync"
	"time"

	"github.com/guacd/gcore/status"
)

// State is a tunnel's connectivity state, independent of (and usually
// ahead of) the Client state machine layered on top of it.
type State int

const (
	// StateConnecting is the state from construction until the first
	// instruction arrives from the server.
	StateConnecting State = iota

	// StateOpen is the normal operating state: instructions are
	// arriving (or have recently arrived) within UnstableThreshold.
	StateOpen

	// StateUnstable means no data has been received for longer than
	// UnstableThreshold but less than ReceiveTimeout - the tunnel is
	// still open but may be about to fail.
	StateUnstable

	// StateClosed is terminal; the tunnel will not reconnect itself.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateUnstable:
		return "UNSTABLE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

const (
	// UnstableThreshold is how long a tunnel may go without receiving
	// data before it reports StateUnstable.
	UnstableThreshold = 1500 * time.Millisecond

	// ReceiveTimeout is how long a tunnel may go without receiving data
	// before it gives up and reports StateClosed.
	ReceiveTimeout = 15000 * time.Millisecond
)

// Sink receives tunnel-level events. It intentionally lives in this
// package rather than package sink: sink's narrow consumer interfaces
// are for out-of-scope display/audio/clipboard concerns that Client
// exposes to callers, while a Tunnel's own events are consumed
// exclusively by the Client that owns it, and package sink must not
// import tunnel (Client depends on both).
type Sink interface {
	// OnInstruction delivers one decoded instruction, opcode plus raw
	// text args, in wire order.
	OnInstruction(opcode string, args []string) error

	// OnStateChange fires whenever the tunnel's State transitions.
	OnStateChange(state State)

	// OnUUID fires when the tunnel learns this connection's UUID: from
	// the server's `ready` instruction (ws) or the connect response
	// (httptunnel). The chained tunnel fires it again for the candidate
	// it commits to.
	OnUUID(id string)

	// OnError fires when the tunnel fails irrecoverably; st is always
	// an error status.
	OnError(st status.Status)
}

// NullSink discards every tunnel event.
type NullSink struct{}

func (NullSink) OnInstruction(string, []string) error { return nil }
func (NullSink) OnStateChange(State)                  {}
func (NullSink) OnUUID(string)                         {}
func (NullSink) OnError(status.Status)                {}

// LazySink breaks the construction cycle between a Tunnel and the
// Client that owns it: a Tunnel variant takes its Sink at construction
// time, but Client takes an already-constructed Tunnel. A caller wires
// a LazySink into the Tunnel constructor, builds the Client, then calls
// Bind once before Connect. Calling any method before Bind is a no-op.
type LazySink struct {
	mu     sync.Mutex
	target Sink
}

// Bind sets the Sink every subsequent call forwards to. Safe to call
// concurrently with a Tunnel already running, though callers should
// always Bind before Connect - a Tunnel that delivers an instruction to
// an unbound LazySink simply drops it.
func (s *LazySink) Bind(target Sink) {
	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
}

func (s *LazySink) get() Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return NullSink{}
	}
	return s.target
}

func (s *LazySink) OnInstruction(opcode string, args []string) error {
	return s.get().OnInstruction(opcode, args)
}
func (s *LazySink) OnStateChange(state State) { s.get().OnStateChange(state) }
func (s *LazySink) OnUUID(id string)          { s.get().OnUUID(id) }
func (s *LazySink) OnError(st status.Status)  { s.get().OnError(st) }

// Tunnel is the common interface all three transport variants satisfy.
type Tunnel interface {
	// Connect establishes the tunnel, sending connectData (the
	// handshake's rendered instruction stream) as the initial payload.
	// It returns once the connection is established enough to start
	// receiving, not once the full handshake completes.
	Connect(ctx context.Context, connectData string) error

	// Disconnect tears the tunnel down. Idempotent.
	Disconnect() error

	// SendMessage transmits a single already-encoded instruction.
	SendMessage(ctx context.Context, data string) error

	// State returns the tunnel's current connectivity state.
	State() State

	// UUID returns the server-assigned connection UUID, or "" before
	// the tunnel has learned it (see Sink.OnUUID).
	UUID() string
}

// StatusFromHTTP maps a transport-level HTTP status code to the
// protocol Status the tunnel reports to its Sink when a handshake or
// long-poll request fails before any instruction data is available:
// 403 -> CLIENT_FORBIDDEN, 404 -> UPSTREAM_NOT_FOUND, 5xx ->
// UPSTREAM_ERROR. A transport-level network error (no HTTP response at
// all, e.g. a dial timeout) is reported separately as UPSTREAM_TIMEOUT
// by the caller, not through this function.
func StatusFromHTTP(code int) status.Status {
	switch {
	case code == 403:
		return status.New(status.ClientForbidden, "forbidden")
	case code == 404:
		return status.New(status.UpstreamNotFound, "not found")
	case code >= 500:
		return status.New(status.UpstreamError, "upstream error")
	case code >= 400:
		return status.New(status.ClientBadRequest, "bad request")
	default:
		return status.New(status.Success, "")
	}
}

// NetworkError is the Status reported when a request fails before any
// HTTP response is received at all (dial failure, connection reset,
// timeout) - the protocol maps this case to UPSTREAM_TIMEOUT rather
// than any of the HTTP-status-derived codes above, since the tunnel has
// no way to distinguish "server is slow" from "server is gone" without
// a response.
func NetworkError(cause error) status.Status {
	return status.New(status.UpstreamTimeout, "network error: "+cause.Error())
}
