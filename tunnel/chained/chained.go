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

// Package chained implements the fallback tunnel variant: it tries a
// list of child tunnels in order and commits irrevocably to the first
// one that delivers an instruction, abandoning the rest.
package chained

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/guacd/gcore/metrics"
	"github.com/guacd/gcore/tunnel"
)

const (
	firstInstructionPolls      = 150
	firstInstructionPollPeriod = 100 * time.Millisecond
)

var (
	errTunnelsExhausted = errors.New("chained tunnel: no candidate connected")
	errNotCommitted     = errors.New("chained tunnel: not yet committed to a candidate")
)

// Tunnel tries each child in order on Connect, committing irrevocably
// to the first one that connects and then delivers its first
// instruction. Once committed, every Tunnel method delegates to the
// chosen child; the rest are disconnected and never consulted again.
//
// A candidate that connects but then goes quiet before its first
// instruction is abandoned in favor of the next one, same as the
// committed-on-first-instruction semantics of the upstream JavaScript
// client's ChainedTunnel - a dead connection looks identical to a slow
// one until something arrives on it.
type Tunnel struct {
	candidates []tunnel.Tunnel
	sink       tunnel.Sink

	mu        sync.Mutex
	committed tunnel.Tunnel
	state     tunnel.State
}

// New returns a Tunnel that will try candidates in order when
// Connect is called. Each candidate must already have its own Sink
// wired by the caller; chained only watches candidate.State() to
// detect the first instruction, it never intercepts instruction
// delivery itself. A nil sink is replaced with tunnel.NullSink.
func New(sink tunnel.Sink, candidates ...tunnel.Tunnel) *Tunnel {
	if sink == nil {
		sink = tunnel.NullSink{}
	}
	return &Tunnel{
		candidates: candidates,
		sink:       sink,
		state:      tunnel.StateConnecting,
	}
}

// Connect tries each candidate in turn. A candidate that fails to
// connect, or that connects but never reaches StateOpen within the
// polling window, is disconnected and the next candidate is tried.
// The first candidate to reach StateOpen is committed.
func (t *Tunnel) Connect(ctx context.Context, connectData string) error {
	var errs error

	for _, candidate := range t.candidates {
		if err := candidate.Connect(ctx, connectData); err != nil {
			errs = multierror.Append(errs, err)
			_ = candidate.Disconnect()
			continue
		}

		if t.waitForOpen(ctx, candidate) {
			t.commit(candidate)
			return nil
		}

		errs = multierror.Append(errs, candidate.Disconnect())
	}

	t.mu.Lock()
	t.state = tunnel.StateClosed
	t.mu.Unlock()
	if errs == nil {
		return errTunnelsExhausted
	}
	return errs
}

// waitForOpen polls candidate.State() until it reaches StateOpen
// (meaning its read loop delivered at least one instruction - both
// ws.Tunnel and httptunnel.Tunnel transition to StateOpen only from
// inside their instruction callback), reaches StateClosed (meaning it
// failed), or the polling window or ctx expires.
func (t *Tunnel) waitForOpen(ctx context.Context, candidate tunnel.Tunnel) bool {
	for i := 0; i < firstInstructionPolls; i++ {
		switch candidate.State() {
		case tunnel.StateOpen:
			return true
		case tunnel.StateClosed:
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(firstInstructionPollPeriod):
		}
	}
	return false
}

func (t *Tunnel) commit(candidate tunnel.Tunnel) {
	t.mu.Lock()
	t.committed = candidate
	t.state = tunnel.StateOpen
	t.mu.Unlock()

	if len(t.candidates) > 0 && candidate != t.candidates[0] {
		metrics.TunnelReconnects.Inc()
	}

	t.sink.OnUUID(candidate.UUID())
	t.sink.OnStateChange(tunnel.StateOpen)

	for _, other := range t.candidates {
		if other != candidate {
			_ = other.Disconnect()
		}
	}
}

// Disconnect disconnects the committed child, if any.
func (t *Tunnel) Disconnect() error {
	t.mu.Lock()
	committed := t.committed
	t.state = tunnel.StateClosed
	t.mu.Unlock()
	if committed == nil {
		return nil
	}
	return committed.Disconnect()
}

// SendMessage delegates to the committed child.
func (t *Tunnel) SendMessage(ctx context.Context, data string) error {
	t.mu.Lock()
	committed := t.committed
	t.mu.Unlock()
	if committed == nil {
		return errNotCommitted
	}
	return committed.SendMessage(ctx, data)
}

// State returns the chained tunnel's own state before commit, or the
// committed child's live state after.
func (t *Tunnel) State() tunnel.State {
	t.mu.Lock()
	committed := t.committed
	state := t.state
	t.mu.Unlock()
	if committed != nil {
		return committed.State()
	}
	return state
}

// UUID returns the committed child's UUID, or "" before commit.
func (t *Tunnel) UUID() string {
	t.mu.Lock()
	committed := t.committed
	t.mu.Unlock()
	if committed == nil {
		return ""
	}
	return committed.UUID()
}
