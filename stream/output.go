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

package stream

import (
	"sync"

	"github.com/guacd/gcore/sink"
	"github.com/guacd/gcore/status"
)

// OutputManager tracks streams the client itself opened to push data to
// the server (an uploaded file, a pipe, a clipboard write). It never
// emits blob/end instructions itself - callers build those with the
// instruction package and send them through the tunnel - the manager
// only owns index lifecycle and routes the server's eventual `ack` back
// to the sink that opened the stream.
type OutputManager struct {
	pool *IndexPool

	mu   sync.Mutex
	acks map[int64]sink.AckSink
}

// NewOutputManager returns an empty manager.
func NewOutputManager() *OutputManager {
	return &OutputManager{
		pool: NewIndexPool(),
		acks: make(map[int64]sink.AckSink),
	}
}

// Open allocates a new output stream index and binds ack to it. If ack
// is nil, sink.NullAckSink is used so Ack never needs a nil check.
func (m *OutputManager) Open(ack sink.AckSink) int64 {
	if ack == nil {
		ack = sink.NullAckSink{}
	}

	idx := m.pool.Acquire()

	m.mu.Lock()
	m.acks[idx] = ack
	m.mu.Unlock()

	return idx
}

// Ack delivers the server's acknowledgement of stream idx to its bound
// sink. Only a non-SUCCESS status releases the stream's index: a
// SUCCESS ack is flow control mid-transfer, and the stream stays live
// until a later ack reports an error or the caller calls Close. Ack on
// an index this manager never opened is a no-op: the server may race a
// client-initiated close with its own ack.
func (m *OutputManager) Ack(idx int64, st status.Status) error {
	m.mu.Lock()
	ack, ok := m.acks[idx]
	if ok && st.IsError() {
		delete(m.acks, idx)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	if st.IsError() {
		m.pool.Release(idx)
	}
	return ack.Ack(st)
}

// Close releases idx and drops its ack binding without delivering a
// final status, for local-initiated teardown (e.g. disconnect) where no
// server ack will ever arrive.
func (m *OutputManager) Close(idx int64) {
	m.mu.Lock()
	delete(m.acks, idx)
	m.mu.Unlock()
	m.pool.Release(idx)
}
