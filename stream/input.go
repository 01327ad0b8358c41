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

// InputManager tracks streams the server opened to push data into the
// client (file, pipe, clipboard, audio, video, img, object body). It
// never acknowledges a stream on the sink's behalf - ack is always the
// caller's explicit decision, sent through the tunnel like any other
// outbound instruction.
type InputManager struct {
	mu      sync.Mutex
	streams map[int64]sink.StreamSink
}

// NewInputManager returns an empty manager.
func NewInputManager() *InputManager {
	return &InputManager{streams: make(map[int64]sink.StreamSink)}
}

// Open registers s as the recipient of events for the server-assigned
// stream index idx. A nil s is replaced with sink.NullStreamSink so
// Blob/End never need a nil check.
func (m *InputManager) Open(idx int64, s sink.StreamSink) {
	if s == nil {
		s = sink.NullStreamSink{}
	}
	m.mu.Lock()
	m.streams[idx] = s
	m.mu.Unlock()
}

// Blob delivers one chunk of base64 payload text to idx's sink, in the
// order instructions arrived on the wire. Blob on an unknown stream is
// silently ignored - the server may reference a stream the client
// already closed locally.
func (m *InputManager) Blob(idx int64, base64Data string) error {
	s, ok := m.lookup(idx)
	if !ok {
		return nil
	}
	return s.Blob(base64Data)
}

// End closes idx, delivering a final End() to its sink and releasing
// the index from further dispatch. Always the last event for a stream
// that completes normally - always preceded by zero or more Blob calls,
// never followed by another Blob or End for the same index.
func (m *InputManager) End(idx int64) error {
	s, ok := m.remove(idx)
	if !ok {
		return nil
	}
	return s.End()
}

// Error closes idx abnormally, delivering st to its sink instead of a
// normal End.
func (m *InputManager) Error(idx int64, st status.Status) error {
	s, ok := m.remove(idx)
	if !ok {
		return nil
	}
	return s.Error(st)
}

func (m *InputManager) lookup(idx int64) (sink.StreamSink, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[idx]
	return s, ok
}

func (m *InputManager) remove(idx int64) (sink.StreamSink, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[idx]
	if ok {
		delete(m.streams, idx)
	}
	return s, ok
}
