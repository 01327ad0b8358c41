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
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/guacd/gcore/sink"
	"github.com/guacd/gcore/status"
)

// ObjectManager tracks server-defined objects (filesystem-like named
// stores, e.g. a shared drive or the remote clipboard exposed as an
// object) and matches each inbound `body` instruction to the oldest
// still-pending `get` the client issued for the same (object, name)
// pair. Matching is keyed by an xxhash digest of the pair rather than a
// concatenated string, avoiding an allocation on the hot FIFO-match
// path for connections with many concurrent object requests.
type ObjectManager struct {
	mu           sync.Mutex
	sinks        map[int64]sink.FilesystemSink
	pending      map[uint64]int               // getKey -> outstanding get count
	keysByObject map[int64]map[uint64]struct{} // object -> its outstanding getKeys, for Undefine cleanup
}

// NewObjectManager returns an empty manager.
func NewObjectManager() *ObjectManager {
	return &ObjectManager{
		sinks:        make(map[int64]sink.FilesystemSink),
		pending:      make(map[uint64]int),
		keysByObject: make(map[int64]map[uint64]struct{}),
	}
}

// Define binds s as the recipient of events for the server-declared
// object index. A nil s is replaced with sink.NullFilesystemSink.
func (m *ObjectManager) Define(object int64, s sink.FilesystemSink) {
	if s == nil {
		s = sink.NullFilesystemSink{}
	}
	m.mu.Lock()
	m.sinks[object] = s
	m.mu.Unlock()
}

// Get records that the client has requested name from object, so the
// next matching `body` instruction resolves to this request rather
// than a later one for the same name. Callers send the actual `get`
// instruction themselves; this only tracks the FIFO match state.
func (m *ObjectManager) Get(object int64, name string) {
	key := getKey(object, name)

	m.mu.Lock()
	m.pending[key]++
	keys, ok := m.keysByObject[object]
	if !ok {
		keys = make(map[uint64]struct{})
		m.keysByObject[object] = keys
	}
	keys[key] = struct{}{}
	m.mu.Unlock()
}

// Body resolves the oldest pending get for (object, name) and returns
// the StreamSink the bound filesystem sink wants to receive it. ok is
// false if object was never defined or name has no pending get - the
// instruction is then ignored rather than delivered to a stale or
// unexpected sink.
func (m *ObjectManager) Body(object int64, mimetype, name string) (s sink.StreamSink, ok bool) {
	m.mu.Lock()
	fs, known := m.sinks[object]
	var key uint64
	if known {
		key = getKey(object, name)
		if m.pending[key] > 0 {
			m.pending[key]--
			if m.pending[key] == 0 {
				delete(m.pending, key)
				delete(m.keysByObject[object], key)
			}
			ok = true
		}
	}
	m.mu.Unlock()

	if !ok {
		return nil, false
	}
	return fs.Body(object, mimetype, name), true
}

// Undefine retires object: its sink binding is dropped and every get
// still pending against it is discarded. The returned status is
// RESOURCE_CLOSED, for callers to route to whatever StreamSink they
// created for each of those now-cancelled pending gets.
func (m *ObjectManager) Undefine(object int64) status.Status {
	m.mu.Lock()
	delete(m.sinks, object)
	for key := range m.keysByObject[object] {
		delete(m.pending, key)
	}
	delete(m.keysByObject, object)
	m.mu.Unlock()

	return status.New(status.ResourceClosed, "object undefined")
}

func getKey(object int64, name string) uint64 {
	h := xxhash.New()
	h.WriteString(strconv.FormatInt(object, 10))
	h.WriteString("\x00")
	h.WriteString(name)
	return h.Sum64()
}
