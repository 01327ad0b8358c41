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

package httptunnel_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guacd/gcore/status"
	"github.com/guacd/gcore/tunnel"
	"github.com/guacd/gcore/tunnel/httptunnel"
)

type recordingSink struct {
	mu    sync.Mutex
	insns [][2]any
	uuid  string
}

func (s *recordingSink) OnInstruction(opcode string, args []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insns = append(s.insns, [2]any{opcode, args})
	return nil
}
func (s *recordingSink) OnStateChange(tunnel.State) {}
func (s *recordingSink) OnUUID(id string)           { s.mu.Lock(); s.uuid = id; s.mu.Unlock() }
func (s *recordingSink) OnError(status.Status)      {}

func TestHTTPTunnelConnectAndReceiveInstruction(t *testing.T) {
	var served atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.RawQuery == "connect":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("test-uuid-1234\n"))
		case strings.HasPrefix(r.URL.RawQuery, "read:"):
			if served.CompareAndSwap(false, true) {
				_, _ = w.Write([]byte("3.nop;"))
				return
			}
			// subsequent long-polls hang until the client disconnects;
			// respond empty immediately to keep the test fast.
			_, _ = w.Write(nil)
		case strings.HasPrefix(r.URL.RawQuery, "write:"):
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := &recordingSink{}
	tun := httptunnel.New(srv.URL, nil, srv.Client(), sink)

	require.NoError(t, tun.Connect(context.Background(), "1.1,1.2,1.3;"))
	// The response body carries trailing whitespace that must be trimmed,
	// per spec.md §6's "plain ASCII UUID with no surrounding whitespace".
	assert.Equal(t, "test-uuid-1234", tun.UUID())

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.insns) == 1
	}, time.Second, 10*time.Millisecond)

	assert.NoError(t, tun.SendMessage(context.Background(), "3.key,1.1,1.1;"))
	require.NoError(t, tun.Disconnect())
}

func TestHTTPTunnelConnectFailureMapsStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tun := httptunnel.New(srv.URL, nil, srv.Client(), nil)
	err := tun.Connect(context.Background(), "")
	require.Error(t, err)
}
