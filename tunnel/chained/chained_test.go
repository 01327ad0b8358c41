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

package chained_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guacd/gcore/tunnel"
	"github.com/guacd/gcore/tunnel/chained"
)

// fakeTunnel is a tunnel.Tunnel test double whose State() and
// connect/disconnect behavior are driven directly by the test, so
// chained tunnel fallback can be exercised without any real transport.
type fakeTunnel struct {
	name string

	mu          sync.Mutex
	state       tunnel.State
	connectErr  error
	disconnects int
	uuid        string

	openAfter  time.Duration
	closeAfter time.Duration
}

func (f *fakeTunnel) Connect(ctx context.Context, _ string) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.state = tunnel.StateConnecting
	f.mu.Unlock()

	switch {
	case f.closeAfter > 0:
		go func() {
			time.Sleep(f.closeAfter)
			f.mu.Lock()
			f.state = tunnel.StateClosed
			f.mu.Unlock()
		}()
	case f.openAfter > 0:
		go func() {
			time.Sleep(f.openAfter)
			f.mu.Lock()
			if f.state != tunnel.StateClosed {
				f.state = tunnel.StateOpen
			}
			f.mu.Unlock()
		}()
	default:
		f.mu.Lock()
		f.state = tunnel.StateOpen
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeTunnel) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.state = tunnel.StateClosed
	return nil
}

func (f *fakeTunnel) SendMessage(context.Context, string) error { return nil }

func (f *fakeTunnel) State() tunnel.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTunnel) UUID() string { return f.uuid }

func TestChainedCommitsToFirstCandidateThatOpens(t *testing.T) {
	first := &fakeTunnel{name: "first", uuid: "first-uuid"}
	second := &fakeTunnel{name: "second", uuid: "second-uuid"}

	ct := chained.New(tunnel.NullSink{}, first, second)
	require.NoError(t, ct.Connect(context.Background(), "connect-data"))

	assert.Equal(t, "first-uuid", ct.UUID())
	assert.Equal(t, tunnel.StateOpen, ct.State())
	assert.Equal(t, 0, first.disconnects, "committed candidate is never disconnected by chained itself")
	assert.Equal(t, 1, second.disconnects, "losing candidate is disconnected once committed")
}

func TestChainedFallsBackWhenFirstCandidateFailsToConnect(t *testing.T) {
	first := &fakeTunnel{name: "first", connectErr: errors.New("dial refused")}
	second := &fakeTunnel{name: "second", uuid: "second-uuid"}

	ct := chained.New(tunnel.NullSink{}, first, second)
	require.NoError(t, ct.Connect(context.Background(), "connect-data"))

	assert.Equal(t, "second-uuid", ct.UUID())
}

func TestChainedFallsBackWhenFirstCandidateNeverOpens(t *testing.T) {
	first := &fakeTunnel{name: "first", closeAfter: 5 * time.Millisecond}
	second := &fakeTunnel{name: "second", uuid: "second-uuid"}

	ct := chained.New(tunnel.NullSink{}, first, second)
	require.NoError(t, ct.Connect(context.Background(), "connect-data"))

	assert.Equal(t, "second-uuid", ct.UUID())
}

func TestChainedReturnsAggregateErrorWhenAllCandidatesFail(t *testing.T) {
	first := &fakeTunnel{connectErr: errors.New("first failed")}
	second := &fakeTunnel{connectErr: errors.New("second failed")}

	ct := chained.New(tunnel.NullSink{}, first, second)
	err := ct.Connect(context.Background(), "connect-data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Contains(t, err.Error(), "second failed")
}

func TestChainedSendMessageBeforeCommitFails(t *testing.T) {
	ct := chained.New(tunnel.NullSink{})
	err := ct.SendMessage(context.Background(), "5.nop;")
	assert.Error(t, err)
}
