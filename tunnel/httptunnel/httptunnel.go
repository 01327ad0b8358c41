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

// Package httptunnel implements the half-duplex long-polling tunnel
// variant: a connect request establishes a server-side session, then
// two independent HTTP request streams - a long-poll read loop and one
// synchronous POST per SendMessage call - carry instructions in and
// out, all against a single base URL.
package httptunnel

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/guacd/gcore/codec"
	"github.com/guacd/gcore/logger"
	"github.com/guacd/gcore/status"
	"github.com/guacd/gcore/tunnel"
)

// Query suffixes appended directly to baseURL, per spec: the connect
// endpoint is "U?connect", and once a UUID is assigned, reads and
// writes address "U?read:UUID" and "U?write:UUID" respectively. These
// are not key=value query parameters.
const (
	suffixConnect = "?connect"
	suffixRead    = "?read:"
	suffixWrite   = "?write:"
)

const (
	minPollBackoff time.Duration = 0
	maxPollBackoff               = 5000 * time.Millisecond
)

// Tunnel is a tunnel.Tunnel backed by two independent HTTP request
// cycles against a single base URL, rather than one held-open socket.
// Reads are a long-poll loop with exponential backoff; each write is a
// POST that SendMessage waits on and whose HTTP status it reports,
// serialized by writeMu so instruction order on the wire matches call
// order. Pending writes are not coalesced into one request.
type Tunnel struct {
	baseURL string
	header  http.Header
	client  *http.Client
	sink    tunnel.Sink

	writeMu sync.Mutex

	mu    sync.Mutex
	uuid  string
	state tunnel.State

	stopRead     chan struct{}
	disconnected sync.Once
}

// New returns a Tunnel against baseURL, the single endpoint spec.md §6
// defines "U?connect"/"U?read:UUID"/"U?write:UUID" relative to. A nil
// sink is replaced with tunnel.NullSink; a nil client defaults to
// http.DefaultClient.
func New(baseURL string, header http.Header, client *http.Client, sink tunnel.Sink) *Tunnel {
	if client == nil {
		client = http.DefaultClient
	}
	if sink == nil {
		sink = tunnel.NullSink{}
	}
	return &Tunnel{
		baseURL:  baseURL,
		header:   header,
		client:   client,
		sink:     sink,
		state:    tunnel.StateConnecting,
		stopRead: make(chan struct{}),
	}
}

// Connect POSTs connectData to "baseURL?connect". The response body is
// the server-assigned UUID as plain ASCII text with no surrounding
// whitespace, per spec.md §6 - not JSON.
func (t *Tunnel) Connect(ctx context.Context, connectData string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+suffixConnect, bytes.NewBufferString(connectData))
	if err != nil {
		return errors.Wrap(err, "http tunnel: build connect request")
	}
	t.applyHeader(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return tunnel.NetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return tunnel.StatusFromHTTP(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "http tunnel: read connect response")
	}
	uuid := strings.TrimSpace(string(body))

	t.mu.Lock()
	t.uuid = uuid
	t.mu.Unlock()
	t.sink.OnUUID(uuid)

	go t.readLoop()
	return nil
}

// SendMessage POSTs data (an already-rendered instruction) to
// "baseURL?write:UUID". Calls are serialized so that concurrent
// SendMessage callers never interleave their bodies out of order.
func (t *Tunnel) SendMessage(ctx context.Context, data string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+suffixWrite+t.UUID(), bytes.NewBufferString(data))
	if err != nil {
		return errors.Wrap(err, "http tunnel: build write request")
	}
	t.applyHeader(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return tunnel.NetworkError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return tunnel.StatusFromHTTP(resp.StatusCode)
	}
	return nil
}

// Disconnect stops the read loop. Idempotent.
func (t *Tunnel) Disconnect() error {
	t.disconnected.Do(func() {
		t.mu.Lock()
		t.state = tunnel.StateClosed
		t.mu.Unlock()
		close(t.stopRead)
	})
	return nil
}

// State returns the tunnel's current connectivity state.
func (t *Tunnel) State() tunnel.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UUID returns the server-assigned connection UUID.
func (t *Tunnel) UUID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.uuid
}

func (t *Tunnel) applyHeader(req *http.Request) {
	for k, vs := range t.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// readLoop repeatedly issues a long-poll GET against "baseURL?read:UUID",
// decoding whatever instructions come back on each response and backing
// off exponentially (capped at maxPollBackoff) between empty or failed
// polls, resetting to minPollBackoff as soon as a poll returns data.
// The tunnel reaches StateOpen when the first instruction is decoded.
func (t *Tunnel) readLoop() {
	dec := codec.NewDecoder(func(opcode string, args []string) error {
		t.setState(tunnel.StateOpen)
		return t.sink.OnInstruction(opcode, args)
	})

	backoff := minPollBackoff
	for {
		select {
		case <-t.stopRead:
			return
		default:
		}

		body, err := t.poll()
		if err != nil {
			logger.Errorf("http tunnel: poll failed: %v", err)
			t.setState(tunnel.StateUnstable)
			backoff = nextBackoff(backoff)
			if !sleepOrStop(backoff, t.stopRead) {
				return
			}
			continue
		}

		if len(body) == 0 {
			backoff = nextBackoff(backoff)
			if !sleepOrStop(backoff, t.stopRead) {
				return
			}
			continue
		}
		backoff = minPollBackoff

		if err := dec.Receive(body); err != nil {
			t.sink.OnError(status.New(status.ServerError, err.Error()))
			_ = t.Disconnect()
			return
		}
	}
}

func (t *Tunnel) poll() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tunnel.ReceiveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+suffixRead+t.UUID(), nil)
	if err != nil {
		return nil, err
	}
	t.applyHeader(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, tunnel.NetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, tunnel.StatusFromHTTP(resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
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

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return 100 * time.Millisecond
	}
	next := current * 2
	if next > maxPollBackoff {
		return maxPollBackoff
	}
	return next
}

func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}
