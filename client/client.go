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

// Package client drives a single Guacamole connection's lifecycle on
// top of a tunnel.Tunnel: the handshake, the keep-alive/sync protocol,
// and routing inbound instructions to the narrow sink.* consumer
// interfaces and stream managers that implement them. Every mutation -
// state transitions, stream-table updates, outbound sends - happens on
// one internal worker goroutine, so a Client behaves as a single
// logical actor even though its tunnel's reader and the keep-alive
// ticker each run on their own goroutine.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guacd/gcore/codec"
	"github.com/guacd/gcore/instruction"
	"github.com/guacd/gcore/internal/pubsub"
	"github.com/guacd/gcore/internal/rescue"
	"github.com/guacd/gcore/logger"
	"github.com/guacd/gcore/metrics"
	"github.com/guacd/gcore/router"
	"github.com/guacd/gcore/sink"
	"github.com/guacd/gcore/status"
	"github.com/guacd/gcore/stream"
	"github.com/guacd/gcore/tunnel"
)

// State is the Client's connection lifecycle state.
type State int

const (
	// StateIdle is the state before Connect is first called.
	StateIdle State = iota

	// StateConnecting is the state from Connect's call until the
	// tunnel is established.
	StateConnecting

	// StateWaiting is the state from tunnel establishment until the
	// first inbound `sync` - the handshake is running, but the server
	// hasn't yet confirmed it has a frame ready.
	StateWaiting

	// StateConnected is the normal operating state.
	StateConnected

	// StateDisconnecting is the state while a graceful teardown is in
	// progress.
	StateDisconnecting

	// StateDisconnected is terminal; a Client does not reconnect
	// itself. Build a new Client for a new attempt.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateWaiting:
		return "WAITING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// KeepAliveInterval is how often a CONNECTED or WAITING client sends an
// unsolicited `nop` to keep intermediate proxies and the server from
// timing the connection out during quiet periods.
const KeepAliveInterval = 5000 * time.Millisecond

var errNotIdle = errors.New("client: already connecting or connected")

// HandshakeOptions carries the values the client offers during the
// select/args/connect handshake. Params supplies the connection
// parameter values the server's `args` instruction asks for, keyed by
// parameter name; a name the server requests that has no entry here is
// sent as an empty string, matching the reference client's behavior for
// an unset optional parameter.
type HandshakeOptions struct {
	Protocol string

	Width, Height, DPI int64
	AudioMimetypes     []string
	VideoMimetypes     []string
	ImageMimetypes     []string
	Timezone           string

	Params map[string]string
}

// Sinks bundles the narrow consumer interfaces a Client dispatches
// into. Any left nil default to their sink.Null* implementation.
type Sinks struct {
	Display    sink.DisplaySink
	Audio      sink.AudioSink
	Clipboard  sink.ClipboardSink
	Filesystem sink.FilesystemSink
	Connection sink.ConnectionSink
}

func (s Sinks) withDefaults() Sinks {
	if s.Display == nil {
		s.Display = sink.NullDisplaySink{}
	}
	if s.Audio == nil {
		s.Audio = sink.NullAudioSink{}
	}
	if s.Clipboard == nil {
		s.Clipboard = sink.NullClipboardSink{}
	}
	if s.Filesystem == nil {
		s.Filesystem = sink.NullFilesystemSink{}
	}
	if s.Connection == nil {
		s.Connection = sink.NullConnectionSink{}
	}
	return s
}

// EventKind identifies the shape of an Event published to a Client's
// event bus.
type EventKind int

const (
	EventStateChange EventKind = iota
	EventUUID
	EventRequired
	EventName
	EventError
)

// Event is the value pushed to every subscriber of a Client's event
// bus. Only the field matching Kind is meaningful.
type Event struct {
	Kind   EventKind
	State  State
	UUID   string
	Params []string
	Name   string
	Status status.Status
}

// Client drives one Guacamole connection.
type Client struct {
	tun    tunnel.Tunnel
	router *router.Router
	sinks  Sinks
	events *pubsub.PubSub

	inManager  *stream.InputManager
	outManager *stream.OutputManager
	objManager *stream.ObjectManager

	mu                   sync.Mutex
	state                State
	uuid                 string
	lastServerTimestamp  int64
	handshake            HandshakeOptions
	closeReason          metrics.CloseReason

	nestedMu sync.Mutex
	nested   map[int64]*codec.Decoder

	keepAliveStop chan struct{}

	cmds       chan func()
	stopWorker chan struct{}
}

// New returns an idle Client bound to tun. tun should not have had
// Connect called on it yet; Client.Connect drives that call itself.
// The Client is a tunnel.Sink but does not install itself on tun: the
// tunnel's Sink is fixed at construction, so a caller wires it (e.g. a
// tunnel.LazySink bound to this Client) before Connect.
func New(tun tunnel.Tunnel, sinks Sinks) *Client {
	c := &Client{
		tun:        tun,
		router:     router.New(),
		sinks:      sinks.withDefaults(),
		events:     pubsub.New(),
		inManager:  stream.NewInputManager(),
		outManager: stream.NewOutputManager(),
		objManager: stream.NewObjectManager(),
		state:      StateIdle,
		nested:     make(map[int64]*codec.Decoder),
		cmds:       make(chan func(), 64),
		stopWorker: make(chan struct{}),
	}
	c.registerHandlers()
	go c.worker()
	return c
}

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UUID returns the server-assigned connection UUID, or "" before it has
// arrived.
func (c *Client) UUID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uuid
}

// Subscribe returns a queue that receives every Event this client
// publishes from here on, buffered up to size.
func (c *Client) Subscribe(size int) pubsub.Queue {
	return c.events.Subscribe(size)
}

// Unsubscribe stops q from receiving further events.
func (c *Client) Unsubscribe(q pubsub.Queue) {
	c.events.Unsubscribe(q)
}

// Connect starts the connection: it sends the rendered `select`
// instruction as the tunnel's initial payload, and once the tunnel is
// up, waits for the server's `args` instruction to drive the rest of
// the handshake (size/audio/video/image/timezone/connect). Connect
// returns once the tunnel itself is established; it does not wait for
// the handshake to finish or for the first `sync`.
func (c *Client) Connect(ctx context.Context, opts HandshakeOptions) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return errNotIdle
	}
	c.state = StateConnecting
	c.handshake = opts
	c.mu.Unlock()

	connectData := instruction.Select(opts.Protocol).Encode()
	if err := c.tun.Connect(ctx, connectData); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.state = StateWaiting
	c.mu.Unlock()
	c.events.Publish(Event{Kind: EventStateChange, State: StateWaiting})

	metrics.ConnectionsOpened.WithLabelValues(opts.Protocol).Inc()
	metrics.ConnectionsActive.Inc()

	c.startKeepAlive()
	return nil
}

// Disconnect gracefully tears the connection down: it stops the
// keep-alive loop, sends `disconnect`, and closes the tunnel. Safe to
// call more than once or from any state; states other than CONNECTED
// and WAITING simply skip the outbound `disconnect` instruction.
func (c *Client) Disconnect() error {
	return c.execSync(func() error {
		return c.disconnectLocked()
	})
}

func (c *Client) disconnectLocked() error {
	c.mu.Lock()
	if c.state == StateDisconnected || c.state == StateDisconnecting {
		c.mu.Unlock()
		return nil
	}
	wasActive := c.state == StateConnected || c.state == StateWaiting
	c.state = StateDisconnecting
	c.mu.Unlock()

	c.stopKeepAlive()
	if wasActive {
		_ = c.sendRaw(instruction.Disconnect())
	}
	_ = c.tun.Disconnect()

	c.mu.Lock()
	c.state = StateDisconnected
	reason := c.closeReason
	c.mu.Unlock()
	c.events.Publish(Event{Kind: EventStateChange, State: StateDisconnected})

	if wasActive {
		metrics.ConnectionsActive.Dec()
	}
	if reason == "" {
		reason = metrics.CloseReasonClean
	}
	metrics.ConnectionsClosed.WithLabelValues(string(reason)).Inc()

	close(c.stopWorker)
	return nil
}

// markCloseReason records why the connection is ending, for the next
// disconnectLocked call to report through metrics.ConnectionsClosed. A
// reason set after teardown has already recorded one is ignored.
func (c *Client) markCloseReason(reason metrics.CloseReason) {
	c.mu.Lock()
	if c.closeReason == "" {
		c.closeReason = reason
	}
	c.mu.Unlock()
}

// OnInstruction implements tunnel.Sink: every instruction the tunnel
// decodes is dispatched on the Client's worker, serialized with every
// other state mutation.
func (c *Client) OnInstruction(opcode string, args []string) error {
	return c.execSync(func() error {
		return c.dispatch(instruction.New(opcode, args...))
	})
}

// OnStateChange implements tunnel.Sink. The client's own lifecycle
// state is driven by the handshake/sync protocol, not by the tunnel's
// connectivity state directly; a tunnel that cannot recover reports
// that through OnError instead.
func (c *Client) OnStateChange(tunnel.State) {}

// OnUUID implements tunnel.Sink.
func (c *Client) OnUUID(id string) {
	c.mu.Lock()
	c.uuid = id
	c.mu.Unlock()
	c.events.Publish(Event{Kind: EventUUID, UUID: id})
}

// OnError implements tunnel.Sink: a tunnel failure is reported to the
// connection sink and ends the connection, the same as an inbound
// `error` instruction.
func (c *Client) OnError(st status.Status) {
	_ = c.execSync(func() error {
		c.sinks.Connection.Error(st)
		c.events.Publish(Event{Kind: EventError, Status: st})
		if st.Code == status.UpstreamTimeout {
			c.markCloseReason(metrics.CloseReasonTimeout)
		} else {
			c.markCloseReason(metrics.CloseReasonError)
		}
		return c.disconnectLocked()
	})
}

func (c *Client) dispatch(ins instruction.Instruction) error {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st == StateDisconnected {
		return nil
	}
	metrics.InstructionsDispatched.WithLabelValues(ins.Opcode).Inc()
	return c.router.Dispatch(ins)
}

// sendGuarded sends ins only if the client is CONNECTED or WAITING,
// matching the reference client's rule that sendKeyEvent, sendMouseEvent,
// sendSize, and the generic send path are silent no-ops outside an
// active connection rather than errors.
func (c *Client) sendGuarded(ins instruction.Instruction) error {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st != StateConnected && st != StateWaiting {
		return nil
	}
	return c.sendRaw(ins)
}

func (c *Client) sendRaw(ins instruction.Instruction) error {
	return c.tun.SendMessage(context.Background(), ins.Encode())
}

// SendKeyEvent sends a key press/release event. A no-op unless the
// client is CONNECTED or WAITING.
func (c *Client) SendKeyEvent(keysym int64, pressed bool) error {
	return c.execSync(func() error { return c.sendGuarded(instruction.Key(keysym, pressed)) })
}

// SendMouseEvent sends a pointer position/button-mask update. A no-op
// unless the client is CONNECTED or WAITING.
func (c *Client) SendMouseEvent(x, y, buttonMask int64) error {
	return c.execSync(func() error { return c.sendGuarded(instruction.Mouse(x, y, buttonMask)) })
}

// SendSize sends a client display size change. A no-op unless the
// client is CONNECTED or WAITING.
func (c *Client) SendSize(width, height int64) error {
	return c.execSync(func() error { return c.sendGuarded(instruction.ClientSize(width, height)) })
}

// SendMessage sends an arbitrary already-built instruction. A no-op
// unless the client is CONNECTED or WAITING.
func (c *Client) SendMessage(ins instruction.Instruction) error {
	return c.execSync(func() error { return c.sendGuarded(ins) })
}

// SendClipboard opens a new outbound clipboard stream and announces it
// to the server, returning the stream index for subsequent SendBlob/
// SendStreamEnd calls. ack receives the server's eventual acknowledgement.
func (c *Client) SendClipboard(mimetype string, ack sink.AckSink) (int64, error) {
	var idx int64
	err := c.execSync(func() error {
		idx = c.outManager.Open(ack)
		return c.sendGuarded(instruction.Clipboard(idx, mimetype))
	})
	return idx, err
}

// SendPipe opens a new outbound named pipe stream and announces it to
// the server, returning the stream index for subsequent SendBlob/
// SendStreamEnd calls.
func (c *Client) SendPipe(name, mimetype string, ack sink.AckSink) (int64, error) {
	var idx int64
	err := c.execSync(func() error {
		idx = c.outManager.Open(ack)
		return c.sendGuarded(instruction.Pipe(idx, mimetype, name))
	})
	return idx, err
}

// SendBlob sends one chunk of an outbound stream previously opened with
// SendClipboard or SendPipe.
func (c *Client) SendBlob(streamIdx int64, base64Data string) error {
	return c.execSync(func() error { return c.sendGuarded(instruction.Blob(streamIdx, base64Data)) })
}

// SendStreamEnd closes an outbound stream previously opened with
// SendClipboard or SendPipe.
func (c *Client) SendStreamEnd(streamIdx int64) error {
	return c.execSync(func() error { return c.sendGuarded(instruction.End(streamIdx)) })
}

// RequestObject asks the server for name from a previously defined
// object, resolving against the next matching `body` instruction.
func (c *Client) RequestObject(object int64, name string) error {
	return c.execSync(func() error {
		c.objManager.Get(object, name)
		return c.sendGuarded(instruction.Get(object, name))
	})
}

// execSync queues fn to run on the worker goroutine and blocks until it
// completes, giving callers (public API methods and tunnel callbacks
// alike) the same serialization guarantee without each needing its own
// locking scheme. Once the client has reached DISCONNECTED, every call
// silently no-ops (returns nil) rather than erroring - the same
// contract sendGuarded already gives a public Send* call made before a
// connection was ever established.
func (c *Client) execSync(fn func() error) error {
	c.mu.Lock()
	disconnected := c.state == StateDisconnected
	c.mu.Unlock()
	if disconnected {
		return nil
	}

	result := make(chan error, 1)
	select {
	case c.cmds <- func() { result <- fn() }:
	case <-c.stopWorker:
		return nil
	}

	select {
	case err := <-result:
		return err
	case <-c.stopWorker:
		return nil
	}
}

func (c *Client) worker() {
	defer rescue.HandleCrash()
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.stopWorker:
			return
		}
	}
}

func (c *Client) startKeepAlive() {
	c.keepAliveStop = make(chan struct{})
	stop := c.keepAliveStop
	go func() {
		defer rescue.HandleCrash()
		ticker := time.NewTicker(KeepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.execSync(func() error { return c.sendGuarded(instruction.Nop()) }); err != nil {
					return
				}
			case <-stop:
				return
			case <-c.stopWorker:
				return
			}
		}
	}()
}

func (c *Client) stopKeepAlive() {
	if c.keepAliveStop != nil {
		close(c.keepAliveStop)
		c.keepAliveStop = nil
	}
}

func (c *Client) nestedDecoder(parserIndex int64) *codec.Decoder {
	c.nestedMu.Lock()
	defer c.nestedMu.Unlock()
	dec, ok := c.nested[parserIndex]
	if !ok {
		dec = codec.NewDecoder(func(opcode string, args []string) error {
			return c.dispatch(instruction.New(opcode, args...))
		})
		c.nested[parserIndex] = dec
	}
	return dec
}

// logUnhandled is used by handlers that choose to tolerate a malformed
// instruction rather than tearing the connection down over it.
func logUnhandled(opcode string, err error) {
	logger.Warnf("client: ignoring malformed %q instruction: %v", opcode, err)
}
