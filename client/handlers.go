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

package client

import (
	"github.com/guacd/gcore/instruction"
	"github.com/guacd/gcore/metrics"
	"github.com/guacd/gcore/sink"
	"github.com/guacd/gcore/status"
)

// registerHandlers wires every opcode this client acts on to the
// router, plus a catch-all listener that forwards everything - drawing
// opcodes and the streaming announcements this client doesn't bind to a
// specific sink (img, file, pipe, the audio/video stream-open forms) -
// to DisplaySink.Draw. Handlers run before the listener, so state and
// stream-table changes are already applied by the time Draw sees an
// instruction.
func (c *Client) registerHandlers() {
	c.router.AddListener(func(ins instruction.Instruction) error {
		return c.sinks.Display.Draw(ins.Opcode, ins.Args)
	})

	c.router.AddInstructionHandler(instruction.OpArgs, c.handleArgs)
	c.router.AddInstructionHandler(instruction.OpSync, c.handleSync)
	c.router.AddInstructionHandler(instruction.OpError, c.handleError)
	c.router.AddInstructionHandler(instruction.OpDisconnect, c.handleDisconnect)
	c.router.AddInstructionHandler(instruction.OpRequired, c.handleRequired)
	c.router.AddInstructionHandler(instruction.OpName, c.handleName)

	c.router.AddInstructionHandler(instruction.OpAck, c.handleAck)
	c.router.AddInstructionHandler(instruction.OpBlob, c.handleBlob)
	c.router.AddInstructionHandler(instruction.OpEnd, c.handleEnd)
	c.router.AddInstructionHandler(instruction.OpClipboard, c.handleClipboard)

	c.router.AddInstructionHandler(instruction.OpFilesystem, c.handleFilesystem)
	c.router.AddInstructionHandler(instruction.OpUndefine, c.handleUndefine)
	c.router.AddInstructionHandler(instruction.OpBody, c.handleBody)
	c.router.AddInstructionHandler(instruction.OpPut, c.handlePut)

	c.router.AddInstructionHandler(instruction.OpNest, c.handleNest)

	// instruction.OpReady is handled at the tunnel layer (tunnel.Sink.OnUUID)
	// before this client's router ever sees it; instruction.OpGet is a
	// request *we* issue (see RequestObject) and has no inbound handler
	// since serving filesystem content back to the server is out of
	// scope. instruction.OpMouse has no dedicated handler either - the
	// catch-all listener already forwards it to DisplaySink.Draw, and
	// nothing else in the client needs to act on a server-sent cursor
	// position update.
}

// handleArgs continues the handshake: the server's `args` instruction
// names the connection parameters it wants, in order, and the client
// responds with size/audio/video/image/timezone followed by `connect`
// carrying values for exactly those names.
func (c *Client) handleArgs(ins instruction.Instruction) error {
	names := instruction.ParseArgs(ins)

	c.mu.Lock()
	opts := c.handshake
	c.mu.Unlock()

	sends := []instruction.Instruction{
		instruction.HandshakeSize(opts.Width, opts.Height, opts.DPI),
		instruction.Audio(opts.AudioMimetypes...),
		instruction.Video(opts.VideoMimetypes...),
		instruction.Image(opts.ImageMimetypes...),
		instruction.Timezone(opts.Timezone),
	}
	for _, out := range sends {
		if err := c.sendRaw(out); err != nil {
			return err
		}
	}

	params := make([]string, len(names))
	for i, name := range names {
		params[i] = opts.Params[name]
	}
	return c.sendRaw(instruction.Connect(params...))
}

// handleSync implements the sync protocol: the server's `sync(t)`
// reports it has rendered everything up to timestamp t. The client
// flushes its display, notifies audio so playback stays in step, then
// echoes the timestamp back - but only if it differs from the last one
// echoed, since the server's clock may tick faster than instructions
// arrive. The first sync also marks the handshake complete.
func (c *Client) handleSync(ins instruction.Instruction) error {
	ts, err := instruction.ParseSync(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}

	c.mu.Lock()
	if c.state == StateWaiting {
		c.state = StateConnected
		c.events.Publish(Event{Kind: EventStateChange, State: StateConnected})
	}
	c.mu.Unlock()

	if err := c.sinks.Display.Flush(); err != nil {
		return err
	}
	if err := c.sinks.Audio.Sync(); err != nil {
		return err
	}

	c.mu.Lock()
	changed := ts != c.lastServerTimestamp
	if changed {
		c.lastServerTimestamp = ts
	}
	c.mu.Unlock()

	if !changed {
		return nil
	}
	return c.sendGuarded(instruction.Sync(ts))
}

// handleError surfaces a fatal server error to the connection sink and
// disconnects, mirroring an OnError from the tunnel itself.
func (c *Client) handleError(ins instruction.Instruction) error {
	code, message, err := instruction.ParseError(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	st := status.New(status.Code(code), message)
	c.sinks.Connection.Error(st)
	c.events.Publish(Event{Kind: EventError, Status: st})
	c.markCloseReason(metrics.CloseReasonError)
	return c.disconnectLocked()
}

// handleDisconnect tears the connection down without surfacing an
// error - the server asked to end the session cleanly.
func (c *Client) handleDisconnect(instruction.Instruction) error {
	return c.disconnectLocked()
}

func (c *Client) handleRequired(ins instruction.Instruction) error {
	params := instruction.ParseRequired(ins)
	c.sinks.Connection.Required(params)
	c.events.Publish(Event{Kind: EventRequired, Params: params})
	return nil
}

func (c *Client) handleName(ins instruction.Instruction) error {
	name, err := instruction.ParseName(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	c.sinks.Connection.Name(name)
	c.events.Publish(Event{Kind: EventName, Name: name})
	return nil
}

func (c *Client) handleAck(ins instruction.Instruction) error {
	streamIdx, message, code, err := instruction.ParseAck(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	return c.outManager.Ack(streamIdx, status.New(status.Code(code), message))
}

func (c *Client) handleBlob(ins instruction.Instruction) error {
	streamIdx, data, err := instruction.ParseBlob(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	return c.inManager.Blob(streamIdx, data)
}

func (c *Client) handleEnd(ins instruction.Instruction) error {
	streamIdx, err := instruction.ParseEnd(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	return c.inManager.End(streamIdx)
}

func (c *Client) handleClipboard(ins instruction.Instruction) error {
	streamIdx, mimetype, err := instruction.ParseClipboard(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	metrics.StreamsOpened.WithLabelValues("clipboard").Inc()
	c.inManager.Open(streamIdx, c.sinks.Clipboard.Clipboard(mimetype))
	return nil
}

// handleFilesystem registers a server-declared object with both the
// filesystem sink (so the caller learns it exists) and the object
// manager (so a later `body` can be FIFO-matched back to a `get` this
// client issued).
func (c *Client) handleFilesystem(ins instruction.Instruction) error {
	object, name, err := instruction.ParseFilesystem(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	c.sinks.Filesystem.Defined(object, name)
	c.objManager.Define(object, c.sinks.Filesystem)
	return nil
}

func (c *Client) handleUndefine(ins instruction.Instruction) error {
	object, err := instruction.ParseUndefine(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	c.objManager.Undefine(object)
	c.sinks.Filesystem.Undefined(object)
	return nil
}

// handleBody delivers a FIFO-matched response to a `get` this client
// issued. A body with no matching pending get (unsolicited, or for an
// object never defined) is dropped: its stream is bound to a
// NullStreamSink so any blob/end the server still sends for it is
// silently absorbed rather than misrouted.
func (c *Client) handleBody(ins instruction.Instruction) error {
	object, streamIdx, mimetype, name, err := instruction.ParseBody(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	s, ok := c.objManager.Body(object, mimetype, name)
	if !ok {
		s = sink.NullStreamSink{}
	}
	metrics.StreamsOpened.WithLabelValues("object-body").Inc()
	c.inManager.Open(streamIdx, s)
	return nil
}

// handlePut delivers unsolicited content the server is pushing into a
// previously declared object - unlike `body`, there is no `get` to
// match against.
func (c *Client) handlePut(ins instruction.Instruction) error {
	object, streamIdx, mimetype, name, err := instruction.ParsePut(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	metrics.StreamsOpened.WithLabelValues("object-put").Inc()
	c.inManager.Open(streamIdx, c.sinks.Filesystem.Body(object, mimetype, name))
	return nil
}

// handleNest feeds a nested instruction stream's raw text through its
// own per-parser-index Decoder, re-dispatching whatever instructions
// that decoder completes through this same router - so a nested stream
// behaves exactly as if its instructions had arrived directly.
func (c *Client) handleNest(ins instruction.Instruction) error {
	parserIndex, data, err := instruction.ParseNest(ins)
	if err != nil {
		logUnhandled(ins.Opcode, err)
		return nil
	}
	return c.nestedDecoder(parserIndex).Receive([]byte(data))
}
