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

// Package sink defines the narrow interfaces that the out-of-scope
// consumers of a connection - a display renderer, an audio player, a
// clipboard/filesystem UI - implement. The core never holds a nullable
// callback field for these concerns; it holds a sink interface and
// calls it unconditionally, falling back to the no-op defaults below
// when a caller doesn't supply one.
package sink

import "github.com/guacd/gcore/status"

// StreamSink receives the payload of a single input stream the server
// opened and the client bound to a sink (a clipboard stream or an
// object stream); file, pipe, audio, video and img streams are only
// announced through DisplaySink.Draw. Blob is called
// once per `blob` instruction, in order, and always followed eventually
// by exactly one call to End or Error - never both.
type StreamSink interface {
	// Blob delivers one chunk's base64 text verbatim, as it appeared in
	// the wire instruction. Decoding is the sink's responsibility; see
	// stream/blobio for an optional helper.
	Blob(base64Data string) error

	// End marks normal stream completion.
	End() error

	// Error marks abnormal stream termination; st.IsError() is always
	// true.
	Error(st status.Status) error
}

// NullStreamSink discards every event; used as the default when a
// caller has no interest in a stream's content (e.g. ignoring an
// unsolicited clipboard stream).
type NullStreamSink struct{}

func (NullStreamSink) Blob(string) error      { return nil }
func (NullStreamSink) End() error             { return nil }
func (NullStreamSink) Error(status.Status) error { return nil }

// AckSink receives the server's acknowledgement of an output stream the
// client opened.
type AckSink interface {
	Ack(st status.Status) error
}

// NullAckSink discards acknowledgements.
type NullAckSink struct{}

func (NullAckSink) Ack(status.Status) error { return nil }

// DisplaySink receives drawing and layer-management events. A display
// renderer implements this; the core never rasterizes.
type DisplaySink interface {
	// Draw is called once per dispatched instruction, after any
	// opcode-specific handler has run - including instructions the
	// client also acts on itself, such as sync or blob. It is how every
	// drawing opcode, and the streaming announcements (img, file, pipe,
	// the audio/video stream-open forms) the core doesn't bind to a
	// specific sink, reach a renderer. Args are the raw wire text, as
	// instruction.Instruction would expose them; this package does not
	// import instruction, so no typed form is passed.
	Draw(opcode string, args []string) error

	// Resize notifies the sink that the default layer's dimensions
	// changed (handshake negotiation or a server-driven resize).
	Resize(width, height int64) error

	// Flush is called once per inbound `sync`, before the client decides
	// whether to echo it: the sync reply means "I have applied and
	// rendered all prior operations", so the client waits for Flush to
	// return before considering this sync handled. Stands in for the
	// original client's asynchronous flush-then-callback; a renderer
	// with nothing to batch can return immediately.
	Flush() error
}

// NullDisplaySink discards every drawing/resize/flush event.
type NullDisplaySink struct{}

func (NullDisplaySink) Draw(string, []string) error { return nil }
func (NullDisplaySink) Resize(int64, int64) error   { return nil }
func (NullDisplaySink) Flush() error                { return nil }

// AudioSink receives the sync notification a connected audio player
// needs to stay in step with the display. The core never plays audio
// itself; stream announcements for an audio channel still arrive
// through DisplaySink.Draw like any other unmodeled streaming opcode.
type AudioSink interface {
	// Sync is called once per inbound `sync`, after DisplaySink.Flush
	// returns.
	Sync() error
}

// NullAudioSink discards every sync notification.
type NullAudioSink struct{}

func (NullAudioSink) Sync() error { return nil }

// ClipboardSink receives inbound clipboard stream announcements.
type ClipboardSink interface {
	Clipboard(mimetype string) StreamSink
}

// NullClipboardSink ignores every clipboard stream.
type NullClipboardSink struct{}

func (NullClipboardSink) Clipboard(string) StreamSink { return NullStreamSink{} }

// FilesystemSink receives filesystem object announcements and body
// delivery for a previously issued `get`.
type FilesystemSink interface {
	Defined(object int64, name string)
	Undefined(object int64)
	Body(object int64, mimetype, name string) StreamSink
}

// NullFilesystemSink ignores every filesystem event.
type NullFilesystemSink struct{}

func (NullFilesystemSink) Defined(int64, string)              {}
func (NullFilesystemSink) Undefined(int64)                    {}
func (NullFilesystemSink) Body(int64, string, string) StreamSink { return NullStreamSink{} }

// ConnectionSink receives connection-lifecycle notifications that
// aren't tied to any single stream: the server's prompt for additional
// parameters, the negotiated connection name, and terminal errors.
type ConnectionSink interface {
	Required(params []string)
	Name(name string)
	Error(st status.Status)
}

// NullConnectionSink ignores every lifecycle event.
type NullConnectionSink struct{}

func (NullConnectionSink) Required([]string)    {}
func (NullConnectionSink) Name(string)          {}
func (NullConnectionSink) Error(status.Status) {}
