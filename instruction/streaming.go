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

package instruction

// Streaming opcodes, used to open, feed, and close input/output/pipe
// streams and negotiate inline audio/video/file transfer.
const (
	OpAck         = "ack"
	OpArgv        = "argv"
	OpStreamAudio = "audio"
	OpBlob        = "blob"
	OpClipboard   = "clipboard"
	OpEnd         = "end"
	OpFile        = "file"
	OpImg         = "img"
	OpNest        = "nest"
	OpPipe        = "pipe"
	OpStreamVideo = "video"
)

func init() {
	register(OpAck, 3)
	register(OpArgv, 3)
	register(OpBlob, 2)
	register(OpClipboard, 2)
	register(OpEnd, 1)
	register(OpFile, 3)
	register(OpImg, 6)
	register(OpNest, 2)
	register(OpPipe, 3)
	// OpStreamAudio/OpStreamVideo share "audio"/"video" with the
	// handshake capability-negotiation instructions of the same name;
	// both are variadic (-1) so the handshake registration already
	// covers them.
}

// Ack acknowledges a stream, carrying its status. A SUCCESS status means
// the stream may continue; any error status means the stream is closed.
func Ack(stream int64, message string, code int64) Instruction {
	return New(OpAck, i64(stream), message, i64(code))
}

// ParseAck extracts the stream index, message, and numeric status code
// from an `ack` instruction.
func ParseAck(ins Instruction) (stream int64, message string, code int64, err error) {
	stream, err = ins.Int(0)
	if err != nil {
		return 0, "", 0, err
	}
	message, err = ins.String(1)
	if err != nil {
		return 0, "", 0, err
	}
	code, err = ins.Int(2)
	return stream, message, code, err
}

// Argv opens a stream carrying an updated value for a connection
// parameter the server previously declared mutable.
func Argv(stream int64, mimetype, name string) Instruction {
	return New(OpArgv, i64(stream), mimetype, name)
}

// ParseArgv extracts the stream index, mimetype, and parameter name from
// an `argv` instruction.
func ParseArgv(ins Instruction) (stream int64, mimetype, name string, err error) {
	stream, err = ins.Int(0)
	if err != nil {
		return 0, "", "", err
	}
	mimetype, err = ins.String(1)
	if err != nil {
		return 0, "", "", err
	}
	name, err = ins.String(2)
	return stream, mimetype, name, err
}

// StreamAudio opens an output stream carrying audio data synchronized to
// the display, on the given channel layer.
func StreamAudio(stream, channel int64, mimetype string) Instruction {
	return New(OpStreamAudio, i64(stream), i64(channel), mimetype)
}

// Blob carries a chunk of base64-encoded stream payload. The core treats
// the payload as opaque text; see stream/blobio for optional decoding.
func Blob(stream int64, base64Data string) Instruction {
	return New(OpBlob, i64(stream), base64Data)
}

// ParseBlob extracts the stream index and base64 payload from a `blob`
// instruction.
func ParseBlob(ins Instruction) (stream int64, base64Data string, err error) {
	stream, err = ins.Int(0)
	if err != nil {
		return 0, "", err
	}
	base64Data, err = ins.String(1)
	return stream, base64Data, err
}

// Clipboard opens a stream carrying clipboard content of the given
// mimetype.
func Clipboard(stream int64, mimetype string) Instruction {
	return New(OpClipboard, i64(stream), mimetype)
}

// ParseClipboard extracts the stream index and mimetype from a
// `clipboard` instruction.
func ParseClipboard(ins Instruction) (stream int64, mimetype string, err error) {
	stream, err = ins.Int(0)
	if err != nil {
		return 0, "", err
	}
	mimetype, err = ins.String(1)
	return stream, mimetype, err
}

// End terminates stream; always sent, and must follow any blob events
// for that stream.
func End(stream int64) Instruction { return New(OpEnd, i64(stream)) }

// ParseEnd extracts the stream index from an `end` instruction.
func ParseEnd(ins Instruction) (int64, error) { return ins.Int(0) }

// File opens an output stream carrying a complete file of the given
// mimetype and name.
func File(stream int64, mimetype, name string) Instruction {
	return New(OpFile, i64(stream), mimetype, name)
}

// ParseFile extracts the stream index, mimetype, and filename from a
// `file` instruction.
func ParseFile(ins Instruction) (stream int64, mimetype, name string, err error) {
	stream, err = ins.Int(0)
	if err != nil {
		return 0, "", "", err
	}
	mimetype, err = ins.String(1)
	if err != nil {
		return 0, "", "", err
	}
	name, err = ins.String(2)
	return stream, mimetype, name, err
}

// Img opens an output stream carrying an image update for layer, using
// the corrected field order (stream, channelMask, layer, mimetype, x,
// y): channelMask selects the raster combine function and precedes
// layer, matching the writer's actual argument order rather than the
// distillation's original (and incorrect) ordering.
func Img(stream, channelMask, layer int64, mimetype string, x, y int64) Instruction {
	return New(OpImg, i64(stream), i64(channelMask), i64(layer), mimetype, i64(x), i64(y))
}

// ParseImg extracts fields from an `img` instruction in the corrected
// order (stream, channelMask, layer, mimetype, x, y).
func ParseImg(ins Instruction) (stream, channelMask, layer int64, mimetype string, x, y int64, err error) {
	stream, err = ins.Int(0)
	if err != nil {
		return
	}
	channelMask, err = ins.Int(1)
	if err != nil {
		return
	}
	layer, err = ins.Int(2)
	if err != nil {
		return
	}
	mimetype, err = ins.String(3)
	if err != nil {
		return
	}
	x, err = ins.Int(4)
	if err != nil {
		return
	}
	y, err = ins.Int(5)
	return
}

// Nest wraps a sub-instruction's already-encoded wire text inside
// stream's parser index, so the receiver re-feeds data into an
// independent nested decoder rather than the top-level one.
func Nest(parserIndex int64, data string) Instruction {
	return New(OpNest, i64(parserIndex), data)
}

// ParseNest extracts the nested parser index and embedded wire data from
// a `nest` instruction.
func ParseNest(ins Instruction) (parserIndex int64, data string, err error) {
	parserIndex, err = ins.Int(0)
	if err != nil {
		return 0, "", err
	}
	data, err = ins.String(1)
	return parserIndex, data, err
}

// Pipe opens a named, out-of-band data stream of the given mimetype -
// used for extensions the core does not interpret (e.g. custom channel
// protocols).
func Pipe(stream int64, mimetype, name string) Instruction {
	return New(OpPipe, i64(stream), mimetype, name)
}

// ParsePipe extracts the stream index, mimetype, and pipe name from a
// `pipe` instruction.
func ParsePipe(ins Instruction) (stream int64, mimetype, name string, err error) {
	stream, err = ins.Int(0)
	if err != nil {
		return 0, "", "", err
	}
	mimetype, err = ins.String(1)
	if err != nil {
		return 0, "", "", err
	}
	name, err = ins.String(2)
	return stream, mimetype, name, err
}

// StreamVideo opens an output stream carrying video data synchronized to
// the display, on the given layer.
func StreamVideo(stream, layer int64, mimetype string) Instruction {
	return New(OpStreamVideo, i64(stream), i64(layer), mimetype)
}
