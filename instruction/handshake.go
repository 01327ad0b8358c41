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

// Handshake opcodes, sent by the client during connection setup before
// `connect`.
const (
	OpSelect   = "select"
	OpSize     = "size"
	OpAudio    = "audio"
	OpVideo    = "video"
	OpImage    = "image"
	OpTimezone = "timezone"
	OpConnect  = "connect"

	// OpArgs is the server's reply to `select`, listing the connection
	// parameters it requires.
	OpArgs = "args"
)

func init() {
	register(OpSelect, 1)
	register(OpSize, 3)
	register(OpAudio, -1)
	register(OpVideo, -1)
	register(OpImage, -1)
	register(OpTimezone, 1)
	register(OpConnect, -1)
	register(OpArgs, -1)
}

// Select chooses the remote-desktop protocol to proxy (e.g. "rdp", "vnc").
func Select(protocol string) Instruction {
	return New(OpSelect, protocol)
}

// HandshakeSize declares the client's preferred display resolution and
// DPI, sent once before `connect`.
func HandshakeSize(width, height, dpi int64) Instruction {
	return New(OpSize, i64(width), i64(height), i64(dpi))
}

// Audio declares the audio mimetypes the client supports.
func Audio(mimetypes ...string) Instruction {
	return New(OpAudio, mimetypes...)
}

// Video declares the video mimetypes the client supports.
func Video(mimetypes ...string) Instruction {
	return New(OpVideo, mimetypes...)
}

// Image declares the image mimetypes the client supports.
func Image(mimetypes ...string) Instruction {
	return New(OpImage, mimetypes...)
}

// Timezone declares the client's IANA timezone name.
func Timezone(tz string) Instruction {
	return New(OpTimezone, tz)
}

// Connect supplies the protocol-specific connection parameters, in the
// order named by the server's preceding `args` instruction.
func Connect(params ...string) Instruction {
	return New(OpConnect, params...)
}

// ParseArgs returns the parameter names the server expects in the
// client's subsequent `connect` instruction.
func ParseArgs(ins Instruction) []string {
	return append([]string(nil), ins.Args...)
}
