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

// Client input-event opcodes. `size` is reused here for a client->server
// viewport resize notification, distinct from the handshake `size`
// (3 args) and the drawing `size` (layer resize, server->client).
const (
	OpKey        = "key"
	OpMouse      = "mouse"
	OpClientSize = "size"
)

func init() {
	register(OpKey, 2)
	register(OpMouse, 3)
	// OpClientSize is intentionally not registered: it shares the "size"
	// wire name with the handshake and drawing instructions but takes 2
	// args where those take 3, and the shared registry entry already
	// belongs to them. See the registry doc comment in instruction.go.
}

// Key encodes a single keyboard event: an X11 keysym and whether it was
// pressed (true) or released (false).
func Key(keysym int64, pressed bool) Instruction {
	p := "0"
	if pressed {
		p = "1"
	}
	return New(OpKey, i64(keysym), p)
}

// ParseKey extracts the keysym and pressed flag from a `key` instruction.
func ParseKey(ins Instruction) (keysym int64, pressed bool, err error) {
	keysym, err = ins.Int(0)
	if err != nil {
		return 0, false, err
	}
	pressed, err = ins.Bool(1)
	return keysym, pressed, err
}

// Mouse encodes a pointer event: absolute position and the bitmask of
// currently pressed buttons.
func Mouse(x, y, buttonMask int64) Instruction {
	return New(OpMouse, i64(x), i64(y), i64(buttonMask))
}

// ParseMouse extracts position and button mask from a `mouse`
// instruction. The server also sends `mouse` to relay remote cursor
// position/visibility to the display sink.
func ParseMouse(ins Instruction) (x, y, buttonMask int64, err error) {
	x, err = ins.Int(0)
	if err != nil {
		return 0, 0, 0, err
	}
	y, err = ins.Int(1)
	if err != nil {
		return 0, 0, 0, err
	}
	buttonMask, err = ins.Int(2)
	return x, y, buttonMask, err
}

// ClientSize notifies the server that the client's viewport changed.
func ClientSize(width, height int64) Instruction {
	return New(OpClientSize, i64(width), i64(height))
}
