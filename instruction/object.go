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

// Object opcodes, used for filesystem-like named-stream exchange bound
// to a server-defined object (e.g. a remote clipboard or drive).
const (
	OpBody       = "body"
	OpFilesystem = "filesystem"
	OpGet        = "get"
	OpPut        = "put"
	OpUndefine   = "undefine"
)

func init() {
	register(OpBody, 4)
	register(OpFilesystem, 2)
	register(OpGet, 2)
	register(OpPut, 4)
	register(OpUndefine, 1)
}

// Body opens an output stream carrying the content of name, previously
// requested from object via `get`.
func Body(object, stream int64, mimetype, name string) Instruction {
	return New(OpBody, i64(object), i64(stream), mimetype, name)
}

// ParseBody extracts the object index, stream index, mimetype, and
// requested name from a `body` instruction.
func ParseBody(ins Instruction) (object, stream int64, mimetype, name string, err error) {
	object, err = ins.Int(0)
	if err != nil {
		return 0, 0, "", "", err
	}
	stream, err = ins.Int(1)
	if err != nil {
		return 0, 0, "", "", err
	}
	mimetype, err = ins.String(2)
	if err != nil {
		return 0, 0, "", "", err
	}
	name, err = ins.String(3)
	return object, stream, mimetype, name, err
}

// Filesystem declares a new object representing a named filesystem
// (e.g. a shared drive), available for later `get`/`put` exchange.
func Filesystem(object int64, name string) Instruction {
	return New(OpFilesystem, i64(object), name)
}

// ParseFilesystem extracts the object index and filesystem name from a
// `filesystem` instruction.
func ParseFilesystem(ins Instruction) (object int64, name string, err error) {
	object, err = ins.Int(0)
	if err != nil {
		return 0, "", err
	}
	name, err = ins.String(1)
	return object, name, err
}

// Get requests the content of name from object. The response arrives as
// a `body` instruction matched FIFO per (object, name); `undefine`
// cancels any still-pending request.
func Get(object int64, name string) Instruction {
	return New(OpGet, i64(object), name)
}

// ParseGet extracts the object index and requested name from a `get`
// instruction.
func ParseGet(ins Instruction) (object int64, name string, err error) {
	object, err = ins.Int(0)
	if err != nil {
		return 0, "", err
	}
	name, err = ins.String(1)
	return object, name, err
}

// Put opens an input stream through which the sender will write content
// to be stored as name on object.
func Put(object, stream int64, mimetype, name string) Instruction {
	return New(OpPut, i64(object), i64(stream), mimetype, name)
}

// ParsePut extracts the object index, stream index, mimetype, and target
// name from a `put` instruction.
func ParsePut(ins Instruction) (object, stream int64, mimetype, name string, err error) {
	object, err = ins.Int(0)
	if err != nil {
		return 0, 0, "", "", err
	}
	stream, err = ins.Int(1)
	if err != nil {
		return 0, 0, "", "", err
	}
	mimetype, err = ins.String(2)
	if err != nil {
		return 0, 0, "", "", err
	}
	name, err = ins.String(3)
	return object, stream, mimetype, name, err
}

// Undefine retires object; any `get` requests still pending against it
// resolve as RESOURCE_CLOSED.
func Undefine(object int64) Instruction { return New(OpUndefine, i64(object)) }

// ParseUndefine extracts the object index from an `undefine` instruction.
func ParseUndefine(ins Instruction) (int64, error) { return ins.Int(0) }
