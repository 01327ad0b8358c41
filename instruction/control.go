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

// Control opcodes, shared by client and server.
const (
	OpDisconnect = "disconnect"
	OpNop        = "nop"
	OpSync       = "sync"

	// OpError, OpLog, OpReady are server-only control opcodes.
	OpError = "error"
	OpLog   = "log"
	OpReady = "ready"

	// OpRequired and OpName surface additional server prompts/metadata.
	OpRequired = "required"
	OpName     = "name"
)

func init() {
	register(OpDisconnect, 0)
	register(OpNop, 0)
	register(OpSync, 1)
	register(OpError, 2)
	register(OpLog, 1)
	register(OpReady, 1)
	register(OpRequired, -1)
	register(OpName, 1)
}

// Disconnect requests an orderly connection teardown.
func Disconnect() Instruction {
	return New(OpDisconnect)
}

// Nop is the keep-alive instruction; it carries no arguments.
func Nop() Instruction {
	return New(OpNop)
}

// Sync carries a server timestamp (milliseconds since epoch, as emitted
// by the server) that the client echoes back once it has applied and
// rendered every instruction that preceded it.
func Sync(timestamp int64) Instruction {
	return New(OpSync, i64(timestamp))
}

// ParseSync extracts the timestamp from a `sync` instruction.
func ParseSync(ins Instruction) (int64, error) {
	return ins.Int(0)
}

// ParseError extracts the status code and message from a server `error`
// instruction.
func ParseError(ins Instruction) (code int64, message string, err error) {
	message, err = ins.String(0)
	if err != nil {
		return 0, "", err
	}
	code, err = ins.Int(1)
	return code, message, err
}

// ParseLog extracts the diagnostic message from a server `log`
// instruction.
func ParseLog(ins Instruction) (string, error) {
	return ins.String(0)
}

// ParseReady extracts the server-assigned connection UUID from the first
// instruction a WS tunnel must receive after connecting.
func ParseReady(ins Instruction) (string, error) {
	return ins.String(0)
}

// ParseRequired returns the list of additional connection parameters the
// server is requesting (e.g. for multi-factor prompts).
func ParseRequired(ins Instruction) []string {
	return append([]string(nil), ins.Args...)
}

// ParseName extracts the human-readable connection name from a server
// `name` instruction.
func ParseName(ins Instruction) (string, error) {
	return ins.String(0)
}
