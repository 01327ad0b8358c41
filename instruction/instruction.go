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

// Package instruction is the Guacamole instruction catalog: for every
// opcode, a typed writer (Go arguments -> Instruction) and a typed parser
// (Instruction -> Go arguments), plus an opcode arity registry exposed
// through Lookup and CheckArity. The router does not consult it.
package instruction

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/guacd/gcore/codec"
)

// Instruction is an opcode plus its ordered raw text parameters, exactly
// as read off (or about to be written to) the wire. Every instruction
// writer in this package returns one; every parser consumes one.
type Instruction struct {
	Opcode string
	Args   []string
}

// New builds a raw Instruction from already-rendered text elements. Most
// callers should prefer a typed writer below instead.
func New(opcode string, args ...string) Instruction {
	return Instruction{Opcode: opcode, Args: args}
}

// Encode renders the instruction to its wire form.
func (i Instruction) Encode() string {
	elements := make([]string, 0, len(i.Args)+1)
	elements = append(elements, i.Opcode)
	elements = append(elements, i.Args...)
	return codec.EncodeElements(elements...)
}

// Int parses Args[idx] as a base-10 integer.
func (i Instruction) Int(idx int) (int64, error) {
	s, err := i.arg(idx)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "instruction: %s arg[%d] %q is not an integer", i.Opcode, idx, s)
	}
	return n, nil
}

// Bool parses Args[idx] the Guacamole way: "0" is false, any other
// non-empty string (including non-numeric text) is true.
func (i Instruction) Bool(idx int) (bool, error) {
	s, err := i.arg(idx)
	if err != nil {
		return false, err
	}
	return s != "0" && s != "", nil
}

// String returns Args[idx] verbatim.
func (i Instruction) String(idx int) (string, error) {
	return i.arg(idx)
}

// i64 renders an integer argument in its canonical decimal wire form.
func i64(v int64) string {
	return strconv.FormatInt(v, 10)
}

// u8 renders a byte argument (an RGBA color channel) in decimal.
func u8(v uint8) string {
	return strconv.FormatUint(uint64(v), 10)
}

// f64 renders a floating-point argument (an angle or transform
// coefficient) using its shortest exact decimal representation.
func f64(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// boolArg renders a boolean argument the Guacamole way: "0" or "1".
func boolArg(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (i Instruction) arg(idx int) (string, error) {
	if idx < 0 || idx >= len(i.Args) {
		return "", errors.Errorf("instruction: %s missing arg[%d] (got %d args)", i.Opcode, idx, len(i.Args))
	}
	return i.Args[idx], nil
}

// Descriptor documents an opcode's expected arity for validation/tooling.
// NumArgs is -1 for variadic instructions (e.g. server `args`, client
// `connect`).
type Descriptor struct {
	Opcode  string
	NumArgs int
}

// registry is keyed by bare opcode text, not by direction or semantic
// meaning. The wire protocol itself reuses a handful of opcode names for
// unrelated instructions (most notably "size": a 3-arg client handshake
// instruction and a 3-arg server drawing instruction happen to share
// both the name and the arity, so one entry serves both). Where a reused
// name's arity actually differs - the 2-arg client viewport-resize
// "size" event in events.go - that opcode is deliberately left
// unregistered rather than overwritten. CheckArity judges every "size"
// against the 3-arg entry, so it reports the 2-arg event as an arity
// error; callers that need to validate it do so against the
// instruction's known direction instead of through this table.
var registry = map[string]*Descriptor{}

// register adds opcode to the catalog. Each opcode file calls this once
// per opcode at package init time.
func register(opcode string, numArgs int) string {
	registry[opcode] = &Descriptor{Opcode: opcode, NumArgs: numArgs}
	return opcode
}

// Lookup returns the catalog entry for opcode, if any.
func Lookup(opcode string) (*Descriptor, bool) {
	d, ok := registry[opcode]
	return d, ok
}

// CheckArity validates that ins carries the number of arguments the
// catalog declares for its opcode. Unknown opcodes are not an error here:
// the wire format is forward-compatible with opcodes this client doesn't
// recognize, and the router simply won't have a handler for them.
func CheckArity(ins Instruction) error {
	d, ok := registry[ins.Opcode]
	if !ok || d.NumArgs < 0 {
		return nil
	}
	if len(ins.Args) != d.NumArgs {
		return errors.Errorf("instruction: %s expects %d args, got %d", ins.Opcode, d.NumArgs, len(ins.Args))
	}
	return nil
}
