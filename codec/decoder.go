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

package codec

import (
	"strconv"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// compactThreshold mirrors the reference client: once startIndex walks
// past this many retained code points, and the length prefix of the
// element currently being read has been parsed (its body is still
// awaited), the consumed prefix is dropped at the start of Receive.
const compactThreshold = 4096

func newError(format string, args ...any) error {
	return errors.Errorf("codec: "+format, args...)
}

var (
	// ErrIllegalTerminator is returned when an element is followed by a
	// byte other than ',' or ';'.
	ErrIllegalTerminator = newError("illegal terminator")

	// ErrInvalidLength is returned when the digits preceding '.' do not
	// parse as a non-negative integer.
	ErrInvalidLength = newError("invalid element length")
)

// Handler is invoked once per fully decoded instruction, in wire order.
// args excludes the opcode, matching spec.md's Instruction shape.
type Handler func(opcode string, args []string) error

// Decoder incrementally reassembles instructions out of a byte stream
// that may be split across Receive calls at arbitrary boundaries,
// including in the middle of a multi-byte UTF-8 rune. Element lengths are
// counted in Unicode code points, never bytes, so the retained buffer is
// kept as runes rather than raw bytes.
type Decoder struct {
	pending []byte // undecoded trailing bytes of a split UTF-8 sequence

	buffer     []rune
	elementEnd int // absolute index of the terminator for the element being read, or -1
	startIndex int // index where the next length digits/element body begins
	elements   []string

	onInstruction Handler
}

// NewDecoder returns a Decoder that invokes onInstruction for every
// instruction it completes.
func NewDecoder(onInstruction Handler) *Decoder {
	return &Decoder{
		elementEnd:    -1,
		onInstruction: onInstruction,
	}
}

// Receive feeds chunk (raw transport bytes) into the decoder. It may
// dispatch zero or more instructions before returning. Receive never
// blocks: if chunk ends mid-element, the decoder simply retains its state
// and resumes on the next call.
func (d *Decoder) Receive(chunk []byte) error {
	if d.startIndex > compactThreshold && d.elementEnd >= d.startIndex {
		d.compact()
	}
	d.appendBytes(chunk)

	for d.elementEnd < len(d.buffer) {
		if d.elementEnd >= d.startIndex {
			element := string(d.buffer[d.startIndex:d.elementEnd])
			terminator := d.buffer[d.elementEnd]
			d.elements = append(d.elements, element)

			switch terminator {
			case ';':
				opcode := d.elements[0]
				args := append([]string(nil), d.elements[1:]...)
				d.elements = d.elements[:0]
				d.consume(d.elementEnd + 1)
				d.elementEnd = -1
				d.startIndex = 0

				if d.onInstruction != nil {
					if err := d.onInstruction(opcode, args); err != nil {
						return err
					}
				}
				continue

			case ',':
				// fall through to scan the next element's length.

			default:
				return ErrIllegalTerminator
			}

			d.startIndex = d.elementEnd + 1
		}

		dot := indexRune(d.buffer, d.startIndex, '.')
		if dot < 0 {
			d.startIndex = len(d.buffer)
			break
		}

		length, err := parseLength(d.buffer[d.elementEnd+1 : dot])
		if err != nil {
			return ErrInvalidLength
		}
		d.startIndex = dot + 1
		d.elementEnd = d.startIndex + length
	}

	return nil
}

// appendBytes decodes chunk into d.buffer as runes, prepending any
// leftover bytes from a UTF-8 sequence split across the previous chunk
// boundary and carrying forward any new trailing partial sequence.
func (d *Decoder) appendBytes(chunk []byte) {
	var b []byte
	if len(d.pending) > 0 {
		b = append(append([]byte(nil), d.pending...), chunk...)
		d.pending = nil
	} else {
		b = chunk
	}

	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(b) {
				// Incomplete sequence at the end of input: keep it for
				// the next Receive call.
				d.pending = append([]byte(nil), b...)
				return
			}
		}
		d.buffer = append(d.buffer, r)
		b = b[size:]
	}
}

// consume drops the first n code points of the retained buffer; used
// after dispatching an instruction so elementEnd/startIndex stay relative
// to an always-shrinking buffer.
func (d *Decoder) consume(n int) {
	copy(d.buffer, d.buffer[n:])
	d.buffer = d.buffer[:len(d.buffer)-n]
}

// compact drops the already-consumed prefix once startIndex has grown
// past compactThreshold, bounding retained memory to the longest
// unterminated suffix plus the threshold.
func (d *Decoder) compact() {
	copy(d.buffer, d.buffer[d.startIndex:])
	d.buffer = d.buffer[:len(d.buffer)-d.startIndex]
	d.elementEnd -= d.startIndex
	d.startIndex = 0
}

// BufferLen reports the number of retained code points, exposed so tests
// can assert the compaction bound.
func (d *Decoder) BufferLen() int {
	return len(d.buffer)
}

func indexRune(buf []rune, from int, target rune) int {
	for i := from; i < len(buf); i++ {
		if buf[i] == target {
			return i
		}
	}
	return -1
}

func parseLength(digits []rune) (int, error) {
	if len(digits) == 0 {
		return 0, ErrInvalidLength
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil || n < 0 {
		return 0, ErrInvalidLength
	}
	return n, nil
}
