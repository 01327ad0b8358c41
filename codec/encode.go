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

// Package codec implements the Guacamole wire codec: length-prefixed,
// comma-separated, semicolon-terminated element framing, and the
// incremental decoder that reassembles instructions across arbitrary
// packet boundaries.
package codec

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/valyala/bytebufferpool"
)

// Stringer renders an instruction argument to its canonical wire text.
// Numbers use their canonical decimal form, bools render as "0"/"1",
// everything else uses fmt-style %v through strconv/string conversions
// handled by ElementText.
type Stringer interface {
	GuacString() string
}

// ElementText converts an arbitrary instruction argument into the text
// that is framed on the wire. Integers render in decimal, bool false/true
// render as "0"/"1", and anything implementing Stringer is asked directly;
// everything else falls back to its string form.
func ElementText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case Stringer:
		return t.GuacString()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Encode renders opcode and args as a single framed Guacamole
// instruction: `len(e0).e0,len(e1).e1,...;` where len counts Unicode code
// points, not bytes.
func Encode(opcode string, args ...any) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	writeElement(buf, opcode)
	for _, a := range args {
		buf.WriteByte(',')
		writeElement(buf, ElementText(a))
	}
	buf.WriteByte(';')
	return buf.String()
}

// EncodeElements behaves like Encode but takes pre-rendered text elements,
// used by the instruction catalog writers which have already normalized
// each argument to its wire text.
func EncodeElements(elements ...string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for i, e := range elements {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeElement(buf, e)
	}
	buf.WriteByte(';')
	return buf.String()
}

func writeElement(buf *bytebufferpool.ByteBuffer, value string) {
	buf.WriteString(strconv.Itoa(utf8.RuneCountInString(value)))
	buf.WriteByte('.')
	buf.WriteString(value)
}
