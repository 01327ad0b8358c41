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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	ins := HandshakeSize(1024, 768, 96)
	assert.Equal(t, "4.size,4.1024,3.768,2.96;", ins.Encode())
	assert.NoError(t, CheckArity(ins))

	args := ParseArgs(New(OpArgs, "hostname", "port"))
	assert.Equal(t, []string{"hostname", "port"}, args)
}

func TestControlRoundTrip(t *testing.T) {
	sync := Sync(1234567890)
	ts, err := ParseSync(sync)
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890), ts)

	// spec.md scenario 4: server error with numeric status.
	errIns := New(OpError, "bad connection", "519")
	code, message, err := ParseError(errIns)
	require.NoError(t, err)
	assert.Equal(t, int64(519), code)
	assert.Equal(t, "bad connection", message)
}

func TestEventsRoundTrip(t *testing.T) {
	// spec.md scenario 6: exact wire bytes for a mouse event.
	assert.Equal(t, "5.mouse,3.100,3.200,1.5;", Mouse(100, 200, 5).Encode())

	key := Key(65307, true)
	keysym, pressed, err := ParseKey(key)
	require.NoError(t, err)
	assert.Equal(t, int64(65307), keysym)
	assert.True(t, pressed)

	released := Key(65307, false)
	_, pressed, err = ParseKey(released)
	require.NoError(t, err)
	assert.False(t, pressed)
}

func TestImgCorrectedFieldOrder(t *testing.T) {
	ins := Img(3, 0xF, DefaultLayer, "image/png", 10, 20)
	require.Equal(t, []string{"3", "15", "0", "image/png", "10", "20"}, ins.Args)

	stream, channelMask, layer, mimetype, x, y, err := ParseImg(ins)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stream)
	assert.Equal(t, int64(0xF), channelMask)
	assert.Equal(t, int64(DefaultLayer), layer)
	assert.Equal(t, "image/png", mimetype)
	assert.Equal(t, int64(10), x)
	assert.Equal(t, int64(20), y)
}

func TestAckIsNumeric(t *testing.T) {
	ins := Ack(7, "OK", 0)
	assert.Equal(t, []string{"7", "OK", "0"}, ins.Args)

	stream, message, code, err := ParseAck(ins)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stream)
	assert.Equal(t, "OK", message)
	assert.Equal(t, int64(0), code)
}

func TestBlobEndSequence(t *testing.T) {
	blob := Blob(3, "aGVsbG8=")
	stream, data, err := ParseBlob(blob)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stream)
	assert.Equal(t, "aGVsbG8=", data)

	end := End(3)
	endStream, err := ParseEnd(end)
	require.NoError(t, err)
	assert.Equal(t, stream, endStream)
}

func TestNestRoundTrip(t *testing.T) {
	ins := Nest(2, "4.size,4.1024,3.768,2.96;")
	parserIndex, data, err := ParseNest(ins)
	require.NoError(t, err)
	assert.Equal(t, int64(2), parserIndex)
	assert.Equal(t, "4.size,4.1024,3.768,2.96;", data)
}

func TestObjectGetBodyUndefine(t *testing.T) {
	get := Get(1, "report.pdf")
	object, name, err := ParseGet(get)
	require.NoError(t, err)
	assert.Equal(t, int64(1), object)
	assert.Equal(t, "report.pdf", name)

	body := Body(1, 4, "application/pdf", "report.pdf")
	bodyObject, bodyStream, mimetype, bodyName, err := ParseBody(body)
	require.NoError(t, err)
	assert.Equal(t, object, bodyObject)
	assert.Equal(t, int64(4), bodyStream)
	assert.Equal(t, "application/pdf", mimetype)
	assert.Equal(t, name, bodyName)

	und, err := ParseUndefine(Undefine(1))
	require.NoError(t, err)
	assert.Equal(t, object, und)
}

func TestDrawingArityMatchesWriters(t *testing.T) {
	cases := []Instruction{
		Arc(DefaultLayer, 0, 0, 10, 0, 3.14, false),
		Cfill(0xF, DefaultLayer, 255, 0, 0, 255),
		Clip(DefaultLayer),
		Copy(1, 0, 0, 100, 100, RasterSrc, DefaultLayer, 5, 5),
		Cstroke(0xF, DefaultLayer, CapRound, JoinMiter, 2, 0, 0, 0, 255),
		Cursor(0, 0, 1, 0, 0, 16, 16),
		Curve(DefaultLayer, 1, 2, 3, 4, 5, 6),
		Distort(DefaultLayer, 1, 0, 0, 1, 0, 0),
		Transfer(1, 0, 0, 100, 100, RasterXor, DefaultLayer, 0, 0),
		Transform(DefaultLayer, 1, 0, 0, 1, 0, 0),
		DrawSize(DefaultLayer, 1920, 1080),
	}
	for _, ins := range cases {
		assert.NoErrorf(t, CheckArity(ins), "opcode %s", ins.Opcode)
	}
}

func TestCheckArityRejectsWrongCount(t *testing.T) {
	bad := New(OpMouse, "1", "2")
	assert.Error(t, CheckArity(bad))
}

func TestCheckArityIgnoresUnknownOpcode(t *testing.T) {
	assert.NoError(t, CheckArity(New("totally-unknown", "1", "2", "3")))
}

func TestSharedSizeOpcodeArityLookup(t *testing.T) {
	d, ok := Lookup(OpSize)
	require.True(t, ok)
	assert.Equal(t, 3, d.NumArgs)

	_, ok = Lookup(OpClientSize)
	assert.True(t, ok, "OpClientSize is the same string as OpSize, so it resolves to the shared entry")
}
