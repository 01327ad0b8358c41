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

// RasterOp is one of the sixteen fixed pixel combine functions selected
// by `transfer`. The codec/catalog layer only needs to preserve the
// integer verbatim; interpretation belongs to the display sink.
type RasterOp int

const (
	RasterBlack      RasterOp = 0x0
	RasterAnd        RasterOp = 0x1
	RasterAndInvDst  RasterOp = 0x2
	RasterSrc        RasterOp = 0x3
	RasterAndInvSrc  RasterOp = 0x4
	RasterDest       RasterOp = 0x5
	RasterXor        RasterOp = 0x6
	RasterOr         RasterOp = 0x7
	RasterNor        RasterOp = 0x8
	RasterXnor       RasterOp = 0x9
	RasterInvDest    RasterOp = 0xA
	RasterOrInvDst   RasterOp = 0xB
	RasterInvSrc     RasterOp = 0xC
	RasterOrInvSrc   RasterOp = 0xD
	RasterNand       RasterOp = 0xE
	RasterWhite      RasterOp = 0xF
)

// LineCap and LineJoin enumerate the `cstroke`/`lstroke` cap and join
// styles.
type LineCap int

const (
	CapButt LineCap = iota
	CapRound
	CapSquare
)

type LineJoin int

const (
	JoinBevel LineJoin = iota
	JoinMiter
	JoinRound
)

// Drawing opcodes. A negative layer index addresses an off-screen
// buffer; DefaultLayer (0) addresses the default visible layer.
const (
	OpArc       = "arc"
	OpCfill     = "cfill"
	OpClip      = "clip"
	OpClose     = "close"
	OpCopy      = "copy"
	OpCstroke   = "cstroke"
	OpCursor    = "cursor"
	OpCurve     = "curve"
	OpDispose   = "dispose"
	OpDistort   = "distort"
	OpIdentity  = "identity"
	OpJpeg      = "jpeg"
	OpLfill     = "lfill"
	OpLine      = "line"
	OpLstroke   = "lstroke"
	OpMove      = "move"
	OpPng       = "png"
	OpPop       = "pop"
	OpPush      = "push"
	OpRect      = "rect"
	OpReset     = "reset"
	OpSet       = "set"
	OpShade     = "shade"
	OpDrawSize  = "size"
	OpStart     = "start"
	OpTransfer  = "transfer"
	OpTransform = "transform"
)

// DefaultLayer is the always-present visible layer index.
const DefaultLayer = 0

func init() {
	register(OpArc, 7)
	register(OpCfill, 6)
	register(OpClip, 1)
	register(OpClose, 1)
	register(OpCopy, 9)
	register(OpCstroke, 9)
	register(OpCursor, 7)
	register(OpCurve, 7)
	register(OpDispose, 1)
	register(OpDistort, 7)
	register(OpIdentity, 1)
	register(OpJpeg, 4)
	register(OpLfill, 2)
	register(OpLine, 3)
	register(OpLstroke, 5)
	register(OpMove, 5)
	register(OpPng, 4)
	register(OpPop, 1)
	register(OpPush, 1)
	register(OpRect, 5)
	register(OpReset, 1)
	register(OpSet, 3)
	register(OpShade, 2)
	// OpDrawSize re-registers "size" at the same arity (3) as the
	// handshake instruction in handshake.go; both shapes are valid for
	// this opcode, so the shared registry entry serves either.
	register(OpDrawSize, 3)
	register(OpStart, 3)
	register(OpTransfer, 9)
	register(OpTransform, 7)
}

// Arc draws a circular arc on layer, centered at (x,y), of the given
// radius, spanning startAngle..endAngle radians; negative selects the
// counter-clockwise arc.
func Arc(layer, x, y, radius int64, startAngle, endAngle float64, negative bool) Instruction {
	return New(OpArc, i64(layer), i64(x), i64(y), i64(radius), f64(startAngle), f64(endAngle), boolArg(negative))
}

// Cfill fills the current path on layer with an RGBA color, combined via
// channelMask.
func Cfill(channelMask int64, layer int64, r, g, b, a uint8) Instruction {
	return New(OpCfill, i64(channelMask), i64(layer), u8(r), u8(g), u8(b), u8(a))
}

// Clip constrains subsequent drawing ops on layer to the current path.
func Clip(layer int64) Instruction { return New(OpClip, i64(layer)) }

// Close closes the current subpath on layer.
func Close(layer int64) Instruction { return New(OpClose, i64(layer)) }

// Copy copies a rectangular region from src onto dst using the given
// raster operation.
func Copy(src int64, srcX, srcY, width, height int64, op RasterOp, dst int64, dstX, dstY int64) Instruction {
	return New(OpCopy, i64(src), i64(srcX), i64(srcY), i64(width), i64(height), i64(int64(op)), i64(dst), i64(dstX), i64(dstY))
}

// Cstroke strokes the current path on layer with a solid color.
func Cstroke(channelMask int64, layer int64, cap LineCap, join LineJoin, thickness int64, r, g, b, a uint8) Instruction {
	return New(OpCstroke, i64(channelMask), i64(layer), i64(int64(cap)), i64(int64(join)), i64(thickness), u8(r), u8(g), u8(b), u8(a))
}

// Cursor sets the mouse cursor image, with hotspot (hx,hy), from a
// rectangular region of src.
func Cursor(hx, hy int64, src int64, srcX, srcY, width, height int64) Instruction {
	return New(OpCursor, i64(hx), i64(hy), i64(src), i64(srcX), i64(srcY), i64(width), i64(height))
}

// Curve appends a cubic Bezier segment to the current subpath on layer.
func Curve(layer int64, cp1x, cp1y, cp2x, cp2y, x, y int64) Instruction {
	return New(OpCurve, i64(layer), i64(cp1x), i64(cp1y), i64(cp2x), i64(cp2y), i64(x), i64(y))
}

// Dispose destroys layer and releases any resources bound to it.
func Dispose(layer int64) Instruction { return New(OpDispose, i64(layer)) }

// Distort stages an affine transform (a,b,c,d,e,f) for layer pending a
// subsequent `transform` commit.
func Distort(layer int64, a, b, c, d, e, f float64) Instruction {
	return New(OpDistort, i64(layer), f64(a), f64(b), f64(c), f64(d), f64(e), f64(f))
}

// Identity resets layer's affine transform to the identity matrix.
func Identity(layer int64) Instruction { return New(OpIdentity, i64(layer)) }

// Jpeg paints a base64-encoded JPEG image at (x,y) on layer.
func Jpeg(layer, x, y int64, base64Data string) Instruction {
	return New(OpJpeg, i64(layer), i64(x), i64(y), base64Data)
}

// Lfill fills the current path on layer using src as a repeating
// pattern.
func Lfill(layer, src int64) Instruction { return New(OpLfill, i64(layer), i64(src)) }

// Line appends a straight segment to the current subpath on layer,
// ending at (x,y).
func Line(layer, x, y int64) Instruction { return New(OpLine, i64(layer), i64(x), i64(y)) }

// Lstroke strokes the current path on layer using src as a repeating
// pattern.
func Lstroke(layer, src int64, cap LineCap, join LineJoin, thickness int64) Instruction {
	return New(OpLstroke, i64(layer), i64(src), i64(int64(cap)), i64(int64(join)), i64(thickness))
}

// Move repositions layer as a child of parent at (x,y,z) stacking order.
func Move(layer, parent, x, y, z int64) Instruction {
	return New(OpMove, i64(layer), i64(parent), i64(x), i64(y), i64(z))
}

// Png paints a base64-encoded PNG image at (x,y) on layer.
func Png(layer, x, y int64, base64Data string) Instruction {
	return New(OpPng, i64(layer), i64(x), i64(y), base64Data)
}

// Pop restores layer's most recently pushed clipping/path state.
func Pop(layer int64) Instruction { return New(OpPop, i64(layer)) }

// Push saves layer's current clipping/path state.
func Push(layer int64) Instruction { return New(OpPush, i64(layer)) }

// Rect appends a rectangular subpath to layer's current path.
func Rect(layer, x, y, width, height int64) Instruction {
	return New(OpRect, i64(layer), i64(x), i64(y), i64(width), i64(height))
}

// Reset discards layer's current path.
func Reset(layer int64) Instruction { return New(OpReset, i64(layer)) }

// Set assigns a string-valued layer attribute (e.g. "miter-limit").
func Set(layer int64, name, value string) Instruction {
	return New(OpSet, i64(layer), name, value)
}

// Shade sets layer's overall opacity, 0 (transparent) to 255 (opaque).
func Shade(layer int64, alpha uint8) Instruction { return New(OpShade, i64(layer), u8(alpha)) }

// DrawSize resizes layer to (width,height). Distinct from the handshake
// and client-event `size` instructions despite sharing an opcode name.
func DrawSize(layer, width, height int64) Instruction {
	return New(OpDrawSize, i64(layer), i64(width), i64(height))
}

// Start begins a new subpath on layer at (x,y).
func Start(layer, x, y int64) Instruction { return New(OpStart, i64(layer), i64(x), i64(y)) }

// Transfer combines a rectangular region of src into dst using the given
// raster operation.
func Transfer(src int64, srcX, srcY, width, height int64, op RasterOp, dst int64, dstX, dstY int64) Instruction {
	return New(OpTransfer, i64(src), i64(srcX), i64(srcY), i64(width), i64(height), i64(int64(op)), i64(dst), i64(dstX), i64(dstY))
}

// Transform commits an affine transform (a,b,c,d,e,f) to layer.
func Transform(layer int64, a, b, c, d, e, f float64) Instruction {
	return New(OpTransform, i64(layer), f64(a), f64(b), f64(c), f64(d), f64(e), f64(f))
}
