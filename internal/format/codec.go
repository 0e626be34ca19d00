// Package format provides the primitive binary codec shared by every frame
// structure: fixed-width integers, IEEE floats and counted strings encoded in
// a per-stream byte order, plus the IGWD file header that establishes it.
package format

import (
	"encoding/binary"
	"math"
)

// Primitive widths in bytes.
const (
	CharBytes  = 1
	Int2Bytes  = 2
	Int4Bytes  = 4
	Int8Bytes  = 8
	Real4Bytes = 4
	Real8Bytes = 8

	// MaxString is the longest string a 2-byte count can carry, leaving room
	// for the trailing NUL.
	MaxString = math.MaxUint16 - 1

	// MaxArray bounds element counts read from untrusted input.
	MaxArray = 1 << 26
)

// Order is a stream byte order.
type Order = binary.ByteOrder

// Native byte orders.
var (
	BigEndian    Order = binary.BigEndian
	LittleEndian Order = binary.LittleEndian
)

// StringBytes returns the encoded size of s: count field, bytes, NUL.
func StringBytes(s string) int64 {
	return Int2Bytes + int64(len(s)) + 1
}

// StringsBytes sums StringBytes over ss.
func StringsBytes(ss []string) int64 {
	var n int64
	for _, s := range ss {
		n += StringBytes(s)
	}
	return n
}

// Encoder appends primitives to a buffer in a fixed byte order.
// The first encoding error is sticky and reported by Err.
type Encoder struct {
	order Order
	buf   []byte
	err   error
}

// NewEncoder returns an Encoder that appends to buf.
func NewEncoder(order Order, buf []byte) *Encoder {
	return &Encoder{order: order, buf: buf}
}

// Order returns the encoder's byte order.
func (e *Encoder) Order() Order { return e.order }

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of bytes in the buffer.
func (e *Encoder) Len() int { return len(e.buf) }

// Err returns the first error encountered.
func (e *Encoder) Err() error { return e.err }

// Fail records err unless an earlier error is already pending.
func (e *Encoder) Fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Reset empties the buffer and clears the error, keeping capacity.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.err = nil
}

func (e *Encoder) PutU8(v uint8)   { e.buf = append(e.buf, v) }
func (e *Encoder) PutI8(v int8)    { e.buf = append(e.buf, byte(v)) }
func (e *Encoder) PutU16(v uint16) { e.buf = e.order.AppendUint16(e.buf, v) }
func (e *Encoder) PutI16(v int16)  { e.buf = e.order.AppendUint16(e.buf, uint16(v)) }
func (e *Encoder) PutU32(v uint32) { e.buf = e.order.AppendUint32(e.buf, v) }
func (e *Encoder) PutI32(v int32)  { e.buf = e.order.AppendUint32(e.buf, uint32(v)) }
func (e *Encoder) PutU64(v uint64) { e.buf = e.order.AppendUint64(e.buf, v) }
func (e *Encoder) PutI64(v int64)  { e.buf = e.order.AppendUint64(e.buf, uint64(v)) }

func (e *Encoder) PutF32(v float32) { e.PutU32(math.Float32bits(v)) }
func (e *Encoder) PutF64(v float64) { e.PutU64(math.Float64bits(v)) }

// PutBytes appends raw bytes.
func (e *Encoder) PutBytes(b []byte) { e.buf = append(e.buf, b...) }

// PutString appends a counted, NUL-terminated string.
func (e *Encoder) PutString(s string) {
	if len(s) > MaxString {
		e.Fail(Mismatch(ErrOutOfBounds, -1, MaxString, len(s)))
		s = s[:MaxString]
	}
	e.PutU16(uint16(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

// PutStrings appends each string in order.
func (e *Encoder) PutStrings(ss []string) {
	for _, s := range ss {
		e.PutString(s)
	}
}

// Decoder is a cursor over an encoded buffer. base is the absolute stream
// offset of buf[0] and is used only for error context. The first error is
// sticky: later reads return zero values.
type Decoder struct {
	order Order
	buf   []byte
	pos   int
	base  int64
	err   error
}

// NewDecoder returns a Decoder over buf whose first byte sits at base.
func NewDecoder(order Order, buf []byte, base int64) *Decoder {
	return &Decoder{order: order, buf: buf, base: base}
}

// Order returns the decoder's byte order.
func (d *Decoder) Order() Order { return d.order }

// Err returns the first error encountered.
func (d *Decoder) Err() error { return d.err }

// Pos returns the number of bytes consumed.
func (d *Decoder) Pos() int { return d.pos }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

// Offset returns the absolute stream offset of the cursor.
func (d *Decoder) Offset() int64 { return d.base + int64(d.pos) }

// Fail records err unless an error is already recorded.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.buf) {
		d.err = Mismatch(ErrTruncated, d.Offset(), n, d.Remaining())
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *Decoder) U8() uint8 {
	b := d.take(CharBytes)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) I8() int8 { return int8(d.U8()) }

func (d *Decoder) U16() uint16 {
	b := d.take(Int2Bytes)
	if b == nil {
		return 0
	}
	return d.order.Uint16(b)
}

func (d *Decoder) I16() int16 { return int16(d.U16()) }

func (d *Decoder) U32() uint32 {
	b := d.take(Int4Bytes)
	if b == nil {
		return 0
	}
	return d.order.Uint32(b)
}

func (d *Decoder) I32() int32 { return int32(d.U32()) }

func (d *Decoder) U64() uint64 {
	b := d.take(Int8Bytes)
	if b == nil {
		return 0
	}
	return d.order.Uint64(b)
}

func (d *Decoder) I64() int64 { return int64(d.U64()) }

func (d *Decoder) F32() float32 { return math.Float32frombits(d.U32()) }
func (d *Decoder) F64() float64 { return math.Float64frombits(d.U64()) }

// Bytes returns a copy of the next n bytes.
func (d *Decoder) Bytes(n int) []byte {
	b := d.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// ReadString reads a counted string and strips one trailing NUL.
func (d *Decoder) ReadString() string {
	at := d.Offset()
	n := int(d.U16())
	if d.err != nil || n == 0 {
		return ""
	}
	if n > d.Remaining() {
		d.err = Mismatch(ErrOutOfBounds, at, d.Remaining(), n)
		return ""
	}
	b := d.take(n)
	if b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b)
}

// ReadStrings reads n counted strings.
func (d *Decoder) ReadStrings(n int) []string {
	if !d.CheckCount(n, 0) {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = d.ReadString()
	}
	return out
}

// Count reads a 4-byte element count and validates it against the bytes
// left, given the minimum encoded size of one element.
func (d *Decoder) Count(elemBytes int) int {
	at := d.Offset()
	n := d.U32()
	if d.err != nil {
		return 0
	}
	if n > MaxArray || (elemBytes > 0 && int64(n)*int64(elemBytes) > int64(d.Remaining())) {
		d.err = Mismatch(ErrOutOfBounds, at, d.Remaining(), n)
		return 0
	}
	return int(n)
}

// CheckCount validates an element count obtained elsewhere.
func (d *Decoder) CheckCount(n, elemBytes int) bool {
	if d.err != nil {
		return false
	}
	if n < 0 || n > MaxArray || (elemBytes > 0 && int64(n)*int64(elemBytes) > int64(d.Remaining())) {
		d.err = Mismatch(ErrOutOfBounds, d.Offset(), d.Remaining(), n)
		return false
	}
	return true
}

// Finish reports an error if bytes are left over or a read failed.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if d.Remaining() != 0 {
		return &Error{Kind: ErrFormat, Offset: d.Offset(), Expected: 0, Actual: d.Remaining(), Err: errUnread}
	}
	return nil
}
