package record

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/klauspost/compress/gzip"

	"gwframe/internal/format"
)

// Vector data types.
const (
	VectC    uint16 = 0  // CHAR
	Vect2S   uint16 = 1  // INT_2S
	Vect8R   uint16 = 2  // REAL_8
	Vect4R   uint16 = 3  // REAL_4
	Vect4S   uint16 = 4  // INT_4S
	Vect8S   uint16 = 5  // INT_8S
	Vect8C   uint16 = 6  // COMPLEX_8
	Vect16C  uint16 = 7  // COMPLEX_16
	VectSTR  uint16 = 8  // STRING
	Vect2U   uint16 = 9  // INT_2U
	Vect4U   uint16 = 10 // INT_4U
	Vect8U   uint16 = 11 // INT_8U
	Vect1U   uint16 = 12 // CHAR_U
	Vect8H   uint16 = 13 // half COMPLEX_8
	Vect16H  uint16 = 14 // half COMPLEX_16
	vectLast uint16 = Vect16H
)

var vectElemBytes = [...]int{1, 2, 8, 4, 4, 8, 8, 16, 0, 2, 4, 8, 1, 8, 16}

// ElemBytes returns the size of one element of type t, or 0 when the type
// has no fixed size.
func ElemBytes(t uint16) int {
	if t > vectLast {
		return 0
	}
	return vectElemBytes[t]
}

// Compression schemes. The low byte selects the scheme; CompressLittle marks
// payloads stored in little-endian order.
const (
	CompressRaw    uint16 = 0
	CompressGzip   uint16 = 1
	CompressLittle uint16 = 0x100
)

// Dim is one dimension of a vector.
type Dim struct {
	NX     uint64
	DX     float64
	StartX float64
	UnitX  string
}

// Vect is an FrVect structure: a typed, possibly compressed, n-dimensional
// array. Data holds the payload as stored, compressed or not.
type Vect struct {
	Gen      Generation
	Name     string
	Compress uint16
	Type     uint16
	NData    uint64
	Data     []byte
	Dims     []Dim
	UnitY    string
	Next     Ptr
}

func (r *Vect) Class() ClassID         { return ClassVect }
func (r *Vect) Generation() Generation { return r.Gen }

func (r *Vect) Equal(o Record) bool {
	x, ok := o.(*Vect)
	if !ok {
		return false
	}
	return r.Gen == x.Gen && r.Name == x.Name && r.Compress == x.Compress && r.Type == x.Type &&
		r.NData == x.NData && bytes.Equal(r.Data, x.Data) && slices.Equal(r.Dims, x.Dims) &&
		r.UnitY == x.UnitY && r.Next == x.Next
}

func (r *Vect) clone(g Generation) *Vect {
	c := *r
	c.Gen = g
	c.Data = slices.Clone(r.Data)
	c.Dims = slices.Clone(r.Dims)
	return &c
}

// NewVect builds a one-dimensional vector of type typ over raw, storing the
// payload with the given compression scheme.
func NewVect(g Generation, name string, typ uint16, raw []byte, dim Dim, compress uint16) (*Vect, error) {
	size := ElemBytes(typ)
	if size == 0 {
		return nil, format.Errorf(format.ErrFormat, "vector type %d has no fixed element size", typ)
	}
	if len(raw)%size != 0 {
		return nil, format.Errorf(format.ErrFormat, "%d payload bytes are not a multiple of %d", len(raw), size)
	}
	v := &Vect{Gen: g, Name: name, Compress: compress, Type: typ, NData: uint64(len(raw) / size)}
	if dim.NX == 0 {
		dim.NX = v.NData
	}
	v.Dims = []Dim{dim}
	switch compress &^ CompressLittle {
	case CompressRaw:
		v.Data = slices.Clone(raw)
	case CompressGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		v.Data = buf.Bytes()
	default:
		return nil, format.Errorf(format.ErrFormat, "unsupported compression %#x", compress)
	}
	return v, nil
}

// Expand returns the uncompressed payload.
func (r *Vect) Expand() ([]byte, error) {
	switch r.Compress &^ CompressLittle {
	case CompressRaw:
		return r.Data, nil
	case CompressGzip:
		zr, err := gzip.NewReader(bytes.NewReader(r.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: vector %q: %w", format.ErrFormat, r.Name, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: vector %q: %w", format.ErrFormat, r.Name, err)
		}
		if n := ElemBytes(r.Type); n > 0 && uint64(len(out)) != r.NData*uint64(n) {
			return nil, format.Mismatch(format.ErrFormat, -1, r.NData*uint64(n), len(out))
		}
		return out, nil
	default:
		return nil, format.Errorf(format.ErrFormat, "vector %q: unsupported compression %#x", r.Name, r.Compress)
	}
}

// fitsNarrow reports whether r's counts fit the INT_4U and INT_2U widths
// used before generation 6.
func (r *Vect) fitsNarrow() error {
	if r.NData > math.MaxUint32 {
		return format.Mismatch(format.ErrOutOfBounds, -1, uint64(math.MaxUint32), r.NData)
	}
	if uint64(len(r.Data)) > math.MaxUint32 {
		return format.Mismatch(format.ErrOutOfBounds, -1, uint64(math.MaxUint32), len(r.Data))
	}
	if len(r.Dims) > math.MaxUint16 {
		return format.Mismatch(format.ErrOutOfBounds, -1, math.MaxUint16, len(r.Dims))
	}
	for _, d := range r.Dims {
		if d.NX > math.MaxUint32 {
			return format.Errorf(format.ErrOutOfBounds, "vector %q dimension of %d exceeds INT_4U", r.Name, d.NX)
		}
	}
	return nil
}

// vectLayout captures the width differences between generations.
type vectLayout struct {
	wide   bool // INT_8U nData/nBytes/nx and INT_4U nDim
	startX bool
}

func (l vectLayout) countBytes() int64 {
	if l.wide {
		return format.Int8Bytes
	}
	return format.Int4Bytes
}

func (l vectLayout) codec() *Codec {
	elems := []Element{
		el("name", "STRING", "Vector name"),
		el("compress", "INT_2U", "Compression algorithm number"),
		el("type", "INT_2U", "Vector class"),
	}
	if l.wide {
		elems = append(elems,
			el("nData", "INT_8U", "Number of sample elements in data series"),
			el("nBytes", "INT_8U", "Number of bytes in the payload"),
			el("data", "CHAR[nBytes]", "Data series"),
			el("nDim", "INT_4U", "Dimension of data series"),
			el("nx", "INT_8U[nDim]", "Data series dimension lengths"),
		)
	} else {
		elems = append(elems,
			el("nData", "INT_4U", "Number of sample elements in data series"),
			el("nBytes", "INT_4U", "Number of bytes in the payload"),
			el("data", "CHAR[nBytes]", "Data series"),
			el("nDim", "INT_2U", "Dimension of data series"),
			el("nx", "INT_4U[nDim]", "Data series dimension lengths"),
		)
	}
	elems = append(elems, el("dx", "REAL_8[nDim]", "Sample spacing per dimension"))
	if l.startX {
		elems = append(elems, el("startX", "REAL_8[nDim]", "Origin per dimension"))
	}
	elems = append(elems,
		el("unitX", "STRING[nDim]", "Unit per dimension"),
		el("unitY", "STRING", "Unit of the data series"),
		el("next", "PTR_STRUCT(FrVect *)", "Next vector"),
	)

	dimBytes := l.countBytes() + format.Real8Bytes
	if l.startX {
		dimBytes += format.Real8Bytes
	}
	nDimBytes := int64(format.Int2Bytes)
	if l.wide {
		nDimBytes = format.Int4Bytes
	}

	return &Codec{
		Description: fields(elems...),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*Vect)
			n := format.StringBytes(x.Name) + 2*format.Int2Bytes + 2*l.countBytes() + int64(len(x.Data)) +
				nDimBytes + int64(len(x.Dims))*dimBytes + format.StringBytes(x.UnitY) + ctx.Gen.PtrBytes()
			for _, d := range x.Dims {
				n += format.StringBytes(d.UnitX)
			}
			return n
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*Vect)
			e.PutString(x.Name)
			e.PutU16(x.Compress)
			e.PutU16(x.Type)
			if l.wide {
				e.PutU64(x.NData)
				e.PutU64(uint64(len(x.Data)))
			} else {
				if err := x.fitsNarrow(); err != nil {
					e.Fail(err)
				}
				e.PutU32(uint32(x.NData))
				e.PutU32(uint32(len(x.Data)))
			}
			e.PutBytes(x.Data)
			if l.wide {
				e.PutU32(uint32(len(x.Dims)))
				for _, d := range x.Dims {
					e.PutU64(d.NX)
				}
			} else {
				e.PutU16(uint16(len(x.Dims)))
				for _, d := range x.Dims {
					e.PutU32(uint32(d.NX))
				}
			}
			for _, d := range x.Dims {
				e.PutF64(d.DX)
			}
			if l.startX {
				for _, d := range x.Dims {
					e.PutF64(d.StartX)
				}
			}
			for _, d := range x.Dims {
				e.PutString(d.UnitX)
			}
			e.PutString(x.UnitY)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &Vect{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.Compress = d.U16()
			x.Type = d.U16()
			var nBytes uint64
			if l.wide {
				x.NData = d.U64()
				nBytes = d.U64()
			} else {
				x.NData = uint64(d.U32())
				nBytes = uint64(d.U32())
			}
			if nBytes > uint64(d.Remaining()) {
				d.Fail(format.Mismatch(format.ErrOutOfBounds, d.Offset(), d.Remaining(), nBytes))
				return x
			}
			x.Data = d.Bytes(int(nBytes))
			var nDim int
			if l.wide {
				nDim = int(d.U32())
			} else {
				nDim = int(d.U16())
			}
			if nDim == 0 || !d.CheckCount(nDim, int(dimBytes)) {
				x.UnitY = d.ReadString()
				x.Next = readPtr(d, ctx.Gen)
				return x
			}
			x.Dims = make([]Dim, nDim)
			for i := range x.Dims {
				if l.wide {
					x.Dims[i].NX = d.U64()
				} else {
					x.Dims[i].NX = uint64(d.U32())
				}
			}
			for i := range x.Dims {
				x.Dims[i].DX = d.F64()
			}
			if l.startX {
				for i := range x.Dims {
					x.Dims[i].StartX = d.F64()
				}
			}
			for i := range x.Dims {
				x.Dims[i].UnitX = d.ReadString()
			}
			x.UnitY = d.ReadString()
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
	}
}

func init() {
	k := Register(&Kind{
		Class:   ClassVect,
		Name:    "FrVect",
		Comment: "Vector Data Structure",
		Retag: func(r Record, g Generation) Record {
			return r.(*Vect).clone(g)
		},
	})

	gen3 := vectLayout{}.codec()

	gen4 := vectLayout{startX: true}.codec()
	gen4.Promote = func(prev Record, ctx Context) (Record, error) {
		return prev.(*Vect).clone(ctx.Gen), nil
	}
	gen4.Demote = func(r Record, ctx Context) (Record, error) {
		c := r.(*Vect).clone(ctx.Gen)
		for i := range c.Dims {
			c.Dims[i].StartX = 0
		}
		return c, nil
	}

	gen6 := vectLayout{wide: true, startX: true}.codec()
	gen6.Promote = func(prev Record, ctx Context) (Record, error) {
		return prev.(*Vect).clone(ctx.Gen), nil
	}
	gen6.Demote = func(r Record, ctx Context) (Record, error) {
		x := r.(*Vect)
		if err := x.fitsNarrow(); err != nil {
			return nil, fmt.Errorf("%w: generation %d: %w", format.ErrUnsupportedMigration, ctx.Gen, err)
		}
		if err := demotePtr(x.Next, "next"); err != nil {
			return nil, err
		}
		return x.clone(ctx.Gen), nil
	}

	k.Define(Gen3, gen3).Define(Gen4, gen4).Define(Gen6, gen6)
}
