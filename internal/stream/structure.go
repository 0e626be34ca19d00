package stream

import (
	"math"

	"gwframe/internal/checksum"
	"gwframe/internal/format"
	"gwframe/internal/record"
)

// Every structure starts with a common header:
//
//	gen 3-5: length INT_4U, class INT_2U, instance INT_2U
//	gen 6-8: length INT_8U, chkType CHAR_U, class CHAR_U, instance INT_4U
//
// length counts the whole structure including this header and, in
// generation 8, the trailing INT_4U structure checksum present when
// chkType is set.
type structHeader struct {
	length   uint64
	chkType  checksum.Kind
	class    record.ClassID
	instance uint32
}

const trailerBytes = format.Int4Bytes

func putStructHeader(e *format.Encoder, g record.Generation, h structHeader) {
	if g < record.Gen6 {
		e.PutU32(uint32(h.length))
		e.PutU16(uint16(h.class))
		e.PutU16(uint16(h.instance))
		return
	}
	e.PutU64(h.length)
	e.PutU8(uint8(h.chkType))
	e.PutU8(uint8(h.class))
	e.PutU32(h.instance)
}

func readStructHeader(d *format.Decoder, g record.Generation) structHeader {
	var h structHeader
	if g < record.Gen6 {
		h.length = uint64(d.U32())
		h.class = record.ClassID(d.U16())
		h.instance = uint32(d.U16())
		return h
	}
	h.length = d.U64()
	h.chkType = checksum.Kind(d.U8())
	h.class = record.ClassID(d.U8())
	h.instance = d.U32()
	return h
}

// checkStructHeader validates the fields a generation can represent.
func checkStructHeader(g record.Generation, h structHeader) error {
	if g < record.Gen6 {
		if h.length > math.MaxUint32 {
			return format.Mismatch(format.ErrOutOfBounds, -1, uint64(math.MaxUint32), h.length)
		}
		if h.instance > math.MaxUint16 {
			return format.Mismatch(format.ErrOutOfBounds, -1, math.MaxUint16, h.instance)
		}
		return nil
	}
	if h.class > math.MaxUint8 {
		return format.Mismatch(format.ErrOutOfBounds, -1, math.MaxUint8, uint16(h.class))
	}
	return nil
}

// structTrailer reports whether a structure carries a trailing checksum.
func structTrailer(g record.Generation, h structHeader) bool {
	return g.StructChecksums() && h.chkType == checksum.CRC
}
