package format

import (
	"bytes"
	"encoding/binary"
	"math"
)

// File header layout (40 bytes):
//
//	"IGWD\0"            magic (5 bytes)
//	version             data format version (1 byte)
//	minor               library minor version (1 byte)
//	sizes               INT_2, INT_4, INT_8, REAL_4, REAL_8 widths (5 bytes)
//	0x1234              2-byte reference pattern
//	0x12345678          4-byte reference pattern
//	0x0123456789abcdef  8-byte reference pattern
//	pi                  REAL_4 reference pattern
//	pi                  REAL_8 reference pattern
//	marker              'A','Z' before version 8; frame library and
//	                    checksum scheme from version 8 on (2 bytes)
//
// The reference patterns are written in the producer's byte order; the
// reader compares them against both orders to decide which one it is.
const (
	HeaderSize = 40

	offVersion = 5
	offMinor   = 6
	offSizes   = 7
	offPat2    = 12
	offPat4    = 14
	offPat8    = 18
	offPi4     = 26
	offPi8     = 30
	offMarker  = 38

	pattern2 uint16 = 0x1234
	pattern4 uint32 = 0x12345678
	pattern8 uint64 = 0x0123456789abcdef

	// FirstChecksumVersion is the first version whose header carries the
	// frame library and checksum scheme in place of the 'A','Z' markers.
	FirstChecksumVersion = 8
)

// Frame library identifiers stored in version 8 headers.
const (
	LibraryUnknown  = 0
	LibraryFrameL   = 1
	LibraryFrameCPP = 2
)

var magic = [5]byte{'I', 'G', 'W', 'D', 0}

var sizes = [5]byte{Int2Bytes, Int4Bytes, Int8Bytes, Real4Bytes, Real8Bytes}

// Header is the fixed 40-byte preamble of a frame file. The raw bytes are
// kept as written; accessors copy fields out.
type Header struct {
	raw   [HeaderSize]byte
	order Order
}

// NewHeader builds a header for the given format version in order.
// library and scheme are only stored by version 8 and later.
func NewHeader(version, minor uint8, order Order, library, scheme uint8) Header {
	var h Header
	h.order = order
	copy(h.raw[:], magic[:])
	h.raw[offVersion] = version
	h.raw[offMinor] = minor
	copy(h.raw[offSizes:], sizes[:])
	order.PutUint16(h.raw[offPat2:], pattern2)
	order.PutUint32(h.raw[offPat4:], pattern4)
	order.PutUint64(h.raw[offPat8:], pattern8)
	order.PutUint32(h.raw[offPi4:], math.Float32bits(math.Pi))
	order.PutUint64(h.raw[offPi8:], math.Float64bits(math.Pi))
	if version >= FirstChecksumVersion {
		h.raw[offMarker] = library
		h.raw[offMarker+1] = scheme
	} else {
		h.raw[offMarker] = 'A'
		h.raw[offMarker+1] = 'Z'
	}
	return h
}

// Version returns the data format version.
func (h Header) Version() uint8 { return h.raw[offVersion] }

// Minor returns the library minor version.
func (h Header) Minor() uint8 { return h.raw[offMinor] }

// Order returns the detected (or requested) byte order.
func (h Header) Order() Order { return h.order }

// Library returns the frame library id, or LibraryUnknown before version 8.
func (h Header) Library() uint8 {
	if h.Version() < FirstChecksumVersion {
		return LibraryUnknown
	}
	return h.raw[offMarker]
}

// ChecksumScheme returns the checksum scheme, or 0 before version 8.
func (h Header) ChecksumScheme() uint8 {
	if h.Version() < FirstChecksumVersion {
		return 0
	}
	return h.raw[offMarker+1]
}

// Encode returns the raw header bytes.
func (h Header) Encode() [HeaderSize]byte {
	return h.raw
}

// EncodeInto copies the header into buf and returns HeaderSize.
func (h Header) EncodeInto(buf []byte) int {
	return copy(buf, h.raw[:])
}

// Decode parses a header and detects the producer's byte order.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, Mismatch(ErrTruncated, 0, HeaderSize, len(buf))
	}
	var h Header
	copy(h.raw[:], buf[:HeaderSize])

	if !bytes.Equal(h.raw[:len(magic)], magic[:]) {
		return Header{}, &Error{Kind: ErrFormat, Offset: 0, Struct: "FrHeader",
			Expected: string(magic[:4]), Actual: string(h.raw[:4])}
	}
	if !bytes.Equal(h.raw[offSizes:offSizes+len(sizes)], sizes[:]) {
		return Header{}, &Error{Kind: ErrFormat, Offset: offSizes, Struct: "FrHeader",
			Expected: sizes, Actual: h.raw[offSizes : offSizes+len(sizes)]}
	}
	order, err := detectOrder(h.raw[:])
	if err != nil {
		return Header{}, err
	}
	h.order = order
	if h.Version() < FirstChecksumVersion && (h.raw[offMarker] != 'A' || h.raw[offMarker+1] != 'Z') {
		return Header{}, &Error{Kind: ErrFormat, Offset: offMarker, Struct: "FrHeader",
			Expected: "AZ", Actual: string(h.raw[offMarker : offMarker+2])}
	}
	return h, nil
}

// DecodeAndValidate parses a header and checks that its version lies in
// [minVersion, maxVersion].
func DecodeAndValidate(buf []byte, minVersion, maxVersion uint8) (Header, error) {
	h, err := Decode(buf)
	if err != nil {
		return Header{}, err
	}
	if v := h.Version(); v < minVersion || v > maxVersion {
		return Header{}, &Error{Kind: ErrFormat, Offset: offVersion, Struct: "FrHeader",
			Expected: [2]uint8{minVersion, maxVersion}, Actual: v}
	}
	return h, nil
}

// detectOrder picks the byte order under which every reference pattern
// decodes to its expected value.
func detectOrder(raw []byte) (Order, error) {
	for _, order := range []Order{binary.BigEndian, binary.LittleEndian} {
		if patternsMatch(raw, order) {
			return order, nil
		}
	}
	return nil, &Error{Kind: ErrByteOrder, Offset: offPat2, Struct: "FrHeader",
		Expected: pattern2, Actual: binary.BigEndian.Uint16(raw[offPat2:])}
}

func patternsMatch(raw []byte, order Order) bool {
	return order.Uint16(raw[offPat2:]) == pattern2 &&
		order.Uint32(raw[offPat4:]) == pattern4 &&
		order.Uint64(raw[offPat8:]) == pattern8 &&
		order.Uint32(raw[offPi4:]) == math.Float32bits(math.Pi) &&
		order.Uint64(raw[offPi8:]) == math.Float64bits(math.Pi)
}
