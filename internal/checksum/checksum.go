// Package checksum implements the frame format's CRC checksum and the
// running filter the stream engine threads every byte through.
//
// The CRC is the POSIX cksum algorithm: CRC-32 with polynomial 0x04C11DB7,
// processed most significant bit first from a zero register; on completion
// the message length is folded in low byte first (only as many bytes as
// needed) and the register is inverted.
package checksum

import (
	"fmt"
	"hash"
)

// Kind identifies a checksum scheme as stored in chkType/chkFlag fields.
type Kind uint32

const (
	None Kind = 0
	CRC  Kind = 1
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case CRC:
		return "crc"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Valid reports whether k names a known scheme.
func (k Kind) Valid() bool { return k == None || k == CRC }

const poly = 0x04C11DB7

var table = func() (t [256]uint32) {
	for i := range t {
		c := uint32(i) << 24
		for range 8 {
			if c&0x80000000 != 0 {
				c = c<<1 ^ poly
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// Digest is a running cksum computation. It implements hash.Hash32.
type Digest struct {
	crc uint32
	n   uint64
}

var _ hash.Hash32 = (*Digest)(nil)

// New returns an empty Digest.
func New() *Digest { return &Digest{} }

func (d *Digest) Write(p []byte) (int, error) {
	crc := d.crc
	for _, b := range p {
		crc = crc<<8 ^ table[byte(crc>>24)^b]
	}
	d.crc = crc
	d.n += uint64(len(p))
	return len(p), nil
}

// Sum32 returns the finalized checksum without disturbing the running state.
func (d *Digest) Sum32() uint32 {
	crc := d.crc
	for n := d.n; n != 0; n >>= 8 {
		crc = crc<<8 ^ table[byte(crc>>24)^byte(n)]
	}
	return ^crc
}

func (d *Digest) Sum(b []byte) []byte {
	s := d.Sum32()
	return append(b, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *Digest) Reset()         { d.crc, d.n = 0, 0 }
func (d *Digest) Size() int      { return 4 }
func (d *Digest) BlockSize() int { return 1 }

// Len returns the number of bytes absorbed.
func (d *Digest) Len() uint64 { return d.n }

// Checksum returns the cksum of b.
func Checksum(b []byte) uint32 {
	var d Digest
	_, _ = d.Write(b)
	return d.Sum32()
}
