// Package vql owns the variable-length-quantity integer encoding used by
// the packet wire format for every length, count, and id field.
//
// Ownership boundary:
// - 32-bit signed integer <-> byte sequence, both directions
// - nothing above it: tags and payloads belong to packet
package vql

import (
	"errors"
	"io"
)

// MaxLen is the most bytes one encoded value can occupy. The raw 32-bit
// pattern is emitted in 7-bit groups, so negative values always take 5.
const MaxLen = 5

var ErrTruncated = errors.New("vql: truncated varint")

// Encode writes v as a variable-length quantity. The two's-complement bit
// pattern is reinterpreted unsigned before grouping, zero is a single
// 0x00 byte, and every byte except the last carries the 0x80
// continuation bit.
func Encode(w io.Writer, v int32) error {
	var buf [MaxLen]byte
	n := EncodeBytes(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// EncodeBytes encodes v into buf and returns the byte count.
// buf must have at least MaxLen bytes.
func EncodeBytes(buf []byte, v int32) int {
	u := uint32(v)
	if u == 0 {
		buf[0] = 0x00
		return 1
	}
	n := 0
	for u != 0 {
		buf[n] = byte(u & 0x7F)
		u >>= 7
		if u != 0 {
			buf[n] |= 0x80
		}
		n++
	}
	return n
}

// Decode reads one variable-length quantity from r. Bytes are consumed
// one at a time until the first byte with a clear high bit; the unsigned
// accumulation is reinterpreted as signed. Exhausting r before a
// terminating byte fails with ErrTruncated.
func Decode(r io.Reader) (int32, error) {
	var u uint32
	var one [1]byte
	for shift := uint(0); ; shift += 7 {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, ErrTruncated
			}
			return 0, err
		}
		b := one[0]
		u |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return int32(u), nil
		}
	}
}
