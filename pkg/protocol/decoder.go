package protocol

import (
	"errors"
	"io"
	"math"
)

// Allocation limits to prevent DoS via malicious length prefixes.
const (
	// MaxStringAllocation is the maximum decoded string size (64KB).
	// Chat lines and client metadata are far below this.
	MaxStringAllocation = 64 * 1024

	// MaxListCount is the maximum number of elements in an i32 list.
	MaxListCount = 32 * 1024
)

// Common decoding errors.
var (
	ErrUlebOverflow       = errors.New("protocol: uleb128 overflow")
	ErrInvalidStringByte  = errors.New("protocol: invalid string marker byte")
	ErrAllocationTooLarge = errors.New("protocol: allocation size exceeds limit")
	ErrListTooLarge       = errors.New("protocol: list count exceeds limit")
)

// Decoder is a binary decoder that reads Bancho-encoded data from a byte
// buffer. All fixed-width values are little-endian.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder creates a new decoder from the given byte slice.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF returns true if all bytes have been read.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Position returns the current read position.
func (d *Decoder) Position() int {
	return d.pos
}

// Skip advances the position by n bytes.
func (d *Decoder) Skip(n int) error {
	if d.pos+n > len(d.buf) {
		return io.ErrUnexpectedEOF
	}
	d.pos += n
	return nil
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadRaw reads exactly n bytes and returns them.
// The returned slice references the decoder's buffer; do not modify.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadRest returns all unread bytes, consuming them.
// The returned slice references the decoder's buffer; do not modify.
func (d *Decoder) ReadRest() []byte {
	b := d.buf[d.pos:]
	d.pos = len(d.buf)
	return b
}

// ReadBool reads a boolean (0x00 = false, anything else = true).
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0x00, nil
}

// ReadUint16 reads a uint16 in little-endian byte order.
func (d *Decoder) ReadUint16() (uint16, error) {
	if d.pos+2 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := uint16(d.buf[d.pos]) | uint16(d.buf[d.pos+1])<<8
	d.pos += 2
	return v, nil
}

// ReadUint32 reads a uint32 in little-endian byte order.
func (d *Decoder) ReadUint32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := uint32(d.buf[d.pos]) | uint32(d.buf[d.pos+1])<<8 |
		uint32(d.buf[d.pos+2])<<16 | uint32(d.buf[d.pos+3])<<24
	d.pos += 4
	return v, nil
}

// ReadUint64 reads a uint64 in little-endian byte order.
func (d *Decoder) ReadUint64() (uint64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := uint64(d.buf[d.pos]) | uint64(d.buf[d.pos+1])<<8 |
		uint64(d.buf[d.pos+2])<<16 | uint64(d.buf[d.pos+3])<<24 |
		uint64(d.buf[d.pos+4])<<32 | uint64(d.buf[d.pos+5])<<40 |
		uint64(d.buf[d.pos+6])<<48 | uint64(d.buf[d.pos+7])<<56
	d.pos += 8
	return v, nil
}

// ReadInt8 reads a single byte as an int8.
func (d *Decoder) ReadInt8() (int8, error) {
	b, err := d.ReadByte()
	return int8(b), err
}

// ReadInt16 reads an int16 in little-endian byte order.
func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

// ReadInt32 reads an int32 in little-endian byte order.
func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

// ReadInt64 reads an int64 in little-endian byte order.
func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads a float32 in IEEE 754 format (little-endian).
func (d *Decoder) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 reads a float64 in IEEE 754 format (little-endian).
func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadUleb128 reads a ULEB128 value.
func (d *Decoder) ReadUleb128() (uint64, error) {
	v, n := DecodeUleb128(d.buf[d.pos:])
	switch {
	case n == -1:
		return 0, io.ErrUnexpectedEOF
	case n == -2:
		return 0, ErrUlebOverflow
	}
	d.pos += n
	return v, nil
}

// ReadString reads an osu! string: marker byte then, when present, a
// ULEB128 length and that many UTF-8 bytes.
func (d *Decoder) ReadString() (string, error) {
	marker, err := d.ReadByte()
	if err != nil {
		return "", err
	}
	switch marker {
	case stringAbsent:
		return "", nil
	case stringPresent:
	default:
		return "", ErrInvalidStringByte
	}

	length, err := d.ReadUleb128()
	if err != nil {
		return "", err
	}
	if length > uint64(d.Remaining()) {
		return "", io.ErrUnexpectedEOF
	}
	if length > MaxStringAllocation {
		return "", ErrAllocationTooLarge
	}
	n := int(length)
	s := string(d.buf[d.pos : d.pos+n])
	d.pos += n
	return s, nil
}

// ReadIntList reads an i32 list: u16 element count then that many i32s.
// Returns ErrListTooLarge if the count exceeds MaxListCount.
func (d *Decoder) ReadIntList() ([]int32, error) {
	count, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	if count > MaxListCount {
		return nil, ErrListTooLarge
	}
	if int(count)*4 > d.Remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	vs := make([]int32, count)
	for i := range vs {
		vs[i], _ = d.ReadInt32()
	}
	return vs, nil
}
