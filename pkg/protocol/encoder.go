package protocol

import "math"

// String marker bytes. An osu! string opens with 0x0b when present and a
// single 0x00 when empty/absent.
const (
	stringAbsent  = 0x00
	stringPresent = 0x0b
)

// Encoder is a binary encoder that appends Bancho-encoded data to an
// internal buffer. All fixed-width values are little-endian.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new encoder with a default initial capacity.
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0, 256),
	}
}

// NewEncoderWithCap creates a new encoder with the specified initial capacity.
func NewEncoderWithCap(capacity int) *Encoder {
	return &Encoder{
		buf: make([]byte, 0, capacity),
	}
}

// Reset resets the encoder to empty state, reusing the underlying buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. The returned slice is valid until the
// next call to Reset or any Write method.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes currently encoded.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteByte appends a single byte.
// Note: intentionally no error return (unlike io.ByteWriter); the buffer
// is unbounded and can always append.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteRaw appends opaque bytes verbatim (spectator/score frame spans).
func (e *Encoder) WriteRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteBool appends a boolean as a single byte (0x00 or 0x01).
func (e *Encoder) WriteBool(b bool) {
	if b {
		e.buf = append(e.buf, 0x01)
	} else {
		e.buf = append(e.buf, 0x00)
	}
}

// WriteUint16 appends a uint16 in little-endian byte order.
func (e *Encoder) WriteUint16(v uint16) {
	e.buf = append(e.buf, byte(v), byte(v>>8))
}

// WriteUint32 appends a uint32 in little-endian byte order.
func (e *Encoder) WriteUint32(v uint32) {
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WriteUint64 appends a uint64 in little-endian byte order.
func (e *Encoder) WriteUint64(v uint64) {
	e.buf = append(e.buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// WriteInt8 appends an int8 as a single byte.
func (e *Encoder) WriteInt8(v int8) {
	e.buf = append(e.buf, byte(v))
}

// WriteInt16 appends an int16 in little-endian byte order.
func (e *Encoder) WriteInt16(v int16) {
	e.WriteUint16(uint16(v))
}

// WriteInt32 appends an int32 in little-endian byte order.
func (e *Encoder) WriteInt32(v int32) {
	e.WriteUint32(uint32(v))
}

// WriteInt64 appends an int64 in little-endian byte order.
func (e *Encoder) WriteInt64(v int64) {
	e.WriteUint64(uint64(v))
}

// WriteFloat32 appends a float32 in IEEE 754 format (little-endian).
func (e *Encoder) WriteFloat32(v float32) {
	e.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 appends a float64 in IEEE 754 format (little-endian).
func (e *Encoder) WriteFloat64(v float64) {
	e.WriteUint64(math.Float64bits(v))
}

// WriteUleb128 appends v in ULEB128 encoding.
func (e *Encoder) WriteUleb128(v uint64) {
	e.buf = AppendUleb128(e.buf, v)
}

// WriteString appends an osu! string: marker byte, then ULEB128 length
// and UTF-8 bytes when non-empty. The empty string encodes as the single
// absent marker.
func (e *Encoder) WriteString(s string) {
	if s == "" {
		e.buf = append(e.buf, stringAbsent)
		return
	}
	e.buf = append(e.buf, stringPresent)
	e.buf = AppendUleb128(e.buf, uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteIntList appends an i32 list: u16 element count followed by that
// many little-endian i32 values.
func (e *Encoder) WriteIntList(vs []int32) {
	e.WriteUint16(uint16(len(vs)))
	for _, v := range vs {
		e.WriteInt32(v)
	}
}
