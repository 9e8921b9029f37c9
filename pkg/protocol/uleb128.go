package protocol

// MaxUlebLen is the maximum number of bytes a ULEB128 value can occupy.
// A uint64 requires at most 10 bytes.
const MaxUlebLen = 10

// AppendUleb128 appends v in ULEB128 encoding and returns the extended
// slice. 7 bits of data per byte, MSB indicates continuation.
func AppendUleb128(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// DecodeUleb128 decodes a ULEB128 value from buf.
// Returns (value, bytesRead). If bytesRead < 0, decoding failed:
//   - -1: buffer too short (incomplete value)
//   - -2: overflow (more than 10 bytes)
func DecodeUleb128(buf []byte) (uint64, int) {
	var v uint64
	var shift uint

	for i, b := range buf {
		if i >= MaxUlebLen {
			return 0, -2
		}
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, -1
}

// Uleb128Len returns the number of bytes needed to encode v.
func Uleb128Len(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}
