package protocol

import "errors"

// Packet framing constants.
const (
	// HeaderSize is the size of the packet header in bytes:
	// u16 opcode + 1 reserved byte + u32 payload length.
	HeaderSize = 7

	// MaxPayloadSize caps a single packet's declared payload length.
	// Spectator frame batches are the largest legitimate payloads and
	// stay well below this.
	MaxPayloadSize = 1 << 20
)

// Batch reading errors.
var (
	// ErrTruncatedPacket is returned when a packet's declared length
	// overruns the remaining buffer. The whole batch is abandoned.
	ErrTruncatedPacket = errors.New("protocol: packet length overruns buffer")

	// ErrPacketTooLarge is returned when a declared payload length
	// exceeds MaxPayloadSize.
	ErrPacketTooLarge = errors.New("protocol: packet payload too large")
)

// Packet is one decoded client packet: opcode plus raw payload.
// The payload slice references the batch buffer; it is valid for the
// duration of the dispatch call only.
type Packet struct {
	ID      ClientPacketID
	Payload []byte
}

// Reader walks a buffer of back-to-back packets.
//
// A trailing partial header (fewer than HeaderSize bytes left) terminates
// iteration cleanly; a declared payload length that overruns the buffer
// surfaces ErrTruncatedPacket and poisons the reader, per the protocol's
// malformed-input policy.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader creates a Reader over one request body.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// More reports whether a complete header remains to be read and no error
// has occurred.
func (r *Reader) More() bool {
	return r.err == nil && r.pos+HeaderSize <= len(r.buf)
}

// Err returns the sticky error, if any.
func (r *Reader) Err() error {
	return r.err
}

// Next decodes the next packet. Callers should loop while More().
func (r *Reader) Next() (Packet, error) {
	if r.err != nil {
		return Packet{}, r.err
	}
	if r.pos+HeaderSize > len(r.buf) {
		r.err = ErrTruncatedPacket
		return Packet{}, r.err
	}

	b := r.buf[r.pos:]
	id := ClientPacketID(uint16(b[0]) | uint16(b[1])<<8)
	// b[2] is the reserved byte, ignored on read
	length := uint32(b[3]) | uint32(b[4])<<8 | uint32(b[5])<<16 | uint32(b[6])<<24

	if length > MaxPayloadSize {
		r.err = ErrPacketTooLarge
		return Packet{}, r.err
	}
	start := r.pos + HeaderSize
	end := start + int(length)
	if end > len(r.buf) {
		r.err = ErrTruncatedPacket
		return Packet{}, r.err
	}
	r.pos = end

	return Packet{ID: id, Payload: r.buf[start:end]}, nil
}

// AppendHeader appends a server packet header for a payload of the given
// length and returns the extended slice.
func AppendHeader(buf []byte, id ServerPacketID, payloadLen int) []byte {
	n := uint32(payloadLen)
	return append(buf,
		byte(id), byte(id>>8),
		0, // reserved
		byte(n), byte(n>>8), byte(n>>16), byte(n>>24),
	)
}

// Finish frames the encoder's current contents as the payload of a single
// server packet and returns the framed bytes.
func Finish(id ServerPacketID, e *Encoder) []byte {
	payload := e.Bytes()
	out := make([]byte, 0, HeaderSize+len(payload))
	out = AppendHeader(out, id, len(payload))
	return append(out, payload...)
}
