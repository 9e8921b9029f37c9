// Package protocol implements the Bancho binary wire protocol.
//
// The format is a compatibility contract with the stock osu! client:
// every opcode value, field order, and byte width below is fixed and must
// round-trip byte-for-byte.
//
// # Wire Format
//
// Every packet is framed with a 7-byte header:
//
//	┌──────────────┬──────────────┬───────────────────────────────┐
//	│ Packet ID    │ Reserved     │ Payload Length                │
//	│ (2 bytes LE) │ (1 byte)     │ (4 bytes, little-endian)      │
//	└──────────────┴──────────────┴───────────────────────────────┘
//	│                                                              │
//	│  Payload (variable length)                                   │
//	│                                                              │
//	└──────────────────────────────────────────────────────────────┘
//
// A single request body may carry any number of back-to-back packets;
// Reader walks them in order. A declared payload length that overruns the
// remaining buffer aborts the whole batch (ErrTruncatedPacket); nothing
// after the malformed packet is processed.
//
// # Encoding
//
//   - Fixed-width integers and floats: little-endian
//   - Strings: one marker byte (0x00 absent, 0x0b present), then a ULEB128
//     byte length and the UTF-8 bytes
//   - i32 lists: u16 element count followed by that many i32 values
//   - Raw spans: opaque bytes copied verbatim (spectator and score frames)
//
// # Composites
//
// Message and MatchSnapshot are multi-field structs with a fixed order,
// defined in message.go and match.go. MatchSnapshot's slot arrays are
// always 16 entries; player ids are written only for occupied slots, and
// per-slot mods only while freemod is enabled.
//
// # File Structure
//
//   - uleb128.go: ULEB128 length encoding
//   - encoder.go: binary encoder
//   - decoder.go: binary decoder
//   - opcode.go: client and server opcode tables
//   - packet.go: header framing and batch Reader
//   - message.go: chat message composite
//   - match.go: multiplayer match snapshot composite
//   - write.go: server→client packet builders
package protocol
