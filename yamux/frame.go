package yamux

import (
	"encoding/binary"
	"fmt"
)

// frameType identifies the kind of a frame, per spec §3.
type frameType uint8

const (
	typeData frameType = iota
	typeWindowUpdate
	typePing
	typeGoAway
)

func (t frameType) String() string {
	switch t {
	case typeData:
		return "DATA"
	case typeWindowUpdate:
		return "WINDOW_UPDATE"
	case typePing:
		return "PING"
	case typeGoAway:
		return "GO_AWAY"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// flags is a bitmask over the SYN/ACK/FIN/RST control bits.
type flags uint16

const (
	flagSYN flags = 1 << iota
	flagACK
	flagFIN
	flagRST
)

func (f flags) has(bit flags) bool { return f&bit != 0 }

// GoAway reason codes, per spec §6.
const (
	GoAwayNormal        uint32 = 0
	GoAwayProtocolError uint32 = 1
	GoAwayInternalError uint32 = 2
)

const (
	protoVersion = 0
	headerSize   = 12

	// invalidStreamID is reserved and never a valid allocated id.
	invalidStreamID uint32 = 0xFFFFFFFF
)

// header is the 12-byte, big-endian wire header described in spec §3.
//
//	version(1) type(1) flags(2) stream_id(4) length(4)
type header [headerSize]byte

func newHeader(typ frameType, fl flags, streamID uint32, length uint32) header {
	var h header
	h[0] = protoVersion
	h[1] = byte(typ)
	binary.BigEndian.PutUint16(h[2:4], uint16(fl))
	binary.BigEndian.PutUint32(h[4:8], streamID)
	binary.BigEndian.PutUint32(h[8:12], length)
	return h
}

func (h header) Version() byte       { return h[0] }
func (h header) Type() frameType     { return frameType(h[1]) }
func (h header) Flags() flags        { return flags(binary.BigEndian.Uint16(h[2:4])) }
func (h header) StreamID() uint32    { return binary.BigEndian.Uint32(h[4:8]) }
func (h header) Length() uint32      { return binary.BigEndian.Uint32(h[8:12]) }
func (h header) Bytes() []byte       { b := h; return b[:] }

func (h header) String() string {
	return fmt.Sprintf("version=%d type=%s flags=%#x stream=%d length=%d",
		h.Version(), h.Type(), uint16(h.Flags()), h.StreamID(), h.Length())
}

// encodeHeader serializes h into out, which must be at least
// headerSize bytes. It is pure: no I/O, no allocation.
func encodeHeader(h header, out []byte) error {
	if len(out) < headerSize {
		return errorf(ErrInvalid, "encodeHeader: output buffer too small")
	}
	copy(out, h[:])
	return nil
}

// decodeHeader parses the first headerSize bytes of in into a header,
// rejecting malformed version/type fields. It is pure: no I/O, no
// allocation beyond the returned value.
func decodeHeader(in []byte) (header, error) {
	var h header
	if len(in) < headerSize {
		return h, errorf(ErrInvalid, "decodeHeader: need %d bytes, got %d", headerSize, len(in))
	}
	copy(h[:], in[:headerSize])
	if h.Version() != protoVersion {
		return h, errorf(ErrProtocol, "decodeHeader: unsupported version %d", h.Version())
	}
	if h.Type() > typeGoAway {
		return h, errorf(ErrProtocol, "decodeHeader: unknown frame type %d", h[1])
	}
	return h, nil
}

// encodeUint32 renders v as a 4-byte big-endian payload, used for
// WINDOW_UPDATE increments/initial-windows and GO_AWAY reason codes.
func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, errorf(ErrProtocol, "decodeUint32: expected 4 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}
