package yamux

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := newHeader(typeData, flagSYN|flagFIN, 17, 4096)

	buf := make([]byte, headerSize)
	if err := encodeHeader(h, buf); err != nil {
		t.Fatalf("encodeHeader: %v", err)
	}

	got, err := decodeHeader(buf)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if got.Type() != typeData {
		t.Fatalf("Type() = %v, want %v", got.Type(), typeData)
	}
	if got.Flags() != flagSYN|flagFIN {
		t.Fatalf("Flags() = %#x, want %#x", uint16(got.Flags()), uint16(flagSYN|flagFIN))
	}
	if got.StreamID() != 17 {
		t.Fatalf("StreamID() = %d, want 17", got.StreamID())
	}
	if got.Length() != 4096 {
		t.Fatalf("Length() = %d, want 4096", got.Length())
	}
}

func TestHeaderWireLayout(t *testing.T) {
	h := newHeader(typeWindowUpdate, flagACK, 1, 2)
	want := []byte{0, 1, 0, byte(flagACK), 0, 0, 0, 1, 0, 0, 0, 2}
	if !bytes.Equal(h.Bytes(), want) {
		t.Fatalf("wire bytes = %x, want %x", h.Bytes(), want)
	}
}

func TestDecodeHeaderRejectsShortInput(t *testing.T) {
	_, err := decodeHeader(make([]byte, headerSize-1))
	if errors.Cause(err) != ErrInvalid {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestDecodeHeaderRejectsBadVersion(t *testing.T) {
	h := newHeader(typePing, 0, 0, 0)
	buf := h.Bytes()
	buf[0] = 7
	_, err := decodeHeader(buf)
	if errors.Cause(err) != ErrProtocol {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestDecodeHeaderRejectsUnknownType(t *testing.T) {
	h := newHeader(typeGoAway, 0, 0, 0)
	buf := h.Bytes()
	buf[1] = 99
	_, err := decodeHeader(buf)
	if errors.Cause(err) != ErrProtocol {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestEncodeHeaderRejectsShortOutput(t *testing.T) {
	h := newHeader(typeData, 0, 0, 0)
	err := encodeHeader(h, make([]byte, 4))
	if errors.Cause(err) != ErrInvalid {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestDecodeUint32RejectsWrongLength(t *testing.T) {
	if _, err := decodeUint32([]byte{1, 2, 3}); errors.Cause(err) != ErrProtocol {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestEncodeDecodeUint32RoundTrip(t *testing.T) {
	v, err := decodeUint32(encodeUint32(0xdeadbeef))
	if err != nil {
		t.Fatalf("decodeUint32: %v", err)
	}
	if v != 0xdeadbeef {
		t.Fatalf("got %#x, want 0xdeadbeef", v)
	}
}
