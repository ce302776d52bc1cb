package yamux

import "testing"

func TestBufferWriteReadRoundTrip(t *testing.T) {
	b := newBuffer(8)
	if err := b.write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", b.Len())
	}
	out := make([]byte, 5)
	if n := b.read(out); n != 5 {
		t.Fatalf("read() = %d, want 5", n)
	}
	if string(out) != "hello" {
		t.Fatalf("read back %q, want %q", out, "hello")
	}
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after full drain", b.Len())
	}
}

func TestBufferGrowsOnOverflow(t *testing.T) {
	b := newBuffer(4)
	payload := makeBytes(20)
	if err := b.write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b.Cap() < 20 {
		t.Fatalf("Cap() = %d, want >= 20", b.Cap())
	}
	out := make([]byte, 20)
	if n := b.read(out); n != 20 {
		t.Fatalf("read() = %d, want 20", n)
	}
}

func TestBufferCompactsAfterFullDrain(t *testing.T) {
	b := newBuffer(8)
	b.write([]byte("abcd"))
	out := make([]byte, 4)
	b.read(out)
	if b.pos != 0 || b.used != 0 {
		t.Fatalf("pos=%d used=%d, want both 0 after full drain compacts", b.pos, b.used)
	}
}

func TestBufferPartialReadLeavesRemainder(t *testing.T) {
	b := newBuffer(8)
	b.write([]byte("abcdef"))
	out := make([]byte, 2)
	if n := b.read(out); n != 2 || string(out) != "ab" {
		t.Fatalf("read() = %d %q, want 2 \"ab\"", n, out)
	}
	if b.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", b.Len())
	}
	rest := make([]byte, 4)
	if n := b.read(rest); n != 4 || string(rest) != "cdef" {
		t.Fatalf("read() = %d %q, want 4 \"cdef\"", n, rest)
	}
}

func TestBufferReadOnEmptyReturnsZero(t *testing.T) {
	b := newBuffer(8)
	if n := b.read(make([]byte, 4)); n != 0 {
		t.Fatalf("read() = %d, want 0 on empty buffer", n)
	}
}

func makeBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}
