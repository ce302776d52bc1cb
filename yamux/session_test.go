package yamux

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
)

// wireTransport is an in-memory Transport backed by a pair of byte
// buffers, letting tests drive two Sessions against each other without
// a real socket or goroutines. Writes append a full frame at a time
// and Process calls are interleaved by the test, so every Read always
// sees either nothing or a complete frame — exactly the "blocking or
// fully-satisfying adapter" contract Transport documents.
type wireTransport struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
}

func (w *wireTransport) Read(p []byte) (int, error)  { return w.readBuf.Read(p) }
func (w *wireTransport) Write(p []byte) (int, error) { return w.writeBuf.Write(p) }

func newPairedSessions(t *testing.T) (client, server *Session) {
	t.Helper()
	c2s := new(bytes.Buffer)
	s2c := new(bytes.Buffer)

	clientTransport := &wireTransport{readBuf: s2c, writeBuf: c2s}
	serverTransport := &wireTransport{readBuf: c2s, writeBuf: s2c}

	client, err := NewSession(clientTransport, true, nil)
	if err != nil {
		t.Fatalf("NewSession(client): %v", err)
	}
	server, err = NewSession(serverTransport, false, nil)
	if err != nil {
		t.Fatalf("NewSession(server): %v", err)
	}
	return client, server
}

// handshake opens one stream from client to server and drives both
// sides to ESTABLISHED, returning the client and server handles for it.
func handshake(t *testing.T, client, server *Session) (*Stream, *Stream) {
	t.Helper()
	cs, err := client.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if cs.State() != StateSynSent {
		t.Fatalf("client stream state = %s, want SYN_SENT", cs.State())
	}
	if err := server.Process(); err != nil {
		t.Fatalf("server.Process (SYN): %v", err)
	}
	ss, err := server.AcceptStream()
	if err != nil {
		t.Fatalf("AcceptStream: %v", err)
	}
	if ss == nil {
		t.Fatalf("AcceptStream returned nil, want the opened stream")
	}
	if ss.State() != StateEstablished {
		t.Fatalf("server stream state = %s, want ESTABLISHED", ss.State())
	}
	if err := client.Process(); err != nil {
		t.Fatalf("client.Process (SYN+ACK): %v", err)
	}
	if cs.State() != StateEstablished {
		t.Fatalf("client stream state = %s, want ESTABLISHED", cs.State())
	}
	return cs, ss
}

func TestOpenDataClose(t *testing.T) {
	client, server := newPairedSessions(t)
	cs, ss := handshake(t, client, server)

	payload := []byte("hello yamux")
	n, err := cs.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("Write() = %d, want %d", n, len(payload))
	}

	if err := server.Process(); err != nil {
		t.Fatalf("server.Process (DATA): %v", err)
	}

	out := make([]byte, len(payload))
	n, err = ss.Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(payload) || !bytes.Equal(out, payload) {
		t.Fatalf("Read() = %d %q, want %d %q", n, out, len(payload), payload)
	}

	if err := client.Process(); err != nil {
		t.Fatalf("client.Process (WINDOW_UPDATE credit): %v", err)
	}
	if cs.SendWindow() != DefaultMaxStreamWindowSize {
		t.Fatalf("client send window = %d, want restored to %d", cs.SendWindow(), DefaultMaxStreamWindowSize)
	}

	if err := cs.Close(false); err != nil {
		t.Fatalf("cs.Close: %v", err)
	}
	if cs.State() != StateFinSent {
		t.Fatalf("client stream state = %s, want FIN_SENT", cs.State())
	}

	if err := server.Process(); err != nil {
		t.Fatalf("server.Process (FIN): %v", err)
	}
	if ss.State() != StateFinRecv {
		t.Fatalf("server stream state = %s, want FIN_RECV", ss.State())
	}

	if err := client.Process(); err != nil {
		t.Fatalf("client.Process (FIN+ACK): %v", err)
	}
	if cs.State() != StateClosed {
		t.Fatalf("client stream state = %s, want CLOSED", cs.State())
	}

	if err := ss.Close(false); err != nil {
		t.Fatalf("ss.Close: %v", err)
	}
	if ss.State() != StateClosed {
		t.Fatalf("server stream state = %s, want CLOSED", ss.State())
	}
}

func TestFlowControlFragmentsLargePayload(t *testing.T) {
	client, server := newPairedSessions(t)
	cs, ss := handshake(t, client, server)

	payload := makeBytes(40000)
	n, err := cs.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("Write() = %d, want %d", n, len(payload))
	}
	if cs.SendWindow() != DefaultMaxStreamWindowSize-40000 {
		t.Fatalf("client send window = %d, want %d", cs.SendWindow(), DefaultMaxStreamWindowSize-40000)
	}

	wantFrames := 3 // 16384 + 16384 + 7232
	for i := 0; i < wantFrames; i++ {
		if err := server.Process(); err != nil {
			t.Fatalf("server.Process (DATA %d): %v", i, err)
		}
	}
	if ss.recvBuf.Len() != 40000 {
		t.Fatalf("server buffered %d bytes, want 40000", ss.recvBuf.Len())
	}

	drained := 0
	out := make([]byte, 512)
	for drained < 40000 {
		n, err := ss.Read(out)
		if err != nil {
			t.Fatalf("ss.Read: %v", err)
		}
		if n == 0 {
			t.Fatalf("ss.Read returned 0 with %d bytes still undrained", 40000-drained)
		}
		drained += n
		if err := client.Process(); err != nil {
			t.Fatalf("client.Process (WINDOW_UPDATE): %v", err)
		}
	}
	if drained != 40000 {
		t.Fatalf("drained %d bytes, want 40000", drained)
	}
	if cs.SendWindow() != DefaultMaxStreamWindowSize {
		t.Fatalf("client send window = %d, want fully restored to %d", cs.SendWindow(), DefaultMaxStreamWindowSize)
	}
}

func TestResetClosesBothSidesWithoutReply(t *testing.T) {
	client, server := newPairedSessions(t)
	cs, ss := handshake(t, client, server)

	if err := cs.Close(true); err != nil {
		t.Fatalf("cs.Close(reset): %v", err)
	}
	if cs.State() != StateClosed {
		t.Fatalf("client stream state = %s, want CLOSED", cs.State())
	}

	if err := server.Process(); err != nil {
		t.Fatalf("server.Process (RST): %v", err)
	}
	if ss.State() != StateClosed {
		t.Fatalf("server stream state = %s, want CLOSED", ss.State())
	}
	if server.NumStreams() != 0 {
		t.Fatalf("server NumStreams() = %d, want 0 after RST", server.NumStreams())
	}
}

func TestPingRoundTrip(t *testing.T) {
	client, server := newPairedSessions(t)

	if err := client.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := server.Process(); err != nil {
		t.Fatalf("server.Process (PING): %v", err)
	}
	if err := client.Process(); err != nil {
		t.Fatalf("client.Process (PING ACK): %v", err)
	}
	if _, ok := client.LastPingRTT(); !ok {
		t.Fatalf("LastPingRTT ok = false, want true after a completed ping")
	}
}

func TestGoAwayStopsNewStreamsButDrainsExisting(t *testing.T) {
	client, server := newPairedSessions(t)
	cs, ss := handshake(t, client, server)

	if err := server.Close(GoAwayNormal); err != nil {
		t.Fatalf("server.Close: %v", err)
	}
	if err := client.Process(); err != nil {
		t.Fatalf("client.Process (GO_AWAY): %v", err)
	}
	if !client.GoAwayReceived() {
		t.Fatalf("GoAwayReceived() = false, want true")
	}

	if _, err := client.OpenStream(); errors.Cause(err) != ErrClosed {
		t.Fatalf("OpenStream after GO_AWAY: err = %v, want ErrClosed", err)
	}

	// server.Close force-closed ss locally; the client's handle for the
	// same stream was opened before GO_AWAY arrived and stays usable.
	if ss.State() != StateClosed {
		t.Fatalf("server stream state = %s, want CLOSED after server.Close", ss.State())
	}
	if cs.State() != StateEstablished {
		t.Fatalf("client stream state = %s, want ESTABLISHED after GO_AWAY", cs.State())
	}
	if err := cs.Close(false); err != nil {
		t.Fatalf("cs.Close after GO_AWAY: %v", err)
	}
	if cs.State() != StateFinSent {
		t.Fatalf("client stream state = %s, want FIN_SENT", cs.State())
	}
}

func TestProcessRejectsAfterLocalClose(t *testing.T) {
	client, _ := newPairedSessions(t)
	if err := client.Close(GoAwayNormal); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Process(); errors.Cause(err) != ErrClosed {
		t.Fatalf("Process after Close: err = %v, want ErrClosed", err)
	}
}

func TestDataForUnknownStreamIsInvalidStream(t *testing.T) {
	client, server := newPairedSessions(t)
	_ = client

	h := newHeader(typeData, 0, 999, 4)
	buf := make([]byte, headerSize+4)
	copy(buf, h.Bytes())
	copy(buf[headerSize:], encodeUint32(1))

	serverTransport := server.transport.(*wireTransport)
	serverTransport.readBuf.Write(buf)

	if err := server.Process(); errors.Cause(err) != ErrInvalidStream {
		t.Fatalf("Process (unknown stream): err = %v, want ErrInvalidStream", err)
	}
}

func TestAcceptStreamOnEmptyQueueReturnsNil(t *testing.T) {
	_, server := newPairedSessions(t)
	st, err := server.AcceptStream()
	if err != nil {
		t.Fatalf("AcceptStream: %v", err)
	}
	if st != nil {
		t.Fatalf("AcceptStream() = %v, want nil on empty queue", st)
	}
}
