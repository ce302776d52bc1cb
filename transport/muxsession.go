package transport

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/xtaci/yamux-go/yamux"
)

// MuxSession adapts the synchronous, sans-IO yamux.Session to the
// goroutine-per-connection style the rest of this codebase (and its
// smux-based ancestor) is written in. yamux.Session itself assumes a
// single caller driving Process and is not safe for concurrent access
// by design; MuxSession supplies the pump goroutine and locking that a
// concurrent embedder needs, the way smux.Session does internally with
// its own recvLoop/sendLoop pair.
type MuxSession struct {
	mu   sync.Mutex
	cond *sync.Cond

	sess *yamux.Session
	conn io.ReadWriteCloser

	acceptC chan *MuxStream
	closeC  chan struct{}
	closed  bool
	pumpErr error
}

// NewMuxSession wraps conn in a yamux.Session and starts the pump
// goroutine that keeps calling Process so inbound frames (new streams,
// data, window credit, pings, GO_AWAY) get consumed as they arrive.
func NewMuxSession(conn io.ReadWriteCloser, client bool, config *yamux.Config) (*MuxSession, error) {
	sess, err := yamux.NewSession(yamux.NewIOTransport(conn), client, config)
	if err != nil {
		return nil, err
	}
	m := &MuxSession{
		sess:    sess,
		conn:    conn,
		acceptC: make(chan *MuxStream, 256),
		closeC:  make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	go m.pump()
	return m, nil
}

// Raw returns the underlying yamux.Session, for callers that need
// session-level introspection (NumStreams, LastPingRTT) that MuxSession
// itself doesn't re-expose, such as SnmpLogger's SessionLister.
func (m *MuxSession) Raw() *yamux.Session {
	return m.sess
}

func (m *MuxSession) pump() {
	for {
		m.mu.Lock()
		err := m.sess.Process()
		var newStream *yamux.Stream
		if err == nil {
			newStream, _ = m.sess.AcceptStream()
		}
		m.cond.Broadcast()
		stop := err != nil
		if stop {
			m.pumpErr = err
			m.closed = true
		}
		m.mu.Unlock()

		if newStream != nil {
			select {
			case m.acceptC <- &MuxStream{session: m, stream: newStream}:
			default:
				// backlog already delivered faster than the application
				// drains it; drop rather than block the pump.
			}
		}
		if stop {
			close(m.closeC)
			close(m.acceptC)
			return
		}
	}
}

// OpenStream originates a new stream and returns it immediately in
// SYN_SENT; writes block (via Write's cond.Wait) until the peer's
// SYN+ACK has been processed and send window is available.
func (m *MuxSession) OpenStream() (*MuxStream, error) {
	m.mu.Lock()
	st, err := m.sess.OpenStream()
	m.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "OpenStream")
	}
	return &MuxStream{session: m, stream: st}, nil
}

// AcceptStream blocks until a peer-opened stream is available or the
// session closes.
func (m *MuxSession) AcceptStream() (*MuxStream, error) {
	select {
	case st, ok := <-m.acceptC:
		if !ok {
			return nil, io.ErrClosedPipe
		}
		return st, nil
	case <-m.closeC:
		return nil, io.ErrClosedPipe
	}
}

// Ping issues a keepalive ping through the underlying session.
func (m *MuxSession) Ping() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.Ping()
}

// IsClosed reports whether the session has been closed, locally or by
// a fatal transport error observed by the pump.
func (m *MuxSession) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close sends GO_AWAY (normal) through the session on the first call,
// force-closes its streams, and closes the underlying connection.
func (m *MuxSession) Close() error {
	m.mu.Lock()
	if !m.closed {
		_ = m.sess.Close(yamux.GoAwayNormal)
		m.closed = true
		m.cond.Broadcast()
	}
	m.mu.Unlock()
	return m.conn.Close()
}

// MuxStream is one multiplexed stream obtained from a MuxSession.
type MuxStream struct {
	session *MuxSession
	stream  *yamux.Stream
}

func (s *MuxStream) ID() uint32 { return s.stream.ID() }

// Read blocks until data is buffered, the peer half-closes (EOF), or
// the stream/session closes.
func (s *MuxStream) Read(p []byte) (int, error) {
	m := s.session
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		n, err := s.stream.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil {
			if errors.Cause(err) == yamux.ErrClosed {
				return 0, io.EOF
			}
			return 0, err
		}
		if s.stream.State() == yamux.StateFinRecv || s.stream.State() == yamux.StateClosed {
			return 0, io.EOF
		}
		if m.closed {
			return 0, io.ErrClosedPipe
		}
		m.cond.Wait()
	}
}

// Write blocks on send-window exhaustion (ErrWouldBlock) until the
// pump processes a WINDOW_UPDATE restoring credit.
func (s *MuxStream) Write(p []byte) (int, error) {
	m := s.session
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for total < len(p) {
		n, err := s.stream.Write(p[total:])
		total += n
		if err == nil {
			continue
		}
		if errors.Cause(err) == yamux.ErrWouldBlock {
			if m.closed {
				return total, io.ErrClosedPipe
			}
			m.cond.Wait()
			continue
		}
		return total, err
	}
	return total, nil
}

// Close half-closes the stream gracefully.
func (s *MuxStream) Close() error {
	m := s.session
	m.mu.Lock()
	defer m.mu.Unlock()
	err := s.stream.Close(false)
	m.cond.Broadcast()
	return err
}
