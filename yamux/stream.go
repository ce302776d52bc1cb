package yamux

// State is a stream's position in the lifecycle state machine
// described by spec §4.D.
type State uint8

const (
	StateIdle State = iota
	StateSynSent
	StateSynRecv
	StateEstablished
	StateFinSent
	StateFinRecv
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynRecv:
		return "SYN_RECV"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinSent:
		return "FIN_SENT"
	case StateFinRecv:
		return "FIN_RECV"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Stream is one multiplexed, flow-controlled byte stream within a
// Session. It is never constructed directly; obtain one from
// Session.OpenStream or Session.AcceptStream.
//
// Grounded on the vendored smux dependency's stream.go for field shape
// (id, state, a receive buffer, send/recv windows), reworked from its
// goroutine/channel model into the synchronous one Session.Process
// drives.
type Stream struct {
	id      uint32
	session *Session

	state State

	recvBuf    *buffer
	sendWindow uint32
	recvWindow uint32
}

func newStream(id uint32, session *Session) *Stream {
	return &Stream{
		id:         id,
		session:    session,
		state:      StateIdle,
		recvBuf:    newBuffer(4096),
		recvWindow: session.config.MaxStreamWindowSize,
	}
}

// ID returns the stream's 32-bit identifier.
func (s *Stream) ID() uint32 { return s.id }

// State returns the stream's current lifecycle state.
func (s *Stream) State() State { return s.state }

// SendWindow reports the number of bytes the stream may still write
// before a write would block.
func (s *Stream) SendWindow() uint32 { return s.sendWindow }

// Write fragments p into frames no larger than maxFramePayload and
// emits them as DATA frames, consuming send window as it goes. It
// writes at most SendWindow() bytes: if p is larger than a non-zero
// window currently allows, Write returns a short count with a nil error
// rather than blocking, since the engine has no notion of waiting for
// credit to arrive short of another Process call. When the window is
// already zero it returns 0 and ErrWouldBlock.
func (s *Stream) Write(p []byte) (n int, err error) {
	if s.state == StateClosed || s.state == StateFinSent || s.state == StateFinRecv {
		return 0, errorf(ErrClosed, "write on stream %d in state %s", s.id, s.state)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.sendWindow == 0 {
		return 0, ErrWouldBlock
	}
	allow := uint32(len(p))
	if allow > s.sendWindow {
		allow = s.sendWindow
	}
	for uint32(n) < allow {
		chunk := int(allow) - n
		if chunk > maxFramePayload {
			chunk = maxFramePayload
		}
		h := newHeader(typeData, 0, s.id, uint32(chunk))
		if werr := s.session.writeFrame(h, p[n:n+chunk]); werr != nil {
			return n, werr
		}
		s.sendWindow -= uint32(chunk)
		n += chunk
	}
	return n, nil
}

// Read drains buffered, already-received data into dst. It never
// triggers a transport read itself; new data only arrives via
// Session.Process. A successful read of n > 0 bytes replenishes the
// stream's advertised recv window by emitting a WINDOW_UPDATE with
// increment n, tying flow-control credit to actual consumption rather
// than to raw frame arrival.
//
// Read returns (0, nil) when the buffer is empty and the peer has not
// yet half-closed: callers are expected to call Session.Process and
// retry, the way the reference implementation's stream_read does for
// its EWOULDBLOCK case. It returns (0, nil) once the peer has sent FIN
// and the buffer has drained (EOF), and ErrClosed once the stream
// itself is fully CLOSED with nothing left buffered.
func (s *Stream) Read(dst []byte) (int, error) {
	if s.recvBuf.Len() > 0 {
		n := s.recvBuf.read(dst)
		s.recvWindow += uint32(n)
		if s.recvWindow > s.session.config.MaxStreamWindowSize {
			s.recvWindow = s.session.config.MaxStreamWindowSize
		}
		if err := s.session.sendWindowUpdate(s.id, uint32(n), 0); err != nil {
			return n, err
		}
		return n, nil
	}
	if s.state == StateClosed {
		return 0, errorf(ErrClosed, "read on closed stream %d", s.id)
	}
	return 0, nil
}

// Close ends the stream. With reset=false it performs a graceful
// half-close (or full close if the peer has already half-closed),
// emitting FIN regardless of whether the stream ever reached
// ESTABLISHED. With reset=true it emits RST and closes immediately,
// regardless of current state. Close is idempotent: closing an already
// CLOSED stream is a no-op, and closing a stream that already sent FIN
// does not re-emit it. Per spec §7, close is a best-effort emitter:
// local state always advances even if the underlying write fails.
func (s *Stream) Close(reset bool) error {
	if s.state == StateClosed {
		return nil
	}
	if reset {
		err := s.session.writeFrame(newHeader(typeData, flagRST, s.id, 0), nil)
		s.state = StateClosed
		s.session.streams.remove(s.id)
		return err
	}
	switch s.state {
	case StateIdle, StateSynSent, StateSynRecv, StateEstablished:
		err := s.session.sendWindowUpdate(s.id, 0, flagFIN)
		s.state = StateFinSent
		return err
	case StateFinRecv:
		err := s.session.sendWindowUpdate(s.id, 0, flagFIN)
		s.state = StateClosed
		s.session.streams.remove(s.id)
		return err
	default:
		// StateFinSent: FIN already sent, nothing further to emit.
		return nil
	}
}

// forceClose drops the stream to CLOSED without emitting any frame,
// used when a peer RST arrives or the owning session tears down.
func (s *Stream) forceClose() {
	s.state = StateClosed
}

// applyRemoteFin advances state on receipt of a FIN flag, per the
// state table in spec §4.D. A FIN on an already FIN_RECV or CLOSED
// stream is ignored rather than treated as a protocol error, since a
// retransmitted control frame should not be fatal.
func (s *Stream) applyRemoteFin() {
	switch s.state {
	case StateEstablished:
		s.state = StateFinRecv
	case StateFinSent:
		s.state = StateClosed
		s.session.streams.remove(s.id)
	}
}
