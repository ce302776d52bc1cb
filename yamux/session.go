package yamux

import "time"

// Session multiplexes many Streams over a single Transport. It does no
// I/O of its own accord: the embedding application drives it by
// calling Process once per inbound frame, and calls OpenStream,
// AcceptStream, Ping, and Close to originate outbound activity.
//
// Grounded on the vendored smux dependency's Session, with its
// recvLoop/sendLoop goroutines collapsed into the single synchronous
// Process step the protocol's sans-IO design calls for.
type Session struct {
	client    bool
	transport Transport
	config    *Config

	nextStreamID uint32
	streams      *streamTable

	closed             bool
	goAwaySent         bool
	goAwayReceived     bool
	remoteGoAwayReason uint32

	pingOutstanding bool
	pingSentAt      time.Time
	lastPingRTT     time.Duration
}

// NewSession constructs a Session over transport. client selects the
// odd (client) or even (server) half of the stream id space, per spec
// §4.E. A nil config is replaced with DefaultConfig().
func NewSession(transport Transport, client bool, config *Config) (*Session, error) {
	if transport == nil {
		return nil, errorf(ErrInvalid, "transport must not be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	s := &Session{
		transport: transport,
		client:    client,
		config:    config,
		streams:   newStreamTable(),
	}
	if client {
		s.nextStreamID = 1
	} else {
		s.nextStreamID = 2
	}
	return s, nil
}

// IsClient reports whether this session allocates odd-numbered stream
// ids (the client's half of the id space).
func (s *Session) IsClient() bool { return s.client }

// IsClosed reports whether Close has been called locally.
func (s *Session) IsClosed() bool { return s.closed }

// GoAwayReceived reports whether a GO_AWAY has arrived from the peer.
func (s *Session) GoAwayReceived() bool { return s.goAwayReceived }

// NumStreams reports the number of live streams tracked by the
// session.
func (s *Session) NumStreams() int { return s.streams.len() }

// LastPingRTT reports the round-trip time of the most recently
// acknowledged Ping, and whether one has ever completed.
func (s *Session) LastPingRTT() (time.Duration, bool) {
	return s.lastPingRTT, !s.pingSentAt.IsZero() && !s.pingOutstanding
}

func (s *Session) readFull(buf []byte) error {
	n, err := s.transport.Read(buf)
	if err != nil {
		s.closed = true
		return errorf(ErrIO, "transport read failed: %v", err)
	}
	if n != len(buf) {
		s.closed = true
		return errorf(ErrIO, "transport read: got %d bytes, wanted %d", n, len(buf))
	}
	return nil
}

func (s *Session) writeFrame(h header, payload []byte) error {
	buf := make([]byte, headerSize+len(payload))
	copy(buf, h[:])
	copy(buf[headerSize:], payload)
	n, err := s.transport.Write(buf)
	if err != nil {
		s.closed = true
		return errorf(ErrIO, "transport write failed: %v", err)
	}
	if n != len(buf) {
		s.closed = true
		return errorf(ErrIO, "transport write: wrote %d bytes, wanted %d", n, len(buf))
	}
	return nil
}

func (s *Session) sendWindowUpdate(streamID uint32, increment uint32, fl flags) error {
	return s.writeFrame(newHeader(typeWindowUpdate, fl, streamID, 4), encodeUint32(increment))
}

// OpenStream allocates the next id in this session's half of the id
// space, registers it in SYN_SENT, and emits a WINDOW_UPDATE/SYN
// carrying this session's initial advertised window.
func (s *Session) OpenStream() (*Stream, error) {
	if s.closed {
		return nil, errorf(ErrClosed, "session closed")
	}
	if s.goAwayReceived {
		return nil, errorf(ErrClosed, "session received GO_AWAY, cannot open new streams")
	}
	id := s.nextStreamID
	if id == invalidStreamID {
		return nil, errorf(ErrInvalid, "stream id space exhausted")
	}
	s.nextStreamID += 2

	st := newStream(id, s)
	st.state = StateSynSent
	if err := s.streams.insert(st); err != nil {
		return nil, err
	}
	h := newHeader(typeWindowUpdate, flagSYN, id, 4)
	if err := s.writeFrame(h, encodeUint32(s.config.MaxStreamWindowSize)); err != nil {
		s.streams.remove(id)
		return nil, err
	}
	return st, nil
}

// AcceptStream pops the oldest stream waiting on the accept FIFO, or
// returns (nil, nil) if none is queued.
func (s *Session) AcceptStream() (*Stream, error) {
	if s.closed {
		return nil, errorf(ErrClosed, "session closed")
	}
	return s.streams.dequeueAccept(), nil
}

// Ping emits a PING request and records it as outstanding. Completion
// is observed via LastPingRTT once a matching Process call consumes
// the peer's PING/ACK; the protocol tracks only a single outstanding
// ping at a time, matching the reference implementation.
func (s *Session) Ping() error {
	if s.closed {
		return errorf(ErrClosed, "session closed")
	}
	if err := s.writeFrame(newHeader(typePing, flagSYN, 0, 0), nil); err != nil {
		return err
	}
	s.pingOutstanding = true
	s.pingSentAt = time.Now()
	return nil
}

// Close shuts the session down: it emits GO_AWAY with reason, force-
// closes every live stream without further frames, and marks the
// session closed. It is idempotent and best-effort — a failed GO_AWAY
// write does not prevent local state from advancing, per spec §7.
func (s *Session) Close(reason uint32) error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.writeFrame(newHeader(typeGoAway, 0, 0, 4), encodeUint32(reason))
	s.goAwaySent = true
	for _, st := range s.streams.all() {
		st.forceClose()
	}
	s.streams = newStreamTable()
	return nil
}

// Process consumes exactly one inbound frame from the transport and
// dispatches it. Callers drive the session by calling Process in a
// loop (or from whatever scheduler owns the underlying transport).
//
// Once the session has been closed locally, Process refuses further
// work with ErrClosed. Receiving GO_AWAY from the peer does not by
// itself stop Process: existing streams must still be able to drain
// and close normally, so only OpenStream consults goAwayReceived.
func (s *Session) Process() error {
	if s.closed {
		return errorf(ErrClosed, "session closed")
	}
	var hdrBuf [headerSize]byte
	if err := s.readFull(hdrBuf[:]); err != nil {
		return err
	}
	h, err := decodeHeader(hdrBuf[:])
	if err != nil {
		return err
	}
	switch h.Type() {
	case typeData:
		return s.handleData(h)
	case typeWindowUpdate:
		return s.handleWindowUpdate(h)
	case typePing:
		return s.handlePing(h)
	case typeGoAway:
		return s.handleGoAway(h)
	default:
		return errorf(ErrProtocol, "unhandled frame type %s", h.Type())
	}
}

func (s *Session) handleData(h header) error {
	sid := h.StreamID()
	length := h.Length()

	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if err := s.readFull(payload); err != nil {
			return err
		}
	}

	st := s.streams.lookup(sid)
	fl := h.Flags()

	if fl.has(flagRST) {
		if st != nil {
			st.forceClose()
			s.streams.remove(sid)
		}
		return nil
	}
	if st == nil {
		return errorf(ErrInvalidStream, "DATA for unknown stream %d", sid)
	}
	if st.state == StateClosed || st.state == StateFinRecv {
		return errorf(ErrClosed, "DATA on stream %d in state %s", sid, st.state)
	}
	if length > 0 {
		if err := st.recvBuf.write(payload); err != nil {
			return err
		}
		if length > st.recvWindow {
			st.recvWindow = 0
		} else {
			st.recvWindow -= length
		}
	}
	if fl.has(flagFIN) {
		st.applyRemoteFin()
	}
	return nil
}

func (s *Session) handleWindowUpdate(h header) error {
	if h.Length() != 4 {
		return errorf(ErrProtocol, "WINDOW_UPDATE length must be 4, got %d", h.Length())
	}
	var buf [4]byte
	if err := s.readFull(buf[:]); err != nil {
		return err
	}
	value, err := decodeUint32(buf[:])
	if err != nil {
		return err
	}

	sid := h.StreamID()
	fl := h.Flags()
	st := s.streams.lookup(sid)

	if fl.has(flagRST) {
		if st != nil {
			st.forceClose()
			s.streams.remove(sid)
		}
		return nil
	}

	switch {
	case fl.has(flagSYN) && fl.has(flagACK):
		if st == nil {
			return errorf(ErrInvalidStream, "SYN+ACK for unknown stream %d", sid)
		}
		if st.state != StateSynSent {
			return errorf(ErrProtocol, "unexpected SYN+ACK on stream %d in state %s", sid, st.state)
		}
		st.sendWindow = value
		st.state = StateEstablished
		return nil

	case fl.has(flagSYN):
		if st != nil {
			return errorf(ErrProtocol, "duplicate SYN for stream %d", sid)
		}
		if s.streams.acceptLen() >= s.config.AcceptBacklog {
			return s.writeFrame(newHeader(typeData, flagRST, sid, 0), nil)
		}
		ns := newStream(sid, s)
		ns.sendWindow = value
		ns.state = StateSynRecv
		if err := s.streams.insert(ns); err != nil {
			return err
		}
		s.streams.enqueueAccept(ns)
		reply := newHeader(typeWindowUpdate, flagSYN|flagACK, sid, 4)
		if err := s.writeFrame(reply, encodeUint32(s.config.MaxStreamWindowSize)); err != nil {
			return err
		}
		// Treated as ESTABLISHED once our SYN+ACK is sent, matching the
		// reference implementation's common interpretation rather than
		// waiting for the application to call AcceptStream.
		ns.state = StateEstablished
		return nil

	case fl.has(flagFIN):
		if st == nil {
			return errorf(ErrInvalidStream, "FIN for unknown stream %d", sid)
		}
		st.applyRemoteFin()
		if !fl.has(flagACK) {
			return s.sendWindowUpdate(sid, 0, flagFIN|flagACK)
		}
		return nil

	default:
		if st == nil {
			return errorf(ErrInvalidStream, "credit grant for unknown stream %d", sid)
		}
		st.sendWindow += value
		return nil
	}
}

func (s *Session) handlePing(h header) error {
	var payload []byte
	if h.Length() > 0 {
		payload = make([]byte, h.Length())
		if err := s.readFull(payload); err != nil {
			return err
		}
	}
	if h.Flags().has(flagACK) {
		if s.pingOutstanding {
			s.lastPingRTT = time.Since(s.pingSentAt)
			s.pingOutstanding = false
		}
		return nil
	}
	n := len(payload)
	if n > 8 {
		n = 8
	}
	return s.writeFrame(newHeader(typePing, flagACK, 0, uint32(n)), payload[:n])
}

func (s *Session) handleGoAway(h header) error {
	if h.Length() != 4 {
		return errorf(ErrProtocol, "GO_AWAY length must be 4, got %d", h.Length())
	}
	buf := make([]byte, 4)
	if err := s.readFull(buf); err != nil {
		return err
	}
	reason, err := decodeUint32(buf)
	if err != nil {
		return err
	}
	s.goAwayReceived = true
	s.remoteGoAwayReason = reason
	return nil
}
