package yamux

// streamTable maps a 32-bit stream id to its owning *Stream. It also
// owns the accept FIFO: streams that entered SYN_RECV but have not yet
// been handed to the application via AcceptStream.
//
// A plain map satisfies the O(1)-amortized insert/lookup contract spec
// §4.C asks for; the design notes call out that a compacted array with
// linear scan (the reference implementation's approach) or a hash map
// are equally conforming, so this favors the map for clarity, the way
// the vendored smux dependency keeps `streams map[uint32]*Stream`
// rather than a scanned array.
type streamTable struct {
	byID   map[uint32]*Stream
	accept []*Stream // FIFO: append at tail, pop from head
}

func newStreamTable() *streamTable {
	return &streamTable{
		byID: make(map[uint32]*Stream),
	}
}

// insert adds s to the table, failing with ErrInvalid if its id is
// already present.
func (t *streamTable) insert(s *Stream) error {
	if _, exists := t.byID[s.id]; exists {
		return errorf(ErrInvalid, "stream %d already registered", s.id)
	}
	t.byID[s.id] = s
	return nil
}

// lookup returns the stream for id, or nil if absent.
func (t *streamTable) lookup(id uint32) *Stream {
	return t.byID[id]
}

// remove deletes id from the table. It is idempotent: removing an
// absent id reports ErrInvalid but leaves the table unchanged.
func (t *streamTable) remove(id uint32) error {
	if _, ok := t.byID[id]; !ok {
		return errorf(ErrInvalid, "stream %d not present", id)
	}
	delete(t.byID, id)
	return nil
}

func (t *streamTable) len() int { return len(t.byID) }

// enqueueAccept appends s to the tail of the accept FIFO. Callers must
// have already checked the backlog cap.
func (t *streamTable) enqueueAccept(s *Stream) {
	t.accept = append(t.accept, s)
}

// dequeueAccept pops the head of the accept FIFO, or returns nil if
// empty.
func (t *streamTable) dequeueAccept() *Stream {
	if len(t.accept) == 0 {
		return nil
	}
	s := t.accept[0]
	t.accept = t.accept[1:]
	return s
}

func (t *streamTable) acceptLen() int { return len(t.accept) }

// all returns every live stream, used by Session.Close to tear them all
// down. Order is unspecified.
func (t *streamTable) all() []*Stream {
	out := make([]*Stream, 0, len(t.byID))
	for _, s := range t.byID {
		out = append(out, s)
	}
	return out
}
