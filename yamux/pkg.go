// Package yamux implements a portable stream-multiplexing protocol: a
// binary framing layer that exposes many bidirectional byte streams over
// a single reliable, ordered transport.
//
// The protocol is symmetric between endpoints, distinguished only by a
// client/server role bit controlling stream-id parity and initiation
// conventions. It provides per-stream flow control via a credit window,
// stream lifecycle signaling (SYN/ACK/FIN/RST), session liveness (PING),
// and graceful termination (GO_AWAY).
//
// The package owns no transport of its own: callers supply a pair of
// read/write callbacks (see Transport) and drive the session by
// repeatedly invoking Session.Process, which consumes exactly one
// inbound frame per call. This mirrors a sans-IO design: the session is
// single-threaded from its own perspective and performs no background
// work, so it can be wrapped around blocking sockets, pipes, or a
// cooperative scheduler without modification.
package yamux
