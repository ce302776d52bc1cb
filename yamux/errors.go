package yamux

import "github.com/pkg/errors"

// Sentinel errors for the error kinds described by the protocol
// specification. Call sites that need to distinguish a kind should
// compare against these with errors.Cause / errors.Is after a call
// returns a wrapped error.
var (
	// ErrInvalid reports an argument validation failure.
	ErrInvalid = errors.New("yamux: invalid argument")

	// ErrOutOfMemory reports an allocation failure.
	ErrOutOfMemory = errors.New("yamux: out of memory")

	// ErrIO reports that the transport read or write callback failed
	// or returned fewer bytes than requested.
	ErrIO = errors.New("yamux: transport i/o error")

	// ErrClosed reports that the session or stream is no longer usable
	// for the attempted operation.
	ErrClosed = errors.New("yamux: closed")

	// ErrTimeout reports that no item was available for a non-blocking
	// accept.
	ErrTimeout = errors.New("yamux: timeout")

	// ErrProtocol reports that the remote sent a frame violating the
	// wire format.
	ErrProtocol = errors.New("yamux: protocol error")

	// ErrInternal reports a post-condition violation inside the core
	// itself.
	ErrInternal = errors.New("yamux: internal error")

	// ErrInvalidStream reports that a frame referenced a stream id not
	// present in the session's stream table.
	ErrInvalidStream = errors.New("yamux: invalid stream")

	// ErrWouldBlock reports that the send window is exhausted, or that
	// a non-blocking transport signalled it would have blocked.
	ErrWouldBlock = errors.New("yamux: would block")
)

// errorf wraps a sentinel error kind with a formatted message, keeping
// the sentinel recoverable via errors.Cause.
func errorf(kind error, format string, args ...interface{}) error {
	return errors.Wrapf(kind, format, args...)
}
