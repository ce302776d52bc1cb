package yamux

import "time"

// Config tunes a Session. Every field has a documented default in
// DefaultConfig; callers typically start from DefaultConfig and
// override only the fields they care about, then pass the result to
// VerifyConfig before handing it to NewSession.
type Config struct {
	// AcceptBacklog caps the number of streams queued in SYN_RECV that
	// have not yet been handed to the application via AcceptStream.
	// Once the backlog is full, a new incoming SYN is refused with RST.
	AcceptBacklog int

	// EnableKeepalive is advisory to a caller operating a timer; the
	// core itself has no timers and never sends keepalive PINGs on its
	// own.
	EnableKeepalive bool

	// KeepaliveInterval is advisory: how often a caller's timer should
	// invoke Session.Ping.
	KeepaliveInterval time.Duration

	// ConnectionWriteTimeout is advisory only; the core does not use
	// it. See spec §9 Design Notes.
	ConnectionWriteTimeout time.Duration

	// MaxStreamWindowSize is the initial recv_window each side
	// advertises on stream open, and the ceiling used when replenishing
	// via WINDOW_UPDATE.
	MaxStreamWindowSize uint32
}

// Default configuration constants, per spec §6.
const (
	defaultAcceptBacklog          = 256
	defaultEnableKeepalive        = true
	defaultConnectionWriteTimeout = 30 * time.Second
	defaultKeepaliveInterval      = 60 * time.Second

	// DefaultMaxStreamWindowSize is 256 KiB, the initial and ceiling
	// recv_window for every stream under default configuration.
	DefaultMaxStreamWindowSize = 256 * 1024

	// maxFramePayload bounds a single DATA frame's payload; larger
	// writes are fragmented across multiple frames.
	maxFramePayload = 16384

	// MaxFramePayload is maxFramePayload exported for callers outside
	// the package (e.g. transport.Copy) that want to size their own
	// buffers to match a single DATA frame rather than guessing.
	MaxFramePayload = maxFramePayload
)

// DefaultConfig returns a Config populated with the protocol's baseline
// constants.
func DefaultConfig() *Config {
	return &Config{
		AcceptBacklog:          defaultAcceptBacklog,
		EnableKeepalive:        defaultEnableKeepalive,
		KeepaliveInterval:      defaultKeepaliveInterval,
		ConnectionWriteTimeout: defaultConnectionWriteTimeout,
		MaxStreamWindowSize:    DefaultMaxStreamWindowSize,
	}
}

// VerifyConfig checks a Config for internally consistent values before
// it is used to build a Session.
func VerifyConfig(config *Config) error {
	if config == nil {
		return errorf(ErrInvalid, "config must not be nil")
	}
	if config.AcceptBacklog <= 0 {
		return errorf(ErrInvalid, "accept backlog must be positive")
	}
	if config.MaxStreamWindowSize == 0 {
		return errorf(ErrInvalid, "max stream window size must be positive")
	}
	if config.MaxStreamWindowSize < 1024 {
		return errorf(ErrInvalid, "max stream window size must be at least 1024 bytes")
	}
	if config.EnableKeepalive && config.KeepaliveInterval <= 0 {
		return errorf(ErrInvalid, "keepalive interval must be positive when keepalive is enabled")
	}
	return nil
}
