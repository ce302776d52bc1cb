package yamux

import (
	"testing"

	"github.com/pkg/errors"
)

func TestDefaultConfigVerifies(t *testing.T) {
	if err := VerifyConfig(DefaultConfig()); err != nil {
		t.Fatalf("VerifyConfig(DefaultConfig()): %v", err)
	}
}

func TestVerifyConfigRejectsNil(t *testing.T) {
	if err := VerifyConfig(nil); errors.Cause(err) != ErrInvalid {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestVerifyConfigRejectsBadAcceptBacklog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AcceptBacklog = 0
	if err := VerifyConfig(cfg); errors.Cause(err) != ErrInvalid {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestVerifyConfigRejectsTinyWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxStreamWindowSize = 100
	if err := VerifyConfig(cfg); errors.Cause(err) != ErrInvalid {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestVerifyConfigRejectsZeroKeepaliveWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableKeepalive = true
	cfg.KeepaliveInterval = 0
	if err := VerifyConfig(cfg); errors.Cause(err) != ErrInvalid {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}
