// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package transport

import (
	"time"

	"github.com/xtaci/yamux-go/yamux"
)

// DefaultStreamWindow is the flag default for -streamwindow, mirroring
// the yamux package's own default flow-control window.
const DefaultStreamWindow = yamux.DefaultMaxStreamWindowSize

// BuildSessionConfig constructs a yamux.Config from CLI parameters and
// verifies the result. Callers can log or wrap the returned error for
// better diagnostics.
func BuildSessionConfig(maxStreamWindowSize, acceptBacklog, keepAliveSeconds int) (*yamux.Config, error) {
	cfg := yamux.DefaultConfig()
	cfg.MaxStreamWindowSize = uint32(maxStreamWindowSize)
	cfg.AcceptBacklog = acceptBacklog
	cfg.KeepaliveInterval = time.Duration(keepAliveSeconds) * time.Second
	cfg.EnableKeepalive = keepAliveSeconds > 0

	return cfg, yamux.VerifyConfig(cfg)
}
