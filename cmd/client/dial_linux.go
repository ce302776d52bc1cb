//go:build linux

package main

import (
	"net"

	"github.com/pkg/errors"
	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/tcpraw"
)

// dial establishes the raw kcp.UDPSession that createConn wraps into a
// yamux session via transport.NewMuxSession. Every multiplexed Stream the
// caller ever opens rides over whichever transport is chosen here, so a
// failure at this layer fails the whole session, not one stream.
func dial(config *Config, block kcp.BlockCrypt) (*kcp.UDPSession, error) {
	if config.TCP {
		conn, err := tcpraw.Dial("tcp", config.RemoteAddr)
		if err != nil {
			return nil, errors.Wrap(err, "tcpraw.Dial()")
		}
		raddr, err := net.ResolveTCPAddr("tcp", config.RemoteAddr)
		if err != nil {
			return nil, errors.Wrap(err, "net.ResolveTCPAddr()")
		}
		return kcp.NewConn3(0, raddr, block, config.DataShard, config.ParityShard, conn)
	}
	return kcp.DialWithOptions(config.RemoteAddr, block, config.DataShard, config.ParityShard)
}
