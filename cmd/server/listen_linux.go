//go:build linux

package main

import (
	"github.com/pkg/errors"
	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/tcpraw"
)

func listenUDP(addr string, config *Config, block kcp.BlockCrypt) (*kcp.Listener, error) {
	return kcp.ListenWithOptions(addr, block, config.DataShard, config.ParityShard)
}

// maybeListenTCP stands up an additional tcpraw-emulated TCP listener
// alongside the plain UDP one when config.TCP is set.
func maybeListenTCP(addr string, config *Config, block kcp.BlockCrypt) (*kcp.Listener, bool, error) {
	if !config.TCP {
		return nil, false, nil
	}
	conn, err := tcpraw.Listen("tcp", addr)
	if err != nil {
		return nil, false, errors.Wrap(err, "tcpraw.Listen()")
	}
	lis, err := kcp.ServeConn(block, config.DataShard, config.ParityShard, conn)
	if err != nil {
		return nil, false, errors.Wrap(err, "kcp.ServeConn()")
	}
	return lis, true, nil
}
