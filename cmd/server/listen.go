//go:build !linux

package main

import kcp "github.com/xtaci/kcp-go/v5"

func listenUDP(addr string, config *Config, block kcp.BlockCrypt) (*kcp.Listener, error) {
	return kcp.ListenWithOptions(addr, block, config.DataShard, config.ParityShard)
}

// maybeListenTCP emulates a TCP listener via tcpraw on linux only; on every
// other platform the dual-stack TCP path is simply unavailable.
func maybeListenTCP(addr string, config *Config, block kcp.BlockCrypt) (*kcp.Listener, bool, error) {
	return nil, false, nil
}
