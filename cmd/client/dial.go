//go:build !linux

package main

import kcp "github.com/xtaci/kcp-go/v5"

// dial establishes the raw kcp.UDPSession that createConn then hands to
// transport.NewMuxSession; this platform lacks the tcpraw-based TCP
// disguise mode dial_linux.go offers, so it only ever dials plain UDP.
func dial(config *Config, block kcp.BlockCrypt) (*kcp.UDPSession, error) {
	return kcp.DialWithOptions(config.RemoteAddr, block, config.DataShard, config.ParityShard)
}
