//go:build linux || darwin || freebsd

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	kcp "github.com/xtaci/kcp-go/v5"
)

func init() {
	go sigHandler()
}

func sigHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	signal.Ignore(syscall.SIGPIPE)

	for range ch {
		log.Printf("KCP SNMP:%+v", kcp.DefaultSnmp.Copy())
		for _, sess := range sessionRegistry.Sessions() {
			rtt, ok := sess.LastPingRTT()
			log.Printf("yamux session: streams=%d lastPingRTT=%v(known=%v)", sess.NumStreams(), rtt, ok)
		}
	}
}
