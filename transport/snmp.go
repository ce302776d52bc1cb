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
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/xtaci/yamux-go/yamux"
)

// SessionLister is satisfied by a session registry that can enumerate the
// yamux sessions currently being served, so SnmpLogger can append
// per-session multiplexing stats (live stream count, last ping RTT)
// alongside the underlying kcp transport's SNMP counters. A nil lister
// disables the yamux columns, preserving the kcp-only CSV shape.
type SessionLister interface {
	// Sessions returns the sessions live at the moment of the call.
	// Implementations must be safe to call concurrently with session
	// creation/teardown.
	Sessions() []*yamux.Session
}

// yamuxHeader names the extra CSV columns SnmpLogger appends when a
// SessionLister is supplied: total live sessions, the sum of their live
// stream counts, and the last ping RTT in milliseconds of one session
// that has completed a ping (which one is unspecified when several
// have; 0 if none has completed a ping yet).
var yamuxHeader = []string{"YamuxSessions", "YamuxStreams", "YamuxLastPingMs"}

func yamuxRow(lister SessionLister) []string {
	if lister == nil {
		return []string{"", "", ""}
	}
	sessions := lister.Sessions()
	streams := 0
	var lastRTT time.Duration
	for _, sess := range sessions {
		streams += sess.NumStreams()
		if rtt, ok := sess.LastPingRTT(); ok {
			lastRTT = rtt
		}
	}
	return []string{
		fmt.Sprint(len(sessions)),
		fmt.Sprint(streams),
		fmt.Sprint(lastRTT.Milliseconds()),
	}
}

// SessionRegistry tracks the live yamux sessions a server or client
// binary is currently serving, so SnmpLogger can report aggregate
// stream/RTT stats across all of them. It implements SessionLister.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[*yamux.Session]struct{}
}

// NewSessionRegistry returns an empty SessionRegistry ready for use.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[*yamux.Session]struct{})}
}

// Add registers sess as live. Callers should Remove it once the
// session's Process loop exits.
func (r *SessionRegistry) Add(sess *yamux.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess] = struct{}{}
}

// Remove unregisters sess. A no-op if sess was never added or was
// already removed.
func (r *SessionRegistry) Remove(sess *yamux.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sess)
}

// Sessions implements SessionLister.
func (r *SessionRegistry) Sessions() []*yamux.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*yamux.Session, 0, len(r.sessions))
	for sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

// SnmpLogger periodically appends a CSV row of kcp transport counters to
// path, widened with yamux session/stream/RTT columns when lister is
// non-nil. lister lets the server and client binaries report how many
// multiplexed streams are actually riding over the logged kcp traffic,
// not just the raw packet counters the teacher logger shipped.
func SnmpLogger(path string, interval int, lister SessionLister) {
	if path == "" || interval == 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// split path into dirname and filename
			logdir, logfile := filepath.Split(path)
			// only format logfile
			f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				log.Println(err)
				return
			}
			w := csv.NewWriter(f)
			// write header in empty file
			if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
				header := append([]string{"Unix"}, kcp.DefaultSnmp.Header()...)
				header = append(header, yamuxHeader...)
				if err := w.Write(header); err != nil {
					log.Println(err)
				}
			}
			row := append([]string{fmt.Sprint(time.Now().Unix())}, kcp.DefaultSnmp.ToSlice()...)
			row = append(row, yamuxRow(lister)...)
			if err := w.Write(row); err != nil {
				log.Println(err)
			}
			// kcp.DefaultSnmp.Reset()
			w.Flush()
			f.Close()
		}
	}
}
