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

package main

import (
	"crypto/sha1"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/fatih/color"
	"github.com/urfave/cli"
	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/yamux-go/transport"
)

const (
	// SALT is used as the PBKDF2 salt while deriving the shared session key.
	SALT = "kcp-go"
)

const (
	tgtUnix = iota
	tgtTCP
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

// sessionRegistry tracks every yamux session this server is currently
// terminating, so SnmpLogger can report aggregate stream counts and
// ping RTTs alongside the raw kcp SNMP counters.
var sessionRegistry = transport.NewSessionRegistry()

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "yamux-go-server"
	myApp.Usage = "server (with native stream multiplexing)"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen,l",
			Value: ":29900",
			Usage: `kcp server listen address, eg: "IP:29900" for a single port, "IP:minport-maxport" for port range`,
		},
		cli.StringFlag{
			Name:  "target, t",
			Value: "127.0.0.1:12948",
			Usage: "target server address, or path/to/unix_socket",
		},
		cli.StringFlag{
			Name:   "key",
			Value:  "it's a secrect",
			Usage:  "pre-shared secret between client and server",
			EnvVar: "YAMUX_KEY",
		},
		cli.StringFlag{
			Name:  "crypt",
			Value: "aes",
			Usage: "aes, aes-128, aes-128-gcm, aes-192, salsa20, blowfish, twofish, cast5, 3des, tea, xtea, xor, sm4, none, null",
		},
		cli.StringFlag{
			Name:  "mode",
			Value: "fast",
			Usage: "profiles: fast3, fast2, fast, normal, manual",
		},
		cli.IntFlag{
			Name:  "mtu",
			Value: 1350,
			Usage: "set maximum transmission unit for UDP packets",
		},
		cli.IntFlag{
			Name:  "ratelimit",
			Value: 0,
			Usage: "set maximum outgoing speed (in bytes per second) for a single KCP connection, 0 to disable",
		},
		cli.IntFlag{
			Name:  "sndwnd",
			Value: 1024,
			Usage: "set send window size(num of packets)",
		},
		cli.IntFlag{
			Name:  "rcvwnd",
			Value: 1024,
			Usage: "set receive window size(num of packets)",
		},
		cli.IntFlag{
			Name:  "datashard,ds",
			Value: 10,
			Usage: "set reed-solomon erasure coding - datashard",
		},
		cli.IntFlag{
			Name:  "parityshard,ps",
			Value: 3,
			Usage: "set reed-solomon erasure coding - parityshard",
		},
		cli.IntFlag{
			Name:  "dscp",
			Value: 0,
			Usage: "set DSCP(6bit)",
		},
		cli.BoolFlag{
			Name:  "nocomp",
			Usage: "disable compression",
		},
		cli.BoolFlag{
			Name:   "acknodelay",
			Usage:  "flush ack immediately when a packet is received",
			Hidden: true,
		},
		cli.IntFlag{Name: "nodelay", Value: 0, Hidden: true},
		cli.IntFlag{Name: "interval", Value: 50, Hidden: true},
		cli.IntFlag{Name: "resend", Value: 0, Hidden: true},
		cli.IntFlag{Name: "nc", Value: 0, Hidden: true},
		cli.IntFlag{
			Name:  "sockbuf",
			Value: 4194304,
			Usage: "per-socket buffer in bytes",
		},
		cli.IntFlag{
			Name:  "streamwindow",
			Value: int(transport.DefaultStreamWindow),
			Usage: "per-stream flow-control window in bytes",
		},
		cli.IntFlag{
			Name:  "acceptbacklog",
			Value: 256,
			Usage: "maximum number of streams queued for Accept before new SYNs are refused",
		},
		cli.IntFlag{
			Name:  "keepalive",
			Value: 10,
			Usage: "keepalive interval in seconds recorded in the session config (0 disables); no periodic heartbeat is sent",
		},
		cli.IntFlag{
			Name:  "closewait",
			Value: 30,
			Usage: "accepted for configuration compatibility; has no effect, connections are torn down as soon as the pipe ends",
		},
		cli.StringFlag{
			Name:  "snmplog",
			Value: "",
			Usage: "collect snmp to file, aware of timeformat in golang, like: ./snmp-20060102.log",
		},
		cli.IntFlag{
			Name:  "snmpperiod",
			Value: 60,
			Usage: "snmp collect period, in seconds",
		},
		cli.BoolFlag{
			Name:  "pprof",
			Usage: "start profiling server on :6060",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.BoolFlag{
			Name:  "quiet",
			Usage: "to suppress the 'stream open/close' messages",
		},
		cli.BoolFlag{
			Name:  "tcp",
			Usage: "to emulate a TCP connection(linux)",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		config := Config{}
		config.Listen = c.String("listen")
		config.Target = c.String("target")
		config.Key = c.String("key")
		config.Crypt = c.String("crypt")
		config.Mode = c.String("mode")
		config.MTU = c.Int("mtu")
		config.RateLimit = c.Int("ratelimit")
		config.SndWnd = c.Int("sndwnd")
		config.RcvWnd = c.Int("rcvwnd")
		config.DataShard = c.Int("datashard")
		config.ParityShard = c.Int("parityshard")
		config.DSCP = c.Int("dscp")
		config.NoComp = c.Bool("nocomp")
		config.AckNodelay = c.Bool("acknodelay")
		config.NoDelay = c.Int("nodelay")
		config.Interval = c.Int("interval")
		config.Resend = c.Int("resend")
		config.NoCongestion = c.Int("nc")
		config.SockBuf = c.Int("sockbuf")
		config.StreamWindow = c.Int("streamwindow")
		config.AcceptBacklog = c.Int("acceptbacklog")
		config.KeepAlive = c.Int("keepalive")
		config.CloseWait = c.Int("closewait")
		config.Log = c.String("log")
		config.SnmpLog = c.String("snmplog")
		config.SnmpPeriod = c.Int("snmpperiod")
		config.Pprof = c.Bool("pprof")
		config.Quiet = c.Bool("quiet")
		config.TCP = c.Bool("tcp")

		if c.String("c") != "" {
			checkError(parseJSONConfig(&config, c.String("c")))
		}

		if config.RateLimit < 0 {
			log.Printf("ratelimit %d is negative, falling back to 0", config.RateLimit)
			config.RateLimit = 0
		}

		if config.Log != "" {
			f, err := os.OpenFile(config.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			checkError(err)
			defer f.Close()
			log.SetOutput(f)
		}

		switch config.Mode {
		case "normal":
			config.NoDelay, config.Interval, config.Resend, config.NoCongestion = 0, 40, 2, 1
		case "fast":
			config.NoDelay, config.Interval, config.Resend, config.NoCongestion = 0, 30, 2, 1
		case "fast2":
			config.NoDelay, config.Interval, config.Resend, config.NoCongestion = 1, 20, 2, 1
		case "fast3":
			config.NoDelay, config.Interval, config.Resend, config.NoCongestion = 1, 10, 2, 1
		}

		log.Println("version:", VERSION)
		log.Println("listening on:", config.Listen)
		log.Println("target:", config.Target)
		log.Println("encryption:", config.Crypt)
		log.Println("nodelay parameters:", config.NoDelay, config.Interval, config.Resend, config.NoCongestion)
		log.Println("sndwnd:", config.SndWnd, "rcvwnd:", config.RcvWnd)
		log.Println("compression:", !config.NoComp)
		log.Println("mtu:", config.MTU)
		log.Println("ratelimit:", config.RateLimit)
		log.Println("datashard:", config.DataShard, "parityshard:", config.ParityShard)
		log.Println("acknodelay:", config.AckNodelay)
		log.Println("dscp:", config.DSCP)
		log.Println("sockbuf:", config.SockBuf)
		log.Println("streamwindow:", config.StreamWindow)
		log.Println("acceptbacklog:", config.AcceptBacklog)
		log.Println("keepalive:", config.KeepAlive)
		log.Println("snmplog:", config.SnmpLog)
		log.Println("snmpperiod:", config.SnmpPeriod)
		log.Println("pprof:", config.Pprof)
		log.Println("quiet:", config.Quiet)
		log.Println("tcp:", config.TCP)

		if config.StreamWindow < config.AcceptBacklog*1024 {
			color.Red("WARNING: streamwindow (%d) is small relative to acceptbacklog (%d); a full backlog of freshly accepted streams may stall waiting for window credit.", config.StreamWindow, config.AcceptBacklog)
		}

		log.Println("initiating key derivation")
		pass := pbkdf2.Key([]byte(config.Key), []byte(SALT), 4096, 32, sha1.New)
		log.Println("key derivation done")
		block, effectiveCrypt := transport.SelectBlockCrypt(config.Crypt, pass)
		config.Crypt = effectiveCrypt
		if transport.IsWeakCrypt(config.Crypt) {
			color.Red("WARNING: crypt=%s leaves every multiplexed stream's traffic effectively unencrypted.", config.Crypt)
		}

		go transport.SnmpLogger(config.SnmpLog, config.SnmpPeriod, sessionRegistry)

		if config.Pprof {
			go http.ListenAndServe(":6060", nil)
		}

		var wg sync.WaitGroup
		loop := func(lis *kcp.Listener) {
			defer wg.Done()
			if err := lis.SetDSCP(config.DSCP); err != nil {
				log.Println("SetDSCP:", err)
			}
			if err := lis.SetReadBuffer(config.SockBuf); err != nil {
				log.Println("SetReadBuffer:", err)
			}
			if err := lis.SetWriteBuffer(config.SockBuf); err != nil {
				log.Println("SetWriteBuffer:", err)
			}

			for {
				conn, err := lis.AcceptKCP()
				if err != nil {
					log.Printf("%+v", err)
					continue
				}
				log.Println("remote address:", conn.RemoteAddr())
				conn.SetStreamMode(true)
				conn.SetWriteDelay(false)
				conn.SetNoDelay(config.NoDelay, config.Interval, config.Resend, config.NoCongestion)
				conn.SetMtu(config.MTU)
				conn.SetWindowSize(config.SndWnd, config.RcvWnd)
				conn.SetACKNoDelay(config.AckNodelay)
				conn.SetRateLimit(uint32(config.RateLimit))

				if config.NoComp {
					go handleSession(conn, &config)
				} else {
					go handleSession(transport.NewCompStream(conn), &config)
				}
			}
		}

		mp, err := transport.ParseMultiPort(config.Listen)
		if err != nil {
			log.Println(err)
			return err
		}
		log.Printf("multiport: %d port(s), each terminating its own yamux session", mp.PortCount())

		for port := mp.MinPort; port <= mp.MaxPort; port++ {
			listenAddr := fmt.Sprintf("%v:%v", mp.Host, port)
			if tcpLis, ok, err := maybeListenTCP(listenAddr, &config, block); err != nil {
				log.Println(err)
			} else if ok {
				log.Printf("Listening on: %v/tcp", listenAddr)
				wg.Add(1)
				go loop(tcpLis)
			}

			log.Printf("Listening on: %v/udp", listenAddr)
			lis, err := listenUDP(listenAddr, &config, block)
			checkError(err)
			wg.Add(1)
			go loop(lis)
		}

		wg.Wait()
		return nil
	}
	myApp.Run(os.Args)
}

// handleSession terminates a KCP connection, accepts multiplexed streams,
// and forwards each to the configured TCP or UNIX target.
func handleSession(conn net.Conn, config *Config) {
	targetType := tgtTCP
	if _, _, err := net.SplitHostPort(config.Target); err != nil {
		targetType = tgtUnix
	}
	log.Println("session on connection:", conn.LocalAddr(), "->", conn.RemoteAddr())

	sessionConfig, err := transport.BuildSessionConfig(config.StreamWindow, config.AcceptBacklog, config.KeepAlive)
	if err != nil {
		log.Println(err)
		conn.Close()
		return
	}

	session, err := transport.NewMuxSession(conn, false, sessionConfig)
	if err != nil {
		log.Println(err)
		conn.Close()
		return
	}
	defer session.Close()

	sessionRegistry.Add(session.Raw())
	defer sessionRegistry.Remove(session.Raw())

	for {
		stream, err := session.AcceptStream()
		if err != nil {
			log.Println(err)
			return
		}

		go func(p1 *transport.MuxStream) {
			var p2 net.Conn
			var err error
			switch targetType {
			case tgtTCP:
				p2, err = net.Dial("tcp", config.Target)
			case tgtUnix:
				p2, err = net.Dial("unix", config.Target)
			}
			if err != nil {
				log.Println(err)
				p1.Close()
				return
			}
			handleClient(p1, p2, config.Quiet)
		}(stream)
	}
}

// handleClient bridges a multiplexed stream to the upstream target.
func handleClient(p1 *transport.MuxStream, p2 net.Conn, quiet bool) {
	logln := func(v ...any) {
		if !quiet {
			log.Println(v...)
		}
	}

	defer p1.Close()
	defer p2.Close()

	logln("stream opened", "id:", p1.ID(), "out:", p2.RemoteAddr())
	defer logln("stream closed", "id:", p1.ID(), "out:", p2.RemoteAddr())

	err1, err2 := transport.Pipe(p1, p2)
	if err1 != nil && err1 != io.EOF {
		logln("pipe:", err1, "id:", p1.ID())
	}
	if err2 != nil && err2 != io.EOF {
		logln("pipe:", err2, "id:", p1.ID())
	}
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
