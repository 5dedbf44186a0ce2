package main

import (
	"log"
	"net"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/findstr/silly-sub001/debug"
	"github.com/findstr/silly-sub001/generic"
	"github.com/findstr/silly-sub001/silly"
	"github.com/findstr/silly-sub001/socket"
	"github.com/findstr/silly-sub001/std"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "sillyd"
	app.Usage = "socket/timer/worker core daemon"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen, l",
			Value: ":7000",
			Usage: `address to accept TCP connections on, "host:port" or "host:minport-maxport"`,
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "path to a JSON config file overlaying the built-in defaults",
		},
		cli.StringFlag{
			Name:  "debugaddr",
			Usage: "if set, serve the smux introspection channel (sockets/timers dumps) on this address",
		},
		cli.StringFlag{
			Name:  "kcpaddr",
			Usage: "if set, also accept reliable-UDP (KCP) sessions on this address",
		},
		cli.BoolFlag{
			Name:  "kcpbatch",
			Usage: "serve -kcpaddr over a batched x/net/ipv4 PacketConn instead of kcp-go's plain one",
		},
		cli.StringFlag{
			Name:  "kcpdialaddr",
			Usage: "if set, dial out a reliable-UDP (KCP) session to this address at startup",
		},
		cli.StringFlag{
			Name:  "kcprawaddr",
			Usage: "if set, also accept KCP-over-raw-TCP (xtaci/tcpraw) sessions on this address",
		},
		cli.StringFlag{
			Name:  "kcprawdialaddr",
			Usage: "if set, dial out a KCP-over-raw-TCP session to this address at startup",
		},
		cli.StringFlag{
			Name:  "qppkey",
			Usage: "if set, obfuscate every accepted TCP connection's bytes with this xtaci/qpp key",
		},
		cli.BoolFlag{
			Name:  "daemon",
			Usage: "detach and rebind stdio to /tmp/sillyd-<pid>.log",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.Bool("daemon") {
		if err := std.Daemonize("sillyd"); err != nil {
			return err
		}
	}

	cfg, err := silly.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	cfg.Daemon = c.Bool("daemon")

	rt, err := silly.New(cfg)
	if err != nil {
		return err
	}

	listenAddr := c.String("listen")
	debugAddr := c.String("debugaddr")
	kcpAddr := c.String("kcpaddr")
	kcpBatch := c.Bool("kcpbatch")
	kcpDialAddr := c.String("kcpdialaddr")
	kcpRawAddr := c.String("kcprawaddr")
	kcpRawDialAddr := c.String("kcprawdialaddr")

	qppKey := c.String("qppkey")

	rt.Launch(func(msg *generic.Message) {
		switch msg.Kind {
		case generic.KindListenOK:
			log.Printf("listening sid=%d", msg.SID)
		case generic.KindAccept:
			log.Printf("accept sid=%d", msg.SID)
			if qppKey != "" {
				if serr := rt.Socket.SetQPP(msg.SID, socket.NewQPPCodec([]byte(qppKey), 16)); serr != nil {
					log.Printf("set qpp sid=%d: %v", msg.SID, serr)
				}
			}
		case generic.KindConnectOK:
			log.Printf("connected sid=%d", msg.SID)
		case generic.KindTCPData:
			// Demo bootstrap: echo whatever arrives back to the sender.
			if err := rt.Socket.Send(msg.SID, msg.Payload); err != nil {
				log.Printf("send sid=%d: %v", msg.SID, err)
			}
		case generic.KindUDPData:
			log.Printf("udp data sid=%d bytes=%d", msg.SID, len(msg.Payload))
		case generic.KindClose:
			log.Printf("close sid=%d errno=%d", msg.SID, msg.Errno)
		case generic.KindSignal:
			log.Printf("signal %d received, shutting down", msg.UserData)
			rt.Exit(0)
		case generic.KindTimerFire:
			log.Printf("timer fired userdata=%d", msg.UserData)
		}
	})

	if sid, serr := rt.Socket.Listen(listenAddr, socket.ProtoTCP); serr != nil {
		color.Red("listen %s: %v", listenAddr, serr)
	} else {
		log.Printf("listening on %s (sid=%d)", listenAddr, sid)
	}

	if kcpAddr != "" {
		var sid uint32
		var serr *silly.Error
		if kcpBatch {
			sid, serr = rt.Socket.ListenKCPBatched(kcpAddr, 0, 0)
		} else {
			sid, serr = rt.Socket.ListenKCP(kcpAddr, 0, 0)
		}
		if serr != nil {
			color.Red("kcp listen %s: %v", kcpAddr, serr)
		} else {
			log.Printf("kcp listening on %s (sid=%d, batch=%v)", kcpAddr, sid, kcpBatch)
		}
	}

	if kcpDialAddr != "" {
		if sid, serr := rt.Socket.ConnectKCP(kcpDialAddr, 0, 0); serr != nil {
			color.Red("kcp dial %s: %v", kcpDialAddr, serr)
		} else {
			log.Printf("kcp dialing %s (sid=%d)", kcpDialAddr, sid)
		}
	}

	if kcpRawAddr != "" {
		if sid, serr := rt.Socket.ListenKCPOverTCP(kcpRawAddr, 0, 0); serr != nil {
			color.Red("kcp-over-raw-tcp listen %s: %v", kcpRawAddr, serr)
		} else {
			log.Printf("kcp-over-raw-tcp listening on %s (sid=%d)", kcpRawAddr, sid)
		}
	}

	if kcpRawDialAddr != "" {
		if sid, serr := rt.Socket.ConnectKCPOverTCP(kcpRawDialAddr, 0, 0); serr != nil {
			color.Red("kcp-over-raw-tcp dial %s: %v", kcpRawDialAddr, serr)
		} else {
			log.Printf("kcp-over-raw-tcp dialing %s (sid=%d)", kcpRawDialAddr, sid)
		}
	}

	if debugAddr == "" {
		color.Yellow("debugaddr not set: the sockets/timers introspection channel is disabled")
	} else {
		go serveDebug(debugAddr, rt)
	}

	os.Exit(rt.Wait())
	return nil
}

func serveDebug(addr string, rt *silly.Runtime) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("debug listen %s: %v", addr, err)
		return
	}
	srv := debug.NewServer()
	debug.RegisterRuntime(srv, rt.Socket, rt.Timer)
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go srv.Serve(conn)
	}
}
