package main

import (
	"log"
	"net"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/anssi-fr/lidiode/internal/receiver"
	"github.com/anssi-fr/lidiode/internal/wire"
)

func parseCompression(mode string) wire.CompressionMode {
	switch mode {
	case "snappy":
		return wire.CompressionSnappy
	default:
		return wire.CompressionNone
	}
}

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "diode-receive"
	myApp.Usage = "unidirectional data-diode receiver"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen,l",
			Value: ":7001",
			Usage: "UDP address the paired diode-send transmits to",
		},
		cli.StringFlag{
			Name:  "target,t",
			Value: "127.0.0.1:7002",
			Usage: "downstream TCP target address dialed once per client session",
		},
		cli.IntFlag{
			Name:  "mtu",
			Value: 1500,
			Usage: "inbound UDP MTU, must match the paired diode-send",
		},
		cli.IntFlag{
			Name:  "encoding-block-size",
			Value: 60000,
			Usage: "requested logical block size in bytes, must match the paired diode-send",
		},
		cli.IntFlag{
			Name:  "repair-block-size",
			Value: 6000,
			Usage: "requested repair block size in bytes, must match the paired diode-send",
		},
		cli.IntFlag{
			Name:  "nb-clients",
			Value: 8,
			Usage: "maximum number of simultaneous client sessions",
		},
		cli.IntFlag{
			Name:  "nb-decoding-threads",
			Value: 1,
			Usage: "number of concurrent FEC decoder workers",
		},
		cli.IntFlag{
			Name:  "flush-timeout-millis",
			Value: 500,
			Usage: "milliseconds the reblocker waits for more symbols before flushing a partial block",
		},
		cli.IntFlag{
			Name:  "heartbeat-seconds",
			Value: 5,
			Usage: "expected period of Heartbeat messages; 0 disables the staleness warning",
		},
		cli.IntFlag{
			Name:  "abort-timeout-millis",
			Value: 0,
			Usage: "milliseconds a sink waits for the next message before giving up, 0 uses flush-timeout-millis*10",
		},
		cli.IntFlag{
			Name:  "to-buffer-size",
			Value: 65536,
			Usage: "per-session write buffer in bytes towards the downstream target",
		},
		cli.StringFlag{
			Name:  "compression",
			Value: "none",
			Usage: "payload compression to reverse before writing: none, snappy. Must match diode-send.",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		config := Config{}
		config.BindUDP = c.String("listen")
		config.ToTCP = c.String("target")
		config.MTU = c.Int("mtu")
		config.EncodingBlockSize = c.Int("encoding-block-size")
		config.RepairBlockSize = c.Int("repair-block-size")
		config.NbClients = c.Int("nb-clients")
		config.NbDecodingThreads = c.Int("nb-decoding-threads")
		config.FlushTimeoutMillis = c.Int("flush-timeout-millis")
		config.HeartbeatSeconds = c.Int("heartbeat-seconds")
		config.AbortTimeoutMillis = c.Int("abort-timeout-millis")
		config.ToBufferSize = c.Int("to-buffer-size")
		config.Compression = c.String("compression")
		config.Log = c.String("log")

		if c.String("c") != "" {
			err := parseJSONConfig(&config, c.String("c"))
			checkError(err)
		}

		if config.Log != "" {
			f, err := os.OpenFile(config.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			checkError(err)
			defer f.Close()
			log.SetOutput(f)
		}

		flushTimeout := time.Duration(config.FlushTimeoutMillis) * time.Millisecond
		abortTimeout := time.Duration(config.AbortTimeoutMillis) * time.Millisecond
		if abortTimeout <= 0 {
			abortTimeout = receiver.DefaultAbortTimeout(flushTimeout)
		}

		target := config.ToTCP
		recvCfg := receiver.Config{
			MTU:               config.MTU,
			LogicalBlockSize:  config.EncodingBlockSize,
			RepairBlockSize:   config.RepairBlockSize,
			NbClients:         config.NbClients,
			NbDecodingThreads: config.NbDecodingThreads,
			FlushTimeout:      flushTimeout,
			HeartbeatInterval: time.Duration(config.HeartbeatSeconds) * time.Second,
			AbortTimeout:      abortTimeout,
			ToBufferSize:      config.ToBufferSize,
			Compression:       parseCompression(config.Compression),
			NewClient: func() (receiver.WriteCloser, error) {
				conn, err := net.Dial("tcp", target)
				if err != nil {
					return nil, err
				}
				if tc, ok := conn.(*net.TCPConn); ok {
					tc.CloseRead()
				}
				return conn, nil
			},
		}
		oti := recvCfg.OTI()

		log.Println("version:", VERSION)
		log.Println("listening on:", config.BindUDP)
		log.Println("target:", config.ToTCP)
		log.Println("mtu:", config.MTU)
		log.Println("encoding-block-size (requested):", config.EncodingBlockSize)
		log.Println("repair-block-size (requested):", config.RepairBlockSize)
		log.Println("shard size:", oti.ShardSize, "data shards:", oti.DataShards, "parity shards:", oti.ParityShards)
		log.Println("nb-clients:", config.NbClients)
		log.Println("nb-decoding-threads:", config.NbDecodingThreads)
		log.Println("flush-timeout-millis:", config.FlushTimeoutMillis)
		log.Println("heartbeat-seconds:", config.HeartbeatSeconds)
		log.Println("abort-timeout:", abortTimeout)
		log.Println("to-buffer-size:", config.ToBufferSize)
		log.Println("compression:", config.Compression)

		udpAddr, err := net.ResolveUDPAddr("udp", config.BindUDP)
		checkError(err)
		udpConn, err := net.ListenUDP("udp", udpAddr)
		checkError(err)

		r := receiver.New(recvCfg)
		checkError(r.Start(udpConn))
		go watchShutdownSignals(r)

		select {}
	}

	err := myApp.Run(os.Args)
	checkError(err)
}
