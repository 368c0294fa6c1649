package main

import (
	"context"
	"log"
	"net"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/anssi-fr/lidiode/internal/sender"
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
	myApp.Name = "diode-send"
	myApp.Usage = "unidirectional data-diode sender"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen,l",
			Value: ":7000",
			Usage: "TCP address clients connect to, eg: \"0.0.0.0:7000\"",
		},
		cli.StringFlag{
			Name:  "to-udp",
			Value: "127.0.0.1:7001",
			Usage: "UDP address of the paired diode-receive",
		},
		cli.IntFlag{
			Name:  "nb-clients",
			Value: 8,
			Usage: "maximum number of simultaneous client transfers",
		},
		cli.IntFlag{
			Name:  "mtu",
			Value: 1500,
			Usage: "outbound UDP MTU, used to derive the FEC shard size",
		},
		cli.IntFlag{
			Name:  "encoding-block-size",
			Value: 60000,
			Usage: "requested logical block size in bytes, before shard-size rounding",
		},
		cli.IntFlag{
			Name:  "repair-block-size",
			Value: 6000,
			Usage: "requested repair block size in bytes, before shard-size rounding",
		},
		cli.IntFlag{
			Name:  "nb-encoding-threads",
			Value: 1,
			Usage: "number of concurrent FEC encoder workers",
		},
		cli.IntFlag{
			Name:  "heartbeat-seconds",
			Value: 5,
			Usage: "seconds between Heartbeat messages, 0 to disable",
		},
		cli.IntFlag{
			Name:  "flush-timeout-millis",
			Value: 500,
			Usage: "milliseconds the encoder waits for a block to fill before flushing it short",
		},
		cli.IntFlag{
			Name:  "bandwidth-limit",
			Value: 0,
			Usage: "maximum outbound UDP rate in bits per second, 0 to disable",
		},
		cli.StringFlag{
			Name:  "compression",
			Value: "none",
			Usage: "payload compression before encoding: none, snappy. Must match diode-receive.",
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
		config.BindTCP = c.String("listen")
		config.ToUDP = c.String("to-udp")
		config.NbClients = c.Int("nb-clients")
		config.MTU = c.Int("mtu")
		config.EncodingBlockSize = c.Int("encoding-block-size")
		config.RepairBlockSize = c.Int("repair-block-size")
		config.NbEncodingThreads = c.Int("nb-encoding-threads")
		config.HeartbeatSeconds = c.Int("heartbeat-seconds")
		config.FlushTimeoutMillis = c.Int("flush-timeout-millis")
		config.BandwidthLimitBits = c.Int("bandwidth-limit")
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

		toUDP, err := net.ResolveUDPAddr("udp", config.ToUDP)
		checkError(err)

		sendCfg := sender.Config{
			NbClients:          config.NbClients,
			LogicalBlockSize:   config.EncodingBlockSize,
			RepairBlockSize:    config.RepairBlockSize,
			MTU:                config.MTU,
			NbEncodingThreads:  config.NbEncodingThreads,
			HeartbeatInterval:  time.Duration(config.HeartbeatSeconds) * time.Second,
			FlushTimeout:       time.Duration(config.FlushTimeoutMillis) * time.Millisecond,
			BandwidthLimitBits: config.BandwidthLimitBits,
			ToUDP:              toUDP,
			Compression:        parseCompression(config.Compression),
		}
		oti := sendCfg.OTI()

		log.Println("version:", VERSION)
		log.Println("listening on:", config.BindTCP)
		log.Println("sending to:", config.ToUDP)
		log.Println("nb-clients:", config.NbClients)
		log.Println("mtu:", config.MTU)
		log.Println("encoding-block-size (requested):", config.EncodingBlockSize)
		log.Println("repair-block-size (requested):", config.RepairBlockSize)
		log.Println("shard size:", oti.ShardSize, "data shards:", oti.DataShards, "parity shards:", oti.ParityShards)
		log.Println("nb-encoding-threads:", config.NbEncodingThreads)
		log.Println("heartbeat-seconds:", config.HeartbeatSeconds)
		log.Println("flush-timeout-millis:", config.FlushTimeoutMillis)
		log.Println("bandwidth-limit:", config.BandwidthLimitBits)
		log.Println("compression:", config.Compression)

		udpConn, err := net.DialUDP("udp", nil, toUDP)
		checkError(err)

		s := sender.New(sendCfg)
		ctx := context.Background()
		checkError(s.Start(ctx, udpConn))
		go watchShutdownSignals(s)

		lis, err := net.Listen("tcp", config.BindTCP)
		checkError(err)
		log.Println("accepting clients on", lis.Addr())

		for {
			conn, err := lis.Accept()
			if err != nil {
				log.Println("accept:", err)
				continue
			}
			log.Println("client connected:", conn.RemoteAddr())
			if tc, ok := conn.(*net.TCPConn); ok {
				tc.CloseWrite()
			}
			if err := s.NewClient(ctx, conn); err != nil {
				log.Println("client rejected:", err)
				conn.Close()
			}
		}
	}

	err := myApp.Run(os.Args)
	checkError(err)
}
