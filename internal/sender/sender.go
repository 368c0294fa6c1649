package sender

import (
	"context"
	"io"
	"log"
	"math/rand"
	"net"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/anssi-fr/lidiode/internal/fec"
	"github.com/anssi-fr/lidiode/internal/mux"
	"github.com/anssi-fr/lidiode/internal/udpio"
	"github.com/anssi-fr/lidiode/internal/wire"
)

// Sender wires the client/encoding/UDP stages together and owns the
// channels connecting them. Queue capacities: NbClients slots into
// encoding, 2*NbEncodingThreads slots into the UDP transmitter. There is no
// queue between accept and the per-client readers: NewClient blocks the
// accept loop until a session slot is free.
type Sender struct {
	config Config
	oti    wire.ObjectTransmissionInfo

	clients *mux.Semaphore

	toEncoding chan wire.Message
	toUDP      chan []fec.Symbol
	ids        blockIDs

	stop chan struct{}
}

// New builds a Sender from config. It does not start any goroutines; call
// Start for that.
func New(config Config) *Sender {
	oti := config.OTI()
	return &Sender{
		config:     config,
		oti:        oti,
		clients:    mux.NewSemaphore(config.NbClients),
		toEncoding: make(chan wire.Message, config.NbClients),
		toUDP:      make(chan []fec.Symbol, 2*config.NbEncodingThreads),
		stop:       make(chan struct{}),
	}
}

// Start launches the encoding workers, the UDP transmitter, and — if
// configured — the heartbeat goroutine. It returns once every goroutine has
// been launched; callers accept TCP clients and call NewClient themselves
// (the accept loop lives in cmd/diode-send; listeners are spawned by the
// binary, not the library).
func (s *Sender) Start(ctx context.Context, udpConn net.PacketConn) error {
	log.Printf("accepting up to %d simultaneous transfers", s.config.NbClients)
	log.Printf("encoding will produce %d symbols (%d bytes per block) + %d repair symbols",
		s.oti.DataShards, s.oti.LogicalBlockSize, s.oti.ParityShards)

	enc, err := fec.NewEncoder(s.oti.DataShards, s.oti.ParityShards, s.oti.ShardSize)
	if err != nil {
		return errors.Wrap(err, "sender: build FEC encoder")
	}

	for i := 0; i < s.config.NbEncodingThreads; i++ {
		go runEncoder(enc, s.oti, s.config.FlushTimeout, &s.ids, s.toEncoding, s.toUDP, s.stop)
	}

	tx := udpio.NewTransmitter(udpConn, s.config.ToUDP)
	shaper := udpio.NewShaper(s.config.BandwidthLimitBits)
	go s.runTransmitter(ctx, tx, shaper)

	if s.config.HeartbeatInterval > 0 {
		log.Printf("heartbeat message will be sent every %s", s.config.HeartbeatInterval)
		go runHeartbeat(s.config.HeartbeatInterval, s.toEncoding, s.stop)
	} else {
		log.Println("heartbeat is disabled")
	}

	return nil
}

// Stop signals every sender goroutine to exit.
func (s *Sender) Stop() {
	close(s.stop)
}

// runTransmitter drains encoded blocks from toUDP, serializes every symbol,
// and writes them to the receiver under the bandwidth shaper.
func (s *Sender) runTransmitter(ctx context.Context, tx *udpio.Transmitter, shaper *udpio.Shaper) {
	for {
		select {
		case <-s.stop:
			return
		case symbols, ok := <-s.toUDP:
			if !ok {
				return
			}
			payloads := make([][]byte, len(symbols))
			for i, sym := range symbols {
				buf := sym.Serialize()
				if err := shaper.WaitN(ctx, len(buf)); err != nil {
					return
				}
				payloads[i] = buf
			}
			if err := tx.WriteBatch(payloads); err != nil {
				color.Red("udp write error: %v", err)
			}
		}
	}
}

// NewClient accepts a freshly-connected client socket. It blocks until a
// session slot is free (bounding concurrent transfers to NbClients), then
// launches a reader goroutine for it and returns immediately. Once the
// client has been drained, the reader goroutine closes client and then
// releases its slot.
func (s *Sender) NewClient(ctx context.Context, client io.ReadCloser) error {
	if err := s.clients.Acquire(ctx); err != nil {
		return errors.Wrap(err, "sender: acquire client slot")
	}

	clientID := wire.ClientID(rand.Uint32())

	bufSize := s.oti.LogicalBlockSize - wire.HeaderSize
	if bufSize < 1 {
		bufSize = 1
	}

	go func() {
		defer s.clients.Release()
		defer client.Close()
		readClient(clientID, client, bufSize, s.config.Compression, s.toEncoding)
	}()

	return nil
}
