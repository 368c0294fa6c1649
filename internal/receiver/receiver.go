package receiver

import (
	"log"
	"net"

	"github.com/pkg/errors"

	"github.com/anssi-fr/lidiode/internal/fec"
	"github.com/anssi-fr/lidiode/internal/mux"
	"github.com/anssi-fr/lidiode/internal/udpio"
	"github.com/anssi-fr/lidiode/internal/wire"
)

// Receiver owns the reblock/decode/reorder/dispatch goroutines and the UDP
// ingestor feeding them.
type Receiver struct {
	config Config
	oti    wire.ObjectTransmissionInfo
	stop   chan struct{}
}

// New builds a Receiver from config.
func New(config Config) *Receiver {
	return &Receiver{
		config: config,
		oti:    config.OTI(),
		stop:   make(chan struct{}),
	}
}

// Start launches the ingestor, reblocker, decode pool, reorderer and
// dispatcher goroutines reading from udpConn. It returns once every
// goroutine has been launched.
func (r *Receiver) Start(udpConn net.PacketConn) error {
	log.Printf("reblock will expect at least %d symbols (%d bytes per block) + flush timeout of %s",
		r.oti.DataShards, r.oti.LogicalBlockSize, r.config.FlushTimeout)

	nbDecodingThreads := r.config.NbDecodingThreads
	if nbDecodingThreads < 1 {
		nbDecodingThreads = 1
	}
	log.Printf("decoding with %d worker(s)", nbDecodingThreads)

	symbols := make(chan fec.Symbol, r.oti.TotalShards())
	blocks := make(chan reblockedBlock, 4)
	reordering := make(chan decodedBlock, 4*nbDecodingThreads)
	decoded := make(chan decodedBlock, 4)

	go r.runIngestor(udpConn, symbols)
	go runReblocker(r.oti.DataShards, r.oti.TotalShards(), r.config.FlushTimeout, symbols, blocks, r.stop)

	for i := 0; i < nbDecodingThreads; i++ {
		dec, err := fec.NewDecoder(r.oti.DataShards, r.oti.ParityShards, r.oti.ShardSize)
		if err != nil {
			return errors.Wrap(err, "receiver: build FEC decoder")
		}
		go runDecoder(dec, blocks, reordering, r.stop)
	}

	go runReorderer(r.config.FlushTimeout, reordering, decoded, r.stop)

	go runDispatcher(dispatchConfig{
		HeartbeatInterval: r.config.HeartbeatInterval,
		AbortTimeout:      r.config.AbortTimeout,
		ToBufferSize:      r.config.ToBufferSize,
		Compression:       r.config.Compression,
		NewClient:         r.config.NewClient,
		Clients:           mux.NewSemaphore(r.config.NbClients),
	}, decoded, r.stop)

	return nil
}

// Stop signals every receiver goroutine to exit.
func (r *Receiver) Stop() {
	close(r.stop)
}

// runIngestor batch-reads datagrams off udpConn, deserializes each into an
// FEC symbol, and forwards it to out. Malformed datagrams (too short for
// the FEC header) are dropped with a warning — a diode has no way to ask
// the sender to resend, so corruption is always silently absorbed here.
func (r *Receiver) runIngestor(udpConn net.PacketConn, out chan<- fec.Symbol) {
	ingestor := udpio.NewIngestor(udpConn, r.oti.ShardSize+fec.HeaderSize)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		datagrams, err := ingestor.ReadBatch()
		if err != nil {
			select {
			case <-r.stop:
				return
			default:
			}
			log.Printf("udp read error: %v", err)
			continue
		}

		for _, dg := range datagrams {
			sym, err := fec.DeserializeSymbol(dg.Payload)
			if err != nil {
				log.Printf("udp: dropping malformed datagram: %v", err)
				continue
			}
			select {
			case out <- sym:
			case <-r.stop:
				return
			}
		}
	}
}

