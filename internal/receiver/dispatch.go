package receiver

import (
	"context"
	"log"
	"time"

	"github.com/fatih/color"

	"github.com/anssi-fr/lidiode/internal/mux"
	"github.com/anssi-fr/lidiode/internal/wire"
)

// NewClientFunc dials (or otherwise produces) the TCP connection a sink
// writes one client's reassembled stream to. Returning an error fails that
// one client's transfer without affecting any other.
type NewClientFunc func() (WriteCloser, error)

// WriteCloser is the minimal interface a sink writes its client payload to;
// satisfied by *net.TCPConn.
type WriteCloser interface {
	Write([]byte) (int, error)
	Close() error
}

// dispatchConfig bundles the dispatcher's runtime parameters.
type dispatchConfig struct {
	HeartbeatInterval time.Duration
	AbortTimeout      time.Duration
	ToBufferSize      int
	Compression       wire.CompressionMode
	NewClient         NewClientFunc
	// Clients bounds how many sinks may be mid-transfer at once
	// (nb_clients), mirroring internal/sender's accept-side gate. Nil
	// disables the bound, which only the test suite relies on.
	Clients *mux.Semaphore
}

// runDispatcher demultiplexes the reorderer's sequential decodedBlock
// stream by ClientId into per-session sinks. It tracks two disjoint
// ClientId sets:
//   - active: sessions currently receiving messages
//   - failed: sessions whose sink backlog overflowed (which is also what
//     happens once a sink goroutine stops draining); every later message
//     for that ClientId, a new Start included, is discarded
//
// A late duplicate End/Abort for an already-closed session is simply
// discarded by the "no matching Start" branch in dispatchOne below, since
// active no longer holds an entry for it.
//
// A lost decodedBlock desynchronizes the message stream: the byte offset
// of the next block can no longer be trusted to align with a message
// boundary, so any session whose framing was mid-message when the loss
// hit would otherwise silently ingest garbage built from the wrong
// block's leftover bytes. runDispatcher responds by resetting its
// messageStream and tearing down every currently active session — the
// conservative choice: a client mid-transfer when a block is lost ends up
// with an incomplete file downstream rather than a corrupted one.
func runDispatcher(cfg dispatchConfig, in <-chan decodedBlock, stop <-chan struct{}) {
	active := make(map[wire.ClientID]chan wire.Message)
	failed := make(map[wire.ClientID]bool)
	lastHeartbeat := time.Now()
	stream := &messageStream{}

	// A zero HeartbeatInterval disables the staleness check: heartbeatC
	// stays nil and never fires.
	var heartbeatC <-chan time.Time
	if cfg.HeartbeatInterval > 0 {
		heartbeatTicker := time.NewTicker(cfg.HeartbeatInterval)
		defer heartbeatTicker.Stop()
		heartbeatC = heartbeatTicker.C
	}

	for {
		select {
		case <-stop:
			return

		case blk, ok := <-in:
			if !ok {
				return
			}

			if blk.lost {
				color.Yellow("block %d lost, resetting message framing", blk.blockID)
				stream.reset()
				for clientID, ch := range active {
					close(ch)
					delete(active, clientID)
				}
				continue
			}

			for _, m := range stream.feed(blk.payload) {
				if m.Type == wire.Heartbeat {
					lastHeartbeat = time.Now()
					continue
				}
				dispatchOne(cfg, m, active, failed)
			}

		case <-heartbeatC:
			if time.Since(lastHeartbeat) > cfg.HeartbeatInterval {
				color.Yellow("no heartbeat message received during the last %s", cfg.HeartbeatInterval)
			}
		}
	}
}

func dispatchOne(cfg dispatchConfig, m wire.Message, active map[wire.ClientID]chan wire.Message, failed map[wire.ClientID]bool) {
	if failed[m.ClientID] {
		return
	}

	if m.Type == wire.Start {
		ch := make(chan wire.Message, 64)
		active[m.ClientID] = ch
		go func() {
			// The session slot is acquired here, inside the sink's own
			// goroutine, rather than in dispatchOne itself: dispatchOne
			// runs on runDispatcher's single goroutine, and blocking it on
			// Acquire would also stop it from ever reading the very
			// End/Abort messages of other sessions that would free a slot
			// — a self-deadlock once nb_clients is reached. Messages for
			// this ClientId queue in ch (bounded, same backlog-full path
			// as any other sink) until a slot frees and runSink actually
			// starts draining it.
			if cfg.Clients != nil {
				if err := cfg.Clients.Acquire(context.Background()); err != nil {
					log.Printf("client %x: failed to acquire session slot: %v", m.ClientID, err)
					return
				}
				defer cfg.Clients.Release()
			}
			runSink(cfg, m.ClientID, ch)
		}()
	}

	ch, ok := active[m.ClientID]
	if !ok {
		// Data/Abort/End with no matching Start: the stream desynchronized
		// upstream (e.g. the block carrying Start was lost). Discard.
		return
	}

	select {
	case ch <- m:
	default:
		log.Printf("client %x: sink backlog full, dropping session", m.ClientID)
		delete(active, m.ClientID)
		failed[m.ClientID] = true
		close(ch)
		return
	}

	if m.Type == wire.Abort || m.Type == wire.End {
		delete(active, m.ClientID)
		close(ch)
	}
}
