package receiver

import (
	"bufio"
	"log"
	"time"

	"github.com/anssi-fr/lidiode/internal/wire"
)

// runSink owns one reassembled client session end to end: it dials the
// downstream TCP peer, then drains recvq writing every Data payload until
// Abort, End, channel closure, or abort_timeout. End and channel closure
// flush the bytes buffered so far downstream; Abort and abort_timeout do
// not. A session
// that never progresses for abort_timeout is torn down rather than left to
// leak forever — there is no reverse channel to signal the sender that its
// peer vanished, so silence on recvq is the only failure signal available.
func runSink(cfg dispatchConfig, clientID wire.ClientID, recvq <-chan wire.Message) {
	log.Printf("client %x: starting transfer", clientID)

	conn, err := cfg.NewClient()
	if err != nil {
		log.Printf("client %x: failed to open downstream connection: %v", clientID, err)
		return
	}
	defer conn.Close()
	if sb, ok := conn.(interface{ SetWriteBuffer(int) error }); ok {
		if err := sb.SetWriteBuffer(cfg.ToBufferSize); err != nil {
			log.Printf("client %x: failed to set socket send buffer: %v", clientID, err)
		}
	}

	w := bufio.NewWriterSize(conn, cfg.ToBufferSize)
	transmitted := 0

	for {
		timer := time.NewTimer(cfg.AbortTimeout)
		select {
		case m, ok := <-recvq:
			timer.Stop()
			if !ok {
				log.Printf("client %x: sink closed upstream, aborting", clientID)
				if err := w.Flush(); err != nil {
					log.Printf("client %x: flush error: %v", clientID, err)
				}
				return
			}

			if len(m.Payload) > 0 {
				payload, err := wire.DecompressPayload(cfg.Compression, m.Payload)
				if err != nil {
					log.Printf("client %x: decompress error, aborting: %v", clientID, err)
					return
				}
				if _, err := w.Write(payload); err != nil {
					log.Printf("client %x: write error after %d bytes: %v", clientID, transmitted, err)
					return
				}
				transmitted += len(payload)
			}

			switch m.Type {
			case wire.Abort:
				log.Printf("client %x: aborting transfer", clientID)
				return
			case wire.End:
				if err := w.Flush(); err != nil {
					log.Printf("client %x: flush error: %v", clientID, err)
					return
				}
				log.Printf("client %x: finished transfer, %d bytes transmitted", clientID, transmitted)
				return
			}

		case <-timer.C:
			log.Printf("client %x: transfer timeout, aborting", clientID)
			return
		}
	}
}
