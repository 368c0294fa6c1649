// Package receiver implements the receive side of the diode: a bounded
// pipeline of goroutines reading FEC symbols off the inbound UDP socket,
// reassembling them into blocks, decoding blocks back into framed messages,
// and dispatching messages by ClientId to per-session sinks written out to
// TCP.
//
// Pipeline:
//
//	udp -> reblock -> decode -> reorder -> dispatch -> sinks
package receiver

import (
	"log"
	"time"

	"github.com/fatih/color"

	"github.com/anssi-fr/lidiode/internal/fec"
)

// reblockedBlock is one fully-collected set of symbols ready to be handed
// to the decoder, tagged with the BlockId they belong to. symbols is nil
// when the reblocker itself already knows the block is unrecoverable (a
// flush timeout with fewer than dataShards symbols collected) — the
// decoder forwards that straight through as a loss marker rather than
// attempting fec.Decoder.Decode on an insufficient set.
type reblockedBlock struct {
	blockID uint8
	symbols []fec.Symbol
}

// runReblocker groups incoming symbols by BlockId, tolerating one block of
// reordering via a single "parked" previous-block bucket: a "current"
// bucket for the in-progress BlockId plus one "prev" bucket for the block
// just rolled out of, governed by a desynchro flag rather than a
// multi-session reorder matrix. It sends the current block to out when the
// next block's first symbol arrives (if it holds at least dataShards
// symbols by then; otherwise it is parked as prev) or when flushTimeout
// elapses with no new symbols. A parked prev block is sent as soon as its
// stragglers bring it to dataShards symbols. A flush timeout that fires with fewer than dataShards symbols
// collected declares the block lost itself (reblockedBlock.symbols == nil)
// instead of handing an undecodable remainder to the decoder; the
// reblocker never counts symbols against totalShards, only against
// dataShards, since that's the minimum needed to reconstruct.
func runReblocker(dataShards int, totalShards int, flushTimeout time.Duration, in <-chan fec.Symbol, out chan<- reblockedBlock, stop <-chan struct{}) {
	desynchro := true
	var blockID uint8
	current := make([]fec.Symbol, 0, totalShards)
	var prev []fec.Symbol
	havePrev := false

	timer := time.NewTimer(flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return

		case sym, ok := <-in:
			if !ok {
				return
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(flushTimeout)

			if desynchro {
				blockID = sym.BlockID
				current = current[:0]
				prev, havePrev = nil, false
				desynchro = false
			}

			switch {
			case sym.BlockID == blockID:
				current = append(current, sym)

			case sym.BlockID == blockID-1:
				// A straggler for the block just rolled out of. Only
				// useful if that block is still parked waiting for more.
				if havePrev {
					prev = append(prev, sym)
					if len(prev) >= dataShards {
						out <- reblockedBlock{blockID: blockID - 1, symbols: prev}
						prev, havePrev = nil, false
					}
				}

			case sym.BlockID == blockID+1:
				// First symbol of the next block: current either has
				// enough to decode now, or gets parked as the new "prev"
				// in case its own stragglers are still in flight.
				if len(current) >= dataShards {
					out <- reblockedBlock{blockID: blockID, symbols: current}
					if havePrev {
						color.Yellow("lost block %d", blockID-1)
					}
					prev, havePrev = nil, false
				} else {
					prev, havePrev = current, true
				}
				blockID = sym.BlockID
				current = make([]fec.Symbol, 0, totalShards)
				current = append(current, sym)

			default:
				log.Printf("reblock: discarding symbol for block %d (current block is %d)", sym.BlockID, blockID)
			}

		case <-timer.C:
			timer.Reset(flushTimeout)
			switch {
			case len(current) >= dataShards:
				log.Printf("reblock: flush timeout with %d symbols for block %d", len(current), blockID)
				out <- reblockedBlock{blockID: blockID, symbols: current}
				current = make([]fec.Symbol, 0, totalShards)
				prev, havePrev = nil, false

			case len(current) > 0:
				// Not enough symbols ever arrived for this block and
				// nothing more is coming within the timeout window: declare
				// it lost rather than forward an undecodable remainder, and
				// resynchronize on whatever BlockId shows up next.
				color.Yellow("lost block %d: only %d/%d symbols collected before flush timeout", blockID, len(current), dataShards)
				out <- reblockedBlock{blockID: blockID, symbols: nil}
				if havePrev {
					color.Yellow("lost block %d", blockID-1)
				}
				current = current[:0]
				prev, havePrev = nil, false
				desynchro = true

			default:
				if havePrev {
					color.Yellow("lost block %d", blockID-1)
				}
				prev, havePrev = nil, false
				desynchro = true
			}
		}
	}
}
