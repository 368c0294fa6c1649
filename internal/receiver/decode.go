package receiver

import (
	"github.com/fatih/color"

	"github.com/anssi-fr/lidiode/internal/fec"
)

// decodedBlock is the unit produced by a decode worker: either a
// successfully reconstructed block's raw bytes, or a loss marker when the
// block could not be reconstructed at all. A lost decodedBlock still
// carries blockID so the reorderer downstream can place it correctly in
// sequence.
type decodedBlock struct {
	blockID uint8
	payload []byte
	lost    bool
}

// runDecoder turns each reblockedBlock into a decodedBlock and forwards it
// to out. A reblockedBlock with nil symbols (the reblocker already gave up
// on it) is forwarded as a loss marker without touching dec. A block that
// fec.Decoder reports as unrecoverable is forwarded as a loss marker too —
// block loss is never fatal, but it must still reach the dispatcher so it
// can reset any in-progress per-client message framing rather than parse
// garbage built from the wrong block's leftover bytes. Multiple instances
// of runDecoder may read from the same in channel to parallelize FEC
// reconstruction across nb_decoding_threads workers; each instance owns
// its own dec, which is not safe to share.
func runDecoder(dec *fec.Decoder, in <-chan reblockedBlock, out chan<- decodedBlock, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case rb, ok := <-in:
			if !ok {
				return
			}

			var result decodedBlock
			switch {
			case rb.symbols == nil:
				result = decodedBlock{blockID: rb.blockID, lost: true}
			default:
				block, err := dec.Decode(rb.symbols)
				if err != nil {
					color.Yellow("lost block %d: %v", rb.blockID, err)
					result = decodedBlock{blockID: rb.blockID, lost: true}
				} else {
					result = decodedBlock{blockID: rb.blockID, payload: block}
				}
			}

			select {
			case out <- result:
			case <-stop:
				return
			}
		}
	}
}
