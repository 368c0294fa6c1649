package receiver

import (
	"log"
	"time"
)

// reorderWindow bounds how many decoded blocks runReorderer will hold back
// waiting for a gap to fill before giving up on it. It only needs to cover
// the fan-out of nb_decoding_threads workers racing each other, not a full
// BlockId cycle: the reblocker upstream already guarantees blocks leave it
// in close to sequential order (one-block reorder tolerance), so a decode
// pool can only reorder adjacent, already-nearby blocks relative to each
// other.
const reorderWindow = 64

// runReorderer restores the sequential BlockId order that a pool of
// parallel decode workers does not preserve: worker latency varies with
// how much FEC reconstruction a given block needs, so blocks can finish
// out of order even though the reblocker fed them in order. It buffers
// out-of-order arrivals keyed by blockID and forwards contiguously as soon
// as the next expected BlockId is available; flushTimeout bounds how long
// it waits for a missing block before declaring it lost and advancing
// past it, so a single dropped block can't stall the stream forever.
func runReorderer(flushTimeout time.Duration, in <-chan decodedBlock, out chan<- decodedBlock, stop <-chan struct{}) {
	pending := make(map[uint8]decodedBlock)
	var next uint8
	started := false

	timer := time.NewTimer(flushTimeout)
	defer timer.Stop()

	emit := func(b decodedBlock) bool {
		select {
		case out <- b:
			return true
		case <-stop:
			return false
		}
	}

	flushReady := func() bool {
		for {
			b, ok := pending[next]
			if !ok {
				return true
			}
			delete(pending, next)
			if !emit(b) {
				return false
			}
			next++
		}
	}

	for {
		select {
		case <-stop:
			return

		case b, ok := <-in:
			if !ok {
				return
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(flushTimeout)

			if !started {
				next = b.blockID
				started = true
			}

			if len(pending) >= reorderWindow {
				log.Printf("reorder: window full waiting for block %d, declaring it lost", next)
				if !emit(decodedBlock{blockID: next, lost: true}) {
					return
				}
				next++
			}

			pending[b.blockID] = b
			if !flushReady() {
				return
			}

		case <-timer.C:
			timer.Reset(flushTimeout)
			if started && len(pending) > 0 {
				log.Printf("reorder: flush timeout waiting for block %d, declaring it lost", next)
				if !emit(decodedBlock{blockID: next, lost: true}) {
					return
				}
				next++
				if !flushReady() {
					return
				}
			}
		}
	}
}
