package sender

import (
	"sync"
	"time"

	"github.com/anssi-fr/lidiode/internal/fec"
	"github.com/anssi-fr/lidiode/internal/wire"
)

// blockIDs hands out sequential, wrapping 8-bit block identifiers shared
// across every encoding worker, so concurrently-encoded blocks still form
// one globally ordered BlockId sequence for the receiver's reorderer (spec
// §5's block_to_encode counter).
type blockIDs struct {
	mu   sync.Mutex
	next uint8
}

func (b *blockIDs) take() uint8 {
	b.mu.Lock()
	id := b.next
	b.next++
	b.mu.Unlock()
	return id
}

// runEncoder is one encoding worker: it pulls framed messages off in,
// accumulates their serialized bytes into a block buffer of exactly
// oti.LogicalBlockSize, and FEC-encodes each full or flush-timed-out block
// into symbols sent to out. Multiple workers run concurrently, each with its
// own accumulation buffer, sharing only the block ID allocator — this
// mirrors nb_encoding_threads running in parallel in the original pipeline.
func runEncoder(enc *fec.Encoder, oti wire.ObjectTransmissionInfo, flushTimeout time.Duration, ids *blockIDs, in <-chan wire.Message, out chan<- []fec.Symbol, stop <-chan struct{}) {
	queue := make([]byte, 0, oti.LogicalBlockSize)
	timer := time.NewTimer(flushTimeout)
	defer timer.Stop()

	flushFullBlocks := func() {
		for len(queue) >= oti.LogicalBlockSize {
			block := queue[:oti.LogicalBlockSize]
			id := ids.take()
			symbols, err := enc.EncodeBlock(id, block)
			if err == nil {
				out <- symbols
			}
			queue = append(queue[:0], queue[oti.LogicalBlockSize:]...)
		}
	}

	for {
		select {
		case <-stop:
			return

		case msg, ok := <-in:
			if !ok {
				return
			}
			queue = msg.Serialize(queue)
			flushFullBlocks()
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(flushTimeout)

		case <-timer.C:
			timer.Reset(flushTimeout)
			if len(queue) == 0 {
				continue
			}
			padNeeded := oti.LogicalBlockSize - len(queue)
			padLen := 0
			if padNeeded >= wire.HeaderSize {
				padLen = padNeeded - wire.HeaderSize
			}
			// When padNeeded is smaller than one header, an empty Padding
			// message still overflows the block slightly; flushFullBlocks
			// drains the full portion and the remainder carries into the
			// next block, same as the original's deque-based accumulator.
			queue = wire.NewPadding(padLen).Serialize(queue)
			flushFullBlocks()
		}
	}
}
