package receiver

import (
	"errors"
	"log"

	"github.com/anssi-fr/lidiode/internal/wire"
)

// messageStream reassembles the framed wire.Message records carried inside
// the receiver's decoded byte stream. A Message routinely spans two
// decoded blocks, since the encoder flushes strictly on accumulated byte
// count rather than on message boundaries, so feed retains any
// undecodable tail across calls instead of discarding it.
type messageStream struct {
	buf []byte
}

// feed appends block to the pending tail and returns every complete
// message it can now parse. Bytes belonging to a message that straddles
// the block boundary are kept for the next call to feed.
func (s *messageStream) feed(block []byte) []wire.Message {
	s.buf = append(s.buf, block...)

	var out []wire.Message
	for {
		m, n, err := wire.Deserialize(s.buf)
		if err != nil {
			if errors.Is(err, wire.ErrInvalidMessageType) {
				log.Printf("receiver: message stream desynchronized, discarding %d buffered bytes", len(s.buf))
				s.buf = s.buf[:0]
			}
			// A short-buffer error means the tail is a genuine partial
			// message still waiting on its next block; leave it buffered.
			break
		}
		s.buf = s.buf[n:]
		if m.Type != wire.Padding {
			out = append(out, m)
		}
	}
	return out
}

// reset drops any buffered partial message. Called whenever a block is
// declared lost: the byte offset of the next decoded block can no longer
// be trusted to align with a message boundary.
func (s *messageStream) reset() {
	s.buf = s.buf[:0]
}
