// Package udpio wraps UDP batch I/O (recvmmsg/sendmmsg via
// golang.org/x/net/ipv4), bandwidth shaping, and a synthetic-impairment test
// double used by both the sender's UDP transmitter stage and the receiver's
// UDP ingestor stage.
package udpio

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

// batchSize mirrors kcp-go's recvmmsg/sendmmsg batch depth: large enough to
// amortize the syscall, small enough to keep worst-case latency bounded.
const batchSize = 256

// Ingestor reads UDP datagrams in batches from a bound socket. It is the
// receiver-side front door: every datagram it yields is one FEC symbol
// still wearing its 4-byte header.
type Ingestor struct {
	pc    net.PacketConn
	batch *ipv4.PacketConn
	msgs  []ipv4.Message
}

// NewIngestor wraps pc for batch reads. pc is typically a *net.UDPConn, but
// any net.PacketConn works — in tests it is an internal/udpio/simlink
// impaired link, which falls back to one-at-a-time ReadFrom.
func NewIngestor(pc net.PacketConn, mtu int) *Ingestor {
	msgs := make([]ipv4.Message, batchSize)
	for i := range msgs {
		msgs[i].Buffers = [][]byte{make([]byte, mtu)}
	}
	in := &Ingestor{pc: pc, msgs: msgs}
	if udpConn, ok := pc.(*net.UDPConn); ok {
		in.batch = ipv4.NewPacketConn(udpConn)
	}
	return in
}

// Datagram is one received payload, already a private copy.
type Datagram struct {
	Payload []byte
	Addr    net.Addr
}

// ReadBatch returns as many datagrams as one batch recvmmsg-style syscall
// produced (or one ReadFrom, off the Linux fast path). Each Datagram's
// Payload is a fresh copy, so it stays valid across later ReadBatch calls.
func (in *Ingestor) ReadBatch() ([]Datagram, error) {
	if in.batch != nil {
		n, err := in.batch.ReadBatch(in.msgs, 0)
		if err != nil {
			return nil, errors.Wrap(err, "udpio: batch read")
		}
		out := make([]Datagram, n)
		for i := 0; i < n; i++ {
			m := &in.msgs[i]
			payload := make([]byte, m.N)
			copy(payload, m.Buffers[0][:m.N])
			out[i] = Datagram{Payload: payload, Addr: m.Addr}
		}
		return out, nil
	}

	buf := in.msgs[0].Buffers[0]
	n, addr, err := in.pc.ReadFrom(buf)
	if err != nil {
		return nil, errors.Wrap(err, "udpio: read")
	}
	payload := make([]byte, n)
	copy(payload, buf[:n])
	return []Datagram{{Payload: payload, Addr: addr}}, nil
}

// Close releases the underlying socket.
func (in *Ingestor) Close() error {
	return in.pc.Close()
}

// Transmitter writes UDP datagrams in batches to a fixed peer address. It is
// the sender-side last stage: every datagram it accepts is one serialized
// FEC symbol.
type Transmitter struct {
	pc    net.PacketConn
	batch *ipv4.PacketConn
	peer  net.Addr
}

// NewTransmitter wraps pc for batch writes to peer.
func NewTransmitter(pc net.PacketConn, peer net.Addr) *Transmitter {
	tx := &Transmitter{pc: pc, peer: peer}
	if udpConn, ok := pc.(*net.UDPConn); ok {
		tx.batch = ipv4.NewPacketConn(udpConn)
	}
	return tx
}

// WriteBatch sends every payload in payloads to the configured peer. On
// platforms/conns without batch support it falls back to sequential
// WriteTo calls. A partial-write error aborts the remaining payloads in
// this call; the caller (the encoder-to-UDP stage) does not retry — a lost
// datagram is recovered by FEC parity, not retransmission.
func (tx *Transmitter) WriteBatch(payloads [][]byte) error {
	if tx.batch != nil {
		msgs := make([]ipv4.Message, len(payloads))
		for i, p := range payloads {
			msgs[i].Buffers = [][]byte{p}
			msgs[i].Addr = tx.peer
		}
		for len(msgs) > 0 {
			n, err := tx.batch.WriteBatch(msgs, 0)
			if err != nil {
				return errors.Wrap(err, "udpio: batch write")
			}
			msgs = msgs[n:]
		}
		return nil
	}

	for _, p := range payloads {
		if _, err := tx.pc.WriteTo(p, tx.peer); err != nil {
			return errors.Wrap(err, "udpio: write")
		}
	}
	return nil
}

// Close releases the underlying socket.
func (tx *Transmitter) Close() error {
	return tx.pc.Close()
}
