package receiver

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/anssi-fr/lidiode/internal/fec"
	"github.com/anssi-fr/lidiode/internal/udpio"
	"github.com/anssi-fr/lidiode/internal/udpio/simlink"
	"github.com/anssi-fr/lidiode/internal/wire"
)

// The geometry below (mtu 48, logical_block_size 64, repair_block_size 32)
// derives to ShardSize 16 / DataShards 4 / ParityShards 2 / LogicalBlockSize
// 64 through wire.DeriveOTI, so tests can reason about exact block byte
// offsets without re-deriving them.
const (
	itDataShards   = 4
	itParityShards = 2
	itShardSize    = 16
	itBlockSize    = itDataShards * itShardSize
)

func integrationConfig(newClient NewClientFunc, flushTimeout time.Duration) Config {
	return Config{
		MTU:               48,
		LogicalBlockSize:  64,
		RepairBlockSize:   32,
		NbClients:         4,
		NbDecodingThreads: 2,
		FlushTimeout:      flushTimeout,
		HeartbeatInterval: time.Hour,
		AbortTimeout:      time.Minute,
		ToBufferSize:      4096,
		NewClient:         newClient,
	}
}

// splitIntoBlocks serializes messages into one byte stream, pads it out to a
// multiple of itBlockSize with a trailing Padding message, and slices it into
// itBlockSize chunks ready to hand to an FEC encoder one block at a time.
func splitIntoBlocks(messages ...wire.Message) [][]byte {
	var stream []byte
	for _, m := range messages {
		stream = m.Serialize(stream)
	}
	if rem := len(stream) % itBlockSize; rem != 0 {
		pad := itBlockSize - rem - wire.HeaderSize
		if pad < 0 {
			pad += itBlockSize
		}
		stream = wire.NewPadding(pad).Serialize(stream)
	}
	blocks := make([][]byte, len(stream)/itBlockSize)
	for i := range blocks {
		blocks[i] = stream[i*itBlockSize : (i+1)*itBlockSize]
	}
	return blocks
}

var itAddr net.Addr = &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}

// writeSymbols transmits the given FEC symbols, in order, over tx.
func writeSymbols(t *testing.T, tx *udpio.Transmitter, symbols []fec.Symbol) {
	t.Helper()
	for _, s := range symbols {
		if err := tx.WriteBatch([][]byte{s.Serialize()}); err != nil {
			t.Fatalf("WriteBatch: %v", err)
		}
	}
}

func waitForContent(t *testing.T, conn *fakeConn, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if conn.String() == want {
				return
			}
		case <-deadline:
			t.Fatalf("conn contents = %q, want %q", conn.String(), want)
		}
	}
}

// TestReceiverPipelineOverSimlinkWithReorderedSymbols drives the real
// ingestor/reblocker/decode-pool/reorderer/dispatcher/sink pipeline over a
// simlink.Link, deliberately writing one block's last symbols after the
// following block's first symbol has already arrived — the one-block
// reorder tolerance the reblocker is built for, now exercised end to end
// over the same net.PacketConn the live UDP ingestor uses.
func TestReceiverPipelineOverSimlinkWithReorderedSymbols(t *testing.T) {
	payload := strings.Repeat("B", 101)
	blocks := splitIntoBlocks(
		wire.NewControl(wire.Start, 1),
		wire.NewData(1, []byte(payload)),
		wire.NewControl(wire.End, 1),
	)
	if len(blocks) != 2 {
		t.Fatalf("test fixture expects exactly 2 blocks, got %d", len(blocks))
	}

	enc, err := fec.NewEncoder(itDataShards, itParityShards, itShardSize)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	block0, err := enc.EncodeBlock(0, blocks[0])
	if err != nil {
		t.Fatalf("EncodeBlock(0): %v", err)
	}
	block1, err := enc.EncodeBlock(1, blocks[1])
	if err != nil {
		t.Fatalf("EncodeBlock(1): %v", err)
	}

	link := simlink.NewLink(itAddr, 1)
	link.ReorderN = 3
	link.ReorderBy = 5 * time.Millisecond
	tx := udpio.NewTransmitter(link, itAddr)

	conn := &fakeConn{}
	cfg := integrationConfig(func() (WriteCloser, error) { return conn, nil }, 50*time.Millisecond)
	r := New(cfg)
	if err := r.Start(link); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	// Straggler reorder: block 0's first three symbols, then block 1's
	// first symbol (rolls block 0 into the "prev" bucket), then block 0's
	// remaining symbols arrive late and complete it out of turn, then the
	// rest of block 1 follows normally.
	writeSymbols(t, tx, block0[:3])
	writeSymbols(t, tx, block1[:1])
	writeSymbols(t, tx, block0[3:])
	writeSymbols(t, tx, block1[1:])

	waitForContent(t, conn, payload, 2*time.Second)
	if !conn.closed {
		t.Fatal("sink should have closed after the End message completed the transfer")
	}
}

// TestReceiverPipelineOverSimlinkWithLossyLink drives the same real pipeline
// over a simlink.Link where two blocks arrive whole and the last block loses
// more symbols than parity can cover (lost outright), verifying delivery of
// the intact blocks and loss-propagation teardown together end to end
// rather than at the decoder or dispatcher in isolation.
func TestReceiverPipelineOverSimlinkWithLossyLink(t *testing.T) {
	payloadA := strings.Repeat("A", 110)
	blocks := splitIntoBlocks(
		wire.NewControl(wire.Start, 1),
		wire.NewData(1, []byte(payloadA)),
		wire.NewData(1, []byte("never delivered, its block is lost")),
		wire.NewControl(wire.End, 1),
	)
	if len(blocks) != 3 {
		t.Fatalf("test fixture expects exactly 3 blocks, got %d", len(blocks))
	}

	enc, err := fec.NewEncoder(itDataShards, itParityShards, itShardSize)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	block0, err := enc.EncodeBlock(0, blocks[0])
	if err != nil {
		t.Fatalf("EncodeBlock(0): %v", err)
	}
	block1, err := enc.EncodeBlock(1, blocks[1])
	if err != nil {
		t.Fatalf("EncodeBlock(1): %v", err)
	}
	block2, err := enc.EncodeBlock(2, blocks[2])
	if err != nil {
		t.Fatalf("EncodeBlock(2): %v", err)
	}

	link := simlink.NewLink(itAddr, 2)
	tx := udpio.NewTransmitter(link, itAddr)

	conn := &fakeConn{}
	cfg := integrationConfig(func() (WriteCloser, error) { return conn, nil }, 50*time.Millisecond)
	r := New(cfg)
	if err := r.Start(link); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	// Block 0 and block 1 arrive whole: Start plus payloadA reassemble
	// cleanly. Block 2 arrives with only 3 of its 6 symbols (fewer than
	// itDataShards), well past parity's ability to reconstruct it, so it
	// is declared lost rather than decoded.
	writeSymbols(t, tx, block0)
	writeSymbols(t, tx, block1)
	writeSymbols(t, tx, block2[:3])

	waitForContent(t, conn, payloadA, 2*time.Second)
	if !conn.closed {
		t.Fatal("the session should have been torn down once its block was declared lost")
	}
}
