package sender

import (
	"testing"
	"time"

	"github.com/anssi-fr/lidiode/internal/fec"
	"github.com/anssi-fr/lidiode/internal/wire"
)

func TestRunEncoderFlushesOnFullBlock(t *testing.T) {
	const dataShards, parityShards, shardSize = 2, 1, 8
	oti := wire.ObjectTransmissionInfo{
		ShardSize:        shardSize,
		DataShards:       dataShards,
		LogicalBlockSize: dataShards * shardSize,
		ParityShards:     parityShards,
	}

	enc, err := fec.NewEncoder(dataShards, parityShards, shardSize)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	in := make(chan wire.Message, 4)
	out := make(chan []fec.Symbol, 4)
	stop := make(chan struct{})
	var ids blockIDs

	go runEncoder(enc, oti, time.Hour, &ids, in, out, stop)
	defer close(stop)

	// One message carrying exactly LogicalBlockSize payload bytes, plus its
	// 9-byte header, overflows one block and triggers an immediate flush of
	// the first full chunk.
	payload := make([]byte, oti.LogicalBlockSize)
	in <- wire.NewData(1, payload)

	select {
	case symbols := <-out:
		if len(symbols) != dataShards+parityShards {
			t.Fatalf("got %d symbols, want %d", len(symbols), dataShards+parityShards)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for encoded block")
	}
}

func TestRunEncoderFlushesOnTimeoutWithPadding(t *testing.T) {
	const dataShards, parityShards, shardSize = 4, 1, 8
	oti := wire.ObjectTransmissionInfo{
		ShardSize:        shardSize,
		DataShards:       dataShards,
		LogicalBlockSize: dataShards * shardSize,
		ParityShards:     parityShards,
	}

	enc, err := fec.NewEncoder(dataShards, parityShards, shardSize)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	in := make(chan wire.Message, 4)
	out := make(chan []fec.Symbol, 4)
	stop := make(chan struct{})
	var ids blockIDs

	go runEncoder(enc, oti, 20*time.Millisecond, &ids, in, out, stop)
	defer close(stop)

	in <- wire.NewData(2, []byte("ab"))

	select {
	case symbols := <-out:
		if len(symbols) != dataShards+parityShards {
			t.Fatalf("got %d symbols, want %d", len(symbols), dataShards+parityShards)
		}
	case <-time.After(time.Second):
		t.Fatal("flush timeout never produced an encoded block")
	}
}

func TestBlockIDsWrapAt256(t *testing.T) {
	var ids blockIDs
	for i := 0; i < 255; i++ {
		ids.take()
	}
	last := ids.take()
	if last != 255 {
		t.Fatalf("expected 256th id to be 255, got %d", last)
	}
	wrapped := ids.take()
	if wrapped != 0 {
		t.Fatalf("expected block id to wrap to 0, got %d", wrapped)
	}
}
