package fec

import (
	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// Encoder turns one filled logical block into K source symbols plus R
// repair symbols, all tagged with the same BlockId.
//
// Encoding: | M1 | M2 | ... | MK | P1 | ... | PR |  (same layout as
// kcp-go's fec.go comment banner: data shards followed by parity shards).
type Encoder struct {
	dataShards   int
	parityShards int
	shardSize    int
	codec        reedsolomon.Encoder
}

// NewEncoder builds an Encoder for the given shard geometry. shardSize must
// match wire.ObjectTransmissionInfo.ShardSize on both ends.
func NewEncoder(dataShards, parityShards, shardSize int) (*Encoder, error) {
	if dataShards <= 0 {
		return nil, errors.New("fec: dataShards must be positive")
	}
	codec, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, errors.Wrap(err, "reedsolomon.New")
	}
	return &Encoder{
		dataShards:   dataShards,
		parityShards: parityShards,
		shardSize:    shardSize,
		codec:        codec,
	}, nil
}

// EncodeBlock splits block into K data shards, computes R parity shards,
// and returns all K+R as Symbols stamped with blockID. len(block) must equal
// dataShards*shardSize exactly (the caller, internal/sender's encoder
// worker, guarantees this by padding every block to logical_block_size
// before calling EncodeBlock).
func (e *Encoder) EncodeBlock(blockID uint8, block []byte) ([]Symbol, error) {
	want := e.dataShards * e.shardSize
	if len(block) != want {
		return nil, errors.Errorf("fec: block is %d bytes, want exactly %d", len(block), want)
	}

	shards := make([][]byte, e.dataShards+e.parityShards)
	for i := 0; i < e.dataShards; i++ {
		shards[i] = block[i*e.shardSize : (i+1)*e.shardSize]
	}
	for i := e.dataShards; i < len(shards); i++ {
		shards[i] = make([]byte, e.shardSize)
	}

	if err := e.codec.Encode(shards); err != nil {
		return nil, errors.Wrap(err, "reedsolomon encode")
	}

	symbols := make([]Symbol, len(shards))
	for i, shard := range shards {
		symbols[i] = Symbol{BlockID: blockID, SymbolID: uint16(i), Payload: shard}
	}
	return symbols, nil
}
