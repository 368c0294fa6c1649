package fec

import (
	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// ErrBlockUnrecoverable is returned by Decode when fewer than DataShards
// distinct symbols are available for a block: the block is lost, not an
// error condition the caller should treat as fatal.
var ErrBlockUnrecoverable = errors.New("fec: fewer than K symbols present, block unrecoverable")

// Decoder reconstructs a logical block from any K of its K+R symbols.
type Decoder struct {
	dataShards   int
	parityShards int
	shardSize    int
	codec        reedsolomon.Encoder
}

// NewDecoder builds a Decoder for the given shard geometry. The geometry
// must be identical to the Encoder's on the sending side — both ends derive
// it independently from the same wire.ObjectTransmissionInfo inputs.
func NewDecoder(dataShards, parityShards, shardSize int) (*Decoder, error) {
	if dataShards <= 0 {
		return nil, errors.New("fec: dataShards must be positive")
	}
	codec, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, errors.Wrap(err, "reedsolomon.New")
	}
	return &Decoder{
		dataShards:   dataShards,
		parityShards: parityShards,
		shardSize:    shardSize,
		codec:        codec,
	}, nil
}

// Decode reassembles the logical block from whatever subset of its symbols
// the caller collected for one BlockId. Symbols may arrive in any order and
// with duplicates; only the first occurrence of each SymbolID is kept,
// mirroring kcp-go's fecDecoder shard bookkeeping. If fewer than
// DataShards distinct symbols are present, Decode returns
// ErrBlockUnrecoverable and the caller must treat the block as lost rather
// than retry — there is no reverse channel to request retransmission.
func (d *Decoder) Decode(symbols []Symbol) ([]byte, error) {
	total := d.dataShards + d.parityShards
	shards := make([][]byte, total)
	present := 0

	for _, sym := range symbols {
		if int(sym.SymbolID) >= total {
			continue // stale symbol from a stale geometry, ignore
		}
		if shards[sym.SymbolID] != nil {
			continue // duplicate, first write wins
		}
		if len(sym.Payload) != d.shardSize {
			continue // malformed shard, drop rather than corrupt reconstruction
		}
		shards[sym.SymbolID] = sym.Payload
		present++
	}

	if present < d.dataShards {
		return nil, ErrBlockUnrecoverable
	}

	// Case 1: every data shard already present, no reconstruction needed.
	haveAllData := true
	for i := 0; i < d.dataShards; i++ {
		if shards[i] == nil {
			haveAllData = false
			break
		}
	}
	if !haveAllData {
		// Case 2: loss on some data shards, recoverable from parity.
		if err := d.codec.ReconstructData(shards); err != nil {
			return nil, errors.Wrap(err, "reedsolomon reconstruct")
		}
	}

	block := make([]byte, 0, d.dataShards*d.shardSize)
	for i := 0; i < d.dataShards; i++ {
		block = append(block, shards[i]...)
	}
	return block, nil
}
