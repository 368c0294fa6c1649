// Package fec implements the systematic forward-error-correction layer: K
// source shards plus R repair shards per logical block, produced and
// consumed by github.com/klauspost/reedsolomon (a Go-native systematic
// erasure code, chosen for the same reason RaptorQ fits this problem: any K
// of K+R symbols reconstruct the block — see DESIGN.md).
package fec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// HeaderSize is the 4-byte FEC header carried by every symbol on the wire:
// BlockID (1 byte, wraps at 256) + SymbolID (2 bytes LE) + reserved (1 byte).
const HeaderSize = 4

// Symbol is one FEC-encoded chunk of a block: exactly one UDP payload.
// Immutable after construction; owned by exactly one pipeline stage at a
// time.
type Symbol struct {
	BlockID  uint8
	SymbolID uint16
	Payload  []byte
}

// Serialize returns the wire form of s: the 4-byte FEC header followed by
// the shard payload.
func (s Symbol) Serialize() []byte {
	buf := make([]byte, HeaderSize+len(s.Payload))
	buf[0] = s.BlockID
	binary.LittleEndian.PutUint16(buf[1:3], s.SymbolID)
	buf[3] = 0
	copy(buf[HeaderSize:], s.Payload)
	return buf
}

// DeserializeSymbol parses one datagram payload into a Symbol. The returned
// Symbol's Payload aliases buf; callers that reuse buf across datagrams must
// copy it first.
func DeserializeSymbol(buf []byte) (Symbol, error) {
	if len(buf) < HeaderSize {
		return Symbol{}, errors.New("fec: datagram shorter than FEC header")
	}
	return Symbol{
		BlockID:  buf[0],
		SymbolID: binary.LittleEndian.Uint16(buf[1:3]),
		Payload:  buf[HeaderSize:],
	}, nil
}
