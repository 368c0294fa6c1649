// Package sender implements the transmit side of the diode: a bounded
// pipeline of goroutines reading from accepted TCP clients, framing their
// data into messages, packing messages into fixed-size blocks, FEC-encoding
// each block into symbols, and writing symbols to the outbound UDP socket.
//
// Pipeline:
//
//	accept -> clients -> messages -> encoding -> symbols -> udp
//
// There is one client goroutine per active session (bounded by
// internal/mux.Semaphore), nb_encoding_threads encoding goroutines, and one
// UDP transmitter goroutine. A heartbeat goroutine injects a Heartbeat
// message into the encoding stage every HeartbeatInterval, whether or not
// client traffic is flowing.
package sender

import (
	"net"
	"time"

	"github.com/anssi-fr/lidiode/internal/wire"
)

// Config holds every tunable of the sender pipeline. The CLI layer
// (cmd/diode-send) is responsible for producing a Config whose derived OTI
// (see OTI) agrees bit-for-bit with the receiver's.
type Config struct {
	// NbClients bounds how many TCP clients may be mid-transfer at once
	// (MultiplexControl).
	NbClients int
	// LogicalBlockSize is the requested encoding_block_size in bytes, before
	// OTI rounding.
	LogicalBlockSize int
	// RepairBlockSize is the requested repair_block_size in bytes, before
	// OTI rounding.
	RepairBlockSize int
	// MTU is the outbound UDP MTU used to derive the FEC shard size.
	MTU int
	// NbEncodingThreads is the number of concurrent FEC encoder workers.
	NbEncodingThreads int
	// HeartbeatInterval, if non-zero, is the period at which a Heartbeat
	// message is injected into the encoding stage to keep the receiver's
	// reblocker flushing even when no client data is flowing. Zero disables
	// heartbeats.
	HeartbeatInterval time.Duration
	// FlushTimeout bounds how long the encoding stage waits for a block to
	// fill before flushing it short with Padding.
	FlushTimeout time.Duration
	// BandwidthLimitBits caps the UDP transmitter's output rate in bits per
	// second. Zero disables shaping.
	BandwidthLimitBits int
	// ToUDP is the receiver's UDP socket address.
	ToUDP *net.UDPAddr
	// Compression selects the payload transform applied to Data messages
	// before they enter the encoding stage. Must match the paired
	// receiver's Config.Compression, the same way MTU must match.
	Compression wire.CompressionMode
}

// OTI derives this Config's wire.ObjectTransmissionInfo. Both the Sender and
// the CLI layer (to print diagnostics) call this rather than caching it, so
// there is exactly one source of truth for the derivation.
func (c Config) OTI() wire.ObjectTransmissionInfo {
	return wire.DeriveOTI(c.MTU, c.LogicalBlockSize, c.RepairBlockSize)
}
