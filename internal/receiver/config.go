package receiver

import (
	"time"

	"github.com/anssi-fr/lidiode/internal/wire"
)

// Config holds every tunable of the receiver pipeline. It must derive the
// same wire.ObjectTransmissionInfo as the paired sender's Config, or every
// block will appear corrupt.
type Config struct {
	// MTU, LogicalBlockSize and RepairBlockSize feed wire.DeriveOTI exactly
	// like the sender's Config fields of the same name.
	MTU              int
	LogicalBlockSize int
	RepairBlockSize  int
	// NbClients bounds how many sink sessions may be mid-transfer at once,
	// mirroring the sender's Config.NbClients.
	NbClients int
	// NbDecodingThreads is the number of concurrent FEC decode workers.
	// Their output is restored to sequential BlockId order by a reorderer
	// before reaching the dispatcher.
	NbDecodingThreads int
	// FlushTimeout bounds how long the reblocker waits for more symbols of
	// the current block before flushing whatever it has collected. It also
	// bounds how long the decode-pool reorderer waits for a missing block
	// before declaring it lost and advancing past it.
	FlushTimeout time.Duration
	// HeartbeatInterval is the expected period of Heartbeat messages; the
	// dispatcher warns when none arrives for longer than this.
	HeartbeatInterval time.Duration
	// AbortTimeout bounds how long a sink waits for the next message of its
	// session before giving up. See DefaultAbortTimeout for the recommended
	// default.
	AbortTimeout time.Duration
	// ToBufferSize sizes each sink's write buffer and its downstream
	// socket's send buffer.
	ToBufferSize int
	// Compression must match the paired sender's Config.Compression; a
	// mismatch surfaces as a decompress error on every Data message.
	Compression wire.CompressionMode
	// NewClient dials the downstream peer for one client session.
	NewClient NewClientFunc
}

// OTI derives this Config's wire.ObjectTransmissionInfo.
func (c Config) OTI() wire.ObjectTransmissionInfo {
	return wire.DeriveOTI(c.MTU, c.LogicalBlockSize, c.RepairBlockSize)
}

// DefaultAbortTimeout returns the recommended default
// (FlushTimeout*10) for configurations that don't set AbortTimeout
// explicitly.
func DefaultAbortTimeout(flushTimeout time.Duration) time.Duration {
	return flushTimeout * 10
}
