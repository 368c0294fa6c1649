package wire

// Alignment and header constants used to derive the shard size from the
// configured MTU. 28 bytes covers IPv4 + UDP headers; 4 bytes is the FEC
// symbol header (BlockId + SymbolId, see internal/fec).
const (
	ipUDPHeaderSize = 28
	fecHeaderSize   = 4
	shardAlignment  = 8
)

// ObjectTransmissionInfo is the derived, mutually-agreed set of parameters
// that both the sender and the receiver must compute identically from their
// configured mtu/logical_block_size/repair_block_size. It is the Go name for
// object_transmission_information.
type ObjectTransmissionInfo struct {
	// ShardSize is the payload length of one FEC symbol (data_mtu in spec
	// terms): 8-byte aligned, at most mtu-28-4 bytes.
	ShardSize int
	// DataShards (K) is the number of source symbols per logical block.
	DataShards int
	// LogicalBlockSize is the adjusted block size: DataShards * ShardSize.
	LogicalBlockSize int
	// ParityShards (R) is the number of repair symbols per logical block.
	ParityShards int
}

// DeriveOTI computes the shard size and the rounded logical/repair block
// sizes from the caller's requested mtu, logicalBlockSize and
// repairBlockSize. Both ends of the diode must call this with identical
// inputs, or blocks will never decode.
func DeriveOTI(mtu int, logicalBlockSize int, repairBlockSize int) ObjectTransmissionInfo {
	dataMTU := shardAlignment * ((mtu - ipUDPHeaderSize - fecHeaderSize) / shardAlignment)

	dataShards := logicalBlockSize / dataMTU
	if dataShards < 1 {
		dataShards = 1
	}
	adjustedBlockSize := dataShards * dataMTU

	parityShards := repairBlockSize / dataMTU

	return ObjectTransmissionInfo{
		ShardSize:        dataMTU,
		DataShards:       dataShards,
		LogicalBlockSize: adjustedBlockSize,
		ParityShards:     parityShards,
	}
}

// TotalShards is K+R, the number of FEC symbols transmitted per block and
// the capacity every BlockBucket must reserve.
func (o ObjectTransmissionInfo) TotalShards() int {
	return o.DataShards + o.ParityShards
}

// RepairBlockSize is the rounded repair_block_size implied by ParityShards.
func (o ObjectTransmissionInfo) RepairBlockSize() int {
	return o.ParityShards * o.ShardSize
}
