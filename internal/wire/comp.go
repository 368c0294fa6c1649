package wire

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// CompressionMode selects how Data payload bytes are transformed before
// they are handed to the encoding stage, and reversed on the way out of a
// client sink. Both ends of the diode must agree on this out of band, the
// same way they must agree on mtu and logical_block_size: there is no
// reverse channel to negotiate it.
type CompressionMode uint8

const (
	CompressionNone CompressionMode = iota
	CompressionSnappy
)

// CompressPayload transforms payload according to mode. It always returns a
// freshly allocated slice; the caller's payload is never mutated.
func CompressPayload(mode CompressionMode, payload []byte) []byte {
	if mode != CompressionSnappy || len(payload) == 0 {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out
	}
	return snappy.Encode(nil, payload)
}

// DecompressPayload reverses CompressPayload. It returns an error if mode is
// CompressionSnappy and payload is not valid snappy-encoded data, which
// signals a configuration mismatch between the two ends of the diode.
func DecompressPayload(mode CompressionMode, payload []byte) ([]byte, error) {
	if mode != CompressionSnappy || len(payload) == 0 {
		return payload, nil
	}
	out, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, errors.Wrap(err, "wire: snappy decompress")
	}
	return out, nil
}
