// Package wire implements the framed message format carried inside a
// reassembled block, and the object-transmission-information math shared by
// both ends of the diode.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ClientID identifies one multiplexed client session end-to-end.
type ClientID uint32

// HeartbeatClientID is the reserved ClientId used by Heartbeat and Padding
// messages, which do not belong to any session.
const HeartbeatClientID ClientID = 0

// MessageType is the tag byte of a framed message.
type MessageType uint8

// Message type values are fixed for wire compatibility; never renumber them.
const (
	Start     MessageType = 0x01
	Data      MessageType = 0x02
	Abort     MessageType = 0x03
	End       MessageType = 0x04
	Heartbeat MessageType = 0x05
	Padding   MessageType = 0x06
)

func (t MessageType) String() string {
	switch t {
	case Start:
		return "Start"
	case Data:
		return "Data"
	case Abort:
		return "Abort"
	case End:
		return "End"
	case Heartbeat:
		return "Heartbeat"
	case Padding:
		return "Padding"
	default:
		return "Unknown"
	}
}

// ErrInvalidMessageType is returned by Deserialize when the type byte does
// not match any known MessageType. A decoded block containing this error
// means the bit stream has desynchronized from message boundaries.
var ErrInvalidMessageType = errors.New("invalid message type")

// HeaderSize is the fixed overhead of a serialized message: 4 bytes of
// ClientID, 1 byte of type, 4 bytes of payload length.
const HeaderSize = 4 + 1 + 4

// Message is one framed record inside the reassembled byte stream.
type Message struct {
	ClientID ClientID
	Type     MessageType
	Payload  []byte
}

// Serialize appends the little-endian wire encoding of m to dst and returns
// the extended slice.
func (m Message) Serialize(dst []byte) []byte {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(m.ClientID))
	hdr[4] = byte(m.Type)
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(len(m.Payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, m.Payload...)
	return dst
}

// SerializedLen reports how many bytes Serialize would append for m.
func (m Message) SerializedLen() int {
	return HeaderSize + len(m.Payload)
}

// Deserialize decodes one message starting at the beginning of buf. It
// returns the message and the number of bytes consumed. buf must contain at
// least HeaderSize bytes; ErrInvalidMessageType is returned for an unknown
// type byte, and the caller should treat that as stream desynchronization.
func Deserialize(buf []byte) (Message, int, error) {
	if len(buf) < HeaderSize {
		return Message{}, 0, errors.New("wire: short buffer for message header")
	}
	clientID := ClientID(binary.LittleEndian.Uint32(buf[0:4]))
	typ := MessageType(buf[4])
	switch typ {
	case Start, Data, Abort, End, Heartbeat, Padding:
	default:
		return Message{}, 0, errors.Wrapf(ErrInvalidMessageType, "0x%x", byte(typ))
	}
	payloadLen := binary.LittleEndian.Uint32(buf[5:9])
	total := HeaderSize + int(payloadLen)
	if len(buf) < total {
		return Message{}, 0, errors.New("wire: short buffer for message payload")
	}
	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		copy(payload, buf[HeaderSize:total])
	}
	return Message{ClientID: clientID, Type: typ, Payload: payload}, total, nil
}

// NewControl builds a Start/Abort/End/Heartbeat message, all of which carry
// an empty payload.
func NewControl(typ MessageType, clientID ClientID) Message {
	return Message{ClientID: clientID, Type: typ}
}

// NewData builds a Data message carrying payload.
func NewData(clientID ClientID, payload []byte) Message {
	return Message{ClientID: clientID, Type: Data, Payload: payload}
}

// NewPadding builds a zero-filled Padding message of length n. Padding
// messages always carry ClientId 0 and only zero bytes, per the wire
// invariant: they exist only to round a block out to logical_block_size.
func NewPadding(n int) Message {
	return Message{ClientID: HeartbeatClientID, Type: Padding, Payload: make([]byte, n)}
}
