package wire

import (
	"encoding/binary"
	"encoding/hex"
)

// HeaderSize is the size of the fixed frame header.
const HeaderSize = 32

type (
	// MessageID identifies all the fragments of one logical message.
	MessageID [16]byte

	// MessageType defines how the reassembled payload is interpreted.
	MessageType int32
)

// Message types.
const (
	MessageTypeHeartbeat MessageType = iota
	MessageTypeBytes
	MessageTypeText
	MessageTypeObject
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeHeartbeat:
		return "heartbeat"
	case MessageTypeBytes:
		return "bytes"
	case MessageTypeText:
		return "text"
	case MessageTypeObject:
		return "object"
	default:
		return "unknown"
	}
}

// NewMessageIDFromHalves builds message ID from its high and low 64 bits.
func NewMessageIDFromHalves(high, low uint64) MessageID {
	var id MessageID
	binary.BigEndian.PutUint64(id[:8], high)
	binary.BigEndian.PutUint64(id[8:], low)
	return id
}

// High returns the most significant 64 bits.
func (id MessageID) High() uint64 {
	return binary.BigEndian.Uint64(id[:8])
}

// Low returns the least significant 64 bits.
func (id MessageID) Low() uint64 {
	return binary.BigEndian.Uint64(id[8:])
}

func (id MessageID) String() string {
	var buf [36]byte
	hex.Encode(buf[0:8], id[0:4])
	buf[8] = '-'
	hex.Encode(buf[9:13], id[4:6])
	buf[13] = '-'
	hex.Encode(buf[14:18], id[6:8])
	buf[18] = '-'
	hex.Encode(buf[19:23], id[8:10])
	buf[23] = '-'
	hex.Encode(buf[24:], id[10:])
	return string(buf[:])
}

// Header is the fixed header carried by every frame.
type Header struct {
	MessageID      MessageID
	MessageType    MessageType
	TotalFragments int32
	FragmentIndex  int32
	DataLength     int32
}

// Frame is a single datagram payload.
type Frame struct {
	Header Header
	Data   []byte
}
