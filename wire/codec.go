package wire

import (
	"crypto/rand"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrProtocolViolation is returned when frame does not respect the wire format.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrFrameTooSmall is returned when frame size leaves no room for payload.
	ErrFrameTooSmall = errors.New("frame size must exceed header size")
)

// NewMessageID generates random message ID.
func NewMessageID() (MessageID, error) {
	var id MessageID
	if _, err := rand.Read(id[:]); err != nil {
		return MessageID{}, errors.WithStack(err)
	}
	return id, nil
}

// FragmentCount returns the number of frames required to transfer payload of the given size.
func FragmentCount(maxFrameSize, payloadSize uint64) (uint64, error) {
	if maxFrameSize <= HeaderSize {
		return 0, errors.Wrapf(ErrFrameTooSmall, "max frame size: %d", maxFrameSize)
	}
	capacity := maxFrameSize - HeaderSize
	n := payloadSize / capacity
	if payloadSize%capacity != 0 || n == 0 {
		n++
	}
	return n, nil
}

// EncodeFragments splits payload into frames sharing one fresh message ID.
func EncodeFragments(maxFrameSize uint64, messageType MessageType, payload []byte) ([]Frame, error) {
	total, err := FragmentCount(maxFrameSize, uint64(len(payload)))
	if err != nil {
		return nil, err
	}
	if total > math.MaxInt32 {
		return nil, errors.Errorf("payload of %d bytes requires too many fragments: %d", len(payload), total)
	}

	id, err := NewMessageID()
	if err != nil {
		return nil, err
	}

	capacity := maxFrameSize - HeaderSize
	frames := make([]Frame, 0, total)
	for i := range total {
		start := i * capacity
		end := min(start+capacity, uint64(len(payload)))
		frames = append(frames, Frame{
			Header: Header{
				MessageID:      id,
				MessageType:    messageType,
				TotalFragments: int32(total),
				FragmentIndex:  int32(i),
				DataLength:     int32(end - start),
			},
			Data: payload[start:end],
		})
	}
	return frames, nil
}

// EncodeCommand creates the single, payload-less frame used for signals.
func EncodeCommand(maxFrameSize uint64, messageType MessageType) (Frame, error) {
	frames, err := EncodeFragments(maxFrameSize, messageType, nil)
	if err != nil {
		return Frame{}, err
	}
	return frames[0], nil
}

// Marshal returns bytes of the frame as sent on the wire.
func (f Frame) Marshal() []byte {
	b := make([]byte, HeaderSize+len(f.Data))
	copy(b[0:16], f.Header.MessageID[:])
	binary.BigEndian.PutUint32(b[16:20], uint32(f.Header.MessageType))
	binary.BigEndian.PutUint32(b[20:24], uint32(f.Header.TotalFragments))
	binary.BigEndian.PutUint32(b[24:28], uint32(f.Header.FragmentIndex))
	binary.BigEndian.PutUint32(b[28:32], uint32(len(f.Data)))
	copy(b[HeaderSize:], f.Data)
	return b
}

// Decode parses raw frame. Returned data slice aliases raw.
func Decode(raw []byte) (Header, []byte, error) {
	if len(raw) < HeaderSize {
		return Header{}, nil, errors.Wrapf(ErrProtocolViolation, "frame of %d bytes is shorter than header", len(raw))
	}

	var h Header
	copy(h.MessageID[:], raw[0:16])
	h.MessageType = MessageType(int32(binary.BigEndian.Uint32(raw[16:20])))
	h.TotalFragments = int32(binary.BigEndian.Uint32(raw[20:24]))
	h.FragmentIndex = int32(binary.BigEndian.Uint32(raw[24:28]))
	h.DataLength = int32(binary.BigEndian.Uint32(raw[28:32]))

	switch {
	case h.TotalFragments <= 0:
		return Header{}, nil, errors.Wrapf(ErrProtocolViolation, "invalid number of fragments: %d", h.TotalFragments)
	case h.FragmentIndex < 0 || h.FragmentIndex >= h.TotalFragments:
		return Header{}, nil, errors.Wrapf(ErrProtocolViolation, "fragment index %d out of range [0, %d)",
			h.FragmentIndex, h.TotalFragments)
	case h.DataLength < 0 || int64(h.DataLength) > int64(len(raw)-HeaderSize):
		return Header{}, nil, errors.Wrapf(ErrProtocolViolation, "data length %d does not fit %d remaining bytes",
			h.DataLength, len(raw)-HeaderSize)
	}

	return h, raw[HeaderSize : HeaderSize+int(h.DataLength)], nil
}
