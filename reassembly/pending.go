package reassembly

import (
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/broadcast/wire"
)

var errIncomplete = errors.New("message is incomplete")

// Sender identifies the peer a message was received from.
type Sender struct {
	Address  string
	Hostname string
}

// PendingMessage collects fragments of one message until all of them arrive.
type PendingMessage struct {
	id           wire.MessageID
	sender       Sender
	messageType  wire.MessageType
	fragments    [][]byte
	received     int
	firstArrival time.Time
}

// NewPendingMessage creates empty pending message.
func NewPendingMessage(
	id wire.MessageID,
	sender Sender,
	messageType wire.MessageType,
	totalFragments int32,
) (*PendingMessage, error) {
	if totalFragments <= 0 {
		return nil, errors.Wrapf(wire.ErrProtocolViolation, "invalid number of fragments: %d", totalFragments)
	}
	return &PendingMessage{
		id:          id,
		sender:      sender,
		messageType: messageType,
		fragments:   make([][]byte, totalFragments),
	}, nil
}

// ID returns message ID.
func (pm *PendingMessage) ID() wire.MessageID {
	return pm.id
}

// Sender returns the sender recorded when the first fragment arrived.
func (pm *PendingMessage) Sender() Sender {
	return pm.sender
}

// MessageType returns type of the message.
func (pm *PendingMessage) MessageType() wire.MessageType {
	return pm.messageType
}

// TotalFragments returns the number of fragments the message consists of.
func (pm *PendingMessage) TotalFragments() int {
	return len(pm.fragments)
}

// Received returns the number of distinct fragments stored so far.
func (pm *PendingMessage) Received() int {
	return pm.received
}

// FirstArrival returns the time the first fragment was stored.
func (pm *PendingMessage) FirstArrival() time.Time {
	return pm.firstArrival
}

// AddFragment stores a copy of data at index. Storing the same index again replaces previous data.
func (pm *PendingMessage) AddFragment(index int32, data []byte, now time.Time) error {
	if index < 0 || int(index) >= len(pm.fragments) {
		return errors.Wrapf(wire.ErrProtocolViolation, "fragment index %d out of range [0, %d)",
			index, len(pm.fragments))
	}

	if pm.firstArrival.IsZero() {
		pm.firstArrival = now
	}

	if pm.fragments[index] == nil {
		pm.received++
	}
	// Empty fragment must still be marked as received.
	pm.fragments[index] = append(make([]byte, 0, len(data)), data...)
	return nil
}

// IsComplete reports whether all the fragments have been stored.
func (pm *PendingMessage) IsComplete() bool {
	return pm.received == len(pm.fragments)
}

// IsExpired reports whether incomplete message has been waiting longer than threshold.
func (pm *PendingMessage) IsExpired(threshold time.Duration, now time.Time) bool {
	if pm.IsComplete() || pm.firstArrival.IsZero() {
		return false
	}
	return now.Sub(pm.firstArrival) > threshold
}

// Assemble concatenates fragments in index order.
func (pm *PendingMessage) Assemble() ([]byte, error) {
	if !pm.IsComplete() {
		return nil, errors.Wrapf(errIncomplete, "received %d of %d fragments", pm.received, len(pm.fragments))
	}

	var size int
	for _, f := range pm.fragments {
		size += len(f)
	}

	data := make([]byte, 0, size)
	for _, f := range pm.fragments {
		data = append(data, f...)
	}
	return data, nil
}
