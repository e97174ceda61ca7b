package reassembly

import (
	"time"

	"github.com/outofforest/broadcast/wire"
)

// Table maps message IDs to messages being reassembled.
// It is not safe for concurrent use, the owning goroutine is the only one allowed to touch it.
type Table struct {
	pending map[wire.MessageID]*PendingMessage
}

// NewTable creates empty table.
func NewTable() *Table {
	return &Table{
		pending: map[wire.MessageID]*PendingMessage{},
	}
}

// GetOrCreate returns pending message for the ID, creating it if it does not exist yet.
// Returned flag is true if message has been created by this call.
func (t *Table) GetOrCreate(
	id wire.MessageID,
	sender Sender,
	messageType wire.MessageType,
	totalFragments int32,
) (*PendingMessage, bool, error) {
	if pm, exists := t.pending[id]; exists {
		return pm, false, nil
	}

	pm, err := NewPendingMessage(id, sender, messageType, totalFragments)
	if err != nil {
		return nil, false, err
	}
	t.pending[id] = pm
	return pm, true, nil
}

// Get returns pending message if it exists.
func (t *Table) Get(id wire.MessageID) (*PendingMessage, bool) {
	pm, exists := t.pending[id]
	return pm, exists
}

// Complete removes and returns the message. Caller is expected to check completeness first.
func (t *Table) Complete(id wire.MessageID) (*PendingMessage, bool) {
	pm, exists := t.pending[id]
	if exists {
		delete(t.pending, id)
	}
	return pm, exists
}

// Remove discards the message.
func (t *Table) Remove(id wire.MessageID) {
	delete(t.pending, id)
}

// Len returns the number of messages being reassembled.
func (t *Table) Len() int {
	return len(t.pending)
}

// SweepExpired discards messages waiting for missing fragments for longer than threshold.
// It returns the number of discarded messages.
func (t *Table) SweepExpired(threshold time.Duration, now time.Time) int {
	var expired []wire.MessageID
	for id, pm := range t.pending {
		if pm.IsExpired(threshold, now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(t.pending, id)
	}
	return len(expired)
}
