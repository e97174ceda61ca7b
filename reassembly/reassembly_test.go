package reassembly_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/broadcast/reassembly"
	"github.com/outofforest/broadcast/wire"
)

var (
	sender = reassembly.Sender{Address: "10.0.0.1", Hostname: "peer1"}
	t0     = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
)

func newID(requireT *require.Assertions) wire.MessageID {
	id, err := wire.NewMessageID()
	requireT.NoError(err)
	return id
}

func TestZeroFragmentsIsRejected(t *testing.T) {
	requireT := require.New(t)

	_, err := reassembly.NewPendingMessage(newID(requireT), sender, wire.MessageTypeBytes, 0)
	requireT.ErrorIs(err, wire.ErrProtocolViolation)

	_, err = reassembly.NewPendingMessage(newID(requireT), sender, wire.MessageTypeBytes, -3)
	requireT.ErrorIs(err, wire.ErrProtocolViolation)
}

func TestFragmentsAreAssembledInIndexOrder(t *testing.T) {
	requireT := require.New(t)

	pm, err := reassembly.NewPendingMessage(newID(requireT), sender, wire.MessageTypeBytes, 3)
	requireT.NoError(err)
	requireT.True(pm.FirstArrival().IsZero())

	requireT.NoError(pm.AddFragment(2, []byte("c"), t0))
	requireT.Equal(t0, pm.FirstArrival())
	requireT.False(pm.IsComplete())

	_, err = pm.Assemble()
	requireT.Error(err)

	requireT.NoError(pm.AddFragment(0, []byte("aaa"), t0.Add(time.Second)))
	requireT.NoError(pm.AddFragment(1, []byte("bb"), t0.Add(2*time.Second)))
	requireT.Equal(t0, pm.FirstArrival())
	requireT.True(pm.IsComplete())
	requireT.Equal(3, pm.Received())

	data, err := pm.Assemble()
	requireT.NoError(err)
	requireT.Equal([]byte("aaabbc"), data)
}

func TestDuplicateFragmentIsIdempotent(t *testing.T) {
	requireT := require.New(t)

	pm, err := reassembly.NewPendingMessage(newID(requireT), sender, wire.MessageTypeBytes, 2)
	requireT.NoError(err)

	requireT.NoError(pm.AddFragment(0, []byte("ab"), t0))
	requireT.NoError(pm.AddFragment(0, []byte("ab"), t0))
	requireT.False(pm.IsComplete())
	requireT.Equal(1, pm.Received())

	requireT.NoError(pm.AddFragment(1, []byte("cd"), t0))
	requireT.NoError(pm.AddFragment(1, []byte("cd"), t0))
	requireT.True(pm.IsComplete())

	data, err := pm.Assemble()
	requireT.NoError(err)
	requireT.Equal([]byte("abcd"), data)
}

func TestFragmentDataIsCopied(t *testing.T) {
	requireT := require.New(t)

	pm, err := reassembly.NewPendingMessage(newID(requireT), sender, wire.MessageTypeBytes, 1)
	requireT.NoError(err)

	buf := []byte("xyz")
	requireT.NoError(pm.AddFragment(0, buf, t0))
	buf[0] = 'q'

	data, err := pm.Assemble()
	requireT.NoError(err)
	requireT.Equal([]byte("xyz"), data)
}

func TestEmptyFragmentCompletesMessage(t *testing.T) {
	requireT := require.New(t)

	pm, err := reassembly.NewPendingMessage(newID(requireT), sender, wire.MessageTypeHeartbeat, 1)
	requireT.NoError(err)

	requireT.NoError(pm.AddFragment(0, nil, t0))
	requireT.True(pm.IsComplete())

	data, err := pm.Assemble()
	requireT.NoError(err)
	requireT.Empty(data)
}

func TestOutOfRangeIndexIsRejected(t *testing.T) {
	requireT := require.New(t)

	pm, err := reassembly.NewPendingMessage(newID(requireT), sender, wire.MessageTypeBytes, 2)
	requireT.NoError(err)

	for _, index := range []int32{-1, 2, 100} {
		requireT.ErrorIs(pm.AddFragment(index, []byte("a"), t0), wire.ErrProtocolViolation)
	}
	requireT.Equal(0, pm.Received())
	requireT.True(pm.FirstArrival().IsZero())
}

func TestExpiry(t *testing.T) {
	requireT := require.New(t)

	pm, err := reassembly.NewPendingMessage(newID(requireT), sender, wire.MessageTypeBytes, 2)
	requireT.NoError(err)

	requireT.False(pm.IsExpired(time.Second, t0.Add(time.Hour)))

	requireT.NoError(pm.AddFragment(0, []byte("a"), t0))
	requireT.False(pm.IsExpired(time.Second, t0.Add(time.Second)))
	requireT.True(pm.IsExpired(time.Second, t0.Add(time.Second+time.Millisecond)))

	requireT.NoError(pm.AddFragment(1, []byte("b"), t0))
	requireT.False(pm.IsExpired(time.Second, t0.Add(time.Hour)))
}

func TestTableGetOrCreate(t *testing.T) {
	requireT := require.New(t)

	table := reassembly.NewTable()
	id := newID(requireT)

	pm1, created, err := table.GetOrCreate(id, sender, wire.MessageTypeText, 2)
	requireT.NoError(err)
	requireT.True(created)

	other := reassembly.Sender{Address: "10.0.0.2", Hostname: "peer2"}
	pm2, created, err := table.GetOrCreate(id, other, wire.MessageTypeBytes, 5)
	requireT.NoError(err)
	requireT.False(created)
	requireT.Same(pm1, pm2)
	requireT.Equal(sender, pm2.Sender())
	requireT.Equal(wire.MessageTypeText, pm2.MessageType())
	requireT.Equal(2, pm2.TotalFragments())

	_, _, err = table.GetOrCreate(newID(requireT), sender, wire.MessageTypeText, 0)
	requireT.ErrorIs(err, wire.ErrProtocolViolation)
	requireT.Equal(1, table.Len())
}

func TestTableComplete(t *testing.T) {
	requireT := require.New(t)

	table := reassembly.NewTable()
	id := newID(requireT)

	pm, _, err := table.GetOrCreate(id, sender, wire.MessageTypeText, 1)
	requireT.NoError(err)
	requireT.NoError(pm.AddFragment(0, []byte("done"), t0))

	completed, exists := table.Complete(id)
	requireT.True(exists)
	requireT.Same(pm, completed)

	_, exists = table.Get(id)
	requireT.False(exists)

	_, exists = table.Complete(id)
	requireT.False(exists)
}

func TestTableSweepExpired(t *testing.T) {
	requireT := require.New(t)

	table := reassembly.NewTable()

	staleID := newID(requireT)
	stale, _, err := table.GetOrCreate(staleID, sender, wire.MessageTypeBytes, 3)
	requireT.NoError(err)
	requireT.NoError(stale.AddFragment(0, []byte("a"), t0))

	freshID := newID(requireT)
	fresh, _, err := table.GetOrCreate(freshID, sender, wire.MessageTypeBytes, 3)
	requireT.NoError(err)
	requireT.NoError(fresh.AddFragment(0, []byte("a"), t0.Add(5*time.Second)))

	completeID := newID(requireT)
	complete, _, err := table.GetOrCreate(completeID, sender, wire.MessageTypeBytes, 1)
	requireT.NoError(err)
	requireT.NoError(complete.AddFragment(0, []byte("a"), t0))

	requireT.Equal(0, table.SweepExpired(3*time.Second, t0.Add(3*time.Second)))
	requireT.Equal(1, table.SweepExpired(3*time.Second, t0.Add(6*time.Second)))

	_, exists := table.Get(staleID)
	requireT.False(exists)
	_, exists = table.Get(freshID)
	requireT.True(exists)
	_, exists = table.Get(completeID)
	requireT.True(exists)

	requireT.Equal(1, table.SweepExpired(3*time.Second, t0.Add(time.Hour)))
	_, exists = table.Get(completeID)
	requireT.True(exists)
	requireT.Equal(1, table.Len())
}

func TestTableRemove(t *testing.T) {
	requireT := require.New(t)

	table := reassembly.NewTable()
	id := newID(requireT)

	_, _, err := table.GetOrCreate(id, sender, wire.MessageTypeBytes, 2)
	requireT.NoError(err)

	table.Remove(id)
	requireT.Equal(0, table.Len())
}
