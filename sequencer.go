package broadcast

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/broadcast/reassembly"
	"github.com/outofforest/broadcast/wire"
	"github.com/outofforest/logger"
)

// ErrAlreadyRunning is returned when sequencer is started twice.
var ErrAlreadyRunning = errors.New("sequencer is already running")

// SequencerConfig configures sequencer.
type SequencerConfig struct {
	// PayloadExpiration is the time incomplete message may wait for the missing fragments.
	PayloadExpiration time.Duration

	// CleanupInterval is the period of sweeping expired messages. Zero disables the sweep.
	CleanupInterval time.Duration

	// ObjectCodec decodes object messages. Object messages are dropped if it is nil.
	ObjectCodec ObjectCodec
}

// Sequencer consumes frames from the queue, reassembles messages and passes them to the handler.
type Sequencer struct {
	config  SequencerConfig
	queue   *Queue
	handler Handler

	running atomic.Bool
	table   *reassembly.Table
}

// NewSequencer creates sequencer.
func NewSequencer(config SequencerConfig, queue *Queue, handler Handler) *Sequencer {
	return &Sequencer{
		config:  config,
		queue:   queue,
		handler: handler,
		table:   reassembly.NewTable(),
	}
}

// Run processes frames until ctx is canceled.
func (s *Sequencer) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.WithStack(ErrAlreadyRunning)
	}
	defer s.running.Store(false)
	defer s.queue.Clear()

	log := logger.Get(ctx)
	log.Info("Sequencer started")
	defer log.Info("Sequencer stopped")

	lastSweep := time.Now()
	for {
		d, ok, err := s.next(ctx, lastSweep)
		if err != nil {
			return err
		}
		if ok {
			s.process(ctx, d)
		}

		if s.config.CleanupInterval > 0 && time.Since(lastSweep) >= s.config.CleanupInterval {
			if n := s.table.SweepExpired(s.config.PayloadExpiration, time.Now()); n > 0 {
				log.Debug("Expired messages discarded", zap.Int("count", n), zap.Int("pending", s.table.Len()))
			}
			lastSweep = time.Now()
		}
	}
}

// next waits for the next datagram but not longer than until the next sweep is due.
func (s *Sequencer) next(ctx context.Context, lastSweep time.Time) (Datagram, bool, error) {
	if s.config.CleanupInterval <= 0 {
		d, err := s.queue.Pop(ctx)
		return d, err == nil, err
	}

	wait := s.config.CleanupInterval - time.Since(lastSweep)
	if wait <= 0 {
		return Datagram{}, false, nil
	}

	popCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	d, err := s.queue.Pop(popCtx)
	switch {
	case err == nil:
		return d, true, nil
	case ctx.Err() != nil:
		return Datagram{}, false, errors.WithStack(ctx.Err())
	default:
		return Datagram{}, false, nil
	}
}

func (s *Sequencer) process(ctx context.Context, d Datagram) {
	log := logger.Get(ctx)

	h, data, err := wire.Decode(d.Data)
	if err != nil {
		log.Warn("Invalid frame discarded", zap.String("address", d.Sender.Address), zap.Error(err))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.table.Remove(h.MessageID)
			log.Error("Processing frame panicked, message discarded",
				zap.Stringer("messageID", h.MessageID), zap.Any("panic", r))
		}
	}()

	if err := s.processFrame(ctx, h, data, d.Sender); err != nil {
		switch {
		case errors.Is(err, wire.ErrProtocolViolation):
			log.Warn("Invalid frame discarded", zap.Stringer("messageID", h.MessageID),
				zap.String("address", d.Sender.Address), zap.Error(err))
		case errors.Is(err, ErrDeserialization):
			log.Error("Message can't be deserialized, discarded", zap.Stringer("messageID", h.MessageID),
				zap.Error(err))
		default:
			s.table.Remove(h.MessageID)
			log.Error("Processing frame failed, message discarded", zap.Stringer("messageID", h.MessageID),
				zap.Error(err))
		}
	}
}

func (s *Sequencer) processFrame(ctx context.Context, h wire.Header, data []byte, sender Sender) error {
	pm, created, err := s.table.GetOrCreate(h.MessageID, sender, h.MessageType, h.TotalFragments)
	if err != nil {
		return err
	}
	// Fragments are trusted to belong to the sender which delivered the first one.
	if !created && pm.Sender() != sender {
		logger.Get(ctx).Warn("Fragment received from a different sender",
			zap.Stringer("messageID", h.MessageID),
			zap.String("expectedAddress", pm.Sender().Address),
			zap.String("address", sender.Address))
	}

	if err := pm.AddFragment(h.FragmentIndex, data, time.Now()); err != nil {
		return err
	}
	if !pm.IsComplete() {
		return nil
	}

	s.table.Complete(h.MessageID)

	payload, err := pm.Assemble()
	if err != nil {
		return err
	}

	msg, err := decodeMessage(pm.MessageType(), payload, pm.Sender(), s.config.ObjectCodec)
	if err != nil {
		return err
	}

	logger.Get(ctx).Debug("Message reassembled",
		zap.Stringer("messageID", h.MessageID),
		zap.Stringer("messageType", pm.MessageType()),
		zap.Int("fragments", pm.TotalFragments()),
		zap.Int("size", len(payload)))

	return dispatch(ctx, s.handler, msg)
}
