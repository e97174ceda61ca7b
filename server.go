package broadcast

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/broadcast/wire"
	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

// ServerConfig defines server configuration.
type ServerConfig struct {
	DatagramBufferSize uint64
	PayloadExpiration  time.Duration
	CleanupInterval    time.Duration
	Loopback           bool
	ResolveHostnames   bool
	ObjectCodec        ObjectCodec
}

// RunServer receives frames from conn and passes reassembled messages to the handler.
// Conn is closed when function returns.
func RunServer(ctx context.Context, conn net.PacketConn, config ServerConfig, handler Handler) error {
	if config.DatagramBufferSize <= wire.HeaderSize {
		_ = conn.Close()
		return errors.Wrapf(wire.ErrFrameTooSmall, "datagram buffer size %d", config.DatagramBufferSize)
	}

	var local map[string]struct{}
	if !config.Loopback {
		var err error
		local, err = localAddresses()
		if err != nil {
			_ = conn.Close()
			return err
		}
	}

	queue := NewQueue()
	sequencer := NewSequencer(SequencerConfig{
		PayloadExpiration: config.PayloadExpiration,
		CleanupInterval:   config.CleanupInterval,
		ObjectCodec:       config.ObjectCodec,
	}, queue, handler)

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("sequencer", parallel.Fail, sequencer.Run)
		spawn("receiver", parallel.Fail, func(ctx context.Context) error {
			return receive(ctx, conn, config, local, queue)
		})
		spawn("closer", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			_ = conn.Close()
			return errors.WithStack(ctx.Err())
		})

		return nil
	})
}

func receive(
	ctx context.Context,
	conn net.PacketConn,
	config ServerConfig,
	local map[string]struct{},
	queue *Queue,
) error {
	log := logger.Get(ctx)
	log.Info("Receiving datagrams", zap.Stringer("address", conn.LocalAddr()))

	names := newHostnames(config.ResolveHostnames)
	buf := make([]byte, config.DatagramBufferSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return errors.WithStack(ctx.Err())
			}
			return errors.WithStack(err)
		}

		address, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			log.Warn("Datagram with unparseable sender discarded", zap.Stringer("sender", addr))
			continue
		}
		if _, exists := local[address]; exists {
			continue
		}

		queue.Push(Datagram{
			Data: append(make([]byte, 0, n), buf[:n]...),
			Sender: Sender{
				Address:  address,
				Hostname: names.Lookup(ctx, address),
			},
		})
	}
}
