package broadcast

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/broadcast/wire"
	"github.com/outofforest/logger"
)

// ClientConfig is the config of client.
type ClientConfig struct {
	// Target is the host:port frames are sent to.
	Target             string
	DatagramBufferSize uint64
	InstanceID         string
	ObjectCodec        ObjectCodec
}

// Client sends messages to the target address.
// It is safe for concurrent use.
type Client struct {
	config ClientConfig
	target *net.UDPAddr
	conn   net.PacketConn
}

// NewClient creates new client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.DatagramBufferSize <= wire.HeaderSize {
		return nil, errors.Wrapf(wire.ErrFrameTooSmall, "datagram buffer size %d", config.DatagramBufferSize)
	}

	target, err := net.ResolveUDPAddr("udp", config.Target)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving target %q", config.Target)
	}

	network := "udp6"
	if target.IP.To4() != nil {
		network = "udp4"
	}
	conn, err := net.ListenPacket(network, ":0")
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Client{
		config: config,
		target: target,
		conn:   conn,
	}, nil
}

// SendBytes sends raw bytes.
func (c *Client) SendBytes(data []byte) error {
	return c.send(wire.MessageTypeBytes, data)
}

// SendText sends UTF-8 string.
func (c *Client) SendText(text string) error {
	return c.send(wire.MessageTypeText, []byte(text))
}

// SendObject sends object encoded by the configured codec.
func (c *Client) SendObject(obj any) error {
	if c.config.ObjectCodec == nil {
		return errors.WithStack(ErrNoObjectCodec)
	}
	data, err := c.config.ObjectCodec.Encode(obj)
	if err != nil {
		return errors.Wrapf(err, "encoding object of type %s", typeName(obj))
	}
	return c.send(wire.MessageTypeObject, data)
}

// SendHeartbeat sends heartbeat. It carries the instance ID if one is configured.
func (c *Client) SendHeartbeat() error {
	if c.config.InstanceID != "" {
		return c.send(wire.MessageTypeHeartbeat, []byte(c.config.InstanceID))
	}

	frame, err := wire.EncodeCommand(c.config.DatagramBufferSize, wire.MessageTypeHeartbeat)
	if err != nil {
		return err
	}
	return c.write(frame)
}

// RunHeartbeat sends heartbeats periodically until ctx is canceled.
func (c *Client) RunHeartbeat(ctx context.Context, interval time.Duration) error {
	log := logger.Get(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.SendHeartbeat(); err != nil {
			log.Error("Sending heartbeat failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close closes the socket.
func (c *Client) Close() error {
	return errors.WithStack(c.conn.Close())
}

func (c *Client) send(messageType wire.MessageType, payload []byte) error {
	frames, err := wire.EncodeFragments(c.config.DatagramBufferSize, messageType, payload)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := c.write(f); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) write(f wire.Frame) error {
	if _, err := c.conn.WriteTo(f.Marshal(), c.target); err != nil {
		return errors.Wrapf(err, "sending fragment %d of %d of message %s",
			f.Header.FragmentIndex, f.Header.TotalFragments, f.Header.MessageID)
	}
	return nil
}
