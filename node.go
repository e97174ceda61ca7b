package broadcast

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

// Node broadcasts messages to the peers and receives messages broadcast by them.
type Node struct {
	config  Config
	handler Handler
	client  *Client
}

// NewNode creates node. Messages may be sent right away, receiving starts once Run is called.
func NewNode(config Config, handler Handler) (*Node, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := NewClient(ClientConfig{
		Target:             config.TargetAddress(),
		DatagramBufferSize: config.DatagramBufferSize,
		InstanceID:         config.InstanceID,
		ObjectCodec:        config.ObjectCodec,
	})
	if err != nil {
		return nil, err
	}

	return &Node{
		config:  config,
		handler: handler,
		client:  client,
	}, nil
}

// Run receives messages and emits heartbeats until ctx is canceled.
func (n *Node) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp4", net.JoinHostPort("", strconv.Itoa(n.config.Port)))
	if err != nil {
		return errors.Wrapf(err, "binding port %d", n.config.Port)
	}

	log := logger.Get(ctx)
	log.Info("Broadcast node started",
		zap.Int("port", n.config.Port),
		zap.String("broadcastAddress", n.config.BroadcastAddress))
	defer log.Info("Broadcast node stopped")

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("server", parallel.Fail, func(ctx context.Context) error {
			return RunServer(ctx, conn, ServerConfig{
				DatagramBufferSize: n.config.DatagramBufferSize,
				PayloadExpiration:  n.config.PayloadExpiration,
				CleanupInterval:    n.config.CleanupInterval,
				Loopback:           n.config.Loopback,
				ResolveHostnames:   n.config.ResolveHostnames,
				ObjectCodec:        n.config.ObjectCodec,
			}, n.handler)
		})
		if n.config.HeartbeatInterval > 0 {
			spawn("heartbeat", parallel.Fail, func(ctx context.Context) error {
				return n.client.RunHeartbeat(ctx, n.config.HeartbeatInterval)
			})
		}

		return nil
	})
}

// SendBytes broadcasts raw bytes.
func (n *Node) SendBytes(data []byte) error {
	return n.client.SendBytes(data)
}

// SendText broadcasts UTF-8 string.
func (n *Node) SendText(text string) error {
	return n.client.SendText(text)
}

// SendObject broadcasts object.
func (n *Node) SendObject(obj any) error {
	return n.client.SendObject(obj)
}

// SendHeartbeat broadcasts heartbeat.
func (n *Node) SendHeartbeat() error {
	return n.client.SendHeartbeat()
}

// Close releases the sending socket.
func (n *Node) Close() error {
	return n.client.Close()
}
