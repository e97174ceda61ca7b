package broadcast

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/broadcast/reassembly"
	"github.com/outofforest/broadcast/wire"
	"github.com/outofforest/logger"
)

// ErrDeserialization is returned when reassembled payload can't be converted to its message.
var ErrDeserialization = errors.New("payload deserialization failed")

// ErrNoObjectCodec is returned when object is sent or received without object codec configured.
var ErrNoObjectCodec = errors.New("no object codec configured")

var errUnknownMessageType = errors.New("unknown message type")

// Sender identifies the peer a message was received from.
type Sender = reassembly.Sender

// Message is the reassembled message. It is one of Heartbeat, Bytes, Text or Object.
type Message interface {
	From() Sender
	isMessage()
}

// Heartbeat is the liveness signal of a peer.
type Heartbeat struct {
	Sender Sender

	// InstanceID is empty if peer sends command heartbeats.
	InstanceID string
}

// Bytes carries raw payload.
type Bytes struct {
	Sender Sender
	Data   []byte
}

// Text carries UTF-8 string.
type Text struct {
	Sender Sender
	Data   string
}

// Object carries value decoded by the configured object codec.
type Object struct {
	Sender Sender
	Data   any
}

// From returns sender of the message.
func (m Heartbeat) From() Sender { return m.Sender }

// From returns sender of the message.
func (m Bytes) From() Sender { return m.Sender }

// From returns sender of the message.
func (m Text) From() Sender { return m.Sender }

// From returns sender of the message.
func (m Object) From() Sender { return m.Sender }

func (Heartbeat) isMessage() {}
func (Bytes) isMessage()     {}
func (Text) isMessage()      {}
func (Object) isMessage()    {}

// Handler receives reassembled messages. Methods are called from the sequencer goroutine,
// so they block reassembly of all the other messages until they return.
type Handler interface {
	OnHeartbeat(ctx context.Context, msg Heartbeat) error
	OnBytes(ctx context.Context, msg Bytes) error
	OnText(ctx context.Context, msg Text) error
	OnObject(ctx context.Context, msg Object) error
}

func decodeMessage(
	messageType wire.MessageType,
	payload []byte,
	sender Sender,
	objects ObjectCodec,
) (Message, error) {
	switch messageType {
	case wire.MessageTypeHeartbeat:
		return Heartbeat{Sender: sender, InstanceID: decodeText(payload)}, nil
	case wire.MessageTypeBytes:
		return Bytes{Sender: sender, Data: payload}, nil
	case wire.MessageTypeText:
		return Text{Sender: sender, Data: decodeText(payload)}, nil
	case wire.MessageTypeObject:
		if objects == nil {
			return nil, errors.Wrap(ErrDeserialization, ErrNoObjectCodec.Error())
		}
		obj, err := objects.Decode(payload)
		if err != nil {
			return nil, err
		}
		return Object{Sender: sender, Data: obj}, nil
	default:
		return nil, errors.Wrapf(errUnknownMessageType, "type: %d", messageType)
	}
}

func dispatch(ctx context.Context, h Handler, msg Message) error {
	switch m := msg.(type) {
	case Heartbeat:
		return h.OnHeartbeat(ctx, m)
	case Bytes:
		return h.OnBytes(ctx, m)
	case Text:
		return h.OnText(ctx, m)
	case Object:
		return h.OnObject(ctx, m)
	default:
		return errors.Errorf("unexpected message %T", msg)
	}
}

func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "\uFFFD")
}

// ChanHandler delivers every message to the channel.
type ChanHandler chan<- Message

// OnHeartbeat delivers heartbeat.
func (h ChanHandler) OnHeartbeat(ctx context.Context, msg Heartbeat) error {
	return h.deliver(ctx, msg)
}

// OnBytes delivers bytes message.
func (h ChanHandler) OnBytes(ctx context.Context, msg Bytes) error {
	return h.deliver(ctx, msg)
}

// OnText delivers text message.
func (h ChanHandler) OnText(ctx context.Context, msg Text) error {
	return h.deliver(ctx, msg)
}

// OnObject delivers object message.
func (h ChanHandler) OnObject(ctx context.Context, msg Object) error {
	return h.deliver(ctx, msg)
}

func (h ChanHandler) deliver(ctx context.Context, msg Message) error {
	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case h <- msg:
		return nil
	}
}

// LogHandler logs received messages.
type LogHandler struct{}

// OnHeartbeat logs heartbeat.
func (LogHandler) OnHeartbeat(ctx context.Context, msg Heartbeat) error {
	fields := senderFields(msg.Sender)
	if msg.InstanceID != "" {
		fields = append(fields, zap.String("instanceID", msg.InstanceID))
	}
	logger.Get(ctx).Info("Heartbeat received", fields...)
	return nil
}

// OnBytes logs bytes message.
func (LogHandler) OnBytes(ctx context.Context, msg Bytes) error {
	logger.Get(ctx).Info("Bytes received",
		append(senderFields(msg.Sender), zap.Int("size", len(msg.Data)), zap.Binary("data", msg.Data))...)
	return nil
}

// OnText logs text message.
func (LogHandler) OnText(ctx context.Context, msg Text) error {
	logger.Get(ctx).Info("Text received", append(senderFields(msg.Sender), zap.String("data", msg.Data))...)
	return nil
}

// OnObject logs object message.
func (LogHandler) OnObject(ctx context.Context, msg Object) error {
	logger.Get(ctx).Info("Object received",
		append(senderFields(msg.Sender), zap.String("type", typeName(msg.Data)), zap.Any("data", msg.Data))...)
	return nil
}

func senderFields(s Sender) []zap.Field {
	return []zap.Field{
		zap.String("address", s.Address),
		zap.String("hostname", s.Hostname),
	}
}
