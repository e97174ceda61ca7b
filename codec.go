package broadcast

import (
	"github.com/pkg/errors"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
)

// ObjectCodec converts objects to payload of object messages and back.
type ObjectCodec interface {
	Encode(obj any) ([]byte, error)
	Decode(data []byte) (any, error)
}

var _ ObjectCodec = ProtonCodec{}

// ProtonCodec encodes objects using proton marshaller.
// Payload starts with the varint-encoded ID of the message type followed by the marshalled message.
type ProtonCodec struct {
	Marshaller proton.Marshaller
}

// NewProtonCodec creates codec for messages supported by the marshaller.
func NewProtonCodec(m proton.Marshaller) ProtonCodec {
	return ProtonCodec{Marshaller: m}
}

// Encode encodes object.
func (c ProtonCodec) Encode(obj any) ([]byte, error) {
	id, err := c.Marshaller.ID(obj)
	if err != nil {
		return nil, err
	}
	size, err := c.Marshaller.Size(obj)
	if err != nil {
		return nil, err
	}

	var n uint64
	helpers.UInt64Size(id, &n)

	buf := make([]byte, n+size)
	var o uint64
	helpers.UInt64Marshal(id, buf, &o)

	_, msgSize, err := c.Marshaller.Marshal(obj, buf[o:])
	if err != nil {
		return nil, err
	}
	return buf[:o+msgSize], nil
}

// Decode decodes object.
func (c ProtonCodec) Decode(data []byte) (retObj any, retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = errors.Wrapf(ErrDeserialization, "malformed object payload: %v", r)
		}
	}()

	var id, o uint64
	helpers.UInt64Unmarshal(&id, data, &o)

	obj, size, err := c.Marshaller.Unmarshal(id, data[o:])
	if err != nil {
		return nil, errors.Wrapf(ErrDeserialization, "unmarshaling object: %s", err)
	}
	if o+size != uint64(len(data)) {
		return nil, errors.Wrapf(ErrDeserialization, "object occupies %d bytes of %d byte payload", o+size, len(data))
	}
	return obj, nil
}
