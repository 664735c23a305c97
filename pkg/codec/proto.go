package codec

import (
	"github.com/Suhaibinator/SDispatch/pkg/common"
	"google.golang.org/protobuf/proto"
)

// ProtoContentType is the Content-Type of Protocol Buffers responses.
const ProtoContentType = "application/x-protobuf"

// ProtoCodec is a codec that uses Protocol Buffers for marshaling and unmarshaling.
// T and U are generated message pointer types, e.g. *pb.User.
type ProtoCodec[T proto.Message, U proto.Message] struct {
	// Source selects where the request payload is read from; the body by default
	Source Source
}

// Decode unmarshals the request payload into a new message of type T.
func (c *ProtoCodec[T, U]) Decode(req *common.Request) (T, error) {
	var zero T

	payload, err := readPayload(req, c.Source)
	if err != nil {
		return zero, err
	}

	// Generated message types answer ProtoReflect on a nil pointer, which gives us the type to allocate
	msg, ok := zero.ProtoReflect().Type().New().Interface().(T)
	if !ok {
		return zero, proto.Error
	}

	// Unmarshal the proto
	if err := proto.Unmarshal(payload, msg); err != nil {
		return zero, err
	}

	return msg, nil
}

// Encode marshals resp and returns it as a response with the given status.
func (c *ProtoCodec[T, U]) Encode(status int, resp U) (*common.Response, error) {
	// Marshal the response
	body, err := proto.Marshal(resp)
	if err != nil {
		return nil, err
	}

	r := common.NewResponse(status, body)
	r.Header.Set("Content-Type", ProtoContentType)
	return r, nil
}

// NewProtoCodec creates a new ProtoCodec instance for the specified types.
// T represents the request type and U represents the response type.
func NewProtoCodec[T proto.Message, U proto.Message]() *ProtoCodec[T, U] {
	return &ProtoCodec[T, U]{}
}
