package codec

import (
	"encoding/json"

	"github.com/Suhaibinator/SDispatch/pkg/common"
)

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
// It implements the router's Codec interface for decoding requests and encoding responses.
type JSONCodec[T any, U any] struct {
	// Source selects where the request payload is read from; the body by default
	Source Source
}

// Decode decodes the request payload into a value of type T.
func (c *JSONCodec[T, U]) Decode(req *common.Request) (T, error) {
	var data T

	payload, err := readPayload(req, c.Source)
	if err != nil {
		return data, err
	}

	// Unmarshal the JSON
	if err := json.Unmarshal(payload, &data); err != nil {
		return data, err
	}

	return data, nil
}

// Encode marshals resp to JSON and returns it as a response with the given status.
func (c *JSONCodec[T, U]) Encode(status int, resp U) (*common.Response, error) {
	// Marshal the response
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}

	r := common.NewResponse(status, body)
	r.Header.Set("Content-Type", "application/json")
	return r, nil
}

// NewJSONCodec creates a new JSONCodec instance for the specified types.
// T represents the request type and U represents the response type.
func NewJSONCodec[T any, U any]() *JSONCodec[T, U] {
	return &JSONCodec[T, U]{}
}
