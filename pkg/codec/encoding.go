// Package codec provides encoding and decoding functionality for different data formats.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/Suhaibinator/SDispatch/pkg/common"
)

// SourceType selects where a codec reads the request payload from.
type SourceType int

const (
	// Body reads the payload from the request body (default)
	Body SourceType = iota

	// Base64QueryParameter reads a base64-encoded payload from a query parameter
	Base64QueryParameter

	// Base62QueryParameter reads a base62-encoded payload from a query parameter
	Base62QueryParameter

	// Base64PathParameter reads a base64-encoded payload from a path parameter
	Base64PathParameter

	// Base62PathParameter reads a base62-encoded payload from a path parameter
	Base62PathParameter
)

// Source describes where to read a payload from. SourceKey names the query or path parameter
// and defaults to "data".
type Source struct {
	SourceType SourceType
	SourceKey  string
}

// ErrMissingPayload is returned when the configured query or path parameter is absent.
var ErrMissingPayload = errors.New("request payload parameter is missing")

// readPayload returns the raw payload bytes for req according to src.
func readPayload(req *common.Request, src Source) ([]byte, error) {
	key := src.SourceKey
	if key == "" {
		key = "data"
	}

	var encoded string
	switch src.SourceType {
	case Body:
		if req.Body == nil {
			return nil, nil
		}
		defer req.Body.Close()
		return io.ReadAll(req.Body)
	case Base64QueryParameter, Base62QueryParameter:
		encoded = req.Query.Get(key)
	case Base64PathParameter, Base62PathParameter:
		encoded = req.Param(key)
	default:
		return nil, fmt.Errorf("unknown source type %d", src.SourceType)
	}

	if encoded == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingPayload, key)
	}
	if src.SourceType == Base62QueryParameter || src.SourceType == Base62PathParameter {
		return DecodeBase62(encoded)
	}
	return DecodeBase64(encoded)
}

// DecodeBase64 decodes a base64-encoded string to bytes.
// It uses the standard base64 encoding as defined in RFC 4648.
func DecodeBase64(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

// DecodeBase62 decodes a base62-encoded string to bytes.
// The alphabet is 0-9, a-z, A-Z, the digit order used by math/big. The value is decoded as a
// big-endian number, so leading zero bytes of the original data are not preserved.
func DecodeBase62(encoded string) ([]byte, error) {
	n, ok := new(big.Int).SetString(encoded, 62)
	if !ok {
		return nil, errors.New("invalid base62 string")
	}
	return n.Bytes(), nil
}

// EncodeBase62 encodes bytes as a base62 string, the inverse of DecodeBase62.
func EncodeBase62(data []byte) string {
	return new(big.Int).SetBytes(data).Text(62)
}
