package codec

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"github.com/julienschmidt/httprouter"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type createUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func bodyRequest(body string) *common.Request {
	req := common.NewRequest("POST", "/users")
	req.Body = io.NopCloser(strings.NewReader(body))
	return req
}

func TestJSONCodecDecode(t *testing.T) {
	c := NewJSONCodec[createUser, userResponse]()

	got, err := c.Decode(bodyRequest(`{"name":"Alice","email":"alice@example.com"}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Name != "Alice" || got.Email != "alice@example.com" {
		t.Errorf("Unexpected decoded value: %+v", got)
	}

	if _, err := c.Decode(bodyRequest(`{"name":`)); err == nil {
		t.Error("Expected an error for malformed JSON")
	}
}

func TestJSONCodecEncode(t *testing.T) {
	c := NewJSONCodec[createUser, userResponse]()

	resp, err := c.Encode(http.StatusCreated, userResponse{ID: 7, Name: "Alice"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}
	if string(resp.Body) != `{"id":7,"name":"Alice"}` {
		t.Errorf("Unexpected body %s", resp.Body)
	}
}

func TestJSONCodecEncodeError(t *testing.T) {
	c := NewJSONCodec[createUser, chan int]()
	if _, err := c.Encode(http.StatusOK, make(chan int)); err == nil {
		t.Error("Expected an error encoding a channel")
	}
}

func TestJSONCodecSources(t *testing.T) {
	payload := []byte(`{"name":"Bob"}`)

	tests := []struct {
		name   string
		source Source
		setup  func(req *common.Request)
	}{
		{
			name:   "base64 query",
			source: Source{SourceType: Base64QueryParameter},
			setup: func(req *common.Request) {
				req.Query.Set("data", base64.StdEncoding.EncodeToString(payload))
			},
		},
		{
			name:   "base62 query with custom key",
			source: Source{SourceType: Base62QueryParameter, SourceKey: "q"},
			setup: func(req *common.Request) {
				req.Query.Set("q", EncodeBase62(payload))
			},
		},
		{
			name:   "base64 path",
			source: Source{SourceType: Base64PathParameter, SourceKey: "blob"},
			setup: func(req *common.Request) {
				req.Params = httprouter.Params{{Key: "blob", Value: base64.StdEncoding.EncodeToString(payload)}}
			},
		},
		{
			name:   "base62 path",
			source: Source{SourceType: Base62PathParameter},
			setup: func(req *common.Request) {
				req.Params = httprouter.Params{{Key: "data", Value: EncodeBase62(payload)}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &JSONCodec[createUser, userResponse]{Source: tt.source}
			req := common.NewRequest("GET", "/")
			tt.setup(req)

			got, err := c.Decode(req)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.Name != "Bob" {
				t.Errorf("Expected Bob, got %+v", got)
			}
		})
	}
}

func TestDecodeMissingPayload(t *testing.T) {
	c := &JSONCodec[createUser, userResponse]{Source: Source{SourceType: Base64QueryParameter}}
	_, err := c.Decode(common.NewRequest("GET", "/"))
	if !errors.Is(err, ErrMissingPayload) {
		t.Errorf("Expected ErrMissingPayload, got %v", err)
	}
}

func TestDecodeInvalidEncoding(t *testing.T) {
	req := common.NewRequest("GET", "/")
	req.Query.Set("data", "!!!")

	for _, st := range []SourceType{Base64QueryParameter, Base62QueryParameter} {
		c := &JSONCodec[createUser, userResponse]{Source: Source{SourceType: st}}
		if _, err := c.Decode(req); err == nil {
			t.Errorf("Expected an error for source type %d", st)
		}
	}
}

func TestBase62RoundTrip(t *testing.T) {
	in := []byte("hello, world")
	out, err := DecodeBase62(EncodeBase62(in))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(out) != string(in) {
		t.Errorf("Expected %q, got %q", in, out)
	}
}

func TestProtoCodec(t *testing.T) {
	c := NewProtoCodec[*wrapperspb.StringValue, *wrapperspb.Int64Value]()

	payload, err := proto.Marshal(wrapperspb.String("ping"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := c.Decode(bodyRequest(string(payload)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.GetValue() != "ping" {
		t.Errorf("Expected ping, got %q", got.GetValue())
	}

	resp, err := c.Encode(http.StatusOK, wrapperspb.Int64(42))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != ProtoContentType {
		t.Errorf("Expected %s, got %q", ProtoContentType, ct)
	}

	var decoded wrapperspb.Int64Value
	if err := proto.Unmarshal(resp.Body, &decoded); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if decoded.GetValue() != 42 {
		t.Errorf("Expected 42, got %d", decoded.GetValue())
	}
}

func TestProtoCodecBase64Query(t *testing.T) {
	c := &ProtoCodec[*wrapperspb.StringValue, *wrapperspb.StringValue]{
		Source: Source{SourceType: Base64QueryParameter},
	}

	payload, _ := proto.Marshal(wrapperspb.String("from-query"))
	req := common.NewRequest("GET", "/")
	req.Query.Set("data", base64.StdEncoding.EncodeToString(payload))

	got, err := c.Decode(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.GetValue() != "from-query" {
		t.Errorf("Expected from-query, got %q", got.GetValue())
	}
}

func TestProtoCodecInvalidPayload(t *testing.T) {
	c := NewProtoCodec[*wrapperspb.StringValue, *wrapperspb.StringValue]()
	if _, err := c.Decode(bodyRequest("\xff\xff\xff")); err == nil {
		t.Error("Expected an error for an invalid proto payload")
	}
}
