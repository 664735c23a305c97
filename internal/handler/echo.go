package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"github.com/Suhaibinator/SDispatch/pkg/router"
)

// EchoHandler is a class-style view: GET reflects the query string as JSON, POST sends the
// request body back to the client.
type EchoHandler struct{}

// NewEchoHandler creates an EchoHandler.
func NewEchoHandler() *EchoHandler {
	return &EchoHandler{}
}

// Before rejects POST bodies that are not text or JSON.
func (h *EchoHandler) Before(req *common.Request) (*common.Response, error) {
	if req.Method != http.MethodPost {
		return nil, nil
	}
	ct := req.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "text/") || strings.HasPrefix(ct, "application/json") {
		return nil, nil
	}
	return nil, router.NewHTTPError(http.StatusUnsupportedMediaType, "Only text and JSON bodies can be echoed")
}

// Handle produces the echo response.
func (h *EchoHandler) Handle(req *common.Request) (*common.Response, error) {
	if req.Method == http.MethodPost {
		ct := req.Header.Get("Content-Type")
		if ct == "" {
			ct = "text/plain; charset=utf-8"
		}
		if req.Body == nil {
			return common.Empty(http.StatusOK), nil
		}
		// The body must be read before the response is written, HTTP/1.x servers discard it after that
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		resp := common.NewResponse(http.StatusOK, data)
		resp.Header.Set("Content-Type", ct)
		return resp, nil
	}

	query := make(map[string]string, len(req.Query))
	for key := range req.Query {
		query[key] = req.Query.Get(key)
	}
	return jsonResponse(http.StatusOK, query)
}

// After tags every echo response.
func (h *EchoHandler) After(_ *common.Request, resp *common.Response) (*common.Response, error) {
	resp.Header.Set("X-Echo", "1")
	return nil, nil
}
