// Package handler holds the views served by the sdispatch demo server.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Suhaibinator/SDispatch/pkg/common"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(v Version) *HealthHandler {
	return &HealthHandler{version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(*common.Request) (*common.Response, error) {
	return jsonResponse(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": string(h.version),
	})
}

// jsonResponse marshals v into a JSON response.
func jsonResponse(status int, v any) (*common.Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	resp := common.NewResponse(status, data)
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}
