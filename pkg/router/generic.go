package router

import (
	"errors"
	"net/http"

	"github.com/Suhaibinator/SDispatch/pkg/common"
)

// RegisterGenericRoute registers a route with generic request and response types.
// This is a standalone function rather than a method because Go methods cannot have type parameters.
// The view decodes the request with the route's codec, calls the handler and encodes its result.
// Decode failures become 400 responses, oversized bodies 413.
func RegisterGenericRoute[Req any, Resp any](r *Router, route RouteConfig[Req, Resp]) error {
	if route.Handler == nil || route.Codec == nil {
		return ErrNilHandler
	}

	status := route.SuccessStatus
	if status == 0 {
		status = http.StatusOK
	}

	view := common.View{
		Handle: func(req *common.Request) (*common.Response, error) {
			// Decode the request
			data, err := route.Codec.Decode(req)
			if err != nil {
				return nil, decodeError(err)
			}

			// Call the handler
			resp, err := route.Handler(req, data)
			if err != nil {
				return nil, err
			}

			// Encode the response
			return route.Codec.Encode(status, resp)
		},
		OnException: route.OnException,
	}

	return r.RegisterRoute(RouteConfigBase{
		Name:      route.Name,
		Path:      route.Path,
		Pattern:   route.Pattern,
		Methods:   route.Methods,
		View:      view,
		AuthLevel: route.AuthLevel,
		Meta:      route.Meta,
	})
}

func decodeError(err error) error {
	var maxBytesErr *http.MaxBytesError
	var httpErr *HTTPError
	if errors.As(err, &maxBytesErr) || errors.As(err, &httpErr) {
		return err
	}
	return &HTTPError{
		StatusCode: http.StatusBadRequest,
		Code:       "MALFORMED_REQUEST",
		Message:    "Failed to decode request",
		Err:        err,
	}
}
