package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Suhaibinator/SDispatch/pkg/common"
)

// CORSConfig configures cross-origin resource sharing.
// An empty Origins list, or one containing "*", allows every origin.
type CORSConfig struct {
	Origins          []string
	Methods          []string
	Headers          []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORS creates a middleware that answers preflight requests and adds CORS headers to responses.
//
// Requests carrying an Origin that is not allowed are rejected with 403 in before_route.
// OPTIONS requests are answered with 200 and the CORS headers without reaching the router.
// Other requests get the headers added to their final response in after_handler.
func CORS(config CORSConfig) Middleware {
	wildcard := len(config.Origins) == 0 || slices.Contains(config.Origins, "*")

	// allowOrigin returns the Access-Control-Allow-Origin value for origin, or "" when disallowed
	allowOrigin := func(origin string) string {
		if wildcard {
			return "*"
		}
		for _, allowed := range config.Origins {
			if strings.EqualFold(allowed, origin) {
				return origin
			}
		}
		return ""
	}

	setHeaders := func(h http.Header, allowed string) {
		h.Set("Access-Control-Allow-Origin", allowed)
		if allowed != "*" {
			h.Add("Vary", "Origin")
		}
		if v := joinList(config.Methods); v != "" {
			h.Set("Access-Control-Allow-Methods", v)
		}
		if v := joinList(config.Headers); v != "" {
			h.Set("Access-Control-Allow-Headers", v)
		}
		if v := joinList(config.ExposedHeaders); v != "" {
			h.Set("Access-Control-Expose-Headers", v)
		}
		if config.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if config.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
		}
	}

	return Middleware{
		Name: "cors",
		BeforeRoute: func(req *common.Request) (*common.Response, error) {
			origin := req.Header.Get("Origin")
			if origin == "" {
				// Not a cross-origin request
				return nil, nil
			}

			allowed := allowOrigin(origin)
			if allowed == "" {
				return jsonError(http.StatusForbidden, "FORBIDDEN", "Origin not allowed"), nil
			}

			if req.Method == http.MethodOptions {
				resp := common.Empty(http.StatusOK)
				setHeaders(resp.Header, allowed)
				return resp, nil
			}
			return nil, nil
		},
		AfterHandler: func(req *common.Request, resp *common.Response) (*common.Response, error) {
			origin := req.Header.Get("Origin")
			if origin == "" || req.Method == http.MethodOptions {
				return nil, nil
			}
			if allowed := allowOrigin(origin); allowed != "" {
				setHeaders(resp.Header, allowed)
			}
			return nil, nil
		},
	}
}

// joinList joins header values, collapsing any list containing "*" to "*".
func joinList(values []string) string {
	if slices.Contains(values, "*") {
		return "*"
	}
	return strings.Join(values, ", ")
}
