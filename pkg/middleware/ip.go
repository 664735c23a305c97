package middleware

import (
	"net"
	"strings"

	"github.com/Suhaibinator/SDispatch/pkg/common"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the name of the custom header to use when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For
	// If false, RemoteAddr is used for all sources
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// ClientIPKey is the key used to store the client IP in the request context
const ClientIPKey contextKey = "client_ip"

// ClientIP extracts the client IP from the request context
func ClientIP(req *common.Request) string {
	if ip, ok := req.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}

// ClientIPMiddleware creates a middleware that extracts the client IP in before_route
// and adds it to the request context
func ClientIPMiddleware(config *IPConfig) Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return Middleware{
		Name: "client_ip",
		BeforeRoute: func(req *common.Request) (*common.Response, error) {
			req.WithValue(ClientIPKey, extractClientIP(req, config))
			return nil, nil
		},
	}
}

// extractClientIP extracts the client IP from the request based on the configuration
func extractClientIP(req *common.Request, config *IPConfig) string {
	var ip string

	switch config.Source {
	case IPSourceXRealIP:
		ip = req.Header.Get("X-Real-IP")
	case IPSourceCustomHeader:
		ip = req.Header.Get(config.CustomHeader)
	case IPSourceRemoteAddr:
		ip = req.RemoteAddr
	default:
		ip = extractIPFromXForwardedFor(req)
	}

	// If we don't trust proxy headers or couldn't extract an IP, fall back to RemoteAddr
	if !config.TrustProxy || ip == "" {
		ip = req.RemoteAddr
	}

	return cleanIP(strings.TrimSpace(ip))
}

// extractIPFromXForwardedFor extracts the client IP from the X-Forwarded-For header
// The X-Forwarded-For header contains a comma-separated list of IPs, with the leftmost being the original client
func extractIPFromXForwardedFor(req *common.Request) string {
	xff := req.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP removes the port from an IP address if present
func cleanIP(ip string) string {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	// Bracketed IPv6 without a port
	return strings.TrimSuffix(strings.TrimPrefix(ip, "["), "]")
}
