package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"go.uber.org/zap"
)

// AuthProvider defines an interface for authentication providers.
// The framework includes several implementations: BasicAuthProvider,
// BearerTokenProvider, and APIKeyProvider.
type AuthProvider interface {
	// Authenticate returns true if the request carries valid credentials.
	Authenticate(req *common.Request) bool
}

// BasicAuthProvider provides HTTP Basic Authentication.
// It validates username and password credentials against a predefined map.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
}

// Authenticate authenticates a request using HTTP Basic Authentication.
func (p *BasicAuthProvider) Authenticate(req *common.Request) bool {
	username, password, ok := basicAuth(req)
	if !ok {
		return false
	}

	expectedPassword, exists := p.Credentials[username]
	if !exists {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(password), []byte(expectedPassword)) == 1
}

// BearerTokenProvider provides Bearer Token Authentication.
// It can validate tokens against a predefined map or using a custom validator function.
type BearerTokenProvider struct {
	ValidTokens map[string]bool         // token -> valid
	Validator   func(token string) bool // optional token validator
}

// Authenticate authenticates a request using Bearer Token Authentication.
// The validator function takes precedence over the ValidTokens map.
func (p *BearerTokenProvider) Authenticate(req *common.Request) bool {
	token, ok := bearerToken(req)
	if !ok {
		return false
	}

	if p.Validator != nil {
		return p.Validator(token)
	}
	return p.ValidTokens[token]
}

// APIKeyProvider provides API Key Authentication.
// It can validate API keys provided in a header or query parameter.
type APIKeyProvider struct {
	ValidKeys map[string]bool // key -> valid
	Header    string          // header name (e.g., "X-API-Key")
	Query     string          // query parameter name (e.g., "api_key")
}

// Authenticate authenticates a request using API Key Authentication.
func (p *APIKeyProvider) Authenticate(req *common.Request) bool {
	key, ok := apiKey(req, p.Header, p.Query)
	return ok && p.ValidKeys[key]
}

type authenticatedKey struct{}

// IsAuthenticated reports whether an authentication middleware accepted the request's credentials.
func IsAuthenticated(req *common.Request) bool {
	ok, _ := req.Value(authenticatedKey{}).(bool)
	return ok
}

// Authentication creates a middleware that enforces the matched route's AuthLevel in before_handler.
// NoAuth routes are not checked. AuthOptional routes proceed either way, AuthRequired routes
// are answered with 401 Unauthorized when the provider rejects the request.
func Authentication(provider AuthProvider, logger *zap.Logger) Middleware {
	return Middleware{
		Name: "authentication",
		BeforeHandler: func(req *common.Request, route *common.Route) (*common.Response, error) {
			if route.AuthLevel == common.NoAuth {
				return nil, nil
			}

			if provider.Authenticate(req) {
				req.WithValue(authenticatedKey{}, true)
				logger.Debug("Authentication successful",
					zap.String("method", req.Method),
					zap.String("path", req.Path),
				)
				return nil, nil
			}

			if route.AuthLevel == common.AuthOptional {
				return nil, nil
			}

			logger.Warn("Authentication failed",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.String("remote_addr", req.RemoteAddr),
			)
			return unauthorized(), nil
		},
	}
}

// NewBasicAuthMiddleware creates a middleware that uses HTTP Basic Authentication.
func NewBasicAuthMiddleware(credentials map[string]string, logger *zap.Logger) Middleware {
	return Authentication(&BasicAuthProvider{Credentials: credentials}, logger)
}

// NewBearerTokenMiddleware creates a middleware that uses Bearer Token Authentication.
func NewBearerTokenMiddleware(validTokens map[string]bool, logger *zap.Logger) Middleware {
	return Authentication(&BearerTokenProvider{ValidTokens: validTokens}, logger)
}

// NewAPIKeyMiddleware creates a middleware that uses API Key Authentication.
// It takes a map of valid API keys and the header and query parameter names to check.
func NewAPIKeyMiddleware(validKeys map[string]bool, header, query string, logger *zap.Logger) Middleware {
	return Authentication(&APIKeyProvider{ValidKeys: validKeys, Header: header, Query: query}, logger)
}

// UserAuthProvider defines an interface for authentication providers that return a user object.
type UserAuthProvider[T any] interface {
	// AuthenticateUser returns the user for the request's credentials, or an error.
	AuthenticateUser(req *common.Request) (*T, error)
}

// BasicUserAuthProvider provides HTTP Basic Authentication with user object return.
type BasicUserAuthProvider[T any] struct {
	GetUserFunc func(username, password string) (*T, error)
}

// AuthenticateUser authenticates a request using HTTP Basic Authentication.
func (p *BasicUserAuthProvider[T]) AuthenticateUser(req *common.Request) (*T, error) {
	username, password, ok := basicAuth(req)
	if !ok {
		return nil, errors.New("no basic auth credentials")
	}
	return p.GetUserFunc(username, password)
}

// BearerTokenUserAuthProvider provides Bearer Token Authentication with user object return.
type BearerTokenUserAuthProvider[T any] struct {
	GetUserFunc func(token string) (*T, error)
}

// AuthenticateUser authenticates a request using Bearer Token Authentication.
func (p *BearerTokenUserAuthProvider[T]) AuthenticateUser(req *common.Request) (*T, error) {
	token, ok := bearerToken(req)
	if !ok {
		return nil, errors.New("no bearer token")
	}
	return p.GetUserFunc(token)
}

// APIKeyUserAuthProvider provides API Key Authentication with user object return.
type APIKeyUserAuthProvider[T any] struct {
	GetUserFunc func(key string) (*T, error)
	Header      string // header name (e.g., "X-API-Key")
	Query       string // query parameter name (e.g., "api_key")
}

// AuthenticateUser authenticates a request using API Key Authentication.
func (p *APIKeyUserAuthProvider[T]) AuthenticateUser(req *common.Request) (*T, error) {
	key, ok := apiKey(req, p.Header, p.Query)
	if !ok {
		return nil, errors.New("no API key found")
	}
	return p.GetUserFunc(key)
}

// userObjectKey is a custom type for the user object context key to avoid collisions
// It's generic to support different user object types
type userObjectKey[T any] struct{}

type userIDKey struct{}

// AuthenticationWithUser creates a middleware like Authentication that also stores the
// authenticated user in the request context. When userID is set, the user's ID is stored as
// well so that per-user rate limiting can key on it.
func AuthenticationWithUser[T any](provider UserAuthProvider[T], userID func(*T) string, logger *zap.Logger) Middleware {
	return Middleware{
		Name: "authentication",
		BeforeHandler: func(req *common.Request, route *common.Route) (*common.Response, error) {
			if route.AuthLevel == common.NoAuth {
				return nil, nil
			}

			user, err := provider.AuthenticateUser(req)
			if err == nil && user != nil {
				req.WithValue(authenticatedKey{}, true)
				req.WithValue(userObjectKey[T]{}, user)
				if userID != nil {
					req.WithValue(userIDKey{}, userID(user))
				}
				return nil, nil
			}

			if route.AuthLevel == common.AuthOptional {
				return nil, nil
			}

			logger.Warn("Authentication failed",
				zap.Error(err),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.String("remote_addr", req.RemoteAddr),
			)
			return unauthorized(), nil
		},
	}
}

// GetUser retrieves the user from the request context.
// Returns nil if no user is found in the context.
func GetUser[T any](req *common.Request) *T {
	user, _ := req.Value(userObjectKey[T]{}).(*T)
	return user
}

// GetUserID retrieves the authenticated user's ID, or "" when unknown.
func GetUserID(req *common.Request) string {
	id, _ := req.Value(userIDKey{}).(string)
	return id
}

func unauthorized() *common.Response {
	return jsonError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
}

// basicAuth parses the Authorization header with net/http's own Basic parser.
func basicAuth(req *common.Request) (username, password string, ok bool) {
	return (&http.Request{Header: req.Header}).BasicAuth()
}

func bearerToken(req *common.Request) (string, bool) {
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	return token, ok && token != ""
}

// apiKey looks up a key in the header first, then in the query string.
func apiKey(req *common.Request, header, query string) (string, bool) {
	if header != "" {
		if key := req.Header.Get(header); key != "" {
			return key, true
		}
	}
	if query != "" {
		if key := req.Query.Get(query); key != "" {
			return key, true
		}
	}
	return "", false
}
