package middleware

import (
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"go.uber.org/zap"
)

type testUser struct {
	ID   string
	Name string
}

func TestBasicAuthProvider(t *testing.T) {
	provider := &BasicAuthProvider{Credentials: map[string]string{"user": "password"}}

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"valid", "Basic " + base64.StdEncoding.EncodeToString([]byte("user:password")), true},
		{"wrong password", "Basic " + base64.StdEncoding.EncodeToString([]byte("user:nope")), false},
		{"unknown user", "Basic " + base64.StdEncoding.EncodeToString([]byte("bob:password")), false},
		{"missing", "", false},
		{"not basic", "Bearer token", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := common.NewRequest("GET", "/")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := provider.Authenticate(req); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBearerTokenProvider(t *testing.T) {
	mapProvider := &BearerTokenProvider{ValidTokens: map[string]bool{"good": true}}
	validatorProvider := &BearerTokenProvider{Validator: func(token string) bool { return token == "dynamic" }}

	req := common.NewRequest("GET", "/")
	req.Header.Set("Authorization", "Bearer good")
	if !mapProvider.Authenticate(req) {
		t.Error("Expected valid token to authenticate")
	}
	if validatorProvider.Authenticate(req) {
		t.Error("Expected validator to reject token")
	}

	req.Header.Set("Authorization", "Bearer dynamic")
	if !validatorProvider.Authenticate(req) {
		t.Error("Expected validator to accept token")
	}

	req.Header.Set("Authorization", "Bearer ")
	if mapProvider.Authenticate(req) {
		t.Error("Expected empty token to be rejected")
	}
}

func TestAPIKeyProvider(t *testing.T) {
	provider := &APIKeyProvider{ValidKeys: map[string]bool{"key1": true}, Header: "X-API-Key", Query: "api_key"}

	req := common.NewRequest("GET", "/")
	req.Header.Set("X-API-Key", "key1")
	if !provider.Authenticate(req) {
		t.Error("Expected header key to authenticate")
	}

	req = common.NewRequest("GET", "/")
	req.Query.Set("api_key", "key1")
	if !provider.Authenticate(req) {
		t.Error("Expected query key to authenticate")
	}

	req = common.NewRequest("GET", "/")
	req.Header.Set("X-API-Key", "wrong")
	if provider.Authenticate(req) {
		t.Error("Expected invalid key to be rejected")
	}
}

func TestAuthenticationLevels(t *testing.T) {
	m := NewBearerTokenMiddleware(map[string]bool{"good": true}, zap.NewNop())

	tests := []struct {
		name       string
		level      common.AuthLevel
		token      string
		wantStatus int // 0 means the hook continued
		wantAuthed bool
	}{
		{"no auth skips check", common.NoAuth, "", 0, false},
		{"optional without credentials", common.AuthOptional, "", 0, false},
		{"optional with credentials", common.AuthOptional, "good", 0, true},
		{"required without credentials", common.AuthRequired, "", http.StatusUnauthorized, false},
		{"required with bad credentials", common.AuthRequired, "bad", http.StatusUnauthorized, false},
		{"required with credentials", common.AuthRequired, "good", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := common.NewRequest("GET", "/")
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := m.BeforeHandler(req, &common.Route{AuthLevel: tt.level})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			if status != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, status)
			}
			if got := IsAuthenticated(req); got != tt.wantAuthed {
				t.Errorf("Expected authenticated %v, got %v", tt.wantAuthed, got)
			}
		})
	}
}

func TestAuthenticationWithUser(t *testing.T) {
	provider := &BearerTokenUserAuthProvider[testUser]{
		GetUserFunc: func(token string) (*testUser, error) {
			if token == "alice-token" {
				return &testUser{ID: "u1", Name: "Alice"}, nil
			}
			return nil, errors.New("invalid token")
		},
	}
	m := AuthenticationWithUser(provider, func(u *testUser) string { return u.ID }, zap.NewNop())
	route := &common.Route{AuthLevel: common.AuthRequired}

	req := common.NewRequest("GET", "/me")
	req.Header.Set("Authorization", "Bearer alice-token")
	if resp, err := m.BeforeHandler(req, route); resp != nil || err != nil {
		t.Fatalf("Expected authentication to pass, got %v, %v", resp, err)
	}
	user := GetUser[testUser](req)
	if user == nil || user.Name != "Alice" {
		t.Fatalf("Expected Alice in the context, got %v", user)
	}
	if got := GetUserID(req); got != "u1" {
		t.Errorf("Expected user ID u1, got %q", got)
	}

	req = common.NewRequest("GET", "/me")
	req.Header.Set("Authorization", "Bearer mallory")
	resp, _ := m.BeforeHandler(req, route)
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %v", resp)
	}
	if GetUser[testUser](req) != nil {
		t.Error("Expected no user in the context after failed authentication")
	}
}

func TestUserAuthProviders(t *testing.T) {
	basic := &BasicUserAuthProvider[testUser]{
		GetUserFunc: func(username, password string) (*testUser, error) {
			if username == "bob" && password == "secret" {
				return &testUser{ID: "u2"}, nil
			}
			return nil, errors.New("invalid credentials")
		},
	}
	req := common.NewRequest("GET", "/")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("bob:secret")))
	if user, err := basic.AuthenticateUser(req); err != nil || user.ID != "u2" {
		t.Errorf("Expected bob, got %v, %v", user, err)
	}

	apiKey := &APIKeyUserAuthProvider[testUser]{
		GetUserFunc: func(key string) (*testUser, error) { return &testUser{ID: key}, nil },
		Header:      "X-API-Key",
	}
	if _, err := apiKey.AuthenticateUser(common.NewRequest("GET", "/")); err == nil {
		t.Error("Expected an error without an API key")
	}
}
