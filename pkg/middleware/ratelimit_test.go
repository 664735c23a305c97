package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTokenBucketLimiter(t *testing.T) {
	limiter := NewTokenBucketLimiter()

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := limiter.Allow("test", 3, time.Minute)
		if !allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
		if remaining != 2-i {
			t.Errorf("Expected %d remaining after request %d, got %d", 2-i, i+1, remaining)
		}
	}

	allowed, remaining, retryAfter := limiter.Allow("test", 3, time.Minute)
	if allowed {
		t.Fatal("Expected fourth request to be rejected")
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", remaining)
	}
	if retryAfter <= 0 || retryAfter > 20*time.Second {
		t.Errorf("Expected retry after within one refill interval, got %v", retryAfter)
	}

	// Other keys have their own bucket
	if allowed, _, _ := limiter.Allow("other", 3, time.Minute); !allowed {
		t.Error("Expected a different key to be allowed")
	}
}

func TestTokenBucketLimiterConcurrent(t *testing.T) {
	limiter := NewTokenBucketLimiter()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _, _ := limiter.Allow("shared", 10, time.Hour); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 10 {
		t.Errorf("Expected exactly 10 allowed requests, got %d", allowedCount)
	}
}

func TestPacingLimiter(t *testing.T) {
	limiter := NewPacingLimiter()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if allowed, _, _ := limiter.Allow("pace", 100, time.Second); !allowed {
			t.Fatal("Expected pacing limiter to always allow")
		}
	}
	// Three requests at 100/s are spaced by at least two 10ms slots
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("Expected requests to be paced, took only %v", elapsed)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	config := &RateLimitConfig{
		BucketName: "api",
		Limit:      2,
		Window:     time.Minute,
		Strategy:   StrategyIP,
	}
	chain := common.NewMiddlewareChain(
		ClientIPMiddleware(DefaultIPConfig()),
		RateLimit(config, NewTokenBucketLimiter(), zap.New(core)),
	)

	send := func(ip string) *common.Response {
		req := common.NewRequest("GET", "/api")
		req.RemoteAddr = ip + ":1234"
		return runChain(chain, req, &common.Route{}, okHandler)
	}

	for i := 0; i < 2; i++ {
		if resp := send("192.0.2.1"); resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected request %d to pass, got %d", i+1, resp.StatusCode)
		}
	}

	resp := send("192.0.2.1")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("Expected X-RateLimit-Limit 2, got %q", got)
	}
	retry, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Errorf("Expected a positive Retry-After, got %q", resp.Header.Get("Retry-After"))
	}
	if logs.FilterMessage("Rate limit exceeded").Len() != 1 {
		t.Errorf("Expected one rate limit warning, got %d", logs.Len())
	}

	// Another client is unaffected
	if resp := send("192.0.2.2"); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected another IP to pass, got %d", resp.StatusCode)
	}
}

func TestRateLimitCustomStrategy(t *testing.T) {
	config := &RateLimitConfig{
		BucketName: "custom",
		Limit:      1,
		Window:     time.Minute,
		Strategy:   StrategyCustom,
		KeyExtractor: func(req *common.Request) (string, error) {
			key := req.Header.Get("X-Tenant")
			if key == "bad" {
				return "", errors.New("bad tenant")
			}
			return key, nil
		},
		ExceededResponse: func(*common.Request) *common.Response {
			return common.Text(http.StatusServiceUnavailable, "slow down")
		},
	}
	m := RateLimit(config, NewTokenBucketLimiter(), zap.NewNop())

	req := common.NewRequest("GET", "/")
	req.Header.Set("X-Tenant", "a")
	if resp, err := m.BeforeRoute(req); resp != nil || err != nil {
		t.Fatalf("Expected first request to pass, got %v, %v", resp, err)
	}
	resp, _ := m.BeforeRoute(req)
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected custom exceeded response, got %v", resp)
	}

	bad := common.NewRequest("GET", "/")
	bad.Header.Set("X-Tenant", "bad")
	if _, err := m.BeforeRoute(bad); err == nil {
		t.Error("Expected key extractor error to be raised")
	}
}

func TestRateLimitUserStrategyRunsBeforeHandler(t *testing.T) {
	config := &RateLimitConfig{BucketName: "user", Limit: 1, Window: time.Minute, Strategy: StrategyUser}
	m := RateLimit(config, NewTokenBucketLimiter(), zap.NewNop())

	if m.BeforeRoute != nil {
		t.Error("Expected user strategy not to use before_route")
	}
	if m.BeforeHandler == nil {
		t.Fatal("Expected user strategy to use before_handler")
	}

	req := common.NewRequest("GET", "/")
	req.WithValue(userIDKey{}, "alice")
	if resp, _ := m.BeforeHandler(req, &common.Route{}); resp != nil {
		t.Fatalf("Expected first request to pass, got %d", resp.StatusCode)
	}
	if resp, _ := m.BeforeHandler(req, &common.Route{}); resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Error("Expected second request for the same user to be limited")
	}
}

func TestRateLimitNilConfig(t *testing.T) {
	m := RateLimit(nil, NewTokenBucketLimiter(), zap.NewNop())
	if m.BeforeRoute != nil || m.BeforeHandler != nil || m.AfterHandler != nil {
		t.Error("Expected nil config to produce a middleware without hooks")
	}
}
