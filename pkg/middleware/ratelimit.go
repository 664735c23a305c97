package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitStrategy defines how clients are identified for rate limiting
type RateLimitStrategy string

const (
	// StrategyIP keys buckets by client IP
	StrategyIP RateLimitStrategy = "ip"

	// StrategyUser keys buckets by the authenticated user ID, falling back to IP
	StrategyUser RateLimitStrategy = "user"

	// StrategyCustom keys buckets with KeyExtractor
	StrategyCustom RateLimitStrategy = "custom"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Unique identifier for this rate limit bucket
	// Middlewares sharing a BucketName and limiter share the same rate limit
	BucketName string

	// Maximum number of requests allowed in the time window
	Limit int

	// Time window for the rate limit (e.g., 1 minute, 1 hour)
	Window time.Duration

	// Strategy for identifying clients
	Strategy RateLimitStrategy

	// Custom key extractor function (used when Strategy is StrategyCustom)
	KeyExtractor func(*common.Request) (string, error)

	// Response to send when rate limit is exceeded
	// If nil, a default 429 Too Many Requests response is sent
	ExceededResponse func(*common.Request) *common.Response
}

// RateLimiter defines the interface for rate limiting algorithms
type RateLimiter interface {
	// Allow checks if a request is allowed based on the key and rate limit config
	// Returns true if the request is allowed, false otherwise
	// Also returns the number of remaining requests and time until a request would be allowed
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

// TokenBucketLimiter implements RateLimiter with golang.org/x/time/rate token buckets.
// Each key gets a bucket of Limit tokens refilled evenly over Window; requests beyond it are rejected.
type TokenBucketLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewTokenBucketLimiter creates a new token bucket rate limiter
func NewTokenBucketLimiter() *TokenBucketLimiter {
	return &TokenBucketLimiter{}
}

// getLimiter gets or creates a limiter for the given key
func (l *TokenBucketLimiter) getLimiter(key string, limit int, window time.Duration) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring lock
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
	l.limiters.Store(key, limiter)
	return limiter
}

// Allow checks if a request is allowed based on the key and rate limit config
func (l *TokenBucketLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	limit, window = normalizeLimit(limit, window)
	limiter := l.getLimiter(key, limit, window)

	now := time.Now()
	r := limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay
	}

	remaining := int(math.Floor(limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, 0
}

// PacingLimiter implements RateLimiter with go.uber.org/ratelimit.
// Requests are never rejected: each one waits for its slot, spacing requests of a key evenly
// over the window. Use it to smooth bursts instead of refusing them.
type PacingLimiter struct {
	limiters sync.Map // map[string]ratelimit.Limiter
	mu       sync.Mutex
}

// NewPacingLimiter creates a new rate limiter using Uber's ratelimit library
func NewPacingLimiter() *PacingLimiter {
	return &PacingLimiter{}
}

// getLimiter gets or creates a limiter for the given key and rate
func (p *PacingLimiter) getLimiter(key string, limit int, window time.Duration) ratelimit.Limiter {
	if limiter, ok := p.limiters.Load(key); ok {
		return limiter.(ratelimit.Limiter)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring lock
	if limiter, ok := p.limiters.Load(key); ok {
		return limiter.(ratelimit.Limiter)
	}

	limiter := ratelimit.New(limit, ratelimit.Per(window), ratelimit.WithoutSlack)
	p.limiters.Store(key, limiter)
	return limiter
}

// Allow blocks until the key's next slot and always allows the request
func (p *PacingLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	limit, window = normalizeLimit(limit, window)
	p.getLimiter(key, limit, window).Take()
	return true, 0, 0
}

// normalizeLimit treats a non-positive limit as 1 and a non-positive window as one second
func normalizeLimit(limit int, window time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return limit, window
}

// RateLimit creates a middleware that enforces rate limits.
// Rejected requests are short-circuited with 429 and a Retry-After header. The check runs in
// before_route, except for StrategyUser which runs in before_handler so that an authentication
// middleware registered earlier in the chain has already stored the user ID.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) Middleware {
	m := Middleware{Name: "rate_limit"}

	// Skip rate limiting if config is nil
	if config == nil {
		return m
	}

	check := func(req *common.Request) (*common.Response, error) {
		// Extract key based on strategy
		var key string
		switch config.Strategy {
		case StrategyUser:
			key = GetUserID(req)
		case StrategyCustom:
			if config.KeyExtractor != nil {
				var err error
				key, err = config.KeyExtractor(req)
				if err != nil {
					return nil, err
				}
			}
		}
		if key == "" {
			key = extractIP(req)
		}

		// Combine bucket name and key to create a unique identifier
		bucketKey := config.BucketName + ":" + key

		allowed, remaining, retryAfter := limiter.Allow(bucketKey, config.Limit, config.Window)
		if allowed {
			return nil, nil
		}

		logger.Warn("Rate limit exceeded",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("key", key),
			zap.Int("limit", config.Limit),
			zap.Int("remaining", remaining),
		)

		var resp *common.Response
		if config.ExceededResponse != nil {
			resp = config.ExceededResponse(req)
		} else {
			resp = jsonError(http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too Many Requests")
		}
		resp.Header.Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		resp.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		resp.Header.Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		return resp, nil
	}

	if config.Strategy == StrategyUser {
		m.BeforeHandler = func(req *common.Request, _ *common.Route) (*common.Response, error) {
			return check(req)
		}
	} else {
		m.BeforeRoute = check
	}
	return m
}

// extractIP returns the client IP stored by ClientIPMiddleware, falling back to RemoteAddr
func extractIP(req *common.Request) string {
	if ip := ClientIP(req); ip != "" {
		return ip
	}
	return cleanIP(req.RemoteAddr)
}
