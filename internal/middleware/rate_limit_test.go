package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 5) // 10 per minute, burst of 5
	defer rl.Stop()

	// First 5 requests should be allowed (burst)
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d should be allowed", i+1)
	}

	// 6th request should be rate limited (exceeded burst)
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiter_DifferentClients(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 3)
	defer rl.Stop()

	// Exhaust the first client's burst
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"))
	}
	assert.False(t, rl.Allow("10.0.0.1"))

	// Second client should still have its full burst
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.2"))
	}
}

func TestRateLimiter_GetStateUnknownClient(t *testing.T) {
	rl := NewRateLimiterWithConfig(60, 4)
	defer rl.Stop()

	remaining, reset := rl.GetState("unknown")
	assert.Equal(t, 4, remaining)
	assert.True(t, reset.After(time.Now()))
}

func TestRateLimiter_EvictStale(t *testing.T) {
	rl := NewRateLimiterWithConfig(60, 4)
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.evictStale(time.Now().Add(LimiterTTL + time.Second))

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.Empty(t, rl.limiters)
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiterWithConfig(60, 4)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestRateLimitMiddleware_LimitsPerClientIP(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiterWithConfig(10, 2) // Small burst for testing
	defer rl.Stop()

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}

	newRequest := func(ip string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/budgets", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		return e.NewContext(req, rec), rec
	}

	// First 2 requests should succeed (burst)
	for i := 0; i < 2; i++ {
		c, rec := newRequest("192.0.2.1")
		require.NoError(t, RateLimitMiddleware(rl)(handler)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	}

	// 3rd request should be rate limited
	c, rec := newRequest("192.0.2.1")
	require.NoError(t, RateLimitMiddleware(rl)(handler)(c))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), errorTypeRateLimit)

	// Another client is unaffected
	c, rec = newRequest("192.0.2.2")
	require.NoError(t, RateLimitMiddleware(rl)(handler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger_HandlesErrors(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/budgets", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, errors.New("short and stout"))
	}

	require.NoError(t, RequestLogger()(handler)(c))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func newRateLimitedEcho(t *testing.T, rl *RateLimiter, trustedProxies []string) *echo.Echo {
	t.Helper()
	e := echo.New()
	extractor, err := NewIPExtractor(trustedProxies)
	require.NoError(t, err)
	e.IPExtractor = extractor
	e.GET("/api/v1/budgets", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}, RateLimitMiddleware(rl))
	return e
}

func TestRateLimitMiddleware_IgnoresSpoofedForwardedFor(t *testing.T) {
	rl := NewRateLimiterWithConfig(1, 1)
	defer rl.Stop()
	e := newRateLimitedEcho(t, rl, nil)

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/budgets", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set(echo.HeaderXRealIP, fmt.Sprintf("10.0.1.%d", i))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}

	assert.Equal(t, 1, allowed)
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "203.0.113.7")
}

func TestRateLimitMiddleware_TrustedProxyForwardsClientIP(t *testing.T) {
	rl := NewRateLimiterWithConfig(1, 1)
	defer rl.Stop()
	e := newRateLimitedEcho(t, rl, []string{"198.51.100.0/24"})

	send := func(remote, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/budgets", nil)
		req.RemoteAddr = remote
		req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	// Through the trusted proxy, distinct clients get their own buckets
	assert.Equal(t, http.StatusOK, send("198.51.100.10:443", "203.0.113.1"))
	assert.Equal(t, http.StatusOK, send("198.51.100.10:443", "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.10:443", "203.0.113.1"))

	// An untrusted peer cannot borrow a forwarded identity
	assert.Equal(t, http.StatusOK, send("192.0.2.50:1000", "203.0.113.3"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.50:1000", "203.0.113.4"))
}

func TestNewIPExtractor_InvalidRange(t *testing.T) {
	_, err := NewIPExtractor([]string{"not-a-cidr"})
	assert.Error(t, err)
}
