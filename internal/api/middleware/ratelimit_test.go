package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"credit-engine/internal/config"
)

func TestRateLimiterMiddlewareDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	rl := NewRateLimiterMiddleware(config.RateLimitConfig{Enabled: false}, nil, logger)

	if rl.IsEnabled() {
		t.Fatal("limiter should be disabled when configuration disables it")
	}

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rl.Middleware(nextHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestRateLimiterMiddlewareDisablesWithoutRedis(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	// Enabled in config but no Redis client: the limiter must fall back
	// to pass-through instead of blocking all traffic.
	rl := NewRateLimiterMiddleware(config.RateLimitConfig{Enabled: true, RPS: 5}, nil, logger)

	if rl.IsEnabled() {
		t.Fatal("limiter should disable itself without a Redis client")
	}
}

func TestRateLimiterExtractIP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	rl := NewRateLimiterMiddleware(config.RateLimitConfig{}, nil, logger)

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		expected   string
	}{
		{name: "remote addr with port", remoteAddr: "10.0.0.7:4242", expected: "10.0.0.7"},
		{name: "x-forwarded-for wins", remoteAddr: "10.0.0.7:4242", xff: "203.0.113.9, 10.0.0.1", expected: "203.0.113.9"},
		{name: "invalid x-forwarded-for falls through", remoteAddr: "10.0.0.7:4242", xff: "not-an-ip", expected: "10.0.0.7"},
		{name: "x-real-ip used when no xff", remoteAddr: "10.0.0.7:4242", xRealIP: "198.51.100.4", expected: "198.51.100.4"},
		{name: "unparseable remote addr", remoteAddr: "garbage", expected: "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xRealIP != "" {
				req.Header.Set("X-Real-IP", tc.xRealIP)
			}

			if got := rl.extractIP(req); got != tc.expected {
				t.Errorf("expected IP %q, got %q", tc.expected, got)
			}
		})
	}
}
