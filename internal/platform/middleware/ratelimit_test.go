package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// limitedHandler wraps an OK handler with RateLimit.
func limitedHandler(cfg RateLimitConfig) (*echo.Echo, echo.HandlerFunc) {
	e := echo.New()
	h := RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e, h
}

// hit sends one request from addr, authenticated as userID when it is non-zero.
func hit(e *echo.Echo, h echo.HandlerFunc, addr string, userID int64) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodGet, "/api/daily-scores", nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set("user_id", userID)
	}
	return rec, h(c)
}

func isTooMany(err error) bool {
	var he *echo.HTTPError
	return errors.As(err, &he) && he.Code == http.StatusTooManyRequests
}

func TestRateLimit_BurstThenDeny(t *testing.T) {
	e, h := limitedHandler(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 3})

	for i := 0; i < 3; i++ {
		rec, err := hit(e, h, "10.0.0.1:5000", 1)
		if err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "0.5" {
			t.Errorf("request %d: X-RateLimit-Limit = %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec, err := hit(e, h, "10.0.0.1:5000", 1)
	if !isTooMany(err) {
		t.Fatalf("expected 429 after the burst, got %v", err)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("expected Retry-After 2, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", got)
	}
}

func TestRateLimit_UsersBehindOneIPHaveSeparateBudgets(t *testing.T) {
	e, h := limitedHandler(RateLimitConfig{RequestsPerSecond: 0.01, BurstSize: 1})

	if _, err := hit(e, h, "10.0.0.1:5000", 1); err != nil {
		t.Fatalf("user 1: %v", err)
	}
	if _, err := hit(e, h, "10.0.0.1:5001", 2); err != nil {
		t.Fatalf("user 2 from the same address must not share user 1's bucket: %v", err)
	}
	if _, err := hit(e, h, "10.0.0.9:5000", 1); !isTooMany(err) {
		t.Fatalf("user 1 from another address must reuse the same bucket, got %v", err)
	}
}

func TestRateLimit_AnonymousRequestsBucketByIP(t *testing.T) {
	e, h := limitedHandler(RateLimitConfig{RequestsPerSecond: 0.01, BurstSize: 1})

	if _, err := hit(e, h, "192.0.2.1:4000", 0); err != nil {
		t.Fatalf("first address: %v", err)
	}
	if _, err := hit(e, h, "192.0.2.1:4001", 0); !isTooMany(err) {
		t.Fatalf("same address on another port must be limited, got %v", err)
	}
	if _, err := hit(e, h, "192.0.2.2:4000", 0); err != nil {
		t.Fatalf("second address must have its own bucket: %v", err)
	}
	if _, err := hit(e, h, "192.0.2.1:4000", 7); err != nil {
		t.Fatalf("an authenticated user from a limited address is keyed by user: %v", err)
	}
}

func TestRateLimitKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:1234"
	c := e.NewContext(req, httptest.NewRecorder())

	if key, _ := rateLimitKey(c); key != "ip:198.51.100.4" {
		t.Errorf("expected ip key, got %q", key)
	}
	c.Set("user_id", int64(42))
	if key, _ := rateLimitKey(c); key != "user:42" {
		t.Errorf("expected user key, got %q", key)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := map[float64]int{0: 1, 20: 1, 1: 1, 0.5: 2, 0.3: 4}
	for rps, want := range cases {
		if got := retryAfterSeconds(rps); got != want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", rps, got, want)
		}
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 20 || cfg.BurstSize != 40 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.ExpiresIn != 3*time.Minute {
		t.Errorf("expected idle buckets to expire after 3m, got %s", cfg.ExpiresIn)
	}
}
