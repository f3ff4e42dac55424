package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/heartbeat/heartbeat/internal/config"
	"github.com/heartbeat/heartbeat/internal/platform/cache"
	"github.com/heartbeat/heartbeat/internal/platform/db"
)

// newTestServer builds the router without a database. Only requests that are
// rejected before reaching a repository can be served.
func newTestServer(env string) http.Handler {
	cfg := &config.Config{
		Env:            env,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		BodyLimit:      "1K",
		CacheTTL:       time.Minute,
		AuthSigningKey: "test-secret",
	}
	return newServer(deps{
		cfg:    cfg,
		logger: zerolog.Nop(),
		cache:  cache.NopStore{},
		loc:    time.UTC,
	})
}

func doRequest(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestHealth(t *testing.T) {
	rec := doRequest(newTestServer("development"), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestRoutesRegistered(t *testing.T) {
	e := newServer(deps{
		cfg:    &config.Config{Env: "development"},
		logger: zerolog.Nop(),
		cache:  cache.NopStore{},
		loc:    time.UTC,
	})

	want := map[string]bool{
		"POST /api/daily-scores":                    false,
		"GET /api/daily-scores":                     false,
		"GET /api/daily-scores/stats":               false,
		"GET /api/daily-scores/trends":              false,
		"GET /api/daily-scores/streak":              false,
		"GET /api/daily-scores/date/:date":          false,
		"GET /api/daily-scores/:id":                 false,
		"DELETE /api/daily-scores/:id":              false,
		"GET /api/medication-adherence/monthly":     false,
		"GET /api/medication-adherence/calendar":    false,
		"GET /api/medication-adherence/medications": false,
		"GET /health":                               false,
		"GET /health/db":                            false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestAPI_TherapistStatsRequiresUserID(t *testing.T) {
	rec := doRequest(newTestServer("development"), http.MethodGet, "/api/daily-scores/stats", "", map[string]string{
		"X-Dev-User-ID": "5",
		"X-Dev-Role":    "therapist",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := errorMessage(t, rec); got != "userId query parameter required for therapists" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestAPI_TrendsRejectsUnknownInterval(t *testing.T) {
	rec := doRequest(newTestServer("development"), http.MethodGet, "/api/daily-scores/trends?interval=year", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAPI_SubmitValidatesBeforeStorage(t *testing.T) {
	rec := doRequest(newTestServer("development"), http.MethodPost, "/api/daily-scores",
		`{"scoreDate":"2024-03-01","exerciseScore":150}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := errorMessage(t, rec); got != "exerciseScore must be between 0 and 100" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestAPI_UnknownRoleForbidden(t *testing.T) {
	rec := doRequest(newTestServer("development"), http.MethodGet, "/api/daily-scores/stats", "", map[string]string{
		"X-Dev-Role": "visitor",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAPI_ProductionRequiresToken(t *testing.T) {
	rec := doRequest(newTestServer("production"), http.MethodGet, "/api/daily-scores/stats", "", map[string]string{
		"X-Dev-User-ID": "5",
		"X-Dev-Role":    "therapist",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAPI_BodyLimit(t *testing.T) {
	big := `{"scoreDate":"2024-03-01","notes":"` + strings.Repeat("x", 2048) + `"}`
	rec := doRequest(newTestServer("development"), http.MethodPost, "/api/daily-scores", big, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestNewLogger_Level(t *testing.T) {
	if got := newLogger("production", "debug").GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("expected debug, got %s", got)
	}
	if got := newLogger("production", "bogus").GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %s", got)
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, "public", []db.MigrationStatus{
		{Version: 1, Name: "001_users.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_daily_scores.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "schema: public") {
		t.Errorf("missing schema line: %s", out)
	}
	if !strings.Contains(out, "applied    2024-03-01 12:00:00") {
		t.Errorf("missing applied row: %s", out)
	}
	if !strings.Contains(out, "002_daily_scores.sql") || !strings.Contains(out, "pending") {
		t.Errorf("missing pending row: %s", out)
	}
}

func TestServe_ReturnsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), e, ln.Addr().String(), zerolog.Nop()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error when the port is already in use")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the listener failed")
	}
}

func TestServe_CancelledContextIsCleanShutdown(t *testing.T) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, e, "127.0.0.1:0", zerolog.Nop()) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
