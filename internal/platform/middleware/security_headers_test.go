package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name      string
		proto     string
		handler   echo.HandlerFunc
		wantHSTS  string
		wantError int
	}{
		{
			name:    "plain http score read",
			handler: func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]int{"totalDays": 3}) },
		},
		{
			name:     "behind https proxy",
			proto:    "https",
			handler:  func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
			wantHSTS: "max-age=31536000; includeSubDomains",
		},
		{
			name:      "handler error keeps headers",
			handler:   func(c echo.Context) error { return echo.NewHTTPError(http.StatusForbidden, "access denied") },
			wantError: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/daily-scores/stats", nil)
			if tt.proto != "" {
				req.Header.Set(echo.HeaderXForwardedProto, tt.proto)
			}
			rec := httptest.NewRecorder()
			err := SecurityHeaders()(tt.handler)(e.NewContext(req, rec))

			if tt.wantError != 0 {
				he, ok := err.(*echo.HTTPError)
				if !ok || he.Code != tt.wantError {
					t.Fatalf("expected HTTP %d, got %v", tt.wantError, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			want := map[string]string{
				"X-Content-Type-Options":    "nosniff",
				"X-Frame-Options":           "DENY",
				"X-XSS-Protection":          "0",
				"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
				"Referrer-Policy":           "no-referrer",
				"Cache-Control":             "no-store",
				"Strict-Transport-Security": tt.wantHSTS,
			}
			for header, v := range want {
				if got := rec.Header().Get(header); got != v {
					t.Errorf("%s: got %q, want %q", header, got, v)
				}
			}
		})
	}
}
