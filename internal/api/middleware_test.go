package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	header := rec.Header().Get("X-Request-ID")
	if header == "" || header != seen {
		t.Fatalf("header id %q, context id %q; want matching non-empty ids", header, seen)
	}
	if _, err := uuid.Parse(header); err != nil {
		t.Errorf("generated id %q is not a UUID", header)
	}
}

func TestRequestIDMiddleware_KeepsIncoming(t *testing.T) {
	h := requestIDMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "trace-abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "trace-abc-123" {
		t.Fatalf("request id = %q, want incoming value kept", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(log.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestLoggingMiddleware_RecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	h := loggingMiddleware(log.NewNop(), collector)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if snap := collector.Snapshot(); snap.HTTPRequests != 1 {
		t.Fatalf("http requests = %d, want 1", snap.HTTPRequests)
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := corsMiddleware([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin got allow-origin %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"well formed", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"case insensitive scheme", "bearer tok", "tok", true},
		{"missing", "", "", false},
		{"wrong scheme", "Basic dXNlcg==", "", false},
		{"no token", "Bearer ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, ok := bearerToken(r)
			if got != tt.want || ok != tt.ok {
				t.Errorf("bearerToken = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRateLimiter_Exhausts(t *testing.T) {
	rl := newRateLimiter(3)

	for i := range 3 {
		if !rl.allow("user:a") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if rl.allow("user:a") {
		t.Fatal("request beyond burst allowed")
	}
	if !rl.allow("user:b") {
		t.Fatal("separate caller should have its own bucket")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")

	if got := clientIP(r, false); got != "203.0.113.7" {
		t.Errorf("untrusted proxy ip = %q, want RemoteAddr host", got)
	}
	if got := clientIP(r, true); got != "198.51.100.9" {
		t.Errorf("trusted proxy ip = %q, want first forwarded hop", got)
	}

	r.Header.Set("X-Forwarded-For", "not-an-ip")
	if got := clientIP(r, true); got != "203.0.113.7" {
		t.Errorf("invalid forwarded header should fall back to RemoteAddr, got %q", got)
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := newRateLimiter(60) // one token per second

	for rl.allow("ip:x") {
	}
	time.Sleep(1100 * time.Millisecond)
	if !rl.allow("ip:x") {
		t.Fatal("limiter did not refill after a second")
	}
}
