package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("1.2.3.4") != http.StatusOK || send("1.2.3.4") != http.StatusOK {
		t.Fatal("first two requests should pass")
	}
	if send("1.2.3.4") != http.StatusTooManyRequests {
		t.Fatal("third request in window should be limited")
	}
	// A different client has its own window.
	if send("5.6.7.8") != http.StatusOK {
		t.Fatal("other client should not be limited")
	}
}

func TestClientKeyPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4321"
	if got := clientKey(req); got != "10.0.0.1" {
		t.Fatalf("clientKey = %q, want 10.0.0.1", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientKey(req); got != "203.0.113.9" {
		t.Fatalf("clientKey = %q, want first forwarded hop", got)
	}
}
