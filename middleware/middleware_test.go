package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestGetStatusColor(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   string
	}{
		{http.StatusOK, "\033[32m"},
		{http.StatusCreated, "\033[32m"},
		{http.StatusFound, "\033[36m"},
		{http.StatusNotFound, "\033[33m"},
		{http.StatusTooManyRequests, "\033[33m"},
		{http.StatusInternalServerError, "\033[31m"},
		{199, "\033[0m"},
	}
	for _, tt := range tests {
		if got := getStatusColor(tt.statusCode); got != tt.expected {
			t.Errorf("Expected color %q for status %d, got %q", tt.expected, tt.statusCode, got)
		}
	}
}

func TestResponseRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := NewResponseRecorder(w)

	if rec.StatusCode != http.StatusOK {
		t.Errorf("Expected default status %d, got %d", http.StatusOK, rec.StatusCode)
	}

	rec.WriteHeader(http.StatusTooManyRequests)
	if rec.StatusCode != http.StatusTooManyRequests || w.Code != http.StatusTooManyRequests {
		t.Errorf("Status code not recorded: rec=%d writer=%d", rec.StatusCode, w.Code)
	}

	rec.Write([]byte("Hello"))
	rec.Write([]byte(", World!"))
	if rec.BodySize != 13 {
		t.Errorf("Expected body size 13, got %d", rec.BodySize)
	}
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("POST", "/webhook", nil)
	rec := httptest.NewRecorder()
	LoggingMiddleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("Expected body preserved, got %q", rec.Body.String())
	}
}

func TestKeyRateLimiter(t *testing.T) {
	l := NewKeyRateLimiter(rate.Limit(1), 2)

	if !l.Allow("a") || !l.Allow("a") {
		t.Error("Expected the burst of 2 to be allowed")
	}
	if l.Allow("a") {
		t.Error("Expected the third request to be rejected")
	}
	if !l.Allow("b") {
		t.Error("Keys must be limited independently")
	}
	if l.Len() != 2 {
		t.Errorf("Expected 2 tracked keys, got %d", l.Len())
	}
}

func TestKeyRateLimiterRefills(t *testing.T) {
	l := NewKeyRateLimiter(rate.Limit(50), 1)

	if !l.Allow("a") {
		t.Fatal("Expected the first request allowed")
	}
	if l.Allow("a") {
		t.Fatal("Expected the second request rejected")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("a") {
		t.Error("Expected a token refilled after the wait")
	}
}

func TestSecretTokenMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := SecretTokenMiddleware("s3cret")(ok)

	req := httptest.NewRequest("POST", "/webhook", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Missing token must be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "/webhook", nil)
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Wrong token must be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "/webhook", nil)
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "s3cret")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Correct token must pass, got %d", rec.Code)
	}
}

func TestSecretTokenMiddlewareNoSecret(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := SecretTokenMiddleware("")(ok)

	req := httptest.NewRequest("POST", "/webhook", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("No configured secret must pass requests through, got %d", rec.Code)
	}
}
