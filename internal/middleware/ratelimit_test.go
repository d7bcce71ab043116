package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowFixedWindow(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("client", 3, time.Minute) {
			t.Fatalf("request %d denied under limit", i+1)
		}
	}
	if rl.Allow("client", 3, time.Minute) {
		t.Fatal("request over limit allowed")
	}

	// Denied requests do not consume the window: still denied, not extended.
	for i := 0; i < 5; i++ {
		if rl.Allow("client", 3, time.Minute) {
			t.Fatal("request over limit allowed")
		}
	}

	// The window resets wholesale, not gradually.
	now = now.Add(time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("client", 3, time.Minute) {
			t.Fatalf("request %d denied after window reset", i+1)
		}
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		rl.Allow("a", 2, time.Minute)
	}
	if rl.Allow("a", 2, time.Minute) {
		t.Fatal("key a over limit allowed")
	}
	if !rl.Allow("b", 2, time.Minute) {
		t.Fatal("key b denied by key a's window")
	}
}

func TestCleanupDropsOnlyExpiredEntries(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("short", 5, time.Minute)
	rl.Allow("long", 5, time.Hour)

	now = now.Add(2 * time.Minute)
	rl.Cleanup()

	rl.mu.Lock()
	_, hasShort := rl.entries["short"]
	_, hasLong := rl.entries["long"]
	rl.mu.Unlock()

	if hasShort {
		t.Error("expired entry survived cleanup")
	}
	if !hasLong {
		t.Error("live entry removed by cleanup")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	handler := RateLimit(rl, RealIP, 2, time.Minute)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	// A different client IP is its own key.
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d, want 200", rec.Code)
	}
}

func TestRequireJobSecret(t *testing.T) {
	handler := RequireJobSecret("s3cret")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest("POST", "/jobs/reminders", nil)
	req.Header.Set(JobSecretHeader, "s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("POST", "/jobs/reminders", nil)
	req.Header.Set(JobSecretHeader, "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret status = %d, want 401", rec.Code)
	}

	// An empty configured secret fails closed.
	closed := RequireJobSecret("")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)
	req = httptest.NewRequest("POST", "/jobs/reminders", nil)
	rec = httptest.NewRecorder()
	closed.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unconfigured secret status = %d, want 401", rec.Code)
	}
}
