package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/stream-platform/internal/platform/auth"
)

func serveAs(t *testing.T, h http.Handler, userID string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/v1/history/progress", nil)
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestLimiterAllowsWithinBurst(t *testing.T) {
	h := New(1, 3).Middleware(okHandler())

	for i := 0; i < 3; i++ {
		if code := serveAs(t, h, "user-1"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, code)
		}
	}
	if code := serveAs(t, h, "user-1"); code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 after burst", code)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	h := New(1, 1).Middleware(okHandler())

	if code := serveAs(t, h, "user-1"); code != http.StatusOK {
		t.Fatalf("user-1 first request: %d", code)
	}
	if code := serveAs(t, h, "user-1"); code != http.StatusTooManyRequests {
		t.Fatalf("user-1 second request: %d, want 429", code)
	}
	// Another user has their own bucket.
	if code := serveAs(t, h, "user-2"); code != http.StatusOK {
		t.Fatalf("user-2 first request: %d, want 200", code)
	}
}

func TestLimiterFallsBackToClientAddress(t *testing.T) {
	h := New(1, 1).Middleware(okHandler())

	if code := serveAs(t, h, ""); code != http.StatusOK {
		t.Fatalf("first anonymous request: %d", code)
	}
	if code := serveAs(t, h, ""); code != http.StatusTooManyRequests {
		t.Fatalf("second anonymous request from same address: %d, want 429", code)
	}
}
