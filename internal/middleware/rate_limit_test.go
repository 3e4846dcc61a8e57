package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cardbase/authcore/internal/auth"
	"github.com/cardbase/authcore/internal/models"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func withIdentity(req *http.Request, kind models.IdentityKind, id string) *http.Request {
	identity := &models.Identity{Kind: kind, ID: id}
	return req.WithContext(context.WithValue(req.Context(), auth.IdentityContextKey, identity))
}

// TestRateLimitByIP_EnforcesLimit verifies requests beyond the per-IP budget get 429
func TestRateLimitByIP_EnforcesLimit(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 3})(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/auth/login/initiate", nil)
		req.RemoteAddr = "10.0.0.1:50000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d, expected 200", i+1, recorder.Code)
		}
	}

	req := httptest.NewRequest("POST", "/auth/login/initiate", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected status %d, got %d", http.StatusTooManyRequests, recorder.Code)
	}
	if contentType := recorder.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}
}

// TestRateLimitByIP_IsolatesClients verifies separate budgets per client IP
func TestRateLimitByIP_IsolatesClients(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	req := httptest.NewRequest("POST", "/auth/login/initiate", nil)
	req.RemoteAddr = "10.0.0.2:50000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("first client request failed with status %d", recorder.Code)
	}

	req = httptest.NewRequest("POST", "/auth/login/initiate", nil)
	req.RemoteAddr = "10.0.0.3:50000"
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("second client should have an independent budget, got status %d", recorder.Code)
	}
}

// TestRateLimitByIdentity_KeysOnIdentity verifies per-identity buckets
func TestRateLimitByIdentity_KeysOnIdentity(t *testing.T) {
	handler := RateLimitByIdentity(RateLimitConfig{RequestsPerMinute: 2})(okHandler())

	for i := 0; i < 2; i++ {
		req := withIdentity(httptest.NewRequest("GET", "/me", nil), models.KindUser, "user-limit-test")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d", i+1, recorder.Code)
		}
	}

	req := withIdentity(httptest.NewRequest("GET", "/me", nil), models.KindUser, "user-limit-test")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for exhausted identity, got %d", recorder.Code)
	}

	// Same id under a different kind is a separate bucket
	req = withIdentity(httptest.NewRequest("GET", "/me", nil), models.KindTeamMember, "user-limit-test")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("different kind should have an independent budget, got %d", recorder.Code)
	}
}

// TestRateLimitByIdentity_FallsBackToIP verifies unauthenticated requests key on IP
func TestRateLimitByIdentity_FallsBackToIP(t *testing.T) {
	handler := RateLimitByIdentity(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	req := httptest.NewRequest("GET", "/me", nil)
	req.RemoteAddr = "10.0.0.4:50000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("first request failed with status %d", recorder.Code)
	}

	req = httptest.NewRequest("GET", "/me", nil)
	req.RemoteAddr = "10.0.0.4:50000"
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 on IP fallback, got %d", recorder.Code)
	}
}
