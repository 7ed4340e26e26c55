package pipeline

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"configreader/internal/ratelimit"
)

func newQuotaGate(t *testing.T, limit int) *QuotaGate {
	t.Helper()

	limiter := ratelimit.New(limit, zaptest.NewLogger(t), ratelimit.WithClock(testClock))
	store := newConfigStore(baseConfig())
	exempt := func() []string { return store.Current().ExemptPrefixes }
	return NewQuotaGate(limiter, exempt, zaptest.NewLogger(t), testClock)
}

func TestQuotaAllowsWithinLimit(t *testing.T) {
	t.Parallel()

	gate := newQuotaGate(t, 2)
	handler := gate.Wrap(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.RemoteAddr = "10.0.0.1:1"
	for i := 0; i < 2; i++ {
		if rec := serve(t, handler, req); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestQuotaRejectsOverLimitWithHeaders(t *testing.T) {
	t.Parallel()

	gate := newQuotaGate(t, 1)
	handler := gate.Wrap(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.RemoteAddr = "10.0.0.1:1"
	serve(t, handler, req)

	rec := serve(t, handler, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	wantReset := testNow.Add(24 * time.Hour).Format(time.RFC3339)
	if got := rec.Header().Get("X-RateLimit-Reset"); got != wantReset {
		t.Fatalf("expected reset header %s, got %s", wantReset, got)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("unexpected limit header %s", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected remaining header")
	}
	if rec.Header().Get("Retry-After") != "86400" {
		t.Fatalf("unexpected Retry-After %s", rec.Header().Get("Retry-After"))
	}

	env := decodeEnvelope(t, rec)
	if env.StatusCode != http.StatusTooManyRequests || env.RetryAfter != 86400 || env.ResetTime != wantReset {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestQuotaAccountsPerClientAndRoute(t *testing.T) {
	t.Parallel()

	gate := newQuotaGate(t, 1)
	handler := gate.Wrap(okHandler(nil))

	first := httptest.NewRequest(http.MethodGet, "/config", nil)
	first.RemoteAddr = "10.0.0.1:1"
	serve(t, handler, first)

	// Different client, same route.
	other := httptest.NewRequest(http.MethodGet, "/config", nil)
	other.RemoteAddr = "10.0.0.2:1"
	if rec := serve(t, handler, other); rec.Code != http.StatusOK {
		t.Fatalf("expected separate accounting per client, got %d", rec.Code)
	}

	// Same client, different route.
	route := httptest.NewRequest(http.MethodGet, "/config/environment", nil)
	route.RemoteAddr = "10.0.0.1:1"
	if rec := serve(t, handler, route); rec.Code != http.StatusOK {
		t.Fatalf("expected separate accounting per route, got %d", rec.Code)
	}
}

func TestQuotaExemptPrefixSkipsAccounting(t *testing.T) {
	t.Parallel()

	gate := newQuotaGate(t, 1)
	handler := gate.Wrap(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:1"
	for i := 0; i < 5; i++ {
		if rec := serve(t, handler, req); rec.Code != http.StatusOK {
			t.Fatalf("expected exempt route to never be limited, got %d", rec.Code)
		}
	}
}

func TestSubjectKeyUsesForwardedClient(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.RemoteAddr = "203.0.113.9:1"
	req.Header.Set("X-Forwarded-For", "10.1.1.1")

	if got := SubjectKey(req); got != "10.1.1.1:/config" {
		t.Fatalf("unexpected subject key %s", got)
	}
}
