package pipeline

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newAllowlistGate(t *testing.T, enabled bool, cidrs ...string) *AllowlistGate {
	t.Helper()

	cfg := baseConfig()
	cfg.WhitelistEnabled = enabled
	cfg.AllowedCIDRs = cidrs
	store := newConfigStore(cfg)
	return NewAllowlistGate(store, zaptest.NewLogger(t), testClock)
}

func TestAllowlistDisabledAdmitsAll(t *testing.T) {
	t.Parallel()

	gate := newAllowlistGate(t, false)

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.RemoteAddr = "203.0.113.50:4711"
	rec := serve(t, gate.Wrap(okHandler(&called)), req)

	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected admission with whitelist disabled, got %d", rec.Code)
	}
}

func TestAllowlistAdmitsWhitelistedPeer(t *testing.T) {
	t.Parallel()

	gate := newAllowlistGate(t, true, "10.0.0.0/8")

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.RemoteAddr = "10.20.30.40:9999"
	rec := serve(t, gate.Wrap(okHandler(nil)), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected admission, got %d", rec.Code)
	}
}

func TestAllowlistRejectsForeignPeer(t *testing.T) {
	t.Parallel()

	gate := newAllowlistGate(t, true, "10.0.0.0/8")

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.RemoteAddr = "203.0.113.50:4711"
	rec := serve(t, gate.Wrap(okHandler(&called)), req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if called {
		t.Fatalf("downstream must not run after rejection")
	}

	env := decodeEnvelope(t, rec)
	if env.Error != "Access Denied" || env.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Timestamp.IsZero() {
		t.Fatalf("expected timestamp in envelope")
	}
}

func TestAllowlistForwardedHeaderTakesPrecedence(t *testing.T) {
	t.Parallel()

	gate := newAllowlistGate(t, true, "10.0.0.0/8")

	// Peer is outside the whitelist but the forwarded client is inside.
	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.RemoteAddr = "203.0.113.50:4711"
	req.Header.Set("X-Forwarded-For", "10.1.2.3, 198.51.100.1")
	rec := serve(t, gate.Wrap(okHandler(nil)), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected forwarded client to be admitted, got %d", rec.Code)
	}
}

func TestAllowlistRejectsUndeterminableClient(t *testing.T) {
	t.Parallel()

	gate := newAllowlistGate(t, true, "10.0.0.0/8")

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.RemoteAddr = ""
	rec := serve(t, gate.Wrap(okHandler(nil)), req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "unable to determine client IP" {
		t.Fatalf("expected the distinguishing message, got %q", env.Message)
	}
}

func TestAllowlistReloadSwapsRanges(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.WhitelistEnabled = true
	cfg.AllowedCIDRs = []string{"10.0.0.0/8"}
	store := newConfigStore(cfg)
	gate := NewAllowlistGate(store, zaptest.NewLogger(t), testClock)

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.RemoteAddr = "192.168.1.5:1234"
	if rec := serve(t, gate.Wrap(okHandler(nil)), req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected rejection before reload, got %d", rec.Code)
	}

	next := cfg
	next.AllowedCIDRs = []string{"192.168.0.0/16"}
	store.Replace(next)

	if rec := serve(t, gate.Wrap(okHandler(nil)), req); rec.Code != http.StatusOK {
		t.Fatalf("expected admission after reload, got %d", rec.Code)
	}
}

func TestAllowlistSkipsMalformedRanges(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	cfg := baseConfig()
	cfg.WhitelistEnabled = true
	cfg.AllowedCIDRs = []string{"not-a-cidr", "10.0.0.0/8"}
	store := newConfigStore(cfg)
	gate := NewAllowlistGate(store, zap.New(core), testClock)

	if logs.FilterMessage("skipping malformed CIDR range").Len() != 1 {
		t.Fatalf("expected one warning about the malformed range")
	}

	// The valid range still applies.
	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.RemoteAddr = "10.0.0.9:1"
	if rec := serve(t, gate.Wrap(okHandler(nil)), req); rec.Code != http.StatusOK {
		t.Fatalf("expected valid range to survive, got %d", rec.Code)
	}
}
