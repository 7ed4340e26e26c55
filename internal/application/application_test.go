package application

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"configreader/internal/config"
)

func TestNewInitializesDependencies(t *testing.T) {
	cfg := baseTestConfig(":8085")
	logger := zaptest.NewLogger(t)

	app, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(app.Stop)

	if app.server == nil || app.router == nil || app.handler == nil {
		t.Fatalf("expected server, router, and handler to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
	if app.Router() == nil {
		t.Fatalf("Router accessor returned nil")
	}
	if app.limiter.Limit() != cfg.RequestsPerDay {
		t.Fatalf("expected limiter limit %d, got %d", cfg.RequestsPerDay, app.limiter.Limit())
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestNewReturnsErrorForMissingSettingsFile(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.SettingsFile = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for unreadable settings file")
	}
}

func TestAppServesHealthThroughFullStack(t *testing.T) {
	cfg := baseTestConfig(":0")
	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(app.Stop)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.10:41000"
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReloadSwapsRuntimeConfig(t *testing.T) {
	cfg := baseTestConfig(":0")
	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(app.Stop)

	if app.configStore.Current().APIEnabled != true {
		t.Fatalf("expected API enabled at startup")
	}

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	contents := "api:\n  enabled: false\nauth:\n  required: false\n"
	if err := os.WriteFile(configFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if err := app.Reload(&config.CLIOverrides{ConfigFile: configFile}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}

	current := app.configStore.Current()
	if current.APIEnabled {
		t.Fatalf("expected reload to disable the API")
	}
	if current.RequireAuth {
		t.Fatalf("expected reload to disable auth")
	}
}

func TestReloadRejectsBrokenConfigFile(t *testing.T) {
	cfg := baseTestConfig(":0")
	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(app.Stop)

	if err := app.Reload(&config.CLIOverrides{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")}); err == nil {
		t.Fatalf("expected error for missing config file")
	}

	// The running snapshot is untouched after a failed reload.
	if !app.configStore.Current().APIEnabled {
		t.Fatalf("failed reload must not alter the active configuration")
	}
}

func baseTestConfig(port string) config.Config {
	return config.Config{
		Port:                 port,
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		BurstRPS:             0,
		BurstCapacity:        0,
		APIEnabled:           true,
		GuardedPrefixes:      []string{"/config"},
		ExemptPrefixes:       []string{"/token", "/health"},
		SensitivePrefixes:    []string{"/config"},
		RequestsPerDay:       10,
		RequireAuth:          false,
		TokenHeader:          "X-ConfigReader-Token",
		AuthExemptPrefixes:   []string{"/token", "/health"},
	}
}
