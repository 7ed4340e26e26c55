package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"configreader/internal/config"
)

var testNow = time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func baseConfig() config.Config {
	return config.Config{
		Port:               "8080",
		ServiceName:        "configreader",
		APIEnabled:         true,
		GuardedPrefixes:    []string{"/config"},
		ExemptPrefixes:     []string{"/token", "/health"},
		SensitivePrefixes:  []string{"/config"},
		RequestsPerDay:     10,
		RequireAuth:        true,
		TokenHeader:        "X-ConfigReader-Token",
		AuthExemptPrefixes: []string{"/token", "/health"},
	}
}

func newConfigStore(cfg config.Config) *config.Store {
	return config.NewStore(cfg)
}

func okHandler(marker *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if marker != nil {
			*marker = true
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func serve(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Error      string            `json:"error"`
	Message    string            `json:"message"`
	StatusCode int               `json:"statusCode"`
	Timestamp  time.Time         `json:"timestamp"`
	RetryAfter int               `json:"retryAfter"`
	ResetTime  string            `json:"resetTime"`
	Details    map[string]string `json:"details"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env
}
