package pipeline

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Clock supplies the timestamps stamped onto rejection envelopes.
type Clock func() time.Time

func defaultClock() time.Time { return time.Now().UTC() }

// Rejection is the terminal outcome a gate produces when it refuses a
// request. Status, Error, and Message map onto the shared error envelope;
// the remaining fields are situational (429 and 401 extras).
type Rejection struct {
	Status     int
	Error      string
	Message    string
	Headers    http.Header
	RetryAfter int
	ResetTime  string
	Details    map[string]string
}

type errorEnvelope struct {
	Error      string            `json:"error"`
	Message    string            `json:"message"`
	StatusCode int               `json:"statusCode"`
	Timestamp  time.Time         `json:"timestamp"`
	RetryAfter int               `json:"retryAfter,omitempty"`
	ResetTime  string            `json:"resetTime,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

func writeRejection(w http.ResponseWriter, now time.Time, rej Rejection) {
	for name, values := range rej.Headers {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rej.Status)

	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error:      rej.Error,
		Message:    rej.Message,
		StatusCode: rej.Status,
		Timestamp:  now,
		RetryAfter: rej.RetryAfter,
		ResetTime:  rej.ResetTime,
		Details:    rej.Details,
	})
}

func hasPrefixAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
