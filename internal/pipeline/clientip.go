package pipeline

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the client identity for a request. Forwarded headers
// take precedence over the transport peer: the first entry of
// X-Forwarded-For, then X-Real-IP, then the peer address. This trusts
// upstream proxies to set those headers honestly, which is a deployment
// assumption, not a default-safe behavior.
//
// The second return value is false when no identity could be determined.
func ClientIP(r *http.Request) (string, bool) {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip, true
			}
		}
	}

	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real, true
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host, true
	}
	if ip := net.ParseIP(strings.TrimSpace(r.RemoteAddr)); ip != nil {
		return ip.String(), true
	}

	return "", false
}
