package pipeline

import (
	"net"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"configreader/internal/config"
	"configreader/internal/netrange"
)

// AllowlistGate admits requests whose client IP falls inside a configured
// CIDR range. When the whitelist is disabled every request passes. The range
// set lives in an atomic snapshot that is rebuilt wholesale on configuration
// reload, so concurrent requests never observe a partially updated list.
type AllowlistGate struct {
	logger   *zap.Logger
	clock    Clock
	snapshot atomic.Value // allowSnapshot
}

type allowSnapshot struct {
	enabled bool
	ranges  []netrange.Range
}

// NewAllowlistGate builds the gate from the initial configuration and
// registers for reloads on store. Malformed CIDR strings are logged and
// skipped, never fatal.
func NewAllowlistGate(store *config.Store, logger *zap.Logger, clock Clock) *AllowlistGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}

	g := &AllowlistGate{logger: logger, clock: clock}
	g.apply(store.Current())
	store.Subscribe(g.apply)
	return g
}

func (g *AllowlistGate) apply(cfg config.Config) {
	ranges, rejected := netrange.ParseAll(cfg.AllowedCIDRs)
	for _, bad := range rejected {
		g.logger.Warn("skipping malformed CIDR range", zap.String("cidr", bad))
	}
	g.snapshot.Store(allowSnapshot{enabled: cfg.WhitelistEnabled, ranges: ranges})
}

// Name implements Gate.
func (g *AllowlistGate) Name() string { return "allowlist" }

// Wrap implements Gate.
func (g *AllowlistGate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := g.snapshot.Load().(allowSnapshot)
		if !snap.enabled {
			next.ServeHTTP(w, r)
			return
		}

		clientIP, ok := ClientIP(r)
		if !ok {
			g.logger.Warn("rejecting request with undeterminable client IP",
				zap.String("path", r.URL.Path))
			writeRejection(w, g.clock(), Rejection{
				Status:  http.StatusForbidden,
				Error:   "Access Denied",
				Message: "unable to determine client IP",
			})
			return
		}

		ip := net.ParseIP(clientIP)
		if ip == nil || !containsAny(snap.ranges, ip) {
			g.logger.Info("client IP not in whitelist",
				zap.String("client_ip", clientIP),
				zap.String("path", r.URL.Path))
			writeRejection(w, g.clock(), Rejection{
				Status:  http.StatusForbidden,
				Error:   "Access Denied",
				Message: "client IP is not in the configured whitelist",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func containsAny(ranges []netrange.Range, ip net.IP) bool {
	for _, r := range ranges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}
