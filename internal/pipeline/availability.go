package pipeline

import (
	"net/http"

	"go.uber.org/zap"

	"configreader/internal/config"
)

// AvailabilityGate short-circuits guarded routes with 503 while the API
// toggle is off. Exempt route prefixes (credential issuance, health) bypass
// the gate entirely regardless of the toggle.
type AvailabilityGate struct {
	current func() config.Config
	logger  *zap.Logger
	clock   Clock
}

// NewAvailabilityGate builds the gate over the live configuration snapshot.
func NewAvailabilityGate(current func() config.Config, logger *zap.Logger, clock Clock) *AvailabilityGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}
	return &AvailabilityGate{current: current, logger: logger, clock: clock}
}

// Name implements Gate.
func (g *AvailabilityGate) Name() string { return "availability" }

// Wrap implements Gate.
func (g *AvailabilityGate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := g.current()

		if cfg.APIEnabled ||
			hasPrefixAny(r.URL.Path, cfg.ExemptPrefixes) ||
			!hasPrefixAny(r.URL.Path, cfg.GuardedPrefixes) {
			next.ServeHTTP(w, r)
			return
		}

		g.logger.Info("guarded route refused while API disabled",
			zap.String("path", r.URL.Path))
		writeRejection(w, g.clock(), Rejection{
			Status:  http.StatusServiceUnavailable,
			Error:   "Service Unavailable",
			Message: "the configuration API is currently disabled",
		})
	})
}
