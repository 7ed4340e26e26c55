package pipeline

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"configreader/internal/ratelimit"
)

// QuotaGate enforces the per-(client, route) daily request quota. Rejections
// carry Retry-After and the X-RateLimit-* headers alongside the standard
// envelope.
type QuotaGate struct {
	limiter *ratelimit.Limiter
	exempt  func() []string
	logger  *zap.Logger
	clock   Clock
}

// NewQuotaGate builds the gate over limiter. exempt supplies route prefixes
// that are never accounted (health checks); it may be nil.
func NewQuotaGate(limiter *ratelimit.Limiter, exempt func() []string, logger *zap.Logger, clock Clock) *QuotaGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}
	if exempt == nil {
		exempt = func() []string { return nil }
	}
	return &QuotaGate{limiter: limiter, exempt: exempt, logger: logger, clock: clock}
}

// Name implements Gate.
func (g *QuotaGate) Name() string { return "rate-limit" }

// SubjectKey builds the rate-limit accounting identity for a request.
func SubjectKey(r *http.Request) string {
	clientIP, ok := ClientIP(r)
	if !ok {
		clientIP = "unknown"
	}
	return clientIP + ":" + r.URL.Path
}

// Wrap implements Gate.
func (g *QuotaGate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hasPrefixAny(r.URL.Path, g.exempt()) {
			next.ServeHTTP(w, r)
			return
		}

		subject := SubjectKey(r)
		if g.limiter.Allow(subject) {
			next.ServeHTTP(w, r)
			return
		}

		now := g.clock()
		reset := g.limiter.ResetTime(subject)
		retryAfter := int(reset.Sub(now).Seconds())
		if retryAfter < 0 {
			retryAfter = 0
		}

		g.logger.Warn("daily request quota exceeded",
			zap.String("subject", subject),
			zap.Time("reset_at", reset))

		headers := make(http.Header)
		headers.Set("Retry-After", strconv.Itoa(retryAfter))
		headers.Set("X-RateLimit-Limit", strconv.Itoa(g.limiter.Limit()))
		headers.Set("X-RateLimit-Remaining", "0")
		headers.Set("X-RateLimit-Reset", reset.Format(time.RFC3339))

		writeRejection(w, now, Rejection{
			Status:     http.StatusTooManyRequests,
			Error:      "Too Many Requests",
			Message:    "daily request limit reached for this route",
			Headers:    headers,
			RetryAfter: retryAfter,
			ResetTime:  reset.Format(time.RFC3339),
		})
	})
}
