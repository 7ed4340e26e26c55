package api

import (
	"net/http"

	"golang.org/x/time/rate"
)

// burstLimiter is the transport-level guard against request floods. It is
// global, not per-client; per-subject daily accounting lives in the quota
// gate of the security pipeline.
type burstLimiter interface {
	Allow() bool
}

type limiterAdapter struct {
	limiter *rate.Limiter
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) burstLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &limiterAdapter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

func (l *limiterAdapter) Allow() bool {
	if l == nil || l.limiter == nil {
		return true
	}
	return l.limiter.Allow()
}

func burstLimitMiddleware(limiter burstLimiter, handler *Handler, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		handler.writeError(w, http.StatusTooManyRequests, "Too Many Requests", "request burst limit exceeded, please retry shortly")
	})
}
