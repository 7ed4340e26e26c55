package pipeline

import (
	"net/http"

	"go.uber.org/zap"
)

// Gate is a pipeline stage that either forwards a request to the next stage
// or produces a terminal response.
type Gate interface {
	Name() string
	Wrap(next http.Handler) http.Handler
}

// Pipeline composes gates in a fixed order. It holds no state beyond the
// ordered gate list; changing the order requires a full re-audit of the
// gates' assumptions about what ran before them.
type Pipeline struct {
	gates  []Gate
	logger *zap.Logger
	clock  Clock
}

// New constructs a Pipeline over the given gates, first to last.
func New(logger *zap.Logger, clock Clock, gates ...Gate) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}
	return &Pipeline{gates: gates, logger: logger, clock: clock}
}

// Wrap returns terminal wrapped by every gate, outermost first. The whole
// chain runs inside a fault boundary: a panic escaping any gate or the
// terminal handler is logged with full context and answered with a generic
// 500 envelope, and the pipeline keeps serving subsequent requests.
func (p *Pipeline) Wrap(terminal http.Handler) http.Handler {
	handler := terminal
	for i := len(p.gates) - 1; i >= 0; i-- {
		handler = p.gates[i].Wrap(handler)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				p.logger.Error("pipeline fault",
					zap.Any("error", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				writeRejection(w, p.clock(), Rejection{
					Status:  http.StatusInternalServerError,
					Error:   "Internal Server Error",
					Message: "an unexpected error occurred while processing the request",
				})
			}
		}()
		handler.ServeHTTP(w, r)
	})
}

// GateNames reports the composed order, for startup logging.
func (p *Pipeline) GateNames() []string {
	names := make([]string, len(p.gates))
	for i, g := range p.gates {
		names[i] = g.Name()
	}
	return names
}
