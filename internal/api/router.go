package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"configreader/internal/pipeline"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.enableLogging = enabled
	}
}

// WithBurstLimiter overrides the default burst limiter (primarily for tests).
func WithBurstLimiter(limiter burstLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.burstLimiter = limiter
	}
}

// WithBurstLimit sets the transport-level token-bucket parameters. Zero for
// either value disables the burst guard.
func WithBurstLimit(rps float64, capacity int) RouterOption {
	return func(cfg *routerConfig) {
		if rps == 0 || capacity == 0 {
			cfg.burstLimiter = nil
			return
		}
		cfg.burstLimiter = newTokenBucketLimiter(rps, capacity)
	}
}

type routerConfig struct {
	enableLogging bool
	logger        *zap.Logger
	burstLimiter  burstLimiter
}

// NewRouter builds the route table and stacks the security pipeline plus the
// base middleware on top of it. From the outside in: request ID, recovery,
// access logging, burst guard, the five-gate pipeline, then the handlers.
func NewRouter(handler *Handler, pl *pipeline.Pipeline, logger *zap.Logger, opts ...RouterOption) http.Handler {
	cfg := routerConfig{
		enableLogging: true,
		logger:        logger,
		burstLimiter:  newTokenBucketLimiter(25, 50),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", http.HandlerFunc(handler.handleHealth))
	mux.Handle("GET /config", http.HandlerFunc(handler.handleConfigAll))
	mux.Handle("GET /config/environment", http.HandlerFunc(handler.handleConfigEnvironment))
	mux.Handle("GET /config/appsettings", http.HandlerFunc(handler.handleConfigAppSettings))
	mux.Handle("GET /config/{key}", http.HandlerFunc(handler.handleConfigKey))
	mux.Handle("POST /token/generate", http.HandlerFunc(handler.handleTokenGenerate))
	mux.Handle("GET /token/list", http.HandlerFunc(handler.handleTokenList))
	mux.Handle("DELETE /token/revoke", http.HandlerFunc(handler.handleTokenRevoke))

	var root http.Handler = mux
	if pl != nil {
		root = pl.Wrap(root)
	}
	root = burstLimitMiddleware(cfg.burstLimiter, handler, root)
	if cfg.enableLogging {
		root = loggingMiddleware(cfg.logger, root)
	}
	root = recoveryMiddleware(cfg.logger, handler, root)
	root = requestIDMiddleware(root)

	return root
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		requestID := requestIDFromContext(r.Context())
		clientIP, _ := pipeline.ClientIP(r)
		logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
			zap.String("client_ip", clientIP),
			zap.String("request_id", requestID),
		)
	})
}

func recoveryMiddleware(logger *zap.Logger, handler *Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered", zap.Any("error", rec))
				handler.writeError(w, http.StatusInternalServerError, "Internal Server Error", "unexpected server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := contextWithRequestID(r.Context(), requestID)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
