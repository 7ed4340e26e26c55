package pipeline

import (
	"bufio"
	"bytes"
	"net"
	"net/http"

	"go.uber.org/zap"

	"configreader/internal/config"
)

// AuditLogGate wraps downstream processing of sensitive routes so their
// response payloads never reach the log sink. The response is buffered fully
// in memory, copied unmodified to the real writer, and only request metadata
// (method, path, status, client IP, user agent) is logged. If the downstream
// handler panics, the gate logs the same metadata and re-panics; the payload
// is not logged on the error path either.
type AuditLogGate struct {
	current func() config.Config
	logger  *zap.Logger
}

// NewAuditLogGate builds the gate over the live configuration snapshot.
func NewAuditLogGate(current func() config.Config, logger *zap.Logger) *AuditLogGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogGate{current: current, logger: logger}
}

// Name implements Gate.
func (g *AuditLogGate) Name() string { return "audit-log" }

// Wrap implements Gate.
func (g *AuditLogGate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasPrefixAny(r.URL.Path, g.current().SensitivePrefixes) {
			next.ServeHTTP(w, r)
			return
		}

		clientIP, _ := ClientIP(r)
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("client_ip", clientIP),
			zap.String("user_agent", r.UserAgent()),
		}

		buffer := &bufferedResponse{header: make(http.Header), status: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				g.logger.Error("sensitive route handler panicked", fields...)
				panic(rec)
			}
		}()

		next.ServeHTTP(buffer, r)

		g.logger.Info("sensitive route served", append(fields,
			zap.Int("status", buffer.status),
			zap.Int("response_bytes", buffer.body.Len()),
		)...)

		buffer.copyTo(w)
	})
}

// bufferedResponse captures the downstream response entirely in memory.
// Nothing is forwarded until copyTo runs, so no partial payload can escape
// on a panic.
type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) { b.status = status }

func (b *bufferedResponse) Write(p []byte) (int, error) { return b.body.Write(p) }

// Hijack is intentionally unsupported: sensitive routes are plain JSON and a
// hijacked connection could not be audited.
func (b *bufferedResponse) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return nil, nil, http.ErrNotSupported
}

func (b *bufferedResponse) copyTo(w http.ResponseWriter) {
	for name, values := range b.header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body.Bytes())
}
