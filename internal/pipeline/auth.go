package pipeline

import (
	"fmt"
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"configreader/internal/config"
	"configreader/internal/token"
)

// tokenPattern is the accepted credential shape: 32 to 512 characters of
// alphanumerics, hyphen, and underscore. Values outside it are rejected
// before any hashing or store lookup happens.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{32,512}$`)

// AuthGate validates the token header against the issued-token store and the
// static credential set. The header value is compared exactly as presented;
// no "Bearer " prefix is stripped.
type AuthGate struct {
	issued  *token.Store
	static  token.StaticSet
	current func() config.Config
	logger  *zap.Logger
	clock   Clock
}

// NewAuthGate builds the gate. The static set is derived once at startup;
// only the header name, exemptions, and required flag follow reloads.
func NewAuthGate(issued *token.Store, static token.StaticSet, current func() config.Config, logger *zap.Logger, clock Clock) *AuthGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}
	return &AuthGate{issued: issued, static: static, current: current, logger: logger, clock: clock}
}

// Name implements Gate.
func (g *AuthGate) Name() string { return "token-auth" }

// Validate reports whether presented is an acceptable credential under cfg.
// With auth not required it always passes; that posture is for local
// development and must never be the production default.
func (g *AuthGate) Validate(presented string, cfg config.Config) bool {
	if !cfg.RequireAuth {
		return true
	}
	if !tokenPattern.MatchString(presented) {
		return false
	}
	if g.issued != nil && g.issued.Valid(presented) {
		return true
	}
	return g.static.Contains(presented)
}

// Wrap implements Gate.
func (g *AuthGate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := g.current()

		if !cfg.RequireAuth || hasPrefixAny(r.URL.Path, cfg.AuthExemptPrefixes) {
			next.ServeHTTP(w, r)
			return
		}

		presented := r.Header.Get(cfg.TokenHeader)
		if g.Validate(presented, cfg) {
			next.ServeHTTP(w, r)
			return
		}

		clientIP, _ := ClientIP(r)
		g.logger.Info("token authentication failed",
			zap.String("client_ip", clientIP),
			zap.String("path", r.URL.Path),
			zap.Bool("header_present", presented != ""))

		headers := make(http.Header)
		headers.Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", cfg.ServiceName))

		writeRejection(w, g.clock(), Rejection{
			Status:  http.StatusUnauthorized,
			Error:   "Unauthorized",
			Message: "a valid access token is required",
			Headers: headers,
			Details: map[string]string{
				"requiredHeader": cfg.TokenHeader,
				"format":         "32-512 characters: letters, digits, '-', '_'",
			},
		})
	})
}
