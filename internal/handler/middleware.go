package handler

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/service"
	"github.com/cleanearth/cleanearth-bff-go/internal/session"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const sessionContextKey contextKey = "session"

// sessionFromContext returns the session injected by JWTAuthMiddleware.
func sessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionContextKey).(*session.Session)
	return sess
}

// JWTAuthMiddleware validates the bearer token and attaches the caller's
// session to the request context. A valid token whose session is gone
// (process restart, eviction) gets the session re-established from the
// token's identity.
func JWTAuthMiddleware(auth *service.AuthService, sessions *session.Manager, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "malformed authorization header")
				return
			}

			claims, err := auth.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Debug("token validation failed", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			sess := sessions.Get(claims.Subject)
			if sess == nil {
				sess, err = sessions.Establish(r.Context(), domain.Identity{
					ID:    claims.Subject,
					Email: claims.Email,
				})
				if err != nil {
					logger.Warn("session re-establishment failed",
						zap.String("identity_id", claims.Subject),
						zap.Error(err))
					writeError(w, http.StatusUnauthorized, "session could not be established")
					return
				}
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware attaches a session when a valid bearer token is
// present and passes through otherwise. Used where anonymous access is
// a legitimate answer, not an error.
func OptionalAuthMiddleware(auth *service.AuthService, sessions *session.Manager, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ValidateAccessToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			sess := sessions.Get(claims.Subject)
			if sess == nil {
				sess, err = sessions.Establish(r.Context(), domain.Identity{
					ID:    claims.Subject,
					Email: claims.Email,
				})
				if err != nil {
					logger.Debug("optional session re-establishment failed",
						zap.String("identity_id", claims.Subject),
						zap.Error(err))
					next.ServeHTTP(w, r)
					return
				}
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route group on the session role. A mismatched role
// is sent to its own dashboard rather than rejected, mirroring the web
// guard behavior.
func RequireRole(routeRole domain.RoleKind) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFromContext(r.Context())
			if sess == nil {
				writeError(w, http.StatusUnauthorized, "no session")
				return
			}

			decision := session.EvaluateRoute(session.StateAuthenticated, sess.Role, session.RouteRoleScoped, routeRole)
			switch decision.Action {
			case session.Render:
				next.ServeHTTP(w, r)
			case session.Redirect:
				http.Redirect(w, r, decision.Target, http.StatusSeeOther)
			default:
				http.Redirect(w, r, "/login", http.StatusSeeOther)
			}
		})
	}
}

// ipRateLimiter keeps a token bucket per client IP. Used only on the
// credential endpoints, where brute force is the concern.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *ipRateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.visitors[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.visitors[ip] = lim
	}
	return lim
}

// RateLimitMiddleware rejects clients exceeding the per-IP budget with 429.
func RateLimitMiddleware(limit rate.Limit, burst int) func(next http.Handler) http.Handler {
	limiter := newIPRateLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if !limiter.limiter(ip).Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
