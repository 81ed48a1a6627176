package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/enroll/queue-server-go/internal/audit"
	apperrors "github.com/enroll/queue-server-go/internal/errors"
	"github.com/enroll/queue-server-go/internal/httputil"
	"github.com/enroll/queue-server-go/internal/util"
)

type contextKey string

const AuthUserContextKey contextKey = "authUser"

const adminRealm = `Basic realm="enroll-admin", charset="UTF-8"`

func GetAuthUser(ctx context.Context) string {
	if user, ok := ctx.Value(AuthUserContextKey).(string); ok {
		return user
	}
	return ""
}

// AuthUser records the basic-auth username, if any, for logging. It never
// rejects a request.
func AuthUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, _, ok := r.BasicAuth(); ok && user != "" {
			r = r.WithContext(context.WithValue(r.Context(), AuthUserContextKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

// AdminAuthMiddleware checks basic-auth credentials against a bcrypt hash.
// With no hash configured it lets every request through.
type AdminAuthMiddleware struct {
	username     string
	passwordHash string
	failures     *AuthFailureLimiter
}

func NewAdminAuthMiddleware(username, passwordHash string, failures *AuthFailureLimiter) *AdminAuthMiddleware {
	if failures == nil {
		failures = NewAuthFailureLimiter()
	}
	return &AdminAuthMiddleware{
		username:     username,
		passwordHash: passwordHash,
		failures:     failures,
	}
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.passwordHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r)
		if m.failures.Blocked(ip) {
			w.Header().Set("Retry-After", "60")
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		user, password, ok := r.BasicAuth()
		if !ok || !util.ConstantTimeEqual(user, m.username) || !util.CheckPasswordHash(password, m.passwordHash) {
			m.failures.RecordFailure(ip)
			log.Warn().Str("ip", ip).Str("authUser", user).Msg("admin auth failed")
			audit.LogFromRequest(r, audit.Event{
				Type:     audit.EventAdminAuthFailure,
				AuthUser: user,
			})

			w.Header().Set("WWW-Authenticate", adminRealm)
			httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
			return
		}

		m.failures.Reset(ip)
		next.ServeHTTP(w, r)
	})
}
