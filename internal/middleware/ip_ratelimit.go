package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enroll/queue-server-go/internal/audit"
	apperrors "github.com/enroll/queue-server-go/internal/errors"
	"github.com/enroll/queue-server-go/internal/httputil"
)

// ClientIP returns the request's remote host without the port. chi's RealIP
// middleware has already applied forwarding headers by the time this runs.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type IPRateLimitMiddleware struct {
	limiter Limiter
	limit   int
	prefix  string
}

func NewIPRateLimitMiddleware(limiter Limiter, limit int, prefix string) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		prefix:  prefix,
	}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		key := fmt.Sprintf("ip:%s:%s", m.prefix, ip)

		allowed, remaining, resetAt := m.limiter.Check(r.Context(), key, m.limit)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			log.Warn().Str("ip", ip).Str("scope", m.prefix).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:     audit.EventRateLimitExceed,
				AuthUser: GetAuthUser(r.Context()),
				Details:  map[string]interface{}{"scope": m.prefix},
			})

			secondsLeft := int(time.Until(time.Unix(resetAt, 0)).Seconds()) + 1
			if secondsLeft < 1 {
				secondsLeft = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secondsLeft))
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
