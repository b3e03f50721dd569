package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/mkovalev/taskboard/internal/handlers/render"
)

type rateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type warnLogger interface {
	Warn(msg string, args ...any)
}

// RateLimitMiddleware throttles requests per client IP. Fail-open: when
// the limiter is unreachable the request goes through and the failure is
// logged.
func RateLimitMiddleware(limiter rateLimiter, l warnLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				l.Warn("rate limiter unavailable", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				render.Error(w, "Too many requests, please try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
