package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"firmo/pkg/platform/httputil"
	"firmo/pkg/requestcontext"
)

// exceededResponse is the 429 envelope. RetryAfter mirrors the Retry-After
// header for clients that only read bodies.
type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Middleware enforces l per authenticated user, falling back to the client IP
// when no user is on the context yet. A nil limiter disables enforcement, so
// callers can wire the chain unconditionally.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := "user:" + requestcontext.UserID(ctx).String()
			if requestcontext.UserID(ctx).IsNil() {
				key = "ip:" + requestcontext.ClientIP(ctx)
			}

			res := l.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := res.RetryAfter(time.Now())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "too many requests, slow down and retry",
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
