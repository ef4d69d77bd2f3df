package middleware

import (
	"net/http"

	"github.com/rs/zerolog"
)

// WithRequestLogger attaches a request-scoped logger to the context, read
// back with zerolog.Ctx. Place it after RequestID; RequireAuth adds user_id.
func WithRequestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lc := base.With().
				Str("method", r.Method).
				Str("path", r.URL.Path)
			if id := GetRequestID(r); id != "" {
				lc = lc.Str("request_id", id)
			}
			l := lc.Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	}
}
