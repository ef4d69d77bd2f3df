package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// ClientIPContextKey is the context key for storing the client IP address
const ClientIPContextKey contextKey = "client_ip"

// WithClientIP resolves the client address once, stores it on the context
// and adds it to the request logger. Place it after WithRequestLogger.
//
// Proxy headers can be spoofed; deploy behind a proxy that overwrites them.
func WithClientIP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := GetClientIP(r)
			ctx := context.WithValue(r.Context(), ClientIPContextKey, clientIP)
			l := zerolog.Ctx(ctx).With().Str("client_ip", clientIP).Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(ctx)))
		})
	}
}

// GetClientIPFromContext returns "" when WithClientIP did not run.
func GetClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPContextKey).(string); ok {
		return ip
	}
	return ""
}
