package middleware

import (
	"net/http"

	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/handler"
)

// Common size limits
const (
	KB = 1024
	MB = 1024 * KB

	// DefaultMaxBodySize bounds JSON request bodies.
	DefaultMaxBodySize = 1 * MB

	// WebhookMaxBodySize matches the largest payload Stripe documents.
	WebhookMaxBodySize = 512 * KB
)

// MaxBodySize rejects declared oversize bodies with 413 and caps the rest
// with http.MaxBytesReader so decoders fail past the limit.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				handler.JSON(w, http.StatusRequestEntityTooLarge, map[string]any{
					"error": map[string]string{"code": domain.EINVALID, "message": "Request body too large"},
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
