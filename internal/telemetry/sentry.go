package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	// DSN is the Sentry Data Source Name (required if Enabled is true)
	DSN string

	// Enabled controls whether Sentry is active
	Enabled bool

	// Environment identifies the deployment environment (dev, staging, prod)
	Environment string

	// Release is the application version/release identifier
	Release string

	// SampleRate controls the percentage of errors to capture (0.0 to 1.0)
	SampleRate float64

	// TracesSampleRate controls the percentage of transactions to trace (0.0 to 1.0)
	TracesSampleRate float64
}

// Reporter forwards unexpected errors to Sentry. The zero value and a nil
// *Reporter are disabled and drop everything.
type Reporter struct {
	enabled bool
}

// InitSentry initializes the Sentry client.
// The returned cleanup function flushes buffered events on shutdown.
func InitSentry(cfg SentryConfig, logger zerolog.Logger) (*Reporter, func(), error) {
	if !cfg.Enabled {
		logger.Info().Msg("Sentry disabled (SENTRY_ENABLED=false or DSN not configured)")
		return &Reporter{}, func() {}, nil
	}
	if cfg.DSN == "" {
		logger.Warn().Msg("Sentry DSN not configured, disabling error tracking")
		return &Reporter{}, func() {}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("release", cfg.Release).
		Float64("sample_rate", sampleRate).
		Msg("Sentry initialized")

	return &Reporter{enabled: true}, func() { sentry.Flush(2 * time.Second) }, nil
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// CaptureError reports err using the request hub when one is on ctx.
func (r *Reporter) CaptureError(ctx context.Context, err error, extras map[string]any) {
	if !r.Enabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}

// SetUser tags subsequent errors on the request hub with the caller.
func (r *Reporter) SetUser(ctx context.Context, userID string) {
	if !r.Enabled() {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.Scope().SetUser(sentry.User{ID: userID})
	}
}

// Middleware clones a hub per request and reports panics before answering 500.
func (r *Reporter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !r.Enabled() {
				next.ServeHTTP(w, req)
				return
			}

			hub := sentry.GetHubFromContext(req.Context())
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}
			hub.Scope().SetRequest(req)
			ctx := sentry.SetHubOnContext(req.Context(), hub)

			defer func() {
				if err := recover(); err != nil {
					hub.RecoverWithContext(ctx, err)
					sentry.Flush(2 * time.Second)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
