// Package reporting forwards unexpected errors to Sentry.
package reporting

import (
	"context"
	"fmt"
	"time"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/middleware"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

// Init configures the global Sentry client. Without a DSN, Report only logs.
func Init(cfg *config.Config, logger zerolog.Logger) (func(), error) {
	if cfg.SentryDSN == "" {
		logger.Info().Msg("sentry disabled")
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}

	logger.Info().Msg("sentry enabled")
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// Report logs err and sends it to Sentry with the request id and extras as tags.
func Report(ctx context.Context, logger zerolog.Logger, err error, extras ...map[string]string) {
	event := logger.Error().Err(err)
	for _, extra := range extras {
		for key, value := range extra {
			event = event.Str(key, value)
		}
	}
	event.Msg("reporting error")

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			scope.SetTag("request_id", requestID)
		}
		for _, extra := range extras {
			scope.SetTags(extra)
		}
		hub.CaptureException(err)
	})
}
