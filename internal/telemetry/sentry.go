// Package telemetry traces chat operations and HTTP requests with Sentry.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/cloo-solutions/tubeqa/internal/domain"
)

const serverName = "tubeqad"

// flushTimeout bounds how long shutdown waits for queued events
const flushTimeout = 5 * time.Second

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

// untracedTransactions are polled by load balancers and the CLI and carry no signal
var untracedTransactions = map[string]bool{
	"GET /health": true,
	"GET /mode":   true,
}

// Init configures the global Sentry client and returns a flush function.
// Without a DSN it does nothing. A client that fails to initialize is logged
// and skipped, tracing is never required to serve.
func Init(cfg Config, logger *slog.Logger) func() {
	noop := func() {}
	if cfg.DSN == "" {
		return noop
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:           cfg.DSN,
		Environment:   cfg.Environment,
		Release:       cfg.Release,
		EnableTracing: true,
		Debug:         cfg.Debug,
		ServerName:    serverName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			if untracedTransactions[ctx.Span.Name] {
				return 0
			}
			var root sentry.SpanID
			if ctx.Span.ParentSpanID != root {
				if ctx.Span.Sampled.Bool() {
					return 1
				}
				return 0
			}
			return cfg.TracesSampleRate
		}),
	})
	if err != nil {
		logger.Warn("sentry init failed, continuing without tracing", slog.String("error", err.Error()))
		return noop
	}

	logger.Info("sentry tracing enabled",
		slog.String("environment", cfg.Environment),
		slog.Float64("sample_rate", cfg.TracesSampleRate),
	)
	return func() { sentry.Flush(flushTimeout) }
}

// SpanAttributes identify the video and session a chat operation works on.
type SpanAttributes struct {
	VideoID   string
	SessionID string
	Mode      string
	Operation string
}

// Span wraps sentry.Span. The zero value is safe to use.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetData attaches a key/value pair to the span.
func (s *Span) SetData(key string, value any) {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// SetError records err on the span. Only unexpected failures are reported as
// exceptions; bad input, missing sessions and unavailable transcripts are
// user-facing outcomes and only set the span status.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	status, report := classify(err)
	s.inner.Status = status
	if !report {
		return
	}
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

// classify maps an error to a span status and whether it should be reported.
func classify(err error) (sentry.SpanStatus, bool) {
	switch domain.CodeOf(err) {
	case domain.ErrCodeValidation:
		return sentry.SpanStatusInvalidArgument, false
	case domain.ErrCodeNotFound:
		return sentry.SpanStatusNotFound, false
	case domain.ErrCodeUnavailable:
		return sentry.SpanStatusFailedPrecondition, false
	case domain.ErrCodeCancelled:
		return sentry.SpanStatusCanceled, false
	case domain.ErrCodeProviderFailure:
		return sentry.SpanStatusUnavailable, true
	default:
		return sentry.SpanStatusInternalError, true
	}
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// there is none, and tags it with attrs.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.VideoID != "" {
		span.SetTag("video_id", attrs.VideoID)
	}
	if attrs.SessionID != "" {
		span.SetTag("session_id", attrs.SessionID)
	}
	if attrs.Mode != "" {
		span.SetTag("provider_mode", attrs.Mode)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}

	return span.Context(), &Span{inner: span}
}

// AddBreadcrumb records an ingestion or question step on the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
		return
	}
	sentry.AddBreadcrumb(breadcrumb)
}
