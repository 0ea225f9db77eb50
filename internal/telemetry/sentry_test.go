package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"

	"github.com/cloo-solutions/tubeqa/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status sentry.SpanStatus
		report bool
	}{
		{"validation", domain.ErrInvalidURL, sentry.SpanStatusInvalidArgument, false},
		{"no session", domain.ErrNoActiveSession, sentry.SpanStatusNotFound, false},
		{"no transcript", domain.ErrTranscriptUnavailable.WithCause(errors.New("404")), sentry.SpanStatusFailedPrecondition, false},
		{"superseded", domain.ErrIngestionSuperseded, sentry.SpanStatusCanceled, false},
		{"provider", domain.ErrAnswerFailed, sentry.SpanStatusUnavailable, true},
		{"unknown", errors.New("boom"), sentry.SpanStatusInternalError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, report := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.report, report)
		})
	}
}

func TestInit_WithoutDSN(t *testing.T) {
	flush := Init(Config{}, nil)
	assert.NotNil(t, flush)
	flush()
}

func TestSpan_WithoutClient(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "ChatService.AskQuestion", SpanAttributes{
		VideoID:   "dQw4w9WgXcQ",
		Operation: "ask_question",
	})

	assert.NotNil(t, ctx)
	span.SetData("chunks", 3)
	span.SetError(domain.ErrNoActiveSession)
	span.End()
	AddBreadcrumb(ctx, "ingestion", "transcript chunked")

	var zero Span
	zero.SetError(errors.New("ignored"))
	zero.End()
}
