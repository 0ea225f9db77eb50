package jobs

import (
	"context"
	"log/slog"
	"time"
)

// SessionExpirer drops the live session once it has been idle long enough
type SessionExpirer interface {
	ExpireIdle(ttl time.Duration) bool
}

// SessionExpiryProcessor resets a chat session nobody has touched within ttl
type SessionExpiryProcessor struct {
	chat   SessionExpirer
	ttl    time.Duration
	logger *slog.Logger
}

// NewSessionExpiryProcessor creates a SessionExpiryProcessor
func NewSessionExpiryProcessor(chat SessionExpirer, ttl time.Duration, logger *slog.Logger) *SessionExpiryProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionExpiryProcessor{chat: chat, ttl: ttl, logger: logger}
}

// ProcessJobs implements the JobProcessor interface
func (p *SessionExpiryProcessor) ProcessJobs(ctx context.Context) error {
	if p.ttl <= 0 {
		return nil
	}
	if p.chat.ExpireIdle(p.ttl) {
		p.logger.InfoContext(ctx, "idle session expired", slog.Duration("ttl", p.ttl))
	}
	return nil
}
