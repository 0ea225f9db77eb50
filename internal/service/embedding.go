package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/cloo-solutions/tubeqa/internal/domain"
)

// DefaultEmbeddingDimensions matches text-embedding-ada-002
const DefaultEmbeddingDimensions = 1536

// Embedder turns text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Mode() domain.ProviderMode
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ProgressReporter receives ingestion progress. Implementations must tolerate
// Finish being called without a matching Start.
type ProgressReporter interface {
	Start(total int)
	Increment()
	Finish()
}

type noopProgress struct{}

func (noopProgress) Start(int)  {}
func (noopProgress) Increment() {}
func (noopProgress) Finish()    {}

// NoopProgress discards progress updates
var NoopProgress ProgressReporter = noopProgress{}

// DemoEmbedder produces deterministic pseudo-random vectors seeded by the text.
// The vectors carry no meaning; they keep the pipeline runnable without a provider.
type DemoEmbedder struct {
	dimensions int
}

func NewDemoEmbedder(dimensions int) *DemoEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &DemoEmbedder{dimensions: dimensions}
}

func (e *DemoEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	vec := make([]float32, e.dimensions)
	for i := range vec {
		vec[i] = float32(rng.Float64()*2 - 1)
	}
	return vec, nil
}

func (e *DemoEmbedder) Dimensions() int { return e.dimensions }

func (e *DemoEmbedder) Mode() domain.ProviderMode { return domain.ProviderModeDemo }

// LiveEmbedderConfig tunes pacing and retries for the embedding provider
type LiveEmbedderConfig struct {
	Dimensions     int
	RatePerSecond  float64
	Burst          int
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// CallTimeout bounds a single provider request; zero means no extra deadline.
	CallTimeout time.Duration
	// Retryable reports whether a provider error is worth retrying (rate limits, 5xx).
	Retryable func(error) bool
	Logger    *slog.Logger
}

// DefaultLiveEmbedderConfig provides sane defaults for provider pacing
func DefaultLiveEmbedderConfig() LiveEmbedderConfig {
	return LiveEmbedderConfig{
		Dimensions:     DefaultEmbeddingDimensions,
		RatePerSecond:  5,
		Burst:          1,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// LiveEmbedder calls the embedding provider through a token bucket and retries
// transient failures. Anything still failing degrades to the demo vector.
type LiveEmbedder struct {
	client         EmbeddingClient
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	callTimeout    time.Duration
	retryable      func(error) bool
	fallback       *DemoEmbedder
	logger         *slog.Logger
}

func NewLiveEmbedder(client EmbeddingClient, cfg LiveEmbedderConfig) *LiveEmbedder {
	defaults := DefaultLiveEmbedderConfig()
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaults.Dimensions
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &LiveEmbedder{
		client:         client,
		limiter:        rate.NewLimiter(limit, cfg.Burst),
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		callTimeout:    cfg.CallTimeout,
		retryable:      cfg.Retryable,
		fallback:       NewDemoEmbedder(cfg.Dimensions),
		logger:         cfg.Logger,
	}
}

func (e *LiveEmbedder) Dimensions() int { return e.fallback.Dimensions() }

func (e *LiveEmbedder) Mode() domain.ProviderMode { return domain.ProviderModeLive }

// Embed never fails on provider errors; only cancellation of ctx is returned.
func (e *LiveEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedWithRetry(ctx, text)
	if err == nil {
		return vec, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	e.logger.WarnContext(ctx, "embedding provider failed, using fallback vector",
		slog.String("error", err.Error()),
		slog.Int("text_len", len(text)),
	)
	return e.fallback.Embed(ctx, text)
}

func (e *LiveEmbedder) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	attempt := 0
	operation := func() ([]float32, error) {
		attempt++
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		callCtx, cancel := e.callContext(ctx)
		vec, err := e.client.GenerateEmbedding(callCtx, text)
		cancel()
		if err == nil {
			return vec, nil
		}
		if ctx.Err() != nil || e.retryable == nil || !e.retryable(err) {
			return nil, backoff.Permanent(err)
		}

		e.logger.DebugContext(ctx, "retrying embedding request",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialBackoff
	b.MaxInterval = e.maxBackoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.maxRetries)), ctx)
	return backoff.RetryWithData(operation, policy)
}

func (e *LiveEmbedder) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

// EmbedAll embeds chunks one at a time in order. The result is index-aligned with chunks.
func EmbedAll(ctx context.Context, embedder Embedder, chunks []domain.Chunk, progress ProgressReporter) ([][]float32, error) {
	if progress == nil {
		progress = NoopProgress
	}
	progress.Start(len(chunks))
	defer progress.Finish()

	embeddings := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d: %w", chunk.ID, err)
		}
		embeddings = append(embeddings, vec)
		progress.Increment()
	}

	return embeddings, nil
}

// isCancellation reports whether err stems from a cancelled or expired context
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

