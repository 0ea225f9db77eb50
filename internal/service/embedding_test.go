package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cloo-solutions/tubeqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingClient mocks the OpenAI client
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type recordingProgress struct {
	total     int
	increment int
	finished  bool
}

func (p *recordingProgress) Start(total int) { p.total = total }
func (p *recordingProgress) Increment()      { p.increment++ }
func (p *recordingProgress) Finish()         { p.finished = true }

var errRateLimited = errors.New("429 too many requests")

func isRateLimited(err error) bool { return errors.Is(err, errRateLimited) }

func testLiveConfig() LiveEmbedderConfig {
	return LiveEmbedderConfig{
		Dimensions:     3,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Retryable:      isRateLimited,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestDemoEmbedder_Deterministic(t *testing.T) {
	e := NewDemoEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "the same text")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "the same text")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "different text")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, domain.ProviderModeDemo, e.Mode())
	for _, x := range a {
		assert.GreaterOrEqual(t, x, float32(-1))
		assert.LessOrEqual(t, x, float32(1))
	}
}

func TestDemoEmbedder_DefaultDimensions(t *testing.T) {
	e := NewDemoEmbedder(0)
	vec, err := e.Embed(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, DefaultEmbeddingDimensions, e.Dimensions())
	assert.Len(t, vec, DefaultEmbeddingDimensions)
}

func TestLiveEmbedder_Success(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	e := NewLiveEmbedder(mockClient, testLiveConfig())

	ctx := context.Background()
	mockClient.On("GenerateEmbedding", ctx, "hello").Return([]float32{0.1, 0.2, 0.3}, nil).Once()

	vec, err := e.Embed(ctx, "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, domain.ProviderModeLive, e.Mode())
	assert.Equal(t, 3, e.Dimensions())
	mockClient.AssertExpectations(t)
}

func TestLiveEmbedder_RetriesRateLimit(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	e := NewLiveEmbedder(mockClient, testLiveConfig())

	ctx := context.Background()
	mockClient.On("GenerateEmbedding", ctx, "hello").Return(nil, errRateLimited).Once()
	mockClient.On("GenerateEmbedding", ctx, "hello").Return([]float32{1, 2, 3}, nil).Once()

	vec, err := e.Embed(ctx, "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	mockClient.AssertNumberOfCalls(t, "GenerateEmbedding", 2)
}

func TestLiveEmbedder_ExhaustedRetriesFallBack(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	e := NewLiveEmbedder(mockClient, testLiveConfig())

	ctx := context.Background()
	mockClient.On("GenerateEmbedding", ctx, "hello").Return(nil, errRateLimited)

	vec, err := e.Embed(ctx, "hello")

	require.NoError(t, err)
	expected, _ := NewDemoEmbedder(3).Embed(ctx, "hello")
	assert.Equal(t, expected, vec)
	mockClient.AssertNumberOfCalls(t, "GenerateEmbedding", 3)
}

func TestLiveEmbedder_PermanentErrorFallsBackWithoutRetry(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	e := NewLiveEmbedder(mockClient, testLiveConfig())

	ctx := context.Background()
	mockClient.On("GenerateEmbedding", ctx, "hello").Return(nil, errors.New("invalid api key"))

	vec, err := e.Embed(ctx, "hello")

	require.NoError(t, err)
	assert.Len(t, vec, 3)
	mockClient.AssertNumberOfCalls(t, "GenerateEmbedding", 1)
}

func TestLiveEmbedder_CancelledContextIsReturned(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	e := NewLiveEmbedder(mockClient, testLiveConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vec, err := e.Embed(ctx, "hello")

	assert.Nil(t, vec)
	assert.ErrorIs(t, err, context.Canceled)
	mockClient.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestEmbedAll_AlignedAndSequential(t *testing.T) {
	chunks := []domain.Chunk{{ID: 0, Text: "a"}, {ID: 1, Text: "b"}, {ID: 2, Text: "c"}}
	progress := &recordingProgress{}

	embeddings, err := EmbedAll(context.Background(), NewDemoEmbedder(8), chunks, progress)

	require.NoError(t, err)
	require.Len(t, embeddings, len(chunks))
	for i, c := range chunks {
		expected, _ := NewDemoEmbedder(8).Embed(context.Background(), c.Text)
		assert.Equal(t, expected, embeddings[i])
	}
	assert.Equal(t, 3, progress.total)
	assert.Equal(t, 3, progress.increment)
	assert.True(t, progress.finished)
}

func TestEmbedAll_StopsOnCancellation(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	e := NewLiveEmbedder(mockClient, testLiveConfig())

	ctx, cancel := context.WithCancel(context.Background())
	mockClient.On("GenerateEmbedding", mock.Anything, "a").
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()

	progress := &recordingProgress{}
	embeddings, err := EmbedAll(ctx, e, []domain.Chunk{{ID: 0, Text: "a"}, {ID: 1, Text: "b"}}, progress)

	assert.Nil(t, embeddings)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, isCancellation(err))
	assert.True(t, progress.finished)
	mockClient.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, "b")
}

func TestEmbedAll_NilProgress(t *testing.T) {
	embeddings, err := EmbedAll(context.Background(), NewDemoEmbedder(4), []domain.Chunk{{ID: 0, Text: "x"}}, nil)

	require.NoError(t, err)
	assert.Len(t, embeddings, 1)
}
