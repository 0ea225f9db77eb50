package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSessionExpirer is a mock implementation of SessionExpirer
type MockSessionExpirer struct {
	mock.Mock
}

func (m *MockSessionExpirer) ExpireIdle(ttl time.Duration) bool {
	args := m.Called(ttl)
	return args.Bool(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 50*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(175 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 50*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(125 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// countingProcessor fails its first run and counts every run
type countingProcessor struct {
	calls atomic.Int32
}

func (p *countingProcessor) ProcessJobs(ctx context.Context) error {
	if p.calls.Add(1) == 1 {
		return errors.New("transient")
	}
	return nil
}

// TestWorker_ContinuesAfterError tests a failing run does not stop the loop
func TestWorker_ContinuesAfterError(t *testing.T) {
	processor := &countingProcessor{}
	worker := NewWorker(processor, 20*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return processor.calls.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	worker.Stop()
	wg.Wait()
}

func TestSessionExpiryProcessor_ProcessJobs(t *testing.T) {
	expirer := new(MockSessionExpirer)
	expirer.On("ExpireIdle", 30*time.Minute).Return(true).Once()
	expirer.On("ExpireIdle", 30*time.Minute).Return(false).Once()

	processor := NewSessionExpiryProcessor(expirer, 30*time.Minute, discardLogger())

	assert.NoError(t, processor.ProcessJobs(context.Background()))
	assert.NoError(t, processor.ProcessJobs(context.Background()))
	expirer.AssertExpectations(t)
}

func TestSessionExpiryProcessor_DisabledTTL(t *testing.T) {
	expirer := new(MockSessionExpirer)
	processor := NewSessionExpiryProcessor(expirer, 0, discardLogger())

	assert.NoError(t, processor.ProcessJobs(context.Background()))
	expirer.AssertNotCalled(t, "ExpireIdle", mock.Anything)
}
