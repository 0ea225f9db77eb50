package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/tubeqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const rickrollURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// MockTranscriptSource mocks a transcript source
type MockTranscriptSource struct {
	mock.Mock
}

func (m *MockTranscriptSource) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	args := m.Called(ctx, videoID)
	return args.String(0), args.Error(1)
}

// MockMetadataSource mocks a metadata source
type MockMetadataSource struct {
	mock.Mock
}

func (m *MockMetadataSource) FetchMetadata(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VideoMetadata), args.Error(1)
}

// MockAnswerProvider mocks an answer provider
type MockAnswerProvider struct {
	mock.Mock
}

func (m *MockAnswerProvider) Answer(ctx context.Context, in AnswerInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *MockAnswerProvider) Summarize(ctx context.Context, in SummaryInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *MockAnswerProvider) Mode() domain.ProviderMode {
	return domain.ProviderModeLive
}

func testChatConfig() ChatConfig {
	cfg := DefaultChatConfig()
	cfg.Chunking = ChunkConfig{MaxChars: 200, OverlapWords: 5}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func newDemoChat(transcripts TranscriptSource, metadata MetadataSource) *ChatService {
	return NewChatService(transcripts, metadata, NewDemoEmbedder(256), NewDemoAnswerProvider(DefaultRelevanceThreshold), testChatConfig())
}

func TestChatService_ProcessVideo_DemoMode(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	metadata := new(MockMetadataSource)
	chat := newDemoChat(transcripts, metadata)

	transcripts.On("FetchTranscript", mock.Anything, "dQw4w9WgXcQ").Return(sampleTranscript(30), nil)
	metadata.On("FetchMetadata", mock.Anything, "dQw4w9WgXcQ").
		Return(&domain.VideoMetadata{Title: "Never Gonna Give You Up"}, nil)

	session, err := chat.ProcessVideo(context.Background(), rickrollURL)

	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", session.VideoID)
	assert.Equal(t, "dQw4w9WgXcQ", session.ID)
	assert.Equal(t, "Never Gonna Give You Up", session.Title)
	assert.Greater(t, len(session.Chunks), 1)
	assert.Equal(t, len(session.Chunks), len(session.Embeddings))
	assert.Empty(t, session.Messages)
	assert.Equal(t, domain.ProviderModeDemo, session.Mode)
	assert.Equal(t, domain.ProviderModeDemo, chat.Mode())
	assert.Equal(t, domain.ProviderModeDemo, chat.EmbeddingMode())
	assert.NotNil(t, chat.Session())
	transcripts.AssertExpectations(t)
	metadata.AssertExpectations(t)
}

func TestChatService_ProcessVideo_InvalidURLMakesNoCalls(t *testing.T) {
	tests := []struct {
		name string
		url  string
		err  error
	}{
		{"empty", "   ", domain.ErrInvalidURL},
		{"other host", "https://vimeo.com/watch?v=dQw4w9WgXcQ", domain.ErrInvalidURL},
		{"no id", "https://www.youtube.com/feed/trending", domain.ErrInvalidVideoID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcripts := new(MockTranscriptSource)
			metadata := new(MockMetadataSource)
			chat := newDemoChat(transcripts, metadata)

			session, err := chat.ProcessVideo(context.Background(), tt.url)

			assert.Nil(t, session)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))
			transcripts.AssertNotCalled(t, "FetchTranscript", mock.Anything, mock.Anything)
			metadata.AssertNotCalled(t, "FetchMetadata", mock.Anything, mock.Anything)
		})
	}
}

func TestChatService_ProcessVideo_TranscriptFailures(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		fetchErr   error
		expected   error
	}{
		{"unavailable", "", domain.ErrTranscriptUnavailable, domain.ErrTranscriptUnavailable},
		{"network error", "", errors.New("connection refused"), domain.ErrTranscriptUnavailable},
		{"too short", "Too short to use.", nil, domain.ErrTranscriptTooShort},
		{"only punctuation", strings.Repeat(". ", 40), nil, domain.ErrNoChunks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcripts := new(MockTranscriptSource)
			chat := newDemoChat(transcripts, nil)

			transcripts.On("FetchTranscript", mock.Anything, "dQw4w9WgXcQ").Return(sampleTranscript(10), nil).Once()
			_, err := chat.ProcessVideo(context.Background(), rickrollURL)
			require.NoError(t, err)
			before := chat.Session()

			transcripts.On("FetchTranscript", mock.Anything, "aaaaaaaaaaa").Return(tt.transcript, tt.fetchErr)
			session, err := chat.ProcessVideo(context.Background(), "https://youtu.be/aaaaaaaaaaa")

			assert.Nil(t, session)
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, domain.ErrCodeUnavailable, domain.CodeOf(err))

			after := chat.Session()
			require.NotNil(t, after)
			assert.Equal(t, before.VideoID, after.VideoID)
			assert.Equal(t, before.Chunks, after.Chunks)
		})
	}
}

func TestChatService_ProcessVideo_MetadataFailureUsesDefaultTitle(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	metadata := new(MockMetadataSource)
	chat := newDemoChat(transcripts, metadata)

	transcripts.On("FetchTranscript", mock.Anything, "dQw4w9WgXcQ").Return(sampleTranscript(5), nil)
	metadata.On("FetchMetadata", mock.Anything, "dQw4w9WgXcQ").Return(nil, errors.New("oembed 500"))

	session, err := chat.ProcessVideo(context.Background(), rickrollURL)

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTitle("dQw4w9WgXcQ"), session.Title)
}

func TestChatService_ProcessVideo_NilMetadataSource(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	chat := newDemoChat(transcripts, nil)

	transcripts.On("FetchTranscript", mock.Anything, "dQw4w9WgXcQ").Return(sampleTranscript(5), nil)

	session, err := chat.ProcessVideo(context.Background(), "dQw4w9WgXcQ")

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTitle("dQw4w9WgXcQ"), session.Title)
}

func TestChatService_ProcessVideo_ReportsProgress(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	chat := newDemoChat(transcripts, nil)
	transcripts.On("FetchTranscript", mock.Anything, "dQw4w9WgXcQ").Return(sampleTranscript(30), nil)

	progress := &recordingProgress{}
	session, err := chat.ProcessVideoWithProgress(context.Background(), rickrollURL, progress)

	require.NoError(t, err)
	assert.Equal(t, len(session.Chunks), progress.total)
	assert.Equal(t, len(session.Chunks), progress.increment)
	assert.True(t, progress.finished)
}

// blockingSource blocks on one video until its context is cancelled.
type blockingSource struct {
	blockID string
	started chan struct{}
}

func (s *blockingSource) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	if videoID == s.blockID {
		close(s.started)
		<-ctx.Done()
		return "", ctx.Err()
	}
	return sampleTranscript(10), nil
}

func TestChatService_ProcessVideo_NewVideoSupersedesInFlight(t *testing.T) {
	source := &blockingSource{blockID: "aaaaaaaaaaa", started: make(chan struct{})}
	chat := newDemoChat(source, nil)

	type result struct {
		session *domain.Session
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := chat.ProcessVideo(context.Background(), "https://youtu.be/aaaaaaaaaaa")
		done <- result{s, err}
	}()

	select {
	case <-source.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first ingestion never started")
	}

	session, err := chat.ProcessVideo(context.Background(), rickrollURL)
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", session.VideoID)

	select {
	case r := <-done:
		assert.Nil(t, r.session)
		assert.ErrorIs(t, r.err, domain.ErrIngestionSuperseded)
		assert.Equal(t, domain.ErrCodeCancelled, domain.CodeOf(r.err))
	case <-time.After(5 * time.Second):
		t.Fatal("superseded ingestion did not stop")
	}

	assert.Equal(t, "dQw4w9WgXcQ", chat.Session().VideoID)
}

func TestChatService_ProcessVideo_CallerCancellation(t *testing.T) {
	source := &blockingSource{blockID: "aaaaaaaaaaa", started: make(chan struct{})}
	chat := newDemoChat(source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-source.started
		cancel()
	}()

	session, err := chat.ProcessVideo(ctx, "aaaaaaaaaaa")

	assert.Nil(t, session)
	assert.ErrorIs(t, err, domain.ErrRequestCancelled)
	assert.Nil(t, chat.Session())
}

func processRickroll(t *testing.T, chat *ChatService, transcripts *MockTranscriptSource, transcript string) *domain.Session {
	t.Helper()
	transcripts.On("FetchTranscript", mock.Anything, "dQw4w9WgXcQ").Return(transcript, nil)
	session, err := chat.ProcessVideo(context.Background(), rickrollURL)
	require.NoError(t, err)
	return session
}

func TestChatService_AskQuestion_DemoRelevant(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	chat := newDemoChat(transcripts, nil)
	session := processRickroll(t, chat, transcripts, sampleTranscript(30))

	// Asking with a chunk's exact text embeds to the same demo vector.
	question := session.Chunks[2].Text
	msg, err := chat.AskQuestion(context.Background(), question)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg.Content, "✅"), msg.Content)
	assert.Equal(t, domain.RoleAssistant, msg.Role)
	assert.False(t, msg.Failed)
	require.NotEmpty(t, msg.Context)
	assert.Equal(t, 2, msg.Context[0].ChunkID)
	assert.InDelta(t, 1.0, msg.Context[0].Similarity, 1e-6)
	assert.Len(t, msg.Context, DefaultTopK)

	history := chat.Messages()
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, question, history[0].Content)
	assert.Equal(t, msg.ID, history[1].ID)
}

func TestChatService_AskQuestion_DemoNotCovered(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	chat := newDemoChat(transcripts, nil)
	processRickroll(t, chat, transcripts, sampleTranscript(30))

	msg, err := chat.AskQuestion(context.Background(), "What is the airspeed velocity of an unladen swallow?")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg.Content, "❌"), msg.Content)
	for _, ref := range msg.Context {
		assert.LessOrEqual(t, ref.Similarity, DefaultRelevanceThreshold)
	}
}

func TestChatService_AskQuestion_Validation(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	chat := newDemoChat(transcripts, nil)

	_, err := chat.AskQuestion(context.Background(), "anything?")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	processRickroll(t, chat, transcripts, sampleTranscript(10))

	_, err = chat.AskQuestion(context.Background(), "  \n ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	assert.Empty(t, chat.Messages())
}

func TestChatService_AskQuestion_ProviderFailureKeepsSession(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	answers := new(MockAnswerProvider)
	chat := NewChatService(transcripts, nil, NewDemoEmbedder(64), answers, testChatConfig())
	session := processRickroll(t, chat, transcripts, sampleTranscript(10))
	assert.Equal(t, domain.ProviderModeLive, session.Mode)

	providerErr := domain.ErrAnswerFailed.WithCause(errors.New("502 bad gateway"))
	answers.On("Answer", mock.Anything, mock.MatchedBy(func(in AnswerInput) bool { return in.Question == "first?" })).
		Return("", providerErr).Once()
	answers.On("Answer", mock.Anything, mock.MatchedBy(func(in AnswerInput) bool { return in.Question == "second?" })).
		Return("✅ works now", nil).Once()

	msg, err := chat.AskQuestion(context.Background(), "first?")

	assert.Nil(t, msg)
	assert.ErrorIs(t, err, domain.ErrAnswerFailed)
	assert.Equal(t, domain.ErrCodeProviderFailure, domain.CodeOf(err))

	history := chat.Messages()
	require.Len(t, history, 2)
	assert.Equal(t, "first?", history[0].Content)
	assert.True(t, history[1].Failed)
	assert.Equal(t, failedAnswerMessage, history[1].Content)

	msg, err = chat.AskQuestion(context.Background(), "second?")
	require.NoError(t, err)
	assert.Equal(t, "✅ works now", msg.Content)
	assert.Len(t, chat.Messages(), 4)
	answers.AssertExpectations(t)
}

// blockingAnswers holds every Answer call until release is closed.
type blockingAnswers struct {
	started chan struct{}
	release chan struct{}
	answer  string
	err     error
}

func (b *blockingAnswers) Answer(ctx context.Context, _ AnswerInput) (string, error) {
	close(b.started)
	select {
	case <-b.release:
		return b.answer, b.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *blockingAnswers) Summarize(context.Context, SummaryInput) (string, error) {
	return "", nil
}

func (b *blockingAnswers) Mode() domain.ProviderMode {
	return domain.ProviderModeLive
}

func TestChatService_AskQuestion_ResetAndReprocessSameVideoDropsStaleAnswer(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
	}{
		{name: "answer", answer: "✅ stale answer"},
		{name: "provider failure", err: domain.ErrAnswerFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcripts := new(MockTranscriptSource)
			answers := &blockingAnswers{
				started: make(chan struct{}),
				release: make(chan struct{}),
				answer:  tt.answer,
				err:     tt.err,
			}
			chat := NewChatService(transcripts, nil, NewDemoEmbedder(64), answers, testChatConfig())
			processRickroll(t, chat, transcripts, sampleTranscript(10))

			type result struct {
				msg *domain.ChatMessage
				err error
			}
			done := make(chan result, 1)
			go func() {
				msg, err := chat.AskQuestion(context.Background(), "old question?")
				done <- result{msg, err}
			}()

			select {
			case <-answers.started:
			case <-time.After(5 * time.Second):
				t.Fatal("question never reached the answer provider")
			}

			chat.Reset()
			fresh, err := chat.ProcessVideo(context.Background(), rickrollURL)
			require.NoError(t, err)
			assert.Equal(t, "dQw4w9WgXcQ", fresh.VideoID)

			close(answers.release)

			select {
			case r := <-done:
				assert.Nil(t, r.msg)
				assert.Error(t, r.err)
				if tt.err == nil {
					assert.ErrorIs(t, r.err, domain.ErrIngestionSuperseded)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("question did not return")
			}

			assert.Empty(t, chat.Messages())
			assert.Empty(t, chat.Session().Messages)
		})
	}
}

func TestChatService_AskQuestion_PassesRankedContext(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	answers := new(MockAnswerProvider)
	cfg := testChatConfig()
	cfg.TopK = 2
	chat := NewChatService(transcripts, nil, NewDemoEmbedder(64), answers, cfg)
	session := processRickroll(t, chat, transcripts, sampleTranscript(30))

	answers.On("Answer", mock.Anything, mock.MatchedBy(func(in AnswerInput) bool {
		return in.Title == session.Title && len(in.Ranked) == 2 &&
			in.Ranked[0].Similarity >= in.Ranked[1].Similarity
	})).Return("✅ answer", nil)

	_, err := chat.AskQuestion(context.Background(), "  what topics?  ")

	require.NoError(t, err)
	answers.AssertExpectations(t)
	assert.Equal(t, "what topics?", chat.Messages()[0].Content)
}

func TestChatService_GenerateSummary(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	answers := new(MockAnswerProvider)
	cfg := testChatConfig()
	cfg.SummaryChunks = 2
	chat := NewChatService(transcripts, nil, NewDemoEmbedder(64), answers, cfg)

	_, err := chat.GenerateSummary(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	session := processRickroll(t, chat, transcripts, sampleTranscript(30))

	answers.On("Summarize", mock.Anything, SummaryInput{Title: session.Title, Chunks: session.Chunks[:2]}).
		Return("- point", nil)

	summary, err := chat.GenerateSummary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "- point", summary)
	assert.Empty(t, chat.Messages())
	answers.AssertExpectations(t)
}

func TestChatService_GenerateSummary_DemoAndFailure(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	chat := newDemoChat(transcripts, nil)
	processRickroll(t, chat, transcripts, sampleTranscript(3))

	summary, err := chat.GenerateSummary(context.Background())
	require.NoError(t, err)
	assert.Contains(t, summary, domain.DefaultTitle("dQw4w9WgXcQ"))

	answers := new(MockAnswerProvider)
	live := NewChatService(transcripts, nil, NewDemoEmbedder(64), answers, testChatConfig())
	processRickroll(t, live, transcripts, sampleTranscript(3))
	answers.On("Summarize", mock.Anything, mock.Anything).Return("", domain.ErrSummaryFailed)

	_, err = live.GenerateSummary(context.Background())
	assert.ErrorIs(t, err, domain.ErrSummaryFailed)
}

func TestChatService_Reset(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	chat := newDemoChat(transcripts, nil)
	processRickroll(t, chat, transcripts, sampleTranscript(10))
	_, err := chat.AskQuestion(context.Background(), "hello?")
	require.NoError(t, err)

	chat.Reset()

	assert.Nil(t, chat.Session())
	assert.Empty(t, chat.Messages())
	_, err = chat.AskQuestion(context.Background(), "hello?")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestChatService_ExpireIdle(t *testing.T) {
	transcripts := new(MockTranscriptSource)
	chat := newDemoChat(transcripts, nil)
	processRickroll(t, chat, transcripts, sampleTranscript(10))

	assert.False(t, chat.ExpireIdle(time.Hour))
	assert.NotNil(t, chat.Session())

	chat.store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.True(t, chat.ExpireIdle(time.Hour))
	assert.Nil(t, chat.Session())
}
