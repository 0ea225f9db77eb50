package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cloo-solutions/tubeqa/internal/domain"
	"github.com/cloo-solutions/tubeqa/internal/telemetry"
)

// DefaultMinTranscriptChars is the shortest transcript worth ingesting
const DefaultMinTranscriptChars = 50

// DefaultProviderTimeout bounds each call to an external provider
const DefaultProviderTimeout = 30 * time.Second

const failedAnswerMessage = "Sorry, I couldn't answer that question right now. Please try asking again."

// TranscriptSource fetches the spoken text of a video
type TranscriptSource interface {
	FetchTranscript(ctx context.Context, videoID string) (string, error)
}

// MetadataSource fetches display information for a video
type MetadataSource interface {
	FetchMetadata(ctx context.Context, videoID string) (*domain.VideoMetadata, error)
}

// ChatConfig tunes retrieval and provider calls
type ChatConfig struct {
	Chunking           ChunkConfig
	TopK               int
	SummaryChunks      int
	MinTranscriptChars int
	ProviderTimeout    time.Duration
	Logger             *slog.Logger
}

// DefaultChatConfig provides sane defaults for the chat pipeline
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		Chunking:           DefaultChunkConfig(),
		TopK:               DefaultTopK,
		SummaryChunks:      DefaultSummaryChunks,
		MinTranscriptChars: DefaultMinTranscriptChars,
		ProviderTimeout:    DefaultProviderTimeout,
	}
}

// ChatService owns the single conversation about one video: ingestion,
// question answering and summaries.
type ChatService struct {
	transcripts TranscriptSource
	metadata    MetadataSource
	embedder    Embedder
	answers     AnswerProvider
	store       *SessionStore
	cfg         ChatConfig
	logger      *slog.Logger

	mu           sync.Mutex
	ingestTicket uint64
	cancelIngest context.CancelFunc
}

// NewChatService creates a ChatService. metadata may be nil, in which case
// every video gets a default title.
func NewChatService(
	transcripts TranscriptSource,
	metadata MetadataSource,
	embedder Embedder,
	answers AnswerProvider,
	cfg ChatConfig,
) *ChatService {
	defaults := DefaultChatConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = defaults.TopK
	}
	if cfg.SummaryChunks <= 0 {
		cfg.SummaryChunks = defaults.SummaryChunks
	}
	if cfg.MinTranscriptChars <= 0 {
		cfg.MinTranscriptChars = defaults.MinTranscriptChars
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaults.ProviderTimeout
	}
	if cfg.Chunking.MaxChars <= 0 {
		cfg.Chunking = defaults.Chunking
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ChatService{
		transcripts: transcripts,
		metadata:    metadata,
		embedder:    embedder,
		answers:     answers,
		store:       NewSessionStore(),
		cfg:         cfg,
		logger:      cfg.Logger,
	}
}

// Mode reports whether answers come from a live model or demo templates
func (s *ChatService) Mode() domain.ProviderMode {
	return s.answers.Mode()
}

// EmbeddingMode reports whether embeddings come from a live model or the demo generator
func (s *ChatService) EmbeddingMode() domain.ProviderMode {
	return s.embedder.Mode()
}

// ProcessVideo ingests the video at rawURL and makes it the live session.
func (s *ChatService) ProcessVideo(ctx context.Context, rawURL string) (*domain.Session, error) {
	return s.ProcessVideoWithProgress(ctx, rawURL, nil)
}

// ProcessVideoWithProgress is ProcessVideo with embedding progress reported to progress.
// Any ingestion still running is cancelled. On failure the previous session is kept.
func (s *ChatService) ProcessVideoWithProgress(ctx context.Context, rawURL string, progress ProgressReporter) (*domain.Session, error) {
	videoID, err := domain.ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "ChatService.ProcessVideo", telemetry.SpanAttributes{
		VideoID:   videoID,
		Mode:      string(s.answers.Mode()),
		Operation: "process_video",
	})
	defer span.End()

	ingestCtx, ticket := s.beginIngestion(ctx)
	defer s.endIngestion(ticket)

	fail := func(err error) (*domain.Session, error) {
		span.SetError(err)
		return nil, err
	}

	logger := s.logger.With(slog.String("video_id", videoID))
	logger.InfoContext(ctx, "processing video")

	transcript, err := s.fetchTranscript(ingestCtx, videoID)
	if err != nil {
		return fail(s.ingestionError(ctx, ingestCtx, err))
	}

	title := s.fetchTitle(ingestCtx, logger, videoID)

	chunks := ChunkTranscript(transcript, s.cfg.Chunking)
	if len(chunks) == 0 {
		return fail(domain.ErrNoChunks)
	}
	telemetry.AddBreadcrumb(ctx, "ingestion", "transcript chunked")

	embeddings, err := EmbedAll(ingestCtx, s.embedder, chunks, progress)
	if err != nil {
		return fail(s.ingestionError(ctx, ingestCtx, err))
	}

	session := domain.NewSession(videoID, title, transcript, chunks, embeddings)
	session.Mode = s.answers.Mode()

	if err := s.store.Replace(ticket, session); err != nil {
		return fail(err)
	}

	span.SetData("chunks", len(chunks))
	logger.InfoContext(ctx, "video processed",
		slog.String("title", title),
		slog.Int("chunks", len(chunks)),
		slog.String("embedding_mode", string(s.embedder.Mode())),
	)
	return s.store.Snapshot(), nil
}

// AskQuestion answers question against the live session and records both
// messages. On provider failure an apologetic assistant message is recorded
// and the error is returned; the session stays usable.
func (s *ChatService) AskQuestion(ctx context.Context, question string) (*domain.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	session := s.store.Snapshot()
	if session == nil {
		return nil, domain.ErrNoActiveSession
	}

	ctx, span := telemetry.StartSpan(ctx, "ChatService.AskQuestion", telemetry.SpanAttributes{
		VideoID:   session.VideoID,
		SessionID: session.ID,
		Mode:      string(session.Mode),
		Operation: "ask_question",
	})
	defer span.End()

	userMsg := domain.NewChatMessage(domain.RoleUser, question)
	logger := s.logger.With(slog.String("video_id", session.VideoID))

	query, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, s.failQuestion(ctx, logger, session.Generation, userMsg, domain.ErrRequestCancelled.WithCause(err))
	}

	ranked := RankChunks(query, session.Chunks, session.Embeddings, s.cfg.TopK)

	answerCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	answer, err := s.answers.Answer(answerCtx, AnswerInput{
		Question: question,
		Title:    session.Title,
		Ranked:   ranked,
	})
	cancel()
	if err != nil {
		span.SetError(err)
		return nil, s.failQuestion(ctx, logger, session.Generation, userMsg, err)
	}

	reply := domain.NewChatMessage(domain.RoleAssistant, answer)
	reply.Context = contextRefs(ranked)

	if err := s.store.AppendMessages(session.Generation, userMsg, reply); err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "question answered", slog.Int("context_chunks", len(ranked)))
	return &reply, nil
}

// GenerateSummary summarizes the leading chunks of the live session.
func (s *ChatService) GenerateSummary(ctx context.Context) (string, error) {
	session := s.store.Snapshot()
	if session == nil {
		return "", domain.ErrNoActiveSession
	}

	ctx, span := telemetry.StartSpan(ctx, "ChatService.GenerateSummary", telemetry.SpanAttributes{
		VideoID:   session.VideoID,
		SessionID: session.ID,
		Mode:      string(session.Mode),
		Operation: "generate_summary",
	})
	defer span.End()

	n := min(s.cfg.SummaryChunks, len(session.Chunks))

	summaryCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	summary, err := s.answers.Summarize(summaryCtx, SummaryInput{
		Title:  session.Title,
		Chunks: session.Chunks[:n],
	})
	if err != nil {
		span.SetError(err)
		s.logger.ErrorContext(ctx, "summary generation failed",
			slog.String("video_id", session.VideoID),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	s.store.Touch()
	return summary, nil
}

// Reset cancels any ingestion in flight and forgets the live session.
func (s *ChatService) Reset() {
	s.mu.Lock()
	if s.cancelIngest != nil {
		s.cancelIngest()
		s.cancelIngest = nil
	}
	s.mu.Unlock()

	s.store.Clear()
}

// Session returns a copy of the live session, or nil when idle.
func (s *ChatService) Session() *domain.Session {
	return s.store.Snapshot()
}

// Messages returns the conversation history of the live session.
func (s *ChatService) Messages() []domain.ChatMessage {
	return s.store.Messages()
}

// ExpireIdle resets the session when it has been idle for at least ttl.
func (s *ChatService) ExpireIdle(ttl time.Duration) bool {
	return s.store.ExpireIdle(ttl)
}

func (s *ChatService) beginIngestion(ctx context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelIngest != nil {
		s.cancelIngest()
	}
	ingestCtx, cancel := context.WithCancel(ctx)
	s.cancelIngest = cancel
	s.ingestTicket = s.store.BeginIngestion()
	return ingestCtx, s.ingestTicket
}

func (s *ChatService) endIngestion(ticket uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ingestTicket == ticket && s.cancelIngest != nil {
		s.cancelIngest()
		s.cancelIngest = nil
	}
}

// ingestionError reports a cancelled ingestion as superseded unless the caller
// cancelled it.
func (s *ChatService) ingestionError(callerCtx, ingestCtx context.Context, err error) error {
	if ingestCtx.Err() == nil || !isCancellation(err) {
		return err
	}
	if callerCtx.Err() != nil {
		return domain.ErrRequestCancelled.WithCause(err)
	}
	return domain.ErrIngestionSuperseded.WithCause(err)
}

func (s *ChatService) fetchTranscript(ctx context.Context, videoID string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	text, err := s.transcripts.FetchTranscript(fetchCtx, videoID)
	if err != nil {
		if isCancellation(err) && ctx.Err() != nil {
			return "", err
		}
		if domain.CodeOf(err) != "" {
			return "", err
		}
		return "", domain.ErrTranscriptUnavailable.WithCause(err)
	}

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < s.cfg.MinTranscriptChars {
		return "", domain.ErrTranscriptTooShort
	}
	return text, nil
}

// fetchTitle never fails; metadata problems fall back to a generic title.
func (s *ChatService) fetchTitle(ctx context.Context, logger *slog.Logger, videoID string) string {
	if s.metadata == nil {
		return domain.DefaultTitle(videoID)
	}

	metaCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	meta, err := s.metadata.FetchMetadata(metaCtx, videoID)
	if err != nil || meta == nil || strings.TrimSpace(meta.Title) == "" {
		attrs := []any{}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.WarnContext(ctx, "video metadata unavailable, using default title", attrs...)
		return domain.DefaultTitle(videoID)
	}
	return strings.TrimSpace(meta.Title)
}

func (s *ChatService) failQuestion(ctx context.Context, logger *slog.Logger, generation uint64, userMsg domain.ChatMessage, err error) error {
	failed := domain.NewChatMessage(domain.RoleAssistant, failedAnswerMessage)
	failed.Failed = true

	appendErr := s.store.AppendMessages(generation, userMsg, failed)
	if appendErr != nil && !errors.Is(appendErr, domain.ErrNoActiveSession) && !errors.Is(appendErr, domain.ErrIngestionSuperseded) {
		logger.ErrorContext(ctx, "failed to record failed answer", slog.String("error", appendErr.Error()))
	}

	logger.WarnContext(ctx, "question failed", slog.String("error", err.Error()))
	return err
}

