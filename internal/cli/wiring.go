package cli

import (
	"context"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/tubeqa/internal/config"
	"github.com/cloo-solutions/tubeqa/internal/openai"
	"github.com/cloo-solutions/tubeqa/internal/service"
	"github.com/cloo-solutions/tubeqa/internal/storage"
	"github.com/cloo-solutions/tubeqa/internal/transcript"
)

// NewS3Client connects to the configured bucket, creating it if missing.
func NewS3Client(ctx context.Context, cfg *config.Config) (*storage.S3Client, error) {
	if !cfg.HasS3() {
		return nil, fmt.Errorf("S3 is not configured: set TUBEQA_S3_ENDPOINT, TUBEQA_S3_ACCESS_KEY_ID and TUBEQA_S3_SECRET_ACCESS_KEY")
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	return client, nil
}

// NewTranscriptSource builds the source selected by TRANSCRIPT_SOURCE.
func NewTranscriptSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.TranscriptSource, error) {
	switch cfg.TranscriptSource {
	case config.TranscriptSourceS3:
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return transcript.NewS3Source(client, cfg.S3Prefix), nil
	case config.TranscriptSourceDir:
		return transcript.NewDirSource(cfg.TranscriptDir), nil
	case config.TranscriptSourceYouTube:
		return transcript.NewYouTubeSource(transcript.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown transcript source %q", cfg.TranscriptSource)
	}
}

// NewMetadataSource builds the source selected by METADATA_SOURCE.
func NewMetadataSource(cfg *config.Config) service.MetadataSource {
	if cfg.MetadataSource == config.MetadataSourceStatic {
		return transcript.NewStaticMetadata(nil)
	}
	return transcript.NewOEmbedMetadata(nil, "")
}

// NewProviders picks live providers when an OpenAI key is configured and the
// demo ones otherwise.
func NewProviders(cfg *config.Config, logger *slog.Logger) (service.Embedder, service.AnswerProvider) {
	if !cfg.HasOpenAI() {
		logger.Warn("no OpenAI API key configured; running in demo mode")
		return service.NewDemoEmbedder(cfg.EmbeddingDimensions), service.NewDemoAnswerProvider(cfg.RelevanceThreshold)
	}

	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
		Temperature:         cfg.ChatTemperature,
		MaxTokens:           cfg.ChatMaxTokens,
	})

	embedCfg := service.DefaultLiveEmbedderConfig()
	embedCfg.Dimensions = cfg.EmbeddingDimensions
	embedCfg.RatePerSecond = cfg.EmbedRatePerSecond
	embedCfg.Burst = cfg.EmbedBurst
	embedCfg.MaxRetries = cfg.EmbedMaxRetries
	embedCfg.CallTimeout = cfg.ProviderTimeout
	embedCfg.Retryable = openai.IsRetryable
	embedCfg.Logger = logger

	return service.NewLiveEmbedder(client, embedCfg), service.NewLiveAnswerProvider(client)
}

// NewChatConfig maps retrieval settings onto service.ChatConfig.
func NewChatConfig(cfg *config.Config, logger *slog.Logger) service.ChatConfig {
	return service.ChatConfig{
		Chunking: service.ChunkConfig{
			MaxChars:     cfg.ChunkMaxChars,
			OverlapWords: cfg.ChunkOverlapWords,
		},
		TopK:               cfg.TopK,
		SummaryChunks:      cfg.SummaryChunks,
		MinTranscriptChars: cfg.MinTranscriptChars,
		ProviderTimeout:    cfg.ProviderTimeout,
		Logger:             logger,
	}
}

// BuildChatService wires a ChatService from configuration.
func BuildChatService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.ChatService, error) {
	transcripts, err := NewTranscriptSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	embedder, answers := NewProviders(cfg, logger)

	chat := service.NewChatService(transcripts, NewMetadataSource(cfg), embedder, answers, NewChatConfig(cfg, logger))
	logger.Debug("chat service ready",
		slog.String("transcript_source", cfg.TranscriptSource),
		slog.String("metadata_source", cfg.MetadataSource),
		slog.String("answer_mode", string(chat.Mode())),
		slog.String("embedding_mode", string(chat.EmbeddingMode())),
	)
	return chat, nil
}
