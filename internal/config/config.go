package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "TUBEQA"

// Transcript source kinds
const (
	TranscriptSourceYouTube = "youtube"
	TranscriptSourceS3      = "s3"
	TranscriptSourceDir     = "dir"
)

// Metadata source kinds
const (
	MetadataSourceOEmbed = "oembed"
	MetadataSourceStatic = "static"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-ada-002"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string  `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	ChatTemperature     float32 `envconfig:"CHAT_TEMPERATURE" default:"0.2"`
	ChatMaxTokens       int     `envconfig:"CHAT_MAX_TOKENS" default:"800"`

	// Retrieval tuning
	ChunkMaxChars      int     `envconfig:"CHUNK_MAX_CHARS" default:"500"`
	ChunkOverlapWords  int     `envconfig:"CHUNK_OVERLAP_WORDS" default:"50"`
	TopK               int     `envconfig:"TOP_K" default:"3"`
	RelevanceThreshold float64 `envconfig:"RELEVANCE_THRESHOLD" default:"0.3"`
	SummaryChunks      int     `envconfig:"SUMMARY_CHUNKS" default:"5"`
	MinTranscriptChars int     `envconfig:"MIN_TRANSCRIPT_CHARS" default:"50"`

	// Embedding provider pacing
	EmbedRatePerSecond float64       `envconfig:"EMBED_RATE_PER_SECOND" default:"5"`
	EmbedBurst         int           `envconfig:"EMBED_BURST" default:"1"`
	EmbedMaxRetries    int           `envconfig:"EMBED_MAX_RETRIES" default:"3"`
	ProviderTimeout    time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	SessionIdleTTL time.Duration `envconfig:"SESSION_IDLE_TTL" default:"30m"`

	TranscriptSource string `envconfig:"TRANSCRIPT_SOURCE" default:"youtube"`
	TranscriptDir    string `envconfig:"TRANSCRIPT_DIR" default:"transcripts"`
	MetadataSource   string `envconfig:"METADATA_SOURCE" default:"oembed"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"tubeqa-transcripts"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX" default:"transcripts/"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ChunkMaxChars <= 0 {
		return fmt.Errorf("CHUNK_MAX_CHARS must be positive, got %d", c.ChunkMaxChars)
	}
	if c.ChunkOverlapWords < 0 {
		return fmt.Errorf("CHUNK_OVERLAP_WORDS cannot be negative, got %d", c.ChunkOverlapWords)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	if c.EmbedRatePerSecond <= 0 {
		return fmt.Errorf("EMBED_RATE_PER_SECOND must be positive, got %v", c.EmbedRatePerSecond)
	}

	switch c.TranscriptSource {
	case TranscriptSourceYouTube, TranscriptSourceDir:
	case TranscriptSourceS3:
		if !c.HasS3() {
			return fmt.Errorf("TRANSCRIPT_SOURCE=s3 requires S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY")
		}
	default:
		return fmt.Errorf("unknown TRANSCRIPT_SOURCE %q", c.TranscriptSource)
	}

	switch c.MetadataSource {
	case MetadataSourceOEmbed, MetadataSourceStatic:
	default:
		return fmt.Errorf("unknown METADATA_SOURCE %q", c.MetadataSource)
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
