package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/tubeqa/internal/domain"
)

// DefaultRelevanceThreshold separates "found" from "not covered" in demo mode
const DefaultRelevanceThreshold = 0.3

// DefaultSummaryChunks is how many leading chunks feed a summary
const DefaultSummaryChunks = 5

// AnswerInput is everything needed to answer one question
type AnswerInput struct {
	Question string
	Title    string
	Ranked   []domain.ScoredChunk
}

// SummaryInput holds the leading chunks of a video to summarize
type SummaryInput struct {
	Title  string
	Chunks []domain.Chunk
}

// AnswerProvider synthesizes answers and summaries from retrieved context
type AnswerProvider interface {
	Answer(ctx context.Context, in AnswerInput) (string, error)
	Summarize(ctx context.Context, in SummaryInput) (string, error)
	Mode() domain.ProviderMode
}

// CompletionClient defines the chat model interface used by LiveAnswerProvider
type CompletionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// DemoAnswerProvider answers from templates, using only the relevance threshold.
type DemoAnswerProvider struct {
	threshold float64
}

func NewDemoAnswerProvider(threshold float64) *DemoAnswerProvider {
	return &DemoAnswerProvider{threshold: threshold}
}

func (p *DemoAnswerProvider) Mode() domain.ProviderMode { return domain.ProviderModeDemo }

func (p *DemoAnswerProvider) Answer(_ context.Context, in AnswerInput) (string, error) {
	best, found := 0.0, false
	for _, sc := range in.Ranked {
		if sc.Similarity > p.threshold {
			found = true
		}
		best = max(best, sc.Similarity)
	}

	if found {
		return fmt.Sprintf(`✅ Relevant content found in "%s".
- %d transcript segments were matched to your question (best relevance %.2f).
- Configure an OpenAI API key to get a generated answer from these segments.`,
			in.Title, len(in.Ranked), best), nil
	}

	return fmt.Sprintf(`❌ This question does not appear to be covered in "%s".
- No transcript segment scored above the relevance threshold of %.2f.
- Try rephrasing, or ask about a topic discussed in the video.`,
		in.Title, p.threshold), nil
}

func (p *DemoAnswerProvider) Summarize(_ context.Context, in SummaryInput) (string, error) {
	return fmt.Sprintf(`Summary of "%s" (demo mode)
- The transcript was split into segments and %d of them were reviewed.
- Ask questions to search the transcript for specific topics.
- Configure an OpenAI API key to get a generated summary.`,
		in.Title, len(in.Chunks)), nil
}

// LiveAnswerProvider grounds a chat model in the ranked transcript chunks.
// Model failures are returned, never replaced with template text.
type LiveAnswerProvider struct {
	client CompletionClient
}

func NewLiveAnswerProvider(client CompletionClient) *LiveAnswerProvider {
	return &LiveAnswerProvider{client: client}
}

func (p *LiveAnswerProvider) Mode() domain.ProviderMode { return domain.ProviderModeLive }

func (p *LiveAnswerProvider) Answer(ctx context.Context, in AnswerInput) (string, error) {
	text, err := p.client.Complete(ctx, answerSystemPrompt, buildAnswerPrompt(in))
	if err != nil {
		return "", domain.ErrAnswerFailed.WithCause(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrAnswerFailed.WithCause(fmt.Errorf("model returned an empty answer"))
	}
	return text, nil
}

func (p *LiveAnswerProvider) Summarize(ctx context.Context, in SummaryInput) (string, error) {
	text, err := p.client.Complete(ctx, summarySystemPrompt, buildSummaryPrompt(in))
	if err != nil {
		return "", domain.ErrSummaryFailed.WithCause(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrSummaryFailed.WithCause(fmt.Errorf("model returned an empty summary"))
	}
	return text, nil
}
