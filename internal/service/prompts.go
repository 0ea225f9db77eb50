package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/tubeqa/internal/domain"
)

const answerSystemPrompt = `You answer questions about a YouTube video using only the transcript excerpts you are given.
If the excerpts do not contain the answer, say so. Never use outside knowledge and never guess.`

const summarySystemPrompt = `You summarize YouTube videos from transcript excerpts.
Only describe what the excerpts actually say.`

// buildAnswerContext joins ranked chunks in rank order, each tagged with its relevance.
func buildAnswerContext(ranked []domain.ScoredChunk) string {
	var sb strings.Builder
	for i, sc := range ranked {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Segment %d | relevance %.2f]\n%s", sc.Chunk.ID+1, sc.Similarity, sc.Chunk.Text)
	}
	return sb.String()
}

func buildAnswerPrompt(in AnswerInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Video title: %s\n\n", in.Title)
	sb.WriteString("Transcript excerpts:\n")
	sb.WriteString(buildAnswerContext(in.Ranked))
	fmt.Fprintf(&sb, "\n\nQuestion: %s\n\n", in.Question)
	sb.WriteString(`Rules:
- Start with ✅ if the excerpts answer the question, or ❌ if they do not.
- Give the key points as short bullet points.
- Be concise and stay within the excerpts.`)
	return sb.String()
}

func buildSummaryPrompt(in SummaryInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Video title: %s\n\n", in.Title)
	sb.WriteString("Transcript excerpts:\n")
	for i, c := range in.Chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c.Text)
	}
	sb.WriteString(`

Write a short summary of the video as 3 to 6 bullet points covering the main topics.`)
	return sb.String()
}
