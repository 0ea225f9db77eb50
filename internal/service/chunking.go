package service

import (
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/tubeqa/internal/domain"
)

// ChunkConfig controls how transcripts are split for retrieval.
type ChunkConfig struct {
	// MaxChars is a soft upper bound on chunk length in characters.
	MaxChars int
	// OverlapWords is how many trailing words of a closed chunk seed the next one.
	OverlapWords int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:     500,
		OverlapWords: 50,
	}
}

// ChunkTranscript splits text into ordered, overlapping chunks built from whole sentences.
// A sentence longer than MaxChars becomes its own oversized chunk.
func ChunkTranscript(text string, cfg ChunkConfig) []domain.Chunk {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultChunkConfig().MaxChars
	}
	if cfg.OverlapWords < 0 {
		cfg.OverlapWords = 0
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []domain.Chunk{}
	}

	chunks := make([]domain.Chunk, 0, len(sentences)/4+1)
	var buf string
	bufLen := 0

	for _, sentence := range sentences {
		sentenceLen := utf8.RuneCountInString(sentence)
		if buf != "" && bufLen+1+sentenceLen > cfg.MaxChars {
			closed := strings.TrimSpace(buf)
			chunks = append(chunks, domain.Chunk{ID: len(chunks), Text: closed})

			buf = sentence
			if overlap := lastWords(closed, cfg.OverlapWords); overlap != "" {
				buf = overlap + " " + sentence
			}
			bufLen = utf8.RuneCountInString(buf)
			continue
		}

		if buf == "" {
			buf = sentence
			bufLen = sentenceLen
		} else {
			buf += " " + sentence
			bufLen += 1 + sentenceLen
		}
	}

	if closed := strings.TrimSpace(buf); closed != "" {
		chunks = append(chunks, domain.Chunk{ID: len(chunks), Text: closed})
	}

	return chunks
}

// splitSentences breaks text on runs of '.', '!' and '?', keeping the
// punctuation with its sentence and collapsing internal whitespace.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.Join(strings.Fields(current.String()), " ")
		current.Reset()
		if s == "" || isOnlyTerminators(s) {
			return
		}
		sentences = append(sentences, s)
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)
		if !isSentenceTerminator(r) {
			continue
		}
		for i+1 < len(runes) && isSentenceTerminator(runes[i+1]) {
			i++
			current.WriteRune(runes[i])
		}
		flush()
	}
	flush()

	return sentences
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isOnlyTerminators(s string) bool {
	for _, r := range s {
		if !isSentenceTerminator(r) {
			return false
		}
	}
	return true
}

// lastWords returns the final n whitespace-separated words of s.
func lastWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
