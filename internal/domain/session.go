package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ProviderMode reports whether a provider talks to a real model or runs the demo fallback
type ProviderMode string

const (
	ProviderModeLive ProviderMode = "live"
	ProviderModeDemo ProviderMode = "demo"
)

// Chunk is a bounded span of transcript text used as a retrieval unit.
type Chunk struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}

// ContextRef cites a chunk that was used to produce an answer.
type ContextRef struct {
	ChunkID    int     `json:"chunk_id"`
	Similarity float64 `json:"similarity"`
}

// ChatMessage is one entry of the conversation history
type ChatMessage struct {
	ID        string       `json:"id"`
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
	Context   []ContextRef `json:"context,omitempty"`
	Failed    bool         `json:"failed,omitempty"`
}

// NewChatMessage creates a message with a fresh ID and the current UTC timestamp
func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// Session aggregates one processed video and its conversation.
type Session struct {
	ID         string
	VideoID    string
	Title      string
	Transcript string
	Chunks     []Chunk
	Embeddings [][]float32
	Messages   []ChatMessage
	Mode       ProviderMode
	CreatedAt  time.Time
	// Generation is the ingestion ticket that installed the session. Two
	// sessions for the same video differ here.
	Generation uint64
}

// NewSession builds a session for an ingested video. The session ID is the video ID.
func NewSession(videoID, title, transcript string, chunks []Chunk, embeddings [][]float32) *Session {
	return &Session{
		ID:         videoID,
		VideoID:    videoID,
		Title:      title,
		Transcript: transcript,
		Chunks:     chunks,
		Embeddings: embeddings,
		Messages:   []ChatMessage{},
		CreatedAt:  time.Now().UTC(),
	}
}

// ValidateSession checks the chunk/embedding alignment invariant
func ValidateSession(s *Session) error {
	if s == nil {
		return NewDomainError(ErrCodeInternalError, "session cannot be nil")
	}
	if s.VideoID == "" {
		return NewDomainError(ErrCodeInternalError, "session video ID is required")
	}
	if len(s.Chunks) == 0 {
		return ErrNoChunks
	}
	if len(s.Chunks) != len(s.Embeddings) {
		return NewDomainError(ErrCodeInternalError, "session chunks and embeddings are misaligned")
	}
	return nil
}

// Clone returns a copy whose slices can be read without holding the owner's lock.
// Chunk and embedding contents are shared since they are never mutated.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Chunks = append([]Chunk(nil), s.Chunks...)
	c.Embeddings = append([][]float32(nil), s.Embeddings...)
	c.Messages = append([]ChatMessage(nil), s.Messages...)
	return &c
}
