package client

import (
	"context"
	"errors"

	"github.com/cloo-solutions/tubeqa/internal/api/handlers"
	"github.com/cloo-solutions/tubeqa/internal/domain"
	"github.com/cloo-solutions/tubeqa/internal/service"
)

// SessionInfo describes the video a backend is chatting about
type SessionInfo struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	Chunks  int    `json:"chunks"`
	Mode    string `json:"mode"`
}

// Reply is one conversation entry as shown to the user
type Reply struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Failed  bool   `json:"failed,omitempty"`
}

// Backend runs chat operations either in-process or against a server
type Backend interface {
	Process(ctx context.Context, url string, progress service.ProgressReporter) (*SessionInfo, error)
	Ask(ctx context.Context, question string) (*Reply, error)
	Summary(ctx context.Context) (string, error)
	History(ctx context.Context) ([]Reply, error)
	Reset(ctx context.Context) error
}

// LocalChat is the part of service.ChatService used in-process
type LocalChat interface {
	ProcessVideoWithProgress(ctx context.Context, rawURL string, progress service.ProgressReporter) (*domain.Session, error)
	AskQuestion(ctx context.Context, question string) (*domain.ChatMessage, error)
	GenerateSummary(ctx context.Context) (string, error)
	Messages() []domain.ChatMessage
	Session() *domain.Session
	Reset()
}

type localBackend struct {
	chat LocalChat
}

// NewLocalBackend runs every operation on chat directly
func NewLocalBackend(chat LocalChat) Backend {
	return &localBackend{chat: chat}
}

func (b *localBackend) Process(ctx context.Context, url string, progress service.ProgressReporter) (*SessionInfo, error) {
	session, err := b.chat.ProcessVideoWithProgress(ctx, url, progress)
	if err != nil {
		return nil, err
	}
	return &SessionInfo{
		VideoID: session.VideoID,
		Title:   session.Title,
		Chunks:  len(session.Chunks),
		Mode:    string(session.Mode),
	}, nil
}

func (b *localBackend) Ask(ctx context.Context, question string) (*Reply, error) {
	msg, err := b.chat.AskQuestion(ctx, question)
	if err != nil {
		return nil, err
	}
	return messageToReply(*msg), nil
}

func (b *localBackend) Summary(ctx context.Context) (string, error) {
	return b.chat.GenerateSummary(ctx)
}

func (b *localBackend) History(_ context.Context) ([]Reply, error) {
	if b.chat.Session() == nil {
		return nil, domain.ErrNoActiveSession
	}
	messages := b.chat.Messages()
	replies := make([]Reply, len(messages))
	for i, m := range messages {
		replies[i] = *messageToReply(m)
	}
	return replies, nil
}

func (b *localBackend) Reset(_ context.Context) error {
	b.chat.Reset()
	return nil
}

func messageToReply(m domain.ChatMessage) *Reply {
	return &Reply{Role: string(m.Role), Content: m.Content, Failed: m.Failed}
}

type remoteBackend struct {
	api *APIClient
}

// NewRemoteBackend sends every operation to a tubeqa server. Progress is not
// reported since the server embeds in one request.
func NewRemoteBackend(api *APIClient) Backend {
	return &remoteBackend{api: api}
}

func (b *remoteBackend) Process(ctx context.Context, url string, _ service.ProgressReporter) (*SessionInfo, error) {
	var resp handlers.SessionResponse
	if err := b.api.Post(ctx, "/session", handlers.ProcessVideoRequest{URL: url}, &resp); err != nil {
		return nil, err
	}
	return &SessionInfo{
		VideoID: resp.VideoID,
		Title:   resp.Title,
		Chunks:  resp.ChunkCount,
		Mode:    resp.Mode,
	}, nil
}

func (b *remoteBackend) Ask(ctx context.Context, question string) (*Reply, error) {
	var resp handlers.MessageResponse
	if err := b.api.Post(ctx, "/session/questions", handlers.AskQuestionRequest{Question: question}, &resp); err != nil {
		return nil, err
	}
	return &Reply{Role: resp.Role, Content: resp.Content, Failed: resp.Failed}, nil
}

func (b *remoteBackend) Summary(ctx context.Context) (string, error) {
	var resp handlers.SummaryResponse
	if err := b.api.Post(ctx, "/session/summary", nil, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

func (b *remoteBackend) History(ctx context.Context) ([]Reply, error) {
	var resp []handlers.MessageResponse
	if err := b.api.Get(ctx, "/session/messages", &resp); err != nil {
		return nil, err
	}
	replies := make([]Reply, len(resp))
	for i, m := range resp {
		replies[i] = Reply{Role: m.Role, Content: m.Content, Failed: m.Failed}
	}
	return replies, nil
}

func (b *remoteBackend) Reset(ctx context.Context) error {
	return b.api.Delete(ctx, "/session")
}

// userMessage renders err for people: domain and API messages without internals.
func userMessage(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
