package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/tubeqa/internal/api"
	"github.com/cloo-solutions/tubeqa/internal/domain"
)

// ChatService is the part of service.ChatService the HTTP layer needs
type ChatService interface {
	ProcessVideo(ctx context.Context, rawURL string) (*domain.Session, error)
	AskQuestion(ctx context.Context, question string) (*domain.ChatMessage, error)
	GenerateSummary(ctx context.Context) (string, error)
	Reset()
	Session() *domain.Session
	Messages() []domain.ChatMessage
	Mode() domain.ProviderMode
	EmbeddingMode() domain.ProviderMode
}

type SessionHandler struct {
	svc ChatService
}

func NewSessionHandler(svc ChatService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type ProcessVideoRequest struct {
	URL string `json:"url"`
}

type AskQuestionRequest struct {
	Question string `json:"question"`
}

type SessionResponse struct {
	ID            string `json:"id"`
	VideoID       string `json:"video_id"`
	Title         string `json:"title"`
	ChunkCount    int    `json:"chunk_count"`
	MessageCount  int    `json:"message_count"`
	Mode          string `json:"mode"`
	EmbeddingMode string `json:"embedding_mode"`
	CreatedAt     string `json:"created_at"`
}

type MessageResponse struct {
	ID        string              `json:"id"`
	Role      string              `json:"role"`
	Content   string              `json:"content"`
	Timestamp string              `json:"timestamp"`
	Context   []domain.ContextRef `json:"context,omitempty"`
	Failed    bool                `json:"failed,omitempty"`
}

type SummaryResponse struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

func (h *SessionHandler) sessionToResponse(s *domain.Session) *SessionResponse {
	return &SessionResponse{
		ID:            s.ID,
		VideoID:       s.VideoID,
		Title:         s.Title,
		ChunkCount:    len(s.Chunks),
		MessageCount:  len(s.Messages),
		Mode:          string(s.Mode),
		EmbeddingMode: string(h.svc.EmbeddingMode()),
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
	}
}

func messageToResponse(m domain.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp.Format(time.RFC3339Nano),
		Context:   m.Context,
		Failed:    m.Failed,
	}
}

// Process ingests a video and makes it the live session.
func (h *SessionHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		api.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	session, err := h.svc.ProcessVideo(r.Context(), req.URL)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, h.sessionToResponse(session))
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := h.svc.Session()
	if session == nil {
		api.HandleError(w, domain.ErrNoActiveSession)
		return
	}

	api.Success(w, http.StatusOK, h.sessionToResponse(session))
}

func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	if h.svc.Session() == nil {
		api.HandleError(w, domain.ErrNoActiveSession)
		return
	}

	messages := h.svc.Messages()
	resp := make([]MessageResponse, len(messages))
	for i, m := range messages {
		resp[i] = messageToResponse(m)
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *SessionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.svc.AskQuestion(r.Context(), req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, messageToResponse(*reply))
}

func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GenerateSummary(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SummaryResponse{Summary: summary}
	if session := h.svc.Session(); session != nil {
		resp.VideoID = session.VideoID
		resp.Title = session.Title
	}

	api.Success(w, http.StatusOK, resp)
}

// Mode reports which providers are serving requests.
func (h *SessionHandler) Mode(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]string{
		"answers":    string(h.svc.Mode()),
		"embeddings": string(h.svc.EmbeddingMode()),
	})
}
