package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloo-solutions/tubeqa/internal/domain"
)

const maxOEmbedSize = 64 << 10

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// OEmbedMetadata looks up video titles through YouTube's oEmbed endpoint.
type OEmbedMetadata struct {
	client  *http.Client
	baseURL string
}

// NewOEmbedMetadata creates an oEmbed lookup. Empty baseURL means youtube.com
// and a nil client gets a default one.
func NewOEmbedMetadata(client *http.Client, baseURL string) *OEmbedMetadata {
	if client == nil {
		client = defaultHTTPClient()
	}
	if baseURL == "" {
		baseURL = defaultYouTubeBaseURL
	}
	return &OEmbedMetadata{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *OEmbedMetadata) FetchMetadata(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	if !domain.IsValidVideoID(videoID) {
		return nil, domain.ErrInvalidVideoID
	}

	q := url.Values{}
	q.Set("url", "https://www.youtube.com/watch?v="+videoID)
	q.Set("format", "json")

	body, err := getBody(ctx, m.client, m.baseURL+"/oembed?"+q.Encode(), map[string]string{"Accept": "application/json"}, maxOEmbedSize)
	if err != nil {
		return nil, fmt.Errorf("oembed: %w", err)
	}

	var resp oembedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode oembed response: %w", err)
	}

	return &domain.VideoMetadata{
		Title:        strings.TrimSpace(resp.Title),
		Author:       strings.TrimSpace(resp.AuthorName),
		ThumbnailURL: resp.ThumbnailURL,
	}, nil
}

// StaticMetadata serves titles from a fixed map, falling back to a generic title.
type StaticMetadata struct {
	titles map[string]string
}

func NewStaticMetadata(titles map[string]string) *StaticMetadata {
	copied := make(map[string]string, len(titles))
	for id, title := range titles {
		copied[id] = title
	}
	return &StaticMetadata{titles: copied}
}

func (m *StaticMetadata) FetchMetadata(_ context.Context, videoID string) (*domain.VideoMetadata, error) {
	title, ok := m.titles[videoID]
	if !ok || strings.TrimSpace(title) == "" {
		title = domain.DefaultTitle(videoID)
	}
	return &domain.VideoMetadata{Title: title}, nil
}
