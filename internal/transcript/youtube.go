package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/cloo-solutions/tubeqa/internal/domain"
)

const (
	defaultYouTubeBaseURL = "https://www.youtube.com"
	playerResponseMarker  = "ytInitialPlayerResponse = "
	maxWatchPageSize      = 6 << 20
	maxTimedTextSize      = 2 << 20
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

// YouTubeSource scrapes the watch page for caption tracks and downloads the
// best one as timedtext XML.
type YouTubeSource struct {
	client    *http.Client
	baseURL   string
	languages []string
	logger    *slog.Logger
}

// YouTubeOption customizes a YouTubeSource
type YouTubeOption func(*YouTubeSource)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(c *http.Client) YouTubeOption {
	return func(s *YouTubeSource) { s.client = c }
}

// WithBaseURL points the source at a different host; used in tests.
func WithBaseURL(u string) YouTubeOption {
	return func(s *YouTubeSource) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithLanguages sets caption language preference, most preferred first.
func WithLanguages(langs ...string) YouTubeOption {
	return func(s *YouTubeSource) { s.languages = langs }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) YouTubeOption {
	return func(s *YouTubeSource) { s.logger = l }
}

func NewYouTubeSource(opts ...YouTubeOption) *YouTubeSource {
	s := &YouTubeSource{
		client:    defaultHTTPClient(),
		baseURL:   defaultYouTubeBaseURL,
		languages: []string{"en"},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchTranscript returns the caption text of videoID joined into one string.
func (s *YouTubeSource) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	if !domain.IsValidVideoID(videoID) {
		return "", domain.ErrInvalidVideoID
	}

	tracks, err := s.captionTracks(ctx, videoID)
	if err != nil {
		return "", err
	}

	track, ok := pickBestTrack(tracks, s.languages)
	if !ok {
		return "", domain.ErrTranscriptUnavailable.WithCause(errors.New("all caption tracks require a browser token"))
	}

	s.logger.DebugContext(ctx, "youtube: fetching caption track",
		slog.String("video_id", videoID),
		slog.String("language", track.LanguageCode),
		slog.String("kind", track.Kind),
	)

	text, err := s.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", domain.ErrTranscriptUnavailable.WithCause(errors.New("caption track is empty"))
	}
	return text, nil
}

func (s *YouTubeSource) captionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	watchURL := s.baseURL + "/watch?v=" + videoID
	body, err := getBody(ctx, s.client, watchURL, map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
		"Accept":          "text/html,application/xhtml+xml",
	}, maxWatchPageSize)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, domain.ErrTranscriptUnavailable.WithCause(err)
		}
		return nil, fmt.Errorf("watch page: %w", err)
	}

	idx := strings.Index(string(body), playerResponseMarker)
	if idx < 0 {
		return nil, domain.ErrTranscriptUnavailable.WithCause(errors.New("player response not found in watch page"))
	}
	data := extractJSON(body[idx+len(playerResponseMarker):])
	if data == nil {
		return nil, fmt.Errorf("failed to extract player response JSON")
	}

	var player playerResponse
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}

	if player.Captions == nil || len(player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
		reason := "video has no captions"
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
			reason = player.PlayabilityStatus.Reason
		}
		return nil, domain.ErrTranscriptUnavailable.WithCause(errors.New(reason))
	}

	return player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

func (s *YouTubeSource) fetchTimedText(ctx context.Context, trackURL string) (string, error) {
	body, err := getBody(ctx, s.client, trackURL, nil, maxTimedTextSize)
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	parts := make([]string, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		if text := cleanCaption(line.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// cleanCaption undoes the second layer of entity escaping YouTube applies,
// strips inline markup and collapses whitespace.
func cleanCaption(s string) string {
	s = html.UnescapeString(s)
	s = htmlTagPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// needsPoToken reports whether a caption track URL can only be fetched by a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack prefers manual tracks in a preferred language, then
// auto-generated ones, then any English track, then whatever is left.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}

	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// extractJSON returns the JSON object starting at b[0] by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inString := false
	escaped := false
	for i, c := range b {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
