package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// VideoIDLength is the length of a YouTube video identifier.
const VideoIDLength = 11

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	// matches .../watch?v=<id>, youtu.be/<id>, /embed/<id> and /shorts/<id>
	videoURLPattern = regexp.MustCompile(`(?:[?&]v=|youtu\.be/|/embed/|/shorts/)([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`)
)

// VideoMetadata holds display information for a video.
type VideoMetadata struct {
	Title        string
	Author       string
	ThumbnailURL string
}

// IsValidVideoID reports whether id has the shape of a YouTube video identifier.
func IsValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// ExtractVideoID returns the 11-character video identifier from a YouTube URL.
// A bare identifier is accepted as well.
func ExtractVideoID(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", ErrInvalidURL
	}
	if IsValidVideoID(s) {
		return s, nil
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || strings.ContainsAny(u.Host, " \t") {
		return "", ErrInvalidURL
	}
	if !isYouTubeHost(u.Hostname()) {
		return "", ErrInvalidURL
	}

	m := videoURLPattern.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", ErrInvalidVideoID
	}
	return m[1], nil
}

func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	switch host {
	case "youtube.com", "youtu.be", "youtube-nocookie.com":
		return true
	}
	return strings.HasSuffix(host, ".youtube.com") || strings.HasSuffix(host, ".youtube-nocookie.com")
}

// DefaultTitle is used when video metadata cannot be fetched.
func DefaultTitle(videoID string) string {
	return "YouTube video " + videoID
}
