package transcript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/tubeqa/internal/domain"
	"github.com/cloo-solutions/tubeqa/internal/storage"
)

// ObjectStore is the subset of storage.S3Client used for transcripts
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

const transcriptContentType = "text/plain; charset=utf-8"

// S3Source reads plain-text transcripts stored as <prefix><videoID>.txt
type S3Source struct {
	store  ObjectStore
	prefix string
}

func NewS3Source(store ObjectStore, prefix string) *S3Source {
	return &S3Source{store: store, prefix: prefix}
}

// Key returns the object key holding the transcript of videoID
func (s *S3Source) Key(videoID string) string {
	return s.prefix + videoID + ".txt"
}

func (s *S3Source) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	if !domain.IsValidVideoID(videoID) {
		return "", domain.ErrInvalidVideoID
	}

	data, err := s.store.GetObject(ctx, s.Key(videoID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrObjectTooLarge) {
			return "", domain.ErrTranscriptUnavailable.WithCause(err)
		}
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return string(data), nil
}

// PutTranscript uploads text as the transcript of videoID and returns its key.
func (s *S3Source) PutTranscript(ctx context.Context, videoID, text string) (string, error) {
	if !domain.IsValidVideoID(videoID) {
		return "", domain.ErrInvalidVideoID
	}
	key := s.Key(videoID)
	if err := s.store.PutObject(ctx, key, []byte(text), transcriptContentType); err != nil {
		return "", err
	}
	return key, nil
}

// DirSource reads plain-text transcripts from <dir>/<videoID>.txt
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) FetchTranscript(_ context.Context, videoID string) (string, error) {
	// the id pattern excludes path separators and dots
	if !domain.IsValidVideoID(videoID) {
		return "", domain.ErrInvalidVideoID
	}

	data, err := os.ReadFile(filepath.Join(s.dir, videoID+".txt"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrTranscriptUnavailable.WithCause(err)
		}
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return string(data), nil
}
