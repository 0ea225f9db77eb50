package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloo-solutions/tubeqa/internal/cli"
	"github.com/cloo-solutions/tubeqa/internal/config"
	"github.com/cloo-solutions/tubeqa/internal/domain"
	"github.com/cloo-solutions/tubeqa/internal/storage"
	"github.com/cloo-solutions/tubeqa/internal/transcript"
	"github.com/spf13/cobra"
)

const maxTranscriptUpload = 8 << 20

// TranscriptBucket is the object storage the transcripts commands operate on
type TranscriptBucket interface {
	transcript.ObjectStore
	HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// TranscriptsCmd manages transcripts stored in the S3 transcript source
func TranscriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "Manage stored transcripts",
		Long:  "Upload and inspect transcripts used when TUBEQA_TRANSCRIPT_SOURCE=s3",
	}

	cmd.AddCommand(transcriptsPutCmd())
	cmd.AddCommand(transcriptsURLCmd())

	return cmd
}

func transcriptsPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <video-url-or-id> <file>",
		Short: "Upload a plain-text transcript",
		Long:  "Upload a plain-text transcript for a video. Use - as file to read from stdin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, bucket, err := openBucket(cmd.Context())
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("failed to open transcript: %w", err)
				}
				defer f.Close()
				r = f
			}

			return putTranscript(cmd.Context(), cmd.OutOrStdout(), bucket, cfg.S3Prefix, args[0], r)
		},
	}
}

func transcriptsURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url <video-url-or-id>",
		Short: "Print a temporary download link for a stored transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, bucket, err := openBucket(cmd.Context())
			if err != nil {
				return err
			}
			return transcriptURL(cmd.Context(), cmd.OutOrStdout(), bucket, cfg.S3Prefix, args[0])
		},
	}
}

func openBucket(ctx context.Context) (*config.Config, *storage.S3Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	client, err := cli.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

func putTranscript(ctx context.Context, w io.Writer, bucket TranscriptBucket, prefix, video string, r io.Reader) error {
	videoID, err := domain.ExtractVideoID(video)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(io.LimitReader(r, maxTranscriptUpload+1))
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}
	if len(data) > maxTranscriptUpload {
		return fmt.Errorf("transcript exceeds %d bytes", maxTranscriptUpload)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return errors.New("transcript is empty")
	}

	key, err := transcript.NewS3Source(bucket, prefix).PutTranscript(ctx, videoID, text)
	if err != nil {
		return fmt.Errorf("failed to upload transcript: %w", err)
	}

	fmt.Fprintf(w, "Uploaded %s (%d bytes)\n", key, len(text))
	return nil
}

func transcriptURL(ctx context.Context, w io.Writer, bucket TranscriptBucket, prefix, video string) error {
	videoID, err := domain.ExtractVideoID(video)
	if err != nil {
		return err
	}

	key := transcript.NewS3Source(bucket, prefix).Key(videoID)
	meta, err := bucket.HeadObject(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no transcript stored for %s", videoID)
		}
		return err
	}

	url, err := bucket.GenerateDownloadURL(ctx, key)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%d bytes)\n%s\n", key, meta.ContentLength, url)
	return nil
}
