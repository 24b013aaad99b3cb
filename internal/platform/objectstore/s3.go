// Package objectstore wraps the S3 operations the worker uses: chunk
// download, temporary upload for transcription, and cleanup deletion.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/config"
)

// API is the subset of the S3 client this package uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Client is a thin wrapper over S3 with a default bucket for uploads.
// Chunk downloads address their own bucket explicitly because chunks may
// live in a different bucket than transcription temporaries.
type Client struct {
	api API
	cfg config.StorageConfig
	log *slog.Logger
}

// New creates an object-storage client.
func New(api API, cfg config.StorageConfig, log *slog.Logger) *Client {
	if api == nil {
		panic("s3 api cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		api: api,
		cfg: cfg,
		log: log.With(slog.String("component", "objectstore")),
	}
}

// Upload stores the local file under a unique transcription key in the
// default bucket and returns the key.
func (c *Client) Upload(ctx context.Context, localPath, originalName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for upload: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	key := uploadKey(originalName)

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(originalName)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	c.log.Debug("object uploaded", slog.String("key", key))
	return key, nil
}

// Download fetches bucket/key into destPath, creating parent directories
// as needed.
func (c *Client) Download(ctx context.Context, bucket, key, destPath string) error {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", destPath, err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return nil
}

// Delete removes a key from the default bucket.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.DeleteObject(ctx, c.cfg.Bucket, key)
}

// DeleteObject removes a key from an explicit bucket.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// URI returns the HTTPS location of a key in the default bucket, in the
// form transcription providers accept as an audio source.
func (c *Client) URI(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.cfg.Bucket, c.cfg.Region, key)
}

// uploadKey builds the storage key for a temporary transcription upload:
// transcription/{unixMillis}-{random}-{originalFileName}.
func uploadKey(originalName string) string {
	return fmt.Sprintf("transcription/%d-%s-%s",
		time.Now().UnixMilli(), uuid.NewString(), filepath.Base(originalName))
}

// audioContentTypes covers the audio containers the platform records in;
// mime.TypeByExtension does not know all of them on every OS.
var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".webm": "audio/webm",
	".flac": "audio/flac",
}

// ContentType derives a MIME type from the file extension, defaulting to
// application/octet-stream.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := audioContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
