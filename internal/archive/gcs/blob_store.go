// Package gcs archives raw source payloads to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config names the destination bucket for archived payloads.
type Config struct {
	Bucket string
}

// BlobStore uploads scraped payloads to GCS. Advisory pages are small, so
// uploads are buffered whole and written in a single request.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New builds a BlobStore over an existing client. The client is shared with
// any other GCS consumers in the process and is not closed here.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{client: client, bucket: cfg.Bucket}, nil
}

// PutObject uploads one payload under the given object path and returns its
// gs:// URI. The path is the key the archiver computed, already carrying the
// source name and run date.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	// Payloads fit in memory; skip the resumable-upload session round trip.
	w.ChunkSize = 0
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := io.Copy(w, r); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return "", fmt.Errorf("upload %s: %w (close writer: %v)", path, err, closeErr)
		}
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", path, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
