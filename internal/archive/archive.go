// Package archive preserves raw fetched payloads for replay and audits.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
	"github.com/voyantlabs/advisory-pipeline/internal/hash/sha256"
)

// BlobStore writes one artifact and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Archiver names and stores raw payloads beneath a common prefix.
type Archiver struct {
	store  BlobStore
	prefix string
	hasher *sha256.Hasher
}

// New builds an Archiver over the given store.
func New(store BlobStore, prefix string) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if prefix == "" {
		prefix = "raw"
	}
	return &Archiver{store: store, prefix: prefix, hasher: sha256.New()}, nil
}

// Archive writes the payload under a deterministic key derived from source,
// fetch time, and a short content hash, and returns the stored URI.
func (a *Archiver) Archive(ctx context.Context, sourceName string, raw advisory.RawContent) (string, error) {
	if sourceName == "" {
		return "", fmt.Errorf("source name is required")
	}
	digest, err := a.hasher.Hash(raw.Body)
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%s/%s_%s%s",
		a.prefix,
		sourceName,
		raw.RetrievedAt.UTC().Format("2006-01-02"),
		raw.RetrievedAt.UTC().Format("150405"),
		digest[:8],
		extension(raw),
	)
	uri, err := a.store.PutObject(ctx, key, contentType(raw), bytes.NewReader(raw.Body))
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", sourceName, err)
	}
	return uri, nil
}

func contentType(raw advisory.RawContent) string {
	if ct := raw.Headers.Get("Content-Type"); ct != "" {
		return ct
	}
	if looksLikeJSON(raw.Body) {
		return "application/json"
	}
	return "text/html; charset=utf-8"
}

func extension(raw advisory.RawContent) string {
	ct := contentType(raw)
	switch {
	case strings.Contains(ct, "json"):
		return ".json"
	case strings.Contains(ct, "xml"):
		return ".xml"
	default:
		return ".html"
	}
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
