// Package gcs implements the page archive on Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/browserbot-relay/internal/archive"
)

const pageContentType = "text/html; charset=utf-8"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Store writes archived pages to a configured GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed page archive.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// PutPage uploads the page to the configured bucket and returns a gs:// URI.
func (s *Store) PutPage(ctx context.Context, participantCode, pagePath string, html []byte) (string, error) {
	if participantCode == "" {
		return "", fmt.Errorf("participant code is required")
	}
	objectPath := archive.ObjectPath(s.prefix, participantCode, pagePath, time.Now())
	writer := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = pageContentType
	if _, err := writer.Write(html); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectPath), nil
}
