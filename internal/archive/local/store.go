// Package local implements the page archive on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JakeFAU/browserbot-relay/internal/archive"
)

// Config captures the parameters for the local filesystem archive.
type Config struct {
	// BaseDir is the root directory archived pages are written under.
	BaseDir string
	// Prefix is prepended to every object path.
	Prefix string
}

// Store writes archived pages to the local filesystem.
type Store struct {
	baseDir string
	prefix  string
}

// New creates a filesystem-backed page archive, creating BaseDir if needed
// and verifying it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("base directory path is not a directory")
		}
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	default:
		return nil, fmt.Errorf("stat base directory: %w", err)
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir, prefix: cfg.Prefix}, nil
}

// PutPage writes the page to a file and returns a file:// URI.
func (s *Store) PutPage(_ context.Context, participantCode, pagePath string, html []byte) (string, error) {
	if participantCode == "" {
		return "", fmt.Errorf("participant code is required")
	}
	objectPath := archive.ObjectPath(s.prefix, participantCode, pagePath, time.Now())
	fullPath := filepath.Join(s.baseDir, objectPath)

	// ObjectPath flattens page paths, but verify anyway that the target
	// stays under the base directory.
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, html, 0o600); err != nil {
		return "", fmt.Errorf("write page file: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
