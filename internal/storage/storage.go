package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// AudioStore persists uploaded consultation recordings and hands their
// bytes back to the transcription stage. The pipeline only ever reads.
type AudioStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Read(ctx context.Context, storedPath string) ([]byte, error)
}

// LocalStore keeps recordings on the local filesystem under a public
// root, mirroring the upload layout the API serves from.
type LocalStore struct {
	root string
}

const recordingsPrefix = "uploads/recordings"

func NewLocalStore(root string) (*LocalStore, error) {
	dir := filepath.Join(root, recordingsPrefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recordings dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Save writes the recording and returns the URL path stored on the
// consultation record.
func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	name := filepath.Base(filename)
	target := filepath.Join(s.root, recordingsPrefix, name)

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create recording file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write recording: %w", err)
	}

	return "/" + recordingsPrefix + "/" + name, nil
}

// Read loads the full recording for a stored URL path. Paths are
// resolved strictly below the store root.
func (s *LocalStore) Read(ctx context.Context, storedPath string) ([]byte, error) {
	rel := filepath.Clean(strings.TrimPrefix(storedPath, "/"))
	if rel == "." || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("invalid recording path %q", storedPath)
	}

	data, err := os.ReadFile(filepath.Join(s.root, rel))
	if err != nil {
		return nil, fmt.Errorf("failed to read recording %s: %w", storedPath, err)
	}
	return data, nil
}
