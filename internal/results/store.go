// Package results stores oversize tool payloads off the conversation, keyed
// by opaque ids. Blobs live inside the session directory and disappear with
// it.
package results

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxReadLength bounds a single Get so a bad offset/length pair cannot pull
// an arbitrarily large blob back into memory.
const MaxReadLength = 256 * 1024

// Store is an id-addressed blob store under <dir>/results/.
type Store struct {
	dir string
}

// NewStore creates a result store inside a session directory.
func NewStore(sessionDir string) *Store {
	return &Store{dir: filepath.Join(sessionDir, "results")}
}

// Put writes data under a fresh id and returns it.
func (s *Store) Put(data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	id := "res_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := os.WriteFile(filepath.Join(s.dir, id), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write result %s: %w", id, err)
	}
	return id, nil
}

// Get reads length bytes starting at offset. Length is required and capped
// at MaxReadLength; a read past the end returns the remaining bytes.
func (s *Store) Get(id string, offset, length int64) ([]byte, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0, got %d", offset)
	}
	if length <= 0 {
		return nil, fmt.Errorf("length must be > 0, got %d", length)
	}
	if length > MaxReadLength {
		length = MaxReadLength
	}

	f, err := os.Open(filepath.Join(s.dir, id))
	if err != nil {
		return nil, fmt.Errorf("failed to open result %s: %w", id, err)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read result %s: %w", id, err)
	}
	return buf[:n], nil
}

// Size reports the stored payload size in bytes.
func (s *Store) Size(id string) (int64, error) {
	if err := validID(id); err != nil {
		return 0, err
	}
	info, err := os.Stat(filepath.Join(s.dir, id))
	if err != nil {
		return 0, fmt.Errorf("failed to stat result %s: %w", id, err)
	}
	return info.Size(), nil
}

// ids come back from the model, so reject anything that could escape the
// results directory.
func validID(id string) error {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("invalid result id %q", id)
	}
	return nil
}
