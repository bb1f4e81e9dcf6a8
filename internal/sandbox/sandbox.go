// Package sandbox implements soft path containment: when enabled, tool calls
// that name a filesystem path must stay inside the session's working
// directory. Shell execution and network fetches are not contained; this is a
// documented limitation of soft-sandbox mode.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config controls path containment for one session.
type Config struct {
	Enabled bool
	Root    string // absolute working directory the session is confined to
}

// ViolationError reports a path that escapes the sandbox root.
type ViolationError struct {
	Path string
	Root string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("path %s is outside the project directory %s", e.Path, e.Root)
}

// CheckPath resolves a path (relative paths against Root) and verifies it is
// Root or a descendant. Symlinks are resolved so a link cannot point out of
// the tree; for paths that do not exist yet the nearest existing ancestor is
// resolved instead.
func (c Config) CheckPath(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(c.Root, abs)
	}
	abs = filepath.Clean(abs)

	if !c.Enabled {
		return abs, nil
	}

	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	root, err := filepath.EvalSymlinks(c.Root)
	if err != nil {
		root = filepath.Clean(c.Root)
	}

	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", &ViolationError{Path: abs, Root: c.Root}
	}
	return abs, nil
}

// resolveExisting walks up to the nearest existing ancestor, resolves its
// symlinks, then re-joins the non-existing suffix.
func resolveExisting(abs string) (string, error) {
	var suffix []string
	current := abs
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		suffix = append(suffix, filepath.Base(current))
		current = parent
	}
}
