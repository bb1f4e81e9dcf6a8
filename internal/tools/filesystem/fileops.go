// Package filesystem implements the file_operations tool: reading with
// tiered output, writing, deletion, gitignore-aware listing and search.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/jsonutil"
	"github.com/clio-agent/clio/internal/tools/intel"
)

const (
	fullReadLines = 200 // below this, full content
	warnReadLines = 400 // below this, full content with a size warning
	maxListFiles  = 1000
	maxSearchHits = 100
	maxSearchFile = 1 << 20 // skip files larger than 1 MiB when searching
)

var defaultIgnores = []string{".git", "node_modules", ".clio"}

// Tool bundles the file operations behind one schema with an operation
// discriminator.
type Tool struct {
	fs   FileSystem
	root string
}

func NewTool(root string) *Tool {
	return &Tool{fs: NewOSFileSystem(), root: root}
}

func (t *Tool) Definition() agent.Tool {
	return agent.Tool{
		Name: "file_operations",
		Description: "File operations in the project. Operations: read_file (large files return an outline; pass start/end for a line range), " +
			"write_file (creates parent directories), create_file (fails if the file exists), delete_file, " +
			"list_dir (gitignore-aware, optional recursive), search_files (regex search across the tree).",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"operation": {"type":"string","enum":["read_file","write_file","create_file","delete_file","list_dir","search_files"]},
				"path": {"type":"string","description":"File or directory path, relative to the project root"},
				"content": {"type":"string","description":"write_file/create_file: content to write"},
				"start": {"type":"integer","minimum":1,"description":"read_file: first line of a range"},
				"end": {"type":"integer","minimum":1,"description":"read_file: last line of a range (inclusive)"},
				"recursive": {"type":"boolean","description":"list_dir: descend into subdirectories"},
				"max_depth": {"type":"integer","description":"list_dir: depth limit for recursive listing"},
				"limit": {"type":"integer","description":"list_dir/search_files: cap on returned entries"},
				"pattern": {"type":"string","description":"search_files: regular expression"},
				"case_insensitive": {"type":"boolean","description":"search_files: ignore case"}
			},
			"required": ["operation", "path"]
		}`,
		PathParams: []string{"path"},
		Category:   "filesystem",
		Fn:         t.run,
	}
}

func (t *Tool) run(ctx context.Context, args map[string]any) (string, error) {
	operation, _ := args["operation"].(string)
	path, _ := args["path"].(string)

	switch operation {
	case "read_file":
		return t.readFile(path, intArg(args, "start", 0), intArg(args, "end", 0))
	case "write_file":
		content, _ := args["content"].(string)
		return t.writeFile(path, content, false)
	case "create_file":
		content, _ := args["content"].(string)
		return t.writeFile(path, content, true)
	case "delete_file":
		return t.deleteFile(path)
	case "list_dir":
		recursive, _ := args["recursive"].(bool)
		return t.listDir(path, recursive, intArg(args, "max_depth", -1), intArg(args, "limit", maxListFiles))
	case "search_files":
		pattern, _ := args["pattern"].(string)
		ci, _ := args["case_insensitive"].(bool)
		return t.searchFiles(ctx, path, pattern, ci, intArg(args, "limit", maxSearchHits))
	default:
		return "", fmt.Errorf("unknown operation %q", operation)
	}
}

func (t *Tool) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(t.root, path)
}

func (t *Tool) readFile(path string, start, end int) (string, error) {
	data, err := t.fs.ReadFile(t.resolve(path))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(data)
	lineCount := strings.Count(content, "\n") + 1

	if start > 0 {
		lines := strings.Split(content, "\n")
		if end <= 0 || end > len(lines) {
			end = len(lines)
		}
		if start > len(lines) {
			return "", fmt.Errorf("start line %d beyond end of file (%d lines)", start, len(lines))
		}
		return jsonutil.MarshalString(map[string]any{
			"path":         path,
			"content":      strings.Join(lines[start-1:end], "\n"),
			"line_count":   lineCount,
			"range":        fmt.Sprintf("%d-%d", start, end),
			"content_type": "range",
		})
	}

	switch {
	case lineCount < fullReadLines:
		return jsonutil.MarshalString(map[string]any{
			"path":         path,
			"content":      content,
			"line_count":   lineCount,
			"content_type": "full",
		})
	case lineCount < warnReadLines:
		warning := fmt.Sprintf("NOTE: this file has %d lines; prefer read_file with start/end for focused edits.\n\n", lineCount)
		return jsonutil.MarshalString(map[string]any{
			"path":         path,
			"content":      warning + content,
			"line_count":   lineCount,
			"content_type": "full",
		})
	default:
		return jsonutil.MarshalString(map[string]any{
			"path":         path,
			"content":      intel.Generate(content, path),
			"line_count":   lineCount,
			"content_type": "outline",
		})
	}
}

func (t *Tool) writeFile(path, content string, mustNotExist bool) (string, error) {
	abs := t.resolve(path)
	if mustNotExist {
		if _, err := t.fs.Stat(abs); err == nil {
			return "", fmt.Errorf("file %s already exists", path)
		}
	}
	if err := t.fs.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}
	if err := t.fs.WriteFile(abs, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return jsonutil.MarshalString(map[string]any{
		"path":          path,
		"bytes_written": len(content),
		"status":        "ok",
	})
}

func (t *Tool) deleteFile(path string) (string, error) {
	if err := t.fs.Remove(t.resolve(path)); err != nil {
		return "", fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return jsonutil.MarshalString(map[string]any{"path": path, "status": "deleted"})
}

// ignoreMatcher combines the fixed default ignores with the project's
// .gitignore when one exists.
func (t *Tool) ignoreMatcher() *gitignore.GitIgnore {
	patterns := append([]string{}, defaultIgnores...)
	if data, err := t.fs.ReadFile(filepath.Join(t.root, ".gitignore")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				patterns = append(patterns, line)
			}
		}
	}
	return gitignore.CompileIgnoreLines(patterns...)
}

func (t *Tool) listDir(path string, recursive bool, maxDepth, limit int) (string, error) {
	dirPath := t.resolve(path)
	matcher := t.ignoreMatcher()
	if limit <= 0 || limit > maxListFiles {
		limit = maxListFiles
	}

	files := make([]string, 0)
	truncated := false

	if recursive {
		err := t.fs.WalkDir(dirPath, func(walkPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if walkPath == dirPath {
				return nil
			}
			rel, relErr := filepath.Rel(t.root, walkPath)
			if relErr != nil {
				return nil
			}
			if matcher.MatchesPath(rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if maxDepth >= 0 {
				fromStart, _ := filepath.Rel(dirPath, walkPath)
				if strings.Count(fromStart, string(filepath.Separator)) > maxDepth {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
			}
			if d.IsDir() {
				rel += string(filepath.Separator)
			}
			files = append(files, rel)
			if len(files) >= limit {
				truncated = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to walk %s: %w", path, err)
		}
	} else {
		entries, err := t.fs.ReadDir(dirPath)
		if err != nil {
			return "", fmt.Errorf("failed to list %s: %w", path, err)
		}
		for _, entry := range entries {
			rel := entry.Name()
			if path != "" && path != "." {
				rel = filepath.Join(path, entry.Name())
			}
			if matcher.MatchesPath(rel) {
				continue
			}
			if entry.IsDir() {
				rel += string(filepath.Separator)
			}
			files = append(files, rel)
			if len(files) >= limit {
				truncated = true
				break
			}
		}
	}

	return jsonutil.MarshalString(map[string]any{
		"path":      path,
		"files":     files,
		"count":     len(files),
		"recursive": recursive,
		"truncated": truncated,
	})
}

type searchHit struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

func (t *Tool) searchFiles(ctx context.Context, path, pattern string, caseInsensitive bool, limit int) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("pattern is required for search_files")
	}
	expr := pattern
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if limit <= 0 || limit > maxSearchHits {
		limit = maxSearchHits
	}

	dirPath := t.resolve(path)
	matcher := t.ignoreMatcher()
	hits := make([]searchHit, 0)
	truncated := false

	err = t.fs.WalkDir(dirPath, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(t.root, walkPath)
		if relErr != nil {
			return nil
		}
		if walkPath != dirPath && matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil || info.Size() > maxSearchFile {
			return nil
		}
		data, readErr := t.fs.ReadFile(walkPath)
		if readErr != nil || !utf8Like(data) {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				hits = append(hits, searchHit{Path: rel, Line: i + 1, Content: strings.TrimSpace(line)})
				if len(hits) >= limit {
					truncated = true
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	return jsonutil.MarshalString(map[string]any{
		"pattern":   pattern,
		"results":   hits,
		"count":     len(hits),
		"truncated": truncated,
	})
}

// utf8Like rejects files with NUL bytes in the first kilobyte, a cheap
// binary detector.
func utf8Like(data []byte) bool {
	probe := data
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	for _, b := range probe {
		if b == 0 {
			return false
		}
	}
	return true
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
