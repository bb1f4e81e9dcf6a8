// Package intel extracts structural outlines from source files so the model
// can navigate large files without pulling them fully into context.
package intel

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Generate produces a line-numbered symbol outline for a file, dispatching on
// extension. Unknown languages fall back to a head/tail excerpt.
func Generate(content, path string) string {
	lineCount := strings.Count(content, "\n") + 1

	var b strings.Builder
	fmt.Fprintf(&b, "OUTLINE of %s (%d lines). This is not the full content; ", path, lineCount)
	b.WriteString("read a specific range with file_operations read_file and start/end lines.\n\n")

	switch filepath.Ext(path) {
	case ".go":
		b.WriteString(goOutline(content))
	case ".py":
		b.WriteString(pythonOutline(content))
	case ".ts", ".tsx", ".js", ".jsx":
		b.WriteString(jsOutline(content))
	default:
		b.WriteString(genericOutline(content, lineCount))
	}
	return b.String()
}

func goOutline(content string) string {
	var b strings.Builder
	lines := strings.Split(content, "\n")
	inBlockComment := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "/*") {
			inBlockComment = true
		}
		if strings.HasSuffix(trimmed, "*/") {
			inBlockComment = false
			continue
		}
		if inBlockComment || strings.HasPrefix(trimmed, "//") {
			continue
		}

		if strings.HasPrefix(trimmed, "package ") ||
			strings.HasPrefix(trimmed, "import") ||
			strings.HasPrefix(trimmed, "type ") ||
			strings.HasPrefix(trimmed, "func ") ||
			strings.HasPrefix(trimmed, "const ") ||
			strings.HasPrefix(trimmed, "var ") {
			fmt.Fprintf(&b, "%5d: %s\n", i+1, trimmed)
		}
	}
	return b.String()
}

func pythonOutline(content string) string {
	var b strings.Builder
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") ||
			strings.HasPrefix(trimmed, "from ") ||
			strings.HasPrefix(trimmed, "class ") ||
			strings.HasPrefix(trimmed, "def ") ||
			strings.HasPrefix(trimmed, "async def ") ||
			strings.HasPrefix(trimmed, "@") {
			fmt.Fprintf(&b, "%5d: %s\n", i+1, trimmed)
		}
	}
	return b.String()
}

func jsOutline(content string) string {
	var b strings.Builder
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") ||
			strings.HasPrefix(trimmed, "export ") ||
			strings.HasPrefix(trimmed, "class ") ||
			strings.HasPrefix(trimmed, "function ") ||
			strings.HasPrefix(trimmed, "interface ") ||
			strings.HasPrefix(trimmed, "type ") ||
			(strings.HasPrefix(trimmed, "const ") && strings.Contains(trimmed, "=>")) {
			fmt.Fprintf(&b, "%5d: %s\n", i+1, trimmed)
		}
	}
	return b.String()
}

func genericOutline(content string, lineCount int) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder

	b.WriteString("=== FIRST 30 LINES ===\n")
	for i := 0; i < 30 && i < len(lines); i++ {
		fmt.Fprintf(&b, "%5d: %s\n", i+1, lines[i])
	}
	if lineCount > 60 {
		fmt.Fprintf(&b, "\n... %d lines omitted ...\n\n", lineCount-60)
		b.WriteString("=== LAST 30 LINES ===\n")
		start := len(lines) - 30
		if start < 0 {
			start = 0
		}
		for i := start; i < len(lines); i++ {
			fmt.Fprintf(&b, "%5d: %s\n", i+1, lines[i])
		}
	}
	return b.String()
}
