package intel

import (
	"context"
	"fmt"
	"os"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/jsonutil"
)

// NewCodeOutlineTool exposes symbol extraction directly, for files the model
// wants a map of without reading.
func NewCodeOutlineTool() agent.Tool {
	return agent.Tool{
		Name:        "code_outline",
		Description: "Extracts a structural outline (functions, types, classes, imports) with line numbers from a source file. Supports Go, Python, and JavaScript/TypeScript; other files get a head/tail excerpt.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"Path to the source file"}},"required":["path"]}`,
		PathParams:  []string{"path"},
		Category:    "intel",
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path, ok := args["path"].(string)
			if !ok {
				return "", fmt.Errorf("path must be a string")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("failed to read %s: %w", path, err)
			}
			return jsonutil.MarshalString(map[string]any{
				"path":    path,
				"outline": Generate(string(data), path),
			})
		},
	}
}
