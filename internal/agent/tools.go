package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// ToolFunc executes a tool with validated arguments and returns the payload
// sent back to the model.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is a callable capability exposed to the model.
type Tool struct {
	Name        string
	Description string
	SchemaJSON  string        // JSON schema for the arguments object
	Fn          ToolFunc
	Timeout     time.Duration // Per-call wall clock limit; 0 = executor default, negative = none
	PathParams  []string      // Argument names holding paths subject to the sandbox gate
	Category    string        // "filesystem", "shell", "git", ...
}

// ValidateArgs checks args against the tool's declared JSON schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(t.SchemaJSON)
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, issue := range result.Errors() {
			problems = append(problems, issue.String())
		}
		return &ToolValidationError{ToolName: t.Name, Problems: problems}
	}
	return nil
}

// ToolSchema is the provider-facing description of a tool.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  string
}

// Registry maps tool names to implementations.
type Registry map[string]Tool

// Schemas returns provider-facing schemas sorted by name, so token accounting
// and request bodies are deterministic.
func (r Registry) Schemas() []ToolSchema {
	s := make([]ToolSchema, 0, len(r))
	for _, t := range r {
		s = append(s, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
		})
	}
	sort.Slice(s, func(i, j int) bool { return s[i].Name < s[j].Name })
	return s
}

// Names returns the registered tool names, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
