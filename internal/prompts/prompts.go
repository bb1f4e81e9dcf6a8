// Package prompts holds the system instructions seeded into new sessions.
package prompts

import (
	"fmt"
	"strings"
)

const base = `You are clio, a careful coding assistant working inside one project directory.

Working directory: {{workdir}}

Rules:
- Read the relevant file content before proposing or making a change.
- Make small, focused edits; do not reformat unrelated code.
- Use file_operations to read, write, list and search files. Large files come back
  as an outline; re-read with start/end line numbers to see the exact code.
- Use run_command for builds, tests and linters. Prefer quiet flags; output is
  truncated, so capture only what matters.
- Use git_operations to inspect and commit changes; write commit messages that
  describe what the change does.
- When a tool result is stored instead of inlined, fetch the parts you need with
  read_tool_result rather than asking the user to paste it.
- If you are unsure, use ask_user briefly instead of guessing.`

const sandboxNote = `File access is restricted to the working directory; paths outside it are rejected.`

// Builder composes a system prompt from the base instructions, optional
// fragments, and {{key}} variable substitution.
type Builder struct {
	fragments []string
	variables map[string]string
}

func NewBuilder() *Builder {
	return &Builder{
		fragments: []string{base},
		variables: make(map[string]string),
	}
}

// AddFragment appends a paragraph to the prompt.
func (b *Builder) AddFragment(text string) *Builder {
	b.fragments = append(b.fragments, text)
	return b
}

// SetVariable registers a {{key}} substitution.
func (b *Builder) SetVariable(key, value string) *Builder {
	b.variables[key] = value
	return b
}

// Build joins the fragments and applies the substitutions.
func (b *Builder) Build() string {
	result := strings.Join(b.fragments, "\n\n")
	for key, value := range b.variables {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{%s}}", key), value)
	}
	return result
}

// System renders the default system prompt for a session.
func System(workdir string, sandboxed bool) string {
	b := NewBuilder().SetVariable("workdir", workdir)
	if sandboxed {
		b.AddFragment(sandboxNote)
	}
	return b.Build()
}
