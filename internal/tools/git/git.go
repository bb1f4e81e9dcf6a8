// Package git implements git_operations, thin subprocess wrappers around the
// git CLI scoped to a repository path.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/jsonutil"
)

const (
	gitTimeout  = 30 * time.Second
	maxGitBytes = 64 * 1024
)

// Tool exposes a fixed set of git subcommands. The repository argument goes
// through the sandbox gate, so in sandbox mode the model cannot point it at
// an arbitrary checkout.
type Tool struct {
	defaultRepo string
}

func NewTool(defaultRepo string) *Tool {
	return &Tool{defaultRepo: defaultRepo}
}

func (t *Tool) Definition() agent.Tool {
	return agent.Tool{
		Name: "git_operations",
		Description: "Version control operations in the project repository. Operations: status, log (recent commits), diff (optionally staged), " +
			"commit (stages all changes and commits with the given message), branch (list or create).",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"operation": {"type":"string","enum":["status","log","diff","commit","branch"]},
				"repository": {"type":"string","description":"Repository path; defaults to the project root"},
				"message": {"type":"string","description":"commit: the commit message"},
				"staged": {"type":"boolean","description":"diff: show staged changes instead of the working tree"},
				"name": {"type":"string","description":"branch: create and switch to this branch instead of listing"},
				"limit": {"type":"integer","minimum":1,"maximum":100,"description":"log: number of commits (default 10)"}
			},
			"required": ["operation"]
		}`,
		PathParams: []string{"repository"},
		Category:   "git",
		Timeout:    gitTimeout + 15*time.Second,
		Fn:         t.run,
	}
}

func (t *Tool) run(ctx context.Context, args map[string]any) (string, error) {
	operation, _ := args["operation"].(string)
	repo, _ := args["repository"].(string)
	if repo == "" {
		repo = t.defaultRepo
	}

	switch operation {
	case "status":
		return t.git(ctx, repo, operation, "status", "--short", "--branch")
	case "log":
		limit := 10
		if v, ok := args["limit"].(float64); ok && v > 0 {
			limit = int(v)
		}
		return t.git(ctx, repo, operation, "log", "--oneline", "--decorate", fmt.Sprintf("-%d", limit))
	case "diff":
		if staged, _ := args["staged"].(bool); staged {
			return t.git(ctx, repo, operation, "diff", "--cached")
		}
		return t.git(ctx, repo, operation, "diff")
	case "commit":
		message, _ := args["message"].(string)
		if strings.TrimSpace(message) == "" {
			return "", fmt.Errorf("commit requires a non-empty message")
		}
		if _, err := t.git(ctx, repo, operation, "add", "-A"); err != nil {
			return "", err
		}
		return t.git(ctx, repo, operation, "commit", "-m", message)
	case "branch":
		if name, _ := args["name"].(string); name != "" {
			return t.git(ctx, repo, operation, "checkout", "-b", name)
		}
		return t.git(ctx, repo, operation, "branch", "--list", "-v")
	default:
		return "", fmt.Errorf("unknown operation %q", operation)
	}
}

func (t *Tool) git(ctx context.Context, repo, operation string, gitArgs ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "git", gitArgs...)
	cmd.Dir = repo
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	truncated := false
	if len(output) > maxGitBytes {
		output = output[:maxGitBytes]
		truncated = true
	}

	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		exitCode := 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", fmt.Errorf("git %s failed (exit %d): %s", operation, exitCode, detail)
	}

	return jsonutil.MarshalString(map[string]any{
		"operation": operation,
		"output":    output,
		"truncated": truncated,
	})
}
