// Package shell implements run_command: allow-listed subprocess execution
// with timeouts and output caps. Path containment does not apply here; the
// allow-list is the only guard in soft-sandbox mode.
package shell

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
	defaultTimeout = 60 * time.Second
	maxTimeout     = 5 * time.Minute
	minTimeout     = 5 * time.Second
	defaultLines   = 40
	maxLines       = 200
	maxChars       = 4000
)

var allowedCommands = []string{
	// build tools
	"go", "gofmt", "goimports",
	"npm", "npx", "yarn", "pnpm", "bun",
	"python", "python3", "pip", "pip3", "pytest", "uv",
	"cargo", "rustc", "rustfmt",
	"make", "cmake",
	"gradle", "mvn",

	// linters and formatters
	"eslint", "prettier", "biome",
	"ruff", "black", "isort", "mypy", "flake8",
	"tsc", "node",
	"golangci-lint",
	"shellcheck",

	// file utilities
	"mkdir", "touch", "rm", "cp", "mv",
	"cat", "head", "tail",
	"ls", "find", "tree",
	"wc", "grep", "awk", "sed", "sort", "uniq", "diff",

	// version control
	"git",

	// network
	"curl", "wget",

	// shells
	"sh", "bash", "zsh",

	// misc
	"echo", "printf", "date", "which", "env",
	"tar", "zip", "unzip", "gzip", "gunzip",
	"jq", "yq",
}

// ExecutionResult is the JSON payload returned to the model.
type ExecutionResult struct {
	Cmd             string `json:"cmd"`
	ExitCode        int    `json:"exit_code"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	StdoutTruncated bool   `json:"stdout_truncated,omitempty"`
	StderrTruncated bool   `json:"stderr_truncated,omitempty"`
	TimedOut        bool   `json:"timed_out,omitempty"`
	Status          string `json:"status"`
}

// Tool runs allow-listed commands in the project working directory.
type Tool struct {
	workDir string
}

func NewTool(workDir string) *Tool {
	return &Tool{workDir: workDir}
}

func (t *Tool) Definition() agent.Tool {
	return agent.Tool{
		Name: "run_command",
		Description: "Runs a command in the project directory with strict allow-list enforcement. Allowed: build tools (go, npm, python, cargo, make), " +
			"linters (eslint, ruff, tsc, golangci-lint), file utilities (ls, cat, grep, find, mkdir, rm, cp), git, curl/wget, shells, and archivers. " +
			"Output is truncated to the requested line count.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"cmd": {"type":"string","description":"Command name (must be in the allow-list)"},
				"args": {"type":"string","description":"Arguments as a space-separated string; quotes group words"},
				"timeout_seconds": {"type":"integer","minimum":5,"maximum":300,"description":"Wall-clock limit (default 60)"},
				"max_output_lines": {"type":"integer","minimum":5,"maximum":200,"description":"Stdout/stderr lines to keep (default 40)"}
			},
			"required": ["cmd"]
		}`,
		Category: "shell",
		Timeout:  maxTimeout + 30*time.Second, // the inner timeout governs; this is the executor backstop
		Fn:       t.run,
	}
}

func (t *Tool) run(ctx context.Context, args map[string]any) (string, error) {
	cmd, ok := args["cmd"].(string)
	if !ok {
		return "", fmt.Errorf("cmd must be a string")
	}
	argsStr, _ := args["args"].(string)
	timeout := clampTimeout(floatArg(args, "timeout_seconds"))
	lines := clampLines(floatArg(args, "max_output_lines"))

	if !allowed(cmd) {
		return jsonutil.MarshalString(ExecutionResult{
			Cmd:      cmd,
			ExitCode: 1,
			Stderr:   fmt.Sprintf("Command %q is not in the allow-list. Allowed commands: %s", cmd, strings.Join(allowedCommands, ", ")),
			Status:   "failed",
		})
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCmd := exec.CommandContext(cmdCtx, cmd, parseArgs(argsStr)...)
	execCmd.Dir = t.workDir
	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	runErr := execCmd.Run()

	cmdStr := cmd
	if argsStr != "" {
		cmdStr += " " + argsStr
	}
	outStr, outTrunc := truncateOutput(stdout.String(), lines)
	errStr, errTrunc := truncateOutput(stderr.String(), lines)

	result := ExecutionResult{
		Cmd:             cmdStr,
		Stdout:          outStr,
		Stderr:          errStr,
		StdoutTruncated: outTrunc,
		StderrTruncated: errTrunc,
		Status:          "ok",
	}
	if runErr != nil {
		result.Status = "failed"
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = 1
			if result.Stderr == "" {
				result.Stderr = runErr.Error()
			}
		}
		if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
			result.TimedOut = true
		}
	}

	return jsonutil.MarshalString(result)
}

func allowed(cmd string) bool {
	for _, a := range allowedCommands {
		if cmd == a {
			return true
		}
	}
	return false
}

// parseArgs splits a space-separated argument string, honoring single and
// double quotes.
func parseArgs(argsStr string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	quoteChar := byte(0)

	for i := 0; i < len(argsStr); i++ {
		c := argsStr[i]
		switch {
		case c == '"' || c == '\'':
			if !inQuotes {
				inQuotes = true
				quoteChar = c
			} else if c == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else {
				current.WriteByte(c)
			}
		case c == ' ' && !inQuotes:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(c)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}

func clampTimeout(seconds float64) time.Duration {
	if seconds <= 0 {
		return defaultTimeout
	}
	d := time.Duration(seconds) * time.Second
	if d < minTimeout {
		return minTimeout
	}
	if d > maxTimeout {
		return maxTimeout
	}
	return d
}

func clampLines(v float64) int {
	if v <= 0 {
		return defaultLines
	}
	lines := int(v)
	if lines > maxLines {
		return maxLines
	}
	return lines
}

func floatArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func truncateOutput(output string, maxKeep int) (string, bool) {
	if output == "" {
		return "", false
	}
	truncated := false
	lines := strings.Split(output, "\n")
	if len(lines) > maxKeep {
		lines = lines[:maxKeep]
		truncated = true
	}
	joined := strings.Join(lines, "\n")
	if len(joined) > maxChars {
		joined = joined[:maxChars]
		truncated = true
	}
	return joined, truncated
}
