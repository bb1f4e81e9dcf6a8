package shell

import (
	"context"
	"encoding/json"
	"os"
	"reflect"
	"strings"
	"testing"
)

func runCommand(t *testing.T, tool *Tool, args map[string]any) ExecutionResult {
	t.Helper()
	out, err := tool.Definition().Fn(context.Background(), args)
	if err != nil {
		t.Fatalf("run_command failed: %v", err)
	}
	var result ExecutionResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("result not JSON: %v\n%s", err, out)
	}
	return result
}

func TestRunCommand(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "clio-shell-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	tool := NewTool(tmpDir)

	result := runCommand(t, tool, map[string]any{"cmd": "echo", "args": "hello world"})
	if result.Status != "ok" || result.ExitCode != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if strings.TrimSpace(result.Stdout) != "hello world" {
		t.Errorf("unexpected stdout: %q", result.Stdout)
	}
}

func TestRunCommandRejectsUnlisted(t *testing.T) {
	tool := NewTool(".")
	result := runCommand(t, tool, map[string]any{"cmd": "nmap", "args": "localhost"})
	if result.Status != "failed" {
		t.Errorf("expected failure for unlisted command, got %+v", result)
	}
	if !strings.Contains(result.Stderr, "allow-list") {
		t.Errorf("expected allow-list message, got %q", result.Stderr)
	}
}

func TestRunCommandNonZeroExit(t *testing.T) {
	tool := NewTool(".")
	result := runCommand(t, tool, map[string]any{"cmd": "sh", "args": "-c 'exit 3'"})
	if result.Status != "failed" {
		t.Errorf("expected failed status, got %+v", result)
	}
	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", result.ExitCode)
	}
}

func TestRunCommandTruncatesOutput(t *testing.T) {
	tool := NewTool(".")
	result := runCommand(t, tool, map[string]any{
		"cmd":              "sh",
		"args":             `-c 'for i in $(seq 1 100); do echo line $i; done'`,
		"max_output_lines": 10,
	})
	if !result.StdoutTruncated {
		t.Error("expected stdout truncation")
	}
	if got := len(strings.Split(result.Stdout, "\n")); got != 10 {
		t.Errorf("expected 10 lines, got %d", got)
	}
}

func TestParseArgs(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"-la", []string{"-la"}},
		{"a b c", []string{"a", "b", "c"}},
		{`-c 'echo hi there'`, []string{"-c", "echo hi there"}},
		{`-m "commit message" --amend`, []string{"-m", "commit message", "--amend"}},
		{`"it's quoted"`, []string{"it's quoted"}},
	}
	for _, tc := range cases {
		if got := parseArgs(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseArgs(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
