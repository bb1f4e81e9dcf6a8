package git

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "clio-git-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = tmpDir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	return tmpDir
}

func runOp(t *testing.T, tool *Tool, args map[string]any) map[string]any {
	t.Helper()
	out, err := tool.Definition().Fn(context.Background(), args)
	if err != nil {
		t.Fatalf("git_operations %v failed: %v", args["operation"], err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("result not JSON: %v\n%s", err, out)
	}
	return result
}

func TestStatusCommitLog(t *testing.T) {
	repo := initRepo(t)
	tool := NewTool(repo)

	if err := os.WriteFile(filepath.Join(repo, "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	status := runOp(t, tool, map[string]any{"operation": "status"})
	if !strings.Contains(status["output"].(string), "main.go") {
		t.Errorf("expected untracked file in status: %v", status["output"])
	}

	runOp(t, tool, map[string]any{"operation": "commit", "message": "add main"})

	log := runOp(t, tool, map[string]any{"operation": "log"})
	if !strings.Contains(log["output"].(string), "add main") {
		t.Errorf("expected commit in log: %v", log["output"])
	}

	status = runOp(t, tool, map[string]any{"operation": "status"})
	if strings.Contains(status["output"].(string), "main.go") {
		t.Errorf("expected clean tree after commit: %v", status["output"])
	}
}

func TestBranch(t *testing.T) {
	repo := initRepo(t)
	tool := NewTool(repo)

	if err := os.WriteFile(filepath.Join(repo, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	runOp(t, tool, map[string]any{"operation": "commit", "message": "initial"})

	runOp(t, tool, map[string]any{"operation": "branch", "name": "feature/x"})

	list := runOp(t, tool, map[string]any{"operation": "branch"})
	if !strings.Contains(list["output"].(string), "feature/x") {
		t.Errorf("expected new branch in listing: %v", list["output"])
	}
}

func TestCommitRequiresMessage(t *testing.T) {
	repo := initRepo(t)
	tool := NewTool(repo)

	_, err := tool.Definition().Fn(context.Background(), map[string]any{"operation": "commit", "message": "  "})
	if err == nil {
		t.Fatal("expected error for empty commit message")
	}
}
