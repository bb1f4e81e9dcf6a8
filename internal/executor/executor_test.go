package executor

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/results"
	"github.com/clio-agent/clio/internal/sandbox"
)

func echoTool() agent.Tool {
	return agent.Tool{
		Name:        "echo",
		Description: "echoes its text argument",
		SchemaJSON:  `{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	}
}

func newTestExecutor(t *testing.T, reg agent.Registry, sb sandbox.Config) *Executor {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "clio-executor-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	return New(reg, sb, results.NewStore(tmpDir), "sess_test", nil, zerolog.Nop())
}

func TestRunSuccess(t *testing.T) {
	exec := newTestExecutor(t, agent.Registry{"echo": echoTool()}, sandbox.Config{})

	msg := exec.Run(context.Background(), agent.ToolCall{
		ID: "c1", Name: "echo", Args: map[string]any{"text": "hello"},
	})

	require.Equal(t, agent.RoleTool, msg.Role)
	require.Equal(t, "c1", msg.ToolCallID)
	require.Equal(t, "echo", msg.Name)
	require.Equal(t, "hello", msg.Content)
	require.Equal(t, true, msg.Metadata["success"])
}

func TestRunFailuresAreMessages(t *testing.T) {
	reg := agent.Registry{"echo": echoTool()}
	exec := newTestExecutor(t, reg, sandbox.Config{})

	cases := []struct {
		name string
		call agent.ToolCall
		want string
	}{
		{"unknown tool", agent.ToolCall{ID: "u1", Name: "bogus", Args: map[string]any{}}, "unknown tool"},
		{"schema violation", agent.ToolCall{ID: "s1", Name: "echo", Args: map[string]any{"text": 42}}, "echo"},
		{"missing required", agent.ToolCall{ID: "m1", Name: "echo", Args: map[string]any{}}, "text"},
		{"missing id", agent.ToolCall{Name: "echo", Args: map[string]any{"text": "x"}}, "no id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := exec.Run(context.Background(), tc.call)
			require.Equal(t, false, msg.Metadata["success"])
			require.True(t, strings.HasPrefix(msg.Content, "Error:"), msg.Content)
			require.Contains(t, msg.Content, tc.want)
		})
	}
}

func TestDuplicateCallIDRejected(t *testing.T) {
	exec := newTestExecutor(t, agent.Registry{"echo": echoTool()}, sandbox.Config{})
	call := agent.ToolCall{ID: "dup", Name: "echo", Args: map[string]any{"text": "x"}}

	first := exec.Run(context.Background(), call)
	require.Equal(t, true, first.Metadata["success"])

	second := exec.Run(context.Background(), call)
	require.Equal(t, false, second.Metadata["success"])
	require.Contains(t, second.Content, "duplicate tool call id")
}

func TestSandboxGate(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "clio-executor-sandbox")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	var gotPath string
	pathTool := agent.Tool{
		Name:       "read",
		SchemaJSON: `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`,
		PathParams: []string{"path"},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			gotPath = args["path"].(string)
			return "ok", nil
		},
	}
	exec := newTestExecutor(t, agent.Registry{"read": pathTool}, sandbox.Config{Enabled: true, Root: tmpDir})

	msg := exec.Run(context.Background(), agent.ToolCall{
		ID: "p1", Name: "read", Args: map[string]any{"path": "sub/file.txt"},
	})
	require.Equal(t, true, msg.Metadata["success"])
	require.True(t, strings.HasPrefix(gotPath, tmpDir), "path should be resolved absolute: %s", gotPath)

	msg = exec.Run(context.Background(), agent.ToolCall{
		ID: "p2", Name: "read", Args: map[string]any{"path": "/etc/passwd"},
	})
	require.Equal(t, false, msg.Metadata["success"])
	require.Contains(t, msg.Content, "outside the project directory")
}

func TestLargeResultSpills(t *testing.T) {
	big := strings.Repeat("a", SpillThreshold+100)
	bigTool := agent.Tool{
		Name:       "big",
		SchemaJSON: `{"type":"object","properties":{}}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return big, nil
		},
	}
	exec := newTestExecutor(t, agent.Registry{"big": bigTool}, sandbox.Config{})

	msg := exec.Run(context.Background(), agent.ToolCall{ID: "b1", Name: "big", Args: map[string]any{}})
	require.Equal(t, true, msg.Metadata["success"])
	require.Equal(t, true, msg.Metadata["stored"])

	var placeholder struct {
		Stored   bool   `json:"_stored"`
		ResultID string `json:"result_id"`
		Size     int    `json:"size"`
		Preview  string `json:"preview"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Content), &placeholder))
	require.True(t, placeholder.Stored)
	require.NotEmpty(t, placeholder.ResultID)
	require.Equal(t, len(big), placeholder.Size)
	require.Len(t, placeholder.Preview, previewBytes)

	data, err := exec.Results.Get(placeholder.ResultID, 0, int64(placeholder.Size))
	require.NoError(t, err)
	require.Equal(t, big, string(data))
}

func TestToolTimeout(t *testing.T) {
	slow := agent.Tool{
		Name:       "slow",
		SchemaJSON: `{"type":"object","properties":{}}`,
		Timeout:    50 * time.Millisecond,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(5 * time.Second):
				return "too late", nil
			}
		},
	}
	exec := newTestExecutor(t, agent.Registry{"slow": slow}, sandbox.Config{})

	started := time.Now()
	msg := exec.Run(context.Background(), agent.ToolCall{ID: "t1", Name: "slow", Args: map[string]any{}})
	require.Less(t, time.Since(started), 2*time.Second)
	require.Equal(t, false, msg.Metadata["success"])
	require.Contains(t, msg.Content, "timed out")
}
