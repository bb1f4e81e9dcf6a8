package provider

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clio-agent/clio/internal/agent"
)

func TestConvertMessages(t *testing.T) {
	msgs := []agent.Message{
		{Role: agent.RoleSystem, Content: "be terse"},
		{Role: agent.RoleUser, Content: "list files"},
		{
			Role: agent.RoleAssistant,
			ToolCalls: []agent.ToolCall{
				{ID: "c1", Name: "file_operations", Args: map[string]any{"operation": "list_dir", "path": "."}},
			},
		},
		{Role: agent.RoleTool, ToolCallID: "c1", Content: `{"entries":[]}`},
		{Role: agent.RoleAssistant, Content: "No files."},
	}
	out := convertMessages(msgs)
	if len(out) != 5 {
		t.Fatalf("got %d wire messages", len(out))
	}

	if out[0].Role != openai.ChatMessageRoleSystem || out[0].Content != "be terse" {
		t.Fatalf("system = %+v", out[0])
	}
	if out[2].Content != " " {
		t.Fatalf("empty assistant content not padded: %q", out[2].Content)
	}
	if len(out[2].ToolCalls) != 1 {
		t.Fatalf("tool calls = %v", out[2].ToolCalls)
	}
	call := out[2].ToolCalls[0]
	if call.ID != "c1" || call.Type != openai.ToolTypeFunction || call.Function.Name != "file_operations" {
		t.Fatalf("call = %+v", call)
	}
	if call.Function.Arguments == "" || call.Function.Arguments == "{}" {
		t.Fatalf("arguments not serialized: %q", call.Function.Arguments)
	}
	if out[3].Role != openai.ChatMessageRoleTool || out[3].ToolCallID != "c1" {
		t.Fatalf("tool result = %+v", out[3])
	}
}

func TestConvertMessagesEmptyToolContent(t *testing.T) {
	out := convertMessages([]agent.Message{
		{Role: agent.RoleTool, ToolCallID: "c1"},
	})
	if out[0].Content != "{}" {
		t.Fatalf("empty tool content = %q, want {}", out[0].Content)
	}
}

func TestConvertTools(t *testing.T) {
	tools := []agent.ToolSchema{
		{
			Name:        "web_fetch",
			Description: "Fetch a URL",
			JSONSchema:  `{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}`,
		},
	}
	out, err := convertTools(tools)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Function.Name != "web_fetch" {
		t.Fatalf("tools = %+v", out)
	}
	params, ok := out[0].Function.Parameters.(map[string]any)
	if !ok || params["type"] != "object" {
		t.Fatalf("parameters = %+v", out[0].Function.Parameters)
	}
}

func TestOpenAISynthesizedIDsUniquePerClient(t *testing.T) {
	c := NewOpenAIClient("openai", "k", "")
	a := c.nextCallID()
	b := c.nextCallID()
	if a == b {
		t.Fatalf("synthesized ids collide: %q", a)
	}
}

func TestConvertToolsRejectsBadSchema(t *testing.T) {
	_, err := convertTools([]agent.ToolSchema{{Name: "broken", JSONSchema: `{not json`}})
	if err == nil {
		t.Fatal("expected error for malformed schema")
	}
}
