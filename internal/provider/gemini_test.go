package provider

import (
	"testing"

	"google.golang.org/genai"

	"github.com/clio-agent/clio/internal/agent"
)

func TestConvertGeminiContents(t *testing.T) {
	msgs := []agent.Message{
		{Role: agent.RoleSystem, Content: "be terse"},
		{Role: agent.RoleUser, Content: "read the file"},
		{
			Role: agent.RoleAssistant,
			ToolCalls: []agent.ToolCall{
				{ID: "c1", Name: "file_operations", Args: map[string]any{"operation": "read_file", "path": "main.go"}},
			},
		},
		{Role: agent.RoleTool, ToolCallID: "c1", Content: `{"content":"package main"}`},
	}
	out := convertGeminiContents(msgs)

	// The system message travels in the generation config, not the contents.
	if len(out) != 3 {
		t.Fatalf("got %d contents", len(out))
	}
	if out[0].Role != genai.RoleUser {
		t.Fatalf("user role = %s", out[0].Role)
	}

	if out[1].Role != genai.RoleModel {
		t.Fatalf("assistant role = %s", out[1].Role)
	}
	fc := out[1].Parts[0].FunctionCall
	if fc == nil || fc.ID != "c1" || fc.Name != "file_operations" {
		t.Fatalf("function call = %+v", out[1].Parts[0])
	}

	fr := out[2].Parts[0].FunctionResponse
	if fr == nil || fr.ID != "c1" {
		t.Fatalf("function response = %+v", out[2].Parts[0])
	}
	// The response name is resolved from the requesting call.
	if fr.Name != "file_operations" {
		t.Fatalf("response name = %q", fr.Name)
	}
	if fr.Response["content"] != "package main" {
		t.Fatalf("response payload = %v", fr.Response)
	}
}

func TestConvertGeminiContentsWrapsPlainText(t *testing.T) {
	out := convertGeminiContents([]agent.Message{
		{Role: agent.RoleTool, ToolCallID: "c1", Content: "not json at all"},
	})
	fr := out[0].Parts[0].FunctionResponse
	if fr == nil || fr.Response["result"] != "not json at all" {
		t.Fatalf("plain text result not wrapped: %+v", fr)
	}
}

func TestConvertGeminiSchema(t *testing.T) {
	schema := convertGeminiSchema(map[string]any{
		"type":        "object",
		"description": "args",
		"properties": map[string]any{
			"operation": map[string]any{"type": "string", "enum": []any{"add", "complete"}},
			"tags":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"operation"},
	})

	if schema.Type != genai.TypeObject {
		t.Fatalf("type = %s", schema.Type)
	}
	op := schema.Properties["operation"]
	if op == nil || op.Type != genai.TypeString || len(op.Enum) != 2 {
		t.Fatalf("operation schema = %+v", op)
	}
	tags := schema.Properties["tags"]
	if tags == nil || tags.Items == nil || tags.Items.Type != genai.TypeString {
		t.Fatalf("tags schema = %+v", tags)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "operation" {
		t.Fatalf("required = %v", schema.Required)
	}
}

func TestGeminiSynthesizedIDsUniquePerClient(t *testing.T) {
	// The API often omits FunctionCall ids. Two iterations calling the same
	// tool must still get distinct ids, or the duplicate-id check downstream
	// rejects the second call.
	c := &GeminiClient{}
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		id := c.nextCallID("echo")
		if seen[id] {
			t.Fatalf("duplicate synthesized id %q", id)
		}
		seen[id] = true
	}
}

func TestConvertGeminiTools(t *testing.T) {
	out := convertGeminiTools([]agent.ToolSchema{
		{Name: "web_fetch", Description: "Fetch a URL", JSONSchema: `{"type":"object"}`},
		{Name: "broken", JSONSchema: `{not json`},
	})
	if len(out) != 1 {
		t.Fatalf("tools = %+v", out)
	}
	decls := out[0].FunctionDeclarations
	if len(decls) != 1 || decls[0].Name != "web_fetch" {
		t.Fatalf("declarations = %+v", decls)
	}
}
