package agent

import (
	"reflect"
	"strings"
	"testing"
)

func asst(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

func toolMsg(id, content string) Message {
	return Message{Role: RoleTool, ToolCallID: id, Content: content}
}

func TestPreflightClean(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
		asst("", ToolCall{ID: "c1", Name: "file_operations"}),
		toolMsg("c1", "ok"),
		asst("done"),
	}
	if diags := Preflight(msgs); len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
}

func TestPreflightDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		msgs []Message
		want string
	}{
		{
			name: "duplicate tool_call id",
			msgs: []Message{
				asst("", ToolCall{ID: "c1", Name: "a"}),
				toolMsg("c1", "ok"),
				asst("", ToolCall{ID: "c1", Name: "b"}),
				toolMsg("c1", "ok"),
			},
			want: `duplicate tool_call id "c1"`,
		},
		{
			name: "unanswered tool_call",
			msgs: []Message{
				asst("", ToolCall{ID: "c1", Name: "a"}),
			},
			want: `tool_call "c1" has no tool result`,
		},
		{
			name: "orphan tool result",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
				toolMsg("c9", "stale"),
			},
			want: `tool result "c9" has no preceding tool_call`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := Preflight(tt.msgs)
			if len(diags) == 0 {
				t.Fatal("expected diagnostics, got none")
			}
			found := false
			for _, d := range diags {
				if strings.Contains(d, tt.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("diagnostics %v missing %q", diags, tt.want)
			}
		})
	}
}

func TestPairFixDropsOrphanResults(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "hi"},
		toolMsg("c9", "stale"),
		asst("answer"),
	}
	fixed := PairFix(msgs)
	if len(fixed) != 2 {
		t.Fatalf("expected 2 messages, got %d: %v", len(fixed), fixed)
	}
	for _, m := range fixed {
		if m.Role == RoleTool {
			t.Fatal("orphan tool result survived")
		}
	}
}

func TestPairFixStripsFullyUnansweredCalls(t *testing.T) {
	msgs := []Message{
		asst("let me check", ToolCall{ID: "c1", Name: "a"}, ToolCall{ID: "c2", Name: "b"}),
	}
	fixed := PairFix(msgs)
	if len(fixed) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fixed))
	}
	if len(fixed[0].ToolCalls) != 0 {
		t.Fatalf("unanswered tool_calls not stripped: %v", fixed[0].ToolCalls)
	}
	if fixed[0].Content != "let me check" {
		t.Fatalf("assistant text lost: %q", fixed[0].Content)
	}
}

func TestPairFixKeepsPartiallyAnsweredCalls(t *testing.T) {
	// One of two calls has a result; the assistant keeps both calls and
	// the answered result stays paired.
	msgs := []Message{
		asst("", ToolCall{ID: "c1", Name: "a"}, ToolCall{ID: "c2", Name: "b"}),
		toolMsg("c1", "ok"),
	}
	fixed := PairFix(msgs)
	if len(fixed) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(fixed))
	}
	if len(fixed[0].ToolCalls) != 2 {
		t.Fatalf("expected both calls kept, got %v", fixed[0].ToolCalls)
	}
	if fixed[1].ToolCallID != "c1" {
		t.Fatalf("answered result dropped: %v", fixed[1])
	}
}

func TestPairFixResultBeforeCallIsDropped(t *testing.T) {
	// A result that precedes its requesting assistant is not a valid pair.
	msgs := []Message{
		toolMsg("c1", "early"),
		asst("", ToolCall{ID: "c1", Name: "a"}),
		toolMsg("c1", "ok"),
	}
	fixed := PairFix(msgs)
	if fixed[0].Role == RoleTool {
		t.Fatalf("out-of-order result kept: %v", fixed[0])
	}
	if len(fixed) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(fixed))
	}
}

func TestPairFixIdempotent(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		toolMsg("x", "stale"),
		asst("thinking", ToolCall{ID: "c1", Name: "a"}),
		toolMsg("c1", "ok"),
		asst("", ToolCall{ID: "c2", Name: "b"}),
	}
	once := PairFix(msgs)
	twice := PairFix(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
	if diags := Preflight(once); len(diags) != 0 {
		t.Fatalf("fixed sequence still has diagnostics: %v", diags)
	}
}
