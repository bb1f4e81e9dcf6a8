package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// tinyCaps forces the minimum effective budget of 1000 tokens, which at the
// default ratio is 2500 characters of history.
var tinyCaps = Capability{MaxPromptTokens: 1000, SupportsTools: true, SupportsStreaming: true}

type fakeCompressor struct {
	dropped []Message
	task    string
	err     error
	calls   int
}

func (f *fakeCompressor) Compress(_ context.Context, dropped []Message, task string) (Message, error) {
	f.calls++
	f.dropped = dropped
	f.task = task
	if f.err != nil {
		return Message{}, f.err
	}
	return Message{Role: RoleAssistant, Content: "[Earlier conversation, compressed]\nsummary"}, nil
}

func pinnedUser(content string) Message {
	return Message{Role: RoleUser, Content: content, Importance: ImportancePinned}
}

func TestEstimateTokensCeils(t *testing.T) {
	tests := []struct {
		chars int
		ratio float64
		want  int
	}{
		{0, 2.5, 0},
		{1, 2.5, 1},
		{5, 2.5, 2},
		{6, 2.5, 3},
		{100, 4.0, 25},
	}
	for _, tt := range tests {
		m := Message{Role: RoleUser, Content: strings.Repeat("x", tt.chars)}
		if got := EstimateTokens([]Message{m}, tt.ratio); got != tt.want {
			t.Errorf("EstimateTokens(%d chars, ratio %.1f) = %d, want %d", tt.chars, tt.ratio, got, tt.want)
		}
	}
}

func TestEstimateTokensToolOverhead(t *testing.T) {
	m := toolMsg("c1", "ok")
	got := EstimateTokens([]Message{m}, 2.5)
	if got != toolMessageOverhead+1 {
		t.Fatalf("tool message tokens = %d, want %d", got, toolMessageOverhead+1)
	}
}

func TestTruncateUnderBudgetPassesThrough(t *testing.T) {
	comp := &fakeCompressor{}
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		pinnedUser("do the thing"),
		asst("done"),
	}
	out := ValidateAndTruncate(context.Background(), msgs, tinyCaps, nil, 2.5, comp)
	if len(out) != 3 {
		t.Fatalf("expected passthrough of 3 messages, got %d", len(out))
	}
	if comp.calls != 0 {
		t.Fatal("compressor invoked under budget")
	}
}

func TestTruncateKeepsSystemAndPinnedUser(t *testing.T) {
	comp := &fakeCompressor{}
	big := strings.Repeat("x", 4000)
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		pinnedUser("refactor the parser"),
		asst(big),
		{Role: RoleUser, Content: "next"},
		asst("recent answer"),
	}
	out := ValidateAndTruncate(context.Background(), msgs, tinyCaps, nil, 2.5, comp)

	if out[0].Role != RoleSystem || out[0].Content != "sys" {
		t.Fatalf("system message not first: %v", out[0])
	}
	foundPinned, foundBig := false, false
	for _, m := range out {
		if m.Role == RoleUser && m.Content == "refactor the parser" {
			foundPinned = true
		}
		if m.Content == big {
			foundBig = true
		}
	}
	if !foundPinned {
		t.Fatal("pinned first user message dropped")
	}
	if foundBig {
		t.Fatal("oversized old message survived truncation")
	}
	if comp.calls != 1 {
		t.Fatalf("compressor calls = %d, want 1", comp.calls)
	}
	if comp.task != "refactor the parser" {
		t.Fatalf("original task = %q", comp.task)
	}
	if len(comp.dropped) == 0 || comp.dropped[0].Content != big {
		t.Fatalf("compressor did not receive the dropped messages: %v", comp.dropped)
	}
}

func TestTruncateKeepsLaterPinnedMessages(t *testing.T) {
	// Pinned messages survive truncation wherever they sit in history, not
	// just the first user turn.
	comp := &fakeCompressor{}
	big := strings.Repeat("x", 4000)
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		pinnedUser("refactor the parser"),
		asst(big),
		pinnedUser("never touch the vendored tree"),
		asst(big),
		asst("recent answer"),
	}
	out := ValidateAndTruncate(context.Background(), msgs, tinyCaps, nil, 2.5, comp)
	found := false
	for _, m := range out {
		if m.Content == "never touch the vendored tree" {
			found = true
		}
		if m.Content == big {
			t.Fatal("oversized unpinned message survived truncation")
		}
	}
	if !found {
		t.Fatal("later pinned user message dropped")
	}
}

func TestTruncateSummaryFollowsSystem(t *testing.T) {
	comp := &fakeCompressor{}
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		pinnedUser("task"),
		asst(strings.Repeat("x", 4000)),
		asst("recent"),
	}
	out := ValidateAndTruncate(context.Background(), msgs, tinyCaps, nil, 2.5, comp)
	if len(out) < 2 {
		t.Fatalf("too few messages: %v", out)
	}
	if !strings.HasPrefix(out[1].Content, "[Earlier conversation, compressed]") {
		t.Fatalf("summary not directly after system: %q", out[1].Content)
	}
}

func TestTruncateUnitsAreIndivisible(t *testing.T) {
	// The assistant-with-calls unit and its results either all survive or
	// all drop; a surviving half-pair would violate the pairing invariants.
	comp := &fakeCompressor{}
	bigResult := strings.Repeat("y", 4000)
	msgs := []Message{
		pinnedUser("task"),
		asst("", ToolCall{ID: "c1", Name: "run_command"}),
		toolMsg("c1", bigResult),
		{Role: RoleUser, Content: "and now?"},
		asst("recent"),
	}
	out := ValidateAndTruncate(context.Background(), msgs, tinyCaps, nil, 2.5, comp)
	hasCall, hasResult := false, false
	for _, m := range out {
		if len(m.ToolCalls) > 0 {
			hasCall = true
		}
		if m.Role == RoleTool {
			hasResult = true
		}
	}
	if hasCall != hasResult {
		t.Fatalf("tool pair split by truncation: call=%v result=%v", hasCall, hasResult)
	}
	if diags := Preflight(out); len(diags) != 0 {
		t.Fatalf("truncated output fails preflight: %v", diags)
	}
}

func TestTruncateDropsOrphanResults(t *testing.T) {
	msgs := []Message{
		pinnedUser("task"),
		toolMsg("stale", strings.Repeat("z", 10)),
		asst("fine"),
	}
	out := ValidateAndTruncate(context.Background(), msgs, tinyCaps, nil, 2.5, nil)
	for _, m := range out {
		if m.Role == RoleTool {
			t.Fatalf("orphan tool result survived: %v", m)
		}
	}
}

func TestTruncateCompressionFailureDropsSilently(t *testing.T) {
	comp := &fakeCompressor{err: fmt.Errorf("model unavailable")}
	big := strings.Repeat("x", 4000)
	msgs := []Message{
		pinnedUser("task"),
		asst(big),
		asst("recent"),
	}
	out := ValidateAndTruncate(context.Background(), msgs, tinyCaps, nil, 2.5, comp)
	for _, m := range out {
		if m.Content == big {
			t.Fatal("dropped message reappeared after compression failure")
		}
		if strings.Contains(m.Content, "compressed") {
			t.Fatal("summary inserted despite compression failure")
		}
	}
	if comp.calls != 1 {
		t.Fatalf("compressor calls = %d, want 1", comp.calls)
	}
}

func TestTruncateNoCompressorStillBudgets(t *testing.T) {
	big := strings.Repeat("x", 4000)
	msgs := []Message{
		pinnedUser("task"),
		asst(big),
		asst("recent"),
	}
	out := ValidateAndTruncate(context.Background(), msgs, tinyCaps, nil, 2.5, nil)
	if EstimateTokens(out, 2.5) > 1000 {
		t.Fatalf("output over budget: %d tokens", EstimateTokens(out, 2.5))
	}
}

func TestGroupUnitsOwnership(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "hi"},
		asst("", ToolCall{ID: "c1", Name: "a"}, ToolCall{ID: "c2", Name: "b"}),
		toolMsg("c1", "r1"),
		toolMsg("c2", "r2"),
		toolMsg("c3", "stray"),
		asst("done"),
	}
	units := groupUnits(msgs, 2.5)
	if len(units) != 4 {
		t.Fatalf("expected 4 units, got %d", len(units))
	}
	if len(units[1].msgs) != 3 {
		t.Fatalf("assistant unit should absorb its 2 results, got %d messages", len(units[1].msgs))
	}
	if !units[2].orphan {
		t.Fatalf("stray result not marked orphan: %+v", units[2])
	}
}
