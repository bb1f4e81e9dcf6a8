package agent

import "fmt"

// Preflight structurally checks a message sequence without mutating it.
// It reports duplicate tool-call ids, assistant tool_calls with no matching
// result, and tool results with no matching call.
func Preflight(msgs []Message) []string {
	var diags []string

	seen := make(map[string]bool)
	called := make(map[string]bool)
	answered := make(map[string]bool)

	for i, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			for _, c := range m.ToolCalls {
				if seen[c.ID] {
					diags = append(diags, fmt.Sprintf("message %d: duplicate tool_call id %q", i, c.ID))
				}
				seen[c.ID] = true
				called[c.ID] = true
			}
		case RoleTool:
			if !called[m.ToolCallID] {
				diags = append(diags, fmt.Sprintf("message %d: tool result %q has no preceding tool_call", i, m.ToolCallID))
			}
			answered[m.ToolCallID] = true
		}
	}
	for i, m := range msgs {
		if m.Role != RoleAssistant {
			continue
		}
		for _, c := range m.ToolCalls {
			if !answered[c.ID] {
				diags = append(diags, fmt.Sprintf("message %d: tool_call %q has no tool result", i, c.ID))
			}
		}
	}
	return diags
}

// PairFix returns a new sequence satisfying the pairing invariants:
// tool results whose id no preceding assistant requested are dropped, and an
// assistant's tool_calls are stripped when none of its ids has a result (the
// assistant text is preserved). PairFix is idempotent.
func PairFix(msgs []Message) []Message {
	answered := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == RoleTool {
			answered[m.ToolCallID] = true
		}
	}

	out := make([]Message, 0, len(msgs))
	requested := make(map[string]bool)
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			if len(m.ToolCalls) > 0 {
				any := false
				for _, c := range m.ToolCalls {
					if answered[c.ID] {
						any = true
						break
					}
				}
				if !any {
					m.ToolCalls = nil
				} else {
					for _, c := range m.ToolCalls {
						requested[c.ID] = true
					}
				}
			}
			out = append(out, m)
		case RoleTool:
			if !requested[m.ToolCallID] {
				continue
			}
			out = append(out, m)
		default:
			out = append(out, m)
		}
	}
	return out
}
