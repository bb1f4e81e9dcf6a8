package agent

import (
	"context"

	"github.com/clio-agent/clio/internal/jsonutil"
)

const (
	// DefaultTokenRatio is the rolling chars-per-token estimate a fresh
	// session starts with.
	DefaultTokenRatio = 2.5

	responseBufferTokens   = 8000
	minEffectiveTokens     = 1000
	toolSchemaFallbackCost = 600
	toolMessageOverhead    = 50
)

// Compressor produces a synthetic assistant summary of dropped history. The
// preserved first-user task is passed as context. Implementations report
// compressed token counts in _metadata, but those are advisory only.
type Compressor interface {
	Compress(ctx context.Context, dropped []Message, originalTask string) (Message, error)
}

// unit is a truncation atom: either a single message, or an assistant with
// tool_calls together with the contiguous tool results that answer it. Units
// are indivisible during truncation.
type unit struct {
	msgs   []Message
	tokens int
	orphan bool // lone tool result (from a prior truncation); always dropped
}

func (u unit) pinned() bool {
	for _, m := range u.msgs {
		if m.Pinned() {
			return true
		}
	}
	return false
}

// estimateMessageTokens prices one message with the session's chars/token
// ratio: content length, canonical JSON of each tool call, and a fixed
// overhead for tool-role messages.
func estimateMessageTokens(m Message, ratio float64) int {
	if ratio <= 0 {
		ratio = DefaultTokenRatio
	}
	tokens := ceilDiv(len(m.Content), ratio)
	for _, c := range m.ToolCalls {
		tokens += ceilDiv(len(c.ArgsJSON())+len(c.Name), ratio)
	}
	if m.Role == RoleTool {
		tokens += toolMessageOverhead
	}
	return tokens
}

// EstimateTokens prices a whole message sequence.
func EstimateTokens(msgs []Message, ratio float64) int {
	total := 0
	for _, m := range msgs {
		total += estimateMessageTokens(m, ratio)
	}
	return total
}

// estimateToolTokens prices the tool schemas sent with every request, using
// the canonical OpenAI-style encoding. A schema that fails to encode costs
// the fallback of 600 tokens.
func estimateToolTokens(tools []ToolSchema, ratio float64) int {
	if ratio <= 0 {
		ratio = DefaultTokenRatio
	}
	total := 0
	for _, t := range tools {
		encoded, err := jsonutil.MarshalString(map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  rawJSON(t.JSONSchema),
			},
		})
		if err != nil {
			total += toolSchemaFallbackCost
			continue
		}
		total += ceilDiv(len(encoded), ratio)
	}
	return total
}

func ceilDiv(n int, ratio float64) int {
	if n <= 0 {
		return 0
	}
	est := int(float64(n) / ratio)
	if float64(est)*ratio < float64(n) {
		est++
	}
	return est
}

// rawJSON lets a pre-encoded schema embed without double escaping.
type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) { return []byte(r), nil }

// groupUnits splits messages into truncation atoms. An assistant with
// tool_calls absorbs the contiguous run of tool results that follows it; a
// tool result with no owner becomes an orphan unit.
func groupUnits(msgs []Message, ratio float64) []unit {
	var units []unit
	i := 0
	for i < len(msgs) {
		m := msgs[i]
		if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
			group := []Message{m}
			wanted := make(map[string]bool, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				wanted[c.ID] = true
			}
			j := i + 1
			for j < len(msgs) && msgs[j].Role == RoleTool && wanted[msgs[j].ToolCallID] {
				group = append(group, msgs[j])
				j++
			}
			units = append(units, unit{msgs: group, tokens: EstimateTokens(group, ratio)})
			i = j
			continue
		}
		u := unit{msgs: []Message{m}, tokens: EstimateTokens([]Message{m}, ratio)}
		if m.Role == RoleTool {
			u.orphan = true
		}
		units = append(units, u)
		i++
	}
	return units
}

// ValidateAndTruncate prepares the outgoing message array for one provider
// request. Under budget it only pair-fixes; over budget it keeps the leading
// system unit and every pinned unit verbatim (the first pinned user message
// ahead of the rest of history), fills the remaining budget with the newest
// units, and compresses everything dropped into one synthetic assistant
// summary.
func ValidateAndTruncate(ctx context.Context, msgs []Message, caps Capability, tools []ToolSchema, ratio float64, comp Compressor) []Message {
	if ratio <= 0 {
		ratio = DefaultTokenRatio
	}

	maxPrompt := caps.MaxPromptTokens
	if maxPrompt <= 0 {
		maxPrompt = defaultPromptTokens
	}

	effective := maxPrompt - estimateToolTokens(tools, ratio) - maxPrompt/10 - responseBufferTokens
	if effective < minEffectiveTokens {
		effective = minEffectiveTokens
	}

	msgs = PairFix(msgs)
	if EstimateTokens(msgs, ratio) <= effective {
		return msgs
	}

	units := groupUnits(msgs, ratio)

	// Extract the leading system unit and the first pinned user unit.
	var system, firstUser *unit
	var rest []unit
	for i := range units {
		u := units[i]
		if system == nil && i == 0 && len(u.msgs) == 1 && u.msgs[0].Role == RoleSystem {
			system = &units[i]
			continue
		}
		if firstUser == nil && len(u.msgs) == 1 && u.msgs[0].Role == RoleUser && u.msgs[0].Pinned() {
			firstUser = &units[i]
			continue
		}
		rest = append(rest, u)
	}

	budget := effective
	if system != nil {
		budget -= system.tokens
	}
	if firstUser != nil {
		budget -= firstUser.tokens
	}

	// Walk newest to oldest, keeping units that fit. A unit that would
	// exceed the budget is dropped in full; orphans are always dropped and
	// pinned units are always kept, budget or not.
	kept := make([]bool, len(rest))
	running := 0
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i].orphan {
			continue
		}
		if rest[i].pinned() {
			running += rest[i].tokens
			kept[i] = true
			continue
		}
		if running+rest[i].tokens > budget {
			continue
		}
		running += rest[i].tokens
		kept[i] = true
	}

	var dropped []Message
	for i, u := range rest {
		if !kept[i] && !u.orphan {
			dropped = append(dropped, u.msgs...)
		}
	}

	var out []Message
	if system != nil {
		out = append(out, system.msgs...)
	}
	if len(dropped) > 0 && comp != nil {
		task := ""
		if firstUser != nil {
			task = firstUser.msgs[0].Content
		}
		if summary, err := comp.Compress(ctx, dropped, task); err == nil {
			out = append(out, summary)
		}
		// On compression failure the dropped units are discarded silently.
	}
	if firstUser != nil {
		out = append(out, firstUser.msgs...)
	}
	for i, u := range rest {
		if kept[i] {
			out = append(out, u.msgs...)
		}
	}
	return PairFix(out)
}
