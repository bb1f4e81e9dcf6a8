package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/clio-agent/clio/internal/jsonutil"
)

// Role identifies the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ImportancePinned marks messages that truncation must never drop.
const ImportancePinned = 10.0

// Message is the provider-agnostic chat message. Field names and JSON tags
// match the session file format, so sessions round-trip without a separate
// persistence shape.
type Message struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Importance float64        `json:"_importance,omitempty"`
	Metadata   map[string]any `json:"_metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp,omitempty"`
}

// Validate checks the structural rules that hold for every message.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
	default:
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	if m.Role == RoleTool && m.ToolCallID == "" {
		return fmt.Errorf("tool message missing tool_call_id")
	}
	if m.Role != RoleAssistant && len(m.ToolCalls) > 0 {
		return fmt.Errorf("%s message carries tool_calls", m.Role)
	}
	return nil
}

// Pinned reports whether truncation must preserve this message verbatim.
func (m Message) Pinned() bool { return m.Importance >= ImportancePinned }

// ToolCall is a function invocation requested by the assistant.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"arguments"`
}

// ArgsJSON returns the canonical textual form of the arguments. Providers and
// the token estimator both rely on this being deterministic for a given map.
func (c ToolCall) ArgsJSON() string {
	s, err := jsonutil.MarshalString(c.Args)
	if err != nil {
		return "{}"
	}
	return s
}

// Usage holds token accounting reported by a provider.
type Usage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Add accumulates usage across iterations of a turn.
func (u *Usage) Add(o Usage) {
	u.Prompt += o.Prompt
	u.Completion += o.Completion
	u.Total += o.Total
}

// StopReason is the provider-reported reason a response ended.
type StopReason string

const (
	StopEnd           StopReason = "stop"
	StopToolCalls     StopReason = "tool_calls"
	StopLength        StopReason = "length"
	StopContentFilter StopReason = "content_filter"
	StopError         StopReason = "error"
)

// EventType tags a StreamEvent.
type EventType string

const (
	EventText      EventType = "text"
	EventThinking  EventType = "thinking"
	EventToolStart EventType = "tool_start"
	EventToolArgs  EventType = "tool_args"
	EventToolEnd   EventType = "tool_end"
	EventUsage     EventType = "usage"
	EventStop      EventType = "stop"
)

// StreamEvent is one canonical event decoded from a provider stream.
//
// Between a tool_start and the matching tool_end, tool_args fragments
// concatenate to the serialized arguments blob. Providers that deliver a
// complete call in one chunk emit a single tool_end carrying Name and
// Arguments; the accumulator handles both shapes.
type StreamEvent struct {
	Type       EventType
	Text       string     // text, thinking
	ID         string     // tool_start, tool_args, tool_end
	Name       string     // tool_start, tool_end
	Fragment   string     // tool_args
	Arguments  string     // tool_end: complete serialized arguments (optional)
	Usage      Usage      // usage
	StopReason StopReason // stop
}

// ChatOptions carries the knobs forwarded to a provider.
type ChatOptions struct {
	Temperature     float32
	MaxOutputTokens int
}

// Client is the uniform provider surface the orchestrator drives. The stream
// terminates when the event channel closes; the error channel then yields nil
// on success or the terminal error.
type Client interface {
	Name() string
	SupportsStreaming() bool
	SupportsTools() bool
	Stream(ctx context.Context, model string, msgs []Message, tools []ToolSchema, opts ChatOptions) (<-chan StreamEvent, <-chan error)
}

// Conversation is the opaque session handle the orchestrator mutates. The
// concrete type lives in the session package; passing the handle breaks the
// orchestrator/session cycle.
type Conversation interface {
	Messages() []Message
	Append(Message)
	Save() error
	TokenRatio() float64
	// ObserveUsage refines the rolling chars-per-token ratio from a
	// provider-reported prompt token count.
	ObserveUsage(promptChars, promptTokens int)
}

// ToolRunner executes one tool call and returns the resulting tool message.
// Failures are carried in the message content, never as a Go error, so the
// loop can continue and the model can react.
type ToolRunner interface {
	Run(ctx context.Context, call ToolCall) Message
}

// StatsSampler records a process-stats sample for a phase label.
type StatsSampler interface {
	Capture(phase string)
}
