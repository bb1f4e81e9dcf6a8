package agent

import (
	"strings"
	"time"

	"github.com/clio-agent/clio/internal/jsonutil"
)

// accumulator assembles one assistant message from a stream of events.
// Tool argument fragments are coalesced by id between tool_start and the
// matching tool_end; calls that never see a tool_end are discarded, which
// keeps a cancelled stream from producing an unterminated tool_call.
type accumulator struct {
	text       strings.Builder
	thinking   strings.Builder
	order      []string
	calls      map[string]*partialCall
	usage      Usage
	stopReason StopReason
}

type partialCall struct {
	id       string
	name     string
	args     strings.Builder
	complete bool
}

func newAccumulator() *accumulator {
	return &accumulator{calls: make(map[string]*partialCall)}
}

func (a *accumulator) feed(ev StreamEvent) {
	switch ev.Type {
	case EventText:
		a.text.WriteString(ev.Text)
	case EventThinking:
		a.thinking.WriteString(ev.Text)
	case EventToolStart:
		a.call(ev.ID).name = ev.Name
	case EventToolArgs:
		a.call(ev.ID).args.WriteString(ev.Fragment)
	case EventToolEnd:
		c := a.call(ev.ID)
		if ev.Name != "" {
			c.name = ev.Name
		}
		if ev.Arguments != "" {
			c.args.Reset()
			c.args.WriteString(ev.Arguments)
		}
		c.complete = true
	case EventUsage:
		a.usage = ev.Usage
	case EventStop:
		a.stopReason = ev.StopReason
	}
}

func (a *accumulator) call(id string) *partialCall {
	c, ok := a.calls[id]
	if !ok {
		c = &partialCall{id: id}
		a.calls[id] = c
		a.order = append(a.order, id)
	}
	return c
}

// toolCalls returns the completed calls in emission order. Argument blobs
// that fail to decode yield an empty args map; the executor's schema
// validation will surface the problem to the model.
func (a *accumulator) toolCalls() []ToolCall {
	var out []ToolCall
	for _, id := range a.order {
		c := a.calls[id]
		if !c.complete || c.name == "" {
			continue
		}
		args := make(map[string]any)
		if raw := strings.TrimSpace(c.args.String()); raw != "" {
			if err := jsonutil.Unmarshal([]byte(raw), &args); err != nil {
				args = make(map[string]any)
			}
		}
		out = append(out, ToolCall{ID: c.id, Name: c.name, Args: args})
	}
	return out
}

// message builds the assistant message for this stream.
func (a *accumulator) message() Message {
	return Message{
		Role:      RoleAssistant,
		Content:   jsonutil.Sanitize(a.text.String()),
		ToolCalls: a.toolCalls(),
		Timestamp: time.Now().UTC(),
	}
}
