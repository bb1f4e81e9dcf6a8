package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/clio-agent/clio/internal/agent"
)

// renderer is the terminal implementation of agent.EventSink.
type renderer struct {
	out        io.Writer
	inText     bool
	inThinking bool
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out}
}

func (r *renderer) OnText(delta string) {
	if r.inThinking {
		fmt.Fprint(r.out, "\x1b[0m\n")
		r.inThinking = false
	}
	fmt.Fprint(r.out, delta)
	r.inText = true
}

func (r *renderer) OnThinking(delta string) {
	if !r.inThinking {
		fmt.Fprint(r.out, "\x1b[2m") // dim
		r.inThinking = true
	}
	fmt.Fprint(r.out, delta)
}

func (r *renderer) OnToolCall(call agent.ToolCall) {
	r.breakLine()
	fmt.Fprintf(r.out, "→ %s %s\n", call.Name, summarizeArgs(call))
}

func (r *renderer) OnToolResult(call agent.ToolCall, content string, failed bool) {
	if failed {
		fmt.Fprintf(r.out, "  ✗ %s\n", firstLine(content))
		return
	}
	fmt.Fprintf(r.out, "  ✓ %s\n", firstLine(content))
}

func (r *renderer) OnNotice(text string) {
	r.breakLine()
	fmt.Fprintf(r.out, "[%s]\n", text)
}

func (r *renderer) OnDone(outcome agent.Outcome, usage agent.Usage) {
	r.breakLine()
	if usage.Total > 0 {
		fmt.Fprintf(r.out, "\x1b[2m[%s | tokens: %d prompt + %d completion = %d]\x1b[0m\n",
			outcome, usage.Prompt, usage.Completion, usage.Total)
	}
}

func (r *renderer) OnError(err error) {
	r.breakLine()
	fmt.Fprintf(r.out, "[error: %v]\n", err)
}

func (r *renderer) breakLine() {
	if r.inThinking {
		fmt.Fprint(r.out, "\x1b[0m")
		r.inThinking = false
	}
	if r.inText {
		fmt.Fprintln(r.out)
		r.inText = false
	}
}

// summarizeArgs renders a compact single-line view of the call arguments.
func summarizeArgs(call agent.ToolCall) string {
	if len(call.Args) == 0 {
		return ""
	}
	data, err := json.Marshal(call.Args)
	if err != nil {
		return ""
	}
	s := string(data)
	if len(s) > 120 {
		s = s[:120] + "…"
	}
	return s
}

func firstLine(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 160 {
		line = line[:160] + "…"
	}
	return line
}
