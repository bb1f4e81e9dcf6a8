package agent

// EventSink receives user-visible turn events. The terminal renderer is the
// production implementation; it lives outside the core.
type EventSink interface {
	OnText(delta string)
	OnThinking(delta string)
	OnToolCall(call ToolCall)
	OnToolResult(call ToolCall, content string, failed bool)
	OnNotice(text string)
	OnDone(outcome Outcome, usage Usage)
	OnError(err error)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) OnText(string)                       {}
func (NopSink) OnThinking(string)                   {}
func (NopSink) OnToolCall(ToolCall)                 {}
func (NopSink) OnToolResult(ToolCall, string, bool) {}
func (NopSink) OnNotice(string)                     {}
func (NopSink) OnDone(Outcome, Usage)               {}
func (NopSink) OnError(error)                       {}
