package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Outcome is the terminal state of one turn.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeCancelled      Outcome = "cancelled"
	OutcomeIterationLimit Outcome = "iteration_limit_reached"
	OutcomeFatal          Outcome = "fatal"
)

// DefaultMaxIterations bounds the model/tool loop within one turn.
const DefaultMaxIterations = 25

// Orchestrator drives a conversation through repeated model/tool iterations
// until the model answers without tool calls or a stop condition fires.
type Orchestrator struct {
	Client        Client
	Model         string
	Tools         Registry
	Runner        ToolRunner
	Compressor    Compressor
	Caps          Capability
	MaxIterations int
	Retry         RetryPolicy
	Options       ChatOptions
	Sink          EventSink
	Stats         StatsSampler
	Log           zerolog.Logger
}

// RunTurn appends the user input and iterates model/tool rounds. The error is
// non-nil only for the fatal outcome. The session stays consistent with the
// pairing invariants on every exit path, including cancellation.
func (o *Orchestrator) RunTurn(ctx context.Context, conv Conversation, userText string) (Outcome, error) {
	sink := o.Sink
	if sink == nil {
		sink = NopSink{}
	}
	maxIter := o.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	conv.Append(Message{
		Role:       RoleUser,
		Content:    userText,
		Importance: ImportancePinned,
		Timestamp:  time.Now().UTC(),
	})
	if err := conv.Save(); err != nil {
		return OutcomeFatal, fmt.Errorf("persisting user message: %w", err)
	}

	var totals Usage
	schemas := o.Tools.Schemas()
	if !o.Caps.SupportsTools {
		schemas = nil
	}

	for iteration := 0; iteration < maxIter; iteration++ {
		if o.Stats != nil {
			o.Stats.Capture("iteration_start")
		}
		if err := ctx.Err(); err != nil {
			sink.OnDone(OutcomeCancelled, totals)
			return OutcomeCancelled, nil
		}

		outgoing := ValidateAndTruncate(ctx, conv.Messages(), o.Caps, schemas, conv.TokenRatio(), o.Compressor)
		if diags := Preflight(outgoing); len(diags) > 0 {
			// Repaired before send; kept at WARNING for later inspection.
			o.Log.Warn().Strs("diagnostics", diags).Msg("message preflight found pairing problems")
			outgoing = PairFix(outgoing)
		}

		acc, err := o.streamOnce(ctx, outgoing, schemas, sink)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				sink.OnDone(OutcomeCancelled, totals)
				return OutcomeCancelled, nil
			}
			sink.OnError(err)
			return OutcomeFatal, err
		}
		totals.Add(acc.usage)
		if acc.usage.Prompt > 0 {
			conv.ObserveUsage(promptChars(outgoing), acc.usage.Prompt)
		}

		assistant := acc.message()
		cancelled := ctx.Err() != nil
		if cancelled && assistant.Content == "" && len(assistant.ToolCalls) == 0 {
			sink.OnDone(OutcomeCancelled, totals)
			return OutcomeCancelled, nil
		}
		conv.Append(assistant)

		o.Log.Debug().
			Int("iteration", iteration).
			Int("tool_calls", len(assistant.ToolCalls)).
			Str("stop_reason", string(acc.stopReason)).
			Int("prompt_tokens", acc.usage.Prompt).
			Int("completion_tokens", acc.usage.Completion).
			Msg("model iteration finished")

		if len(assistant.ToolCalls) == 0 {
			if err := conv.Save(); err != nil {
				return OutcomeFatal, fmt.Errorf("persisting assistant message: %w", err)
			}
			// A stream that ended because the context was cancelled may
			// still close cleanly; the partial text is kept but the turn
			// is not completed.
			if cancelled {
				sink.OnDone(OutcomeCancelled, totals)
				return OutcomeCancelled, nil
			}
			sink.OnDone(OutcomeCompleted, totals)
			return OutcomeCompleted, nil
		}

		// Tool results must land in emission order, each persisted before
		// the next model request so a crash cannot lose an observed outcome.
		for _, call := range assistant.ToolCalls {
			if ctx.Err() != nil {
				if err := conv.Save(); err != nil {
					o.Log.Error().Err(err).Msg("saving session during cancellation")
				}
				sink.OnDone(OutcomeCancelled, totals)
				return OutcomeCancelled, nil
			}
			sink.OnToolCall(call)
			result := o.Runner.Run(ctx, call)
			conv.Append(result)
			failed := false
			if v, ok := result.Metadata["success"].(bool); ok {
				failed = !v
			}
			sink.OnToolResult(call, result.Content, failed)
			if err := conv.Save(); err != nil {
				return OutcomeFatal, fmt.Errorf("persisting tool result: %w", err)
			}
			if o.Stats != nil {
				o.Stats.Capture("after_tool")
			}
		}
	}

	if err := conv.Save(); err != nil {
		return OutcomeFatal, fmt.Errorf("persisting session: %w", err)
	}
	sink.OnNotice(fmt.Sprintf("Stopped after %d iterations without a final answer. Ask me to continue if you want more.", maxIter))
	sink.OnDone(OutcomeIterationLimit, totals)
	return OutcomeIterationLimit, nil
}

// promptChars counts the characters actually sent, pairing with the
// provider's prompt token count to refine the session ratio.
func promptChars(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
		for _, c := range m.ToolCalls {
			total += len(c.ArgsJSON()) + len(c.Name)
		}
	}
	return total
}

// streamOnce opens one provider stream and consumes it to completion,
// retrying retryable failures with exponential backoff. Malformed events are
// the provider's concern; anything surfacing here is terminal for the
// attempt.
func (o *Orchestrator) streamOnce(ctx context.Context, msgs []Message, tools []ToolSchema, sink EventSink) (*accumulator, error) {
	// A retried attempt replays the stream from the start; shown counters
	// survive attempts so the sink only sees text beyond what a failed
	// attempt already delivered.
	var shownText, shownThinking int
	return RetryWithPolicy(ctx, o.Retry, func(ctx context.Context) (*accumulator, error) {
		acc := newAccumulator()
		events, errs := o.Client.Stream(ctx, o.Model, msgs, tools, o.Options)
		for ev := range events {
			acc.feed(ev)
			switch ev.Type {
			case EventText:
				if total := acc.text.Len(); total > shownText {
					sink.OnText(ev.Text[len(ev.Text)-(total-shownText):])
					shownText = total
				}
			case EventThinking:
				if total := acc.thinking.Len(); total > shownThinking {
					sink.OnThinking(ev.Text[len(ev.Text)-(total-shownThinking):])
					shownThinking = total
				}
			}
		}
		if err := <-errs; err != nil {
			return nil, err
		}
		return acc, nil
	}, func(attempt int, delay time.Duration, err error) {
		o.Log.Warn().
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("provider call failed, retrying")
	})
}
