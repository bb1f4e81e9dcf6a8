// Package executor runs tool calls for the orchestrator: schema validation,
// sandbox gating, timeouts, oversize-result spilling, and the per-call
// operations log. Failures become tool messages, never Go errors, so the
// agent loop always continues.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/jsonutil"
	"github.com/clio-agent/clio/internal/logging"
	"github.com/clio-agent/clio/internal/results"
	"github.com/clio-agent/clio/internal/sandbox"
)

const (
	// DefaultTimeout bounds a tool call that declares no limit of its own.
	DefaultTimeout = 120 * time.Second

	// SpillThreshold is the payload size beyond which results move to the
	// result store and the model gets a placeholder.
	SpillThreshold = 8 * 1024

	previewBytes = 512
)

// Executor implements agent.ToolRunner.
type Executor struct {
	Registry  agent.Registry
	Sandbox   sandbox.Config
	Results   *results.Store
	SessionID string
	ToolLog   *logging.ToolLog // optional
	Log       zerolog.Logger

	seen map[string]bool // tool_call_id uniqueness within the session
}

func New(registry agent.Registry, sb sandbox.Config, store *results.Store, sessionID string, toolLog *logging.ToolLog, log zerolog.Logger) *Executor {
	return &Executor{
		Registry:  registry,
		Sandbox:   sb,
		Results:   store,
		SessionID: sessionID,
		ToolLog:   toolLog,
		Log:       log.With().Str("module", "executor").Logger(),
		seen:      make(map[string]bool),
	}
}

// Run executes one tool call and returns the tool message to append. The
// message's Metadata carries a success flag the orchestrator and renderer
// both read.
func (e *Executor) Run(ctx context.Context, call agent.ToolCall) agent.Message {
	started := time.Now()

	payload, runErr := e.execute(ctx, call)
	success := runErr == nil
	if !success {
		payload = fmt.Sprintf("Error: %s", runErr.Error())
	}

	sent, spilled := e.maybeSpill(call, payload)

	e.logCall(call, payload, sent, success, runErr, time.Since(started))

	msg := agent.Message{
		Role:       agent.RoleTool,
		Content:    jsonutil.Sanitize(sent),
		ToolCallID: call.ID,
		Name:       call.Name,
		Metadata:   map[string]any{"success": success},
		Timestamp:  time.Now(),
	}
	if spilled {
		msg.Metadata["stored"] = true
	}
	return msg
}

func (e *Executor) execute(ctx context.Context, call agent.ToolCall) (string, error) {
	if call.ID == "" {
		return "", errors.New("tool call has no id")
	}
	if e.seen[call.ID] {
		return "", fmt.Errorf("duplicate tool call id %q", call.ID)
	}
	e.seen[call.ID] = true

	tool, ok := e.Registry[call.Name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q (available: %v)", call.Name, e.Registry.Names())
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	if err := tool.ValidateArgs(args); err != nil {
		return "", err
	}

	// The gate resolves each declared path argument and rewrites it to the
	// absolute form, so adapters never re-interpret relative paths.
	for _, param := range tool.PathParams {
		raw, ok := args[param].(string)
		if !ok || raw == "" {
			continue
		}
		abs, err := e.Sandbox.CheckPath(raw)
		if err != nil {
			return "", err
		}
		args[param] = abs
	}

	timeout := tool.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := tool.Fn(callCtx, args)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("tool %s timed out after %s", call.Name, timeout)
		}
		return "", err
	}
	return out, nil
}

// maybeSpill stores an oversize payload and substitutes the placeholder the
// model pages through with read_tool_result.
func (e *Executor) maybeSpill(call agent.ToolCall, payload string) (sent string, spilled bool) {
	if len(payload) <= SpillThreshold || e.Results == nil {
		return payload, false
	}

	id, err := e.Results.Put([]byte(payload))
	if err != nil {
		e.Log.Warn().Err(err).Str("tool", call.Name).Msg("result spill failed, sending payload inline")
		return payload, false
	}

	preview := payload
	if len(preview) > previewBytes {
		preview = preview[:previewBytes]
	}
	placeholder, err := jsonutil.MarshalString(map[string]any{
		"_stored":   true,
		"result_id": id,
		"size":      len(payload),
		"preview":   jsonutil.Sanitize(preview),
	})
	if err != nil {
		return payload, false
	}
	return placeholder, true
}

func (e *Executor) logCall(call agent.ToolCall, output, sent string, success bool, runErr error, elapsed time.Duration) {
	operation, _ := call.Args["operation"].(string)

	event := e.Log.Debug()
	if !success {
		event = e.Log.Warn()
	}
	event.
		Str("tool", call.Name).
		Str("tool_call_id", call.ID).
		Str("operation", operation).
		Bool("success", success).
		Dur("elapsed", elapsed).
		Msg("tool call")

	if e.ToolLog == nil {
		return
	}
	rec := logging.ToolRecord{
		Timestamp:         time.Now(),
		SessionID:         e.SessionID,
		ToolCallID:        call.ID,
		ToolName:          call.Name,
		Operation:         operation,
		Parameters:        call.Args,
		Output:            sent,
		ActionDescription: describe(call, operation),
		SentToAI:          true,
		Success:           success,
		ExecutionTimeMS:   elapsed.Milliseconds(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := e.ToolLog.Append(rec); err != nil {
		e.Log.Warn().Err(err).Msg("tool log append failed")
	}
}

func describe(call agent.ToolCall, operation string) string {
	if operation == "" {
		return call.Name
	}
	if path, ok := call.Args["path"].(string); ok && path != "" {
		return fmt.Sprintf("%s %s on %s", call.Name, operation, path)
	}
	return fmt.Sprintf("%s %s", call.Name, operation)
}
