package provider

import (
	"context"
	"encoding/json"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/clio-agent/clio/internal/agent"
)

// AnthropicClient implements agent.Client against the Anthropic messages API.
// The system instruction travels out of band as MultiSystem parts, assistant
// tool calls become tool_use blocks, and tool results become user messages
// carrying tool_result blocks; ordering and pairing survive both directions.
type AnthropicClient struct {
	client *anthropic.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{client: anthropic.NewClient(apiKey)}
}

func (c *AnthropicClient) Name() string            { return "anthropic" }
func (c *AnthropicClient) SupportsStreaming() bool { return true }
func (c *AnthropicClient) SupportsTools() bool     { return true }

func convertAnthropicMessages(msgs []agent.Message) ([]anthropic.MessageSystemPart, []anthropic.Message) {
	var system []anthropic.MessageSystemPart
	var out []anthropic.Message

	for _, m := range msgs {
		switch m.Role {
		case agent.RoleSystem:
			system = append(system, anthropic.MessageSystemPart{
				Type: "text",
				Text: m.Content,
			})
		case agent.RoleUser:
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		case agent.RoleAssistant:
			var content []anthropic.MessageContent
			if m.Content != "" && m.Content != " " {
				content = append(content, anthropic.NewTextMessageContent(m.Content))
			}
			for _, tc := range m.ToolCalls {
				content = append(content, anthropic.NewToolUseMessageContent(
					tc.ID,
					tc.Name,
					json.RawMessage(tc.ArgsJSON()),
				))
			}
			if len(content) == 0 {
				content = append(content, anthropic.NewTextMessageContent(" "))
			}
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: content,
			})
		case agent.RoleTool:
			content := m.Content
			if content == "" {
				content = "{}"
			}
			out = append(out, anthropic.Message{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewToolResultMessageContent(m.ToolCallID, content, false),
				},
			})
		}
	}
	return system, out
}

func convertAnthropicTools(tools []agent.ToolSchema) ([]anthropic.ToolDefinition, error) {
	var out []anthropic.ToolDefinition
	for _, ts := range tools {
		var schema map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
		}
		out = append(out, anthropic.ToolDefinition{
			Name:        ts.Name,
			Description: ts.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

// Stream adapts the SDK's callback streaming to the canonical channel pair.
// Anthropic delivers tool calls as complete blocks, so each one emits a
// tool_start immediately followed by its tool_end with full arguments.
func (c *AnthropicClient) Stream(ctx context.Context, model string, msgs []agent.Message, tools []agent.ToolSchema, opts agent.ChatOptions) (<-chan agent.StreamEvent, <-chan error) {
	events := make(chan agent.StreamEvent, streamBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		toolDefs, err := convertAnthropicTools(tools)
		if err != nil {
			errs <- err
			return
		}
		system, wireMsgs := convertAnthropicMessages(msgs)

		maxTokens := 4096
		if opts.MaxOutputTokens > 0 {
			maxTokens = opts.MaxOutputTokens
		}

		req := anthropic.MessagesStreamRequest{
			MessagesRequest: anthropic.MessagesRequest{
				Model:     anthropic.Model(model),
				Messages:  wireMsgs,
				MaxTokens: maxTokens,
			},
		}
		if opts.Temperature > 0 {
			temperature := opts.Temperature
			req.Temperature = &temperature
		}
		if len(system) > 0 {
			req.MultiSystem = system
		}
		if len(toolDefs) > 0 {
			req.Tools = toolDefs
		}

		emit := func(ev agent.StreamEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		req.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
			if delta.Delta.Type == "text_delta" && delta.Delta.Text != nil {
				emit(agent.StreamEvent{Type: agent.EventText, Text: *delta.Delta.Text})
			}
		}

		req.OnContentBlockStop = func(_ anthropic.MessagesEventContentBlockStopData, content anthropic.MessageContent) {
			if content.Type != "tool_use" || content.MessageContentToolUse == nil {
				return
			}
			tu := content.MessageContentToolUse
			emit(agent.StreamEvent{Type: agent.EventToolStart, ID: tu.ID, Name: tu.Name})
			emit(agent.StreamEvent{
				Type:      agent.EventToolEnd,
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: string(tu.Input),
			})
		}

		resp, err := c.client.CreateMessagesStream(ctx, req)
		if err != nil {
			status, retryAfter := extractErrorMetadata(err)
			errs <- agent.WrapProviderError(err, status, retryAfter)
			return
		}

		if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
			emit(agent.StreamEvent{Type: agent.EventUsage, Usage: agent.Usage{
				Prompt:     resp.Usage.InputTokens,
				Completion: resp.Usage.OutputTokens,
				Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			}})
		}

		stop := agent.StopEnd
		switch resp.StopReason {
		case "tool_use":
			stop = agent.StopToolCalls
		case "max_tokens":
			stop = agent.StopLength
		case "content_filtered":
			stop = agent.StopContentFilter
		}
		emit(agent.StreamEvent{Type: agent.EventStop, StopReason: stop})
		errs <- nil
	}()

	return events, errs
}
