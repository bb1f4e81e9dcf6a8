package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clio-agent/clio/internal/agent"
)

// OpenAIClient implements agent.Client against any OpenAI-compatible chat
// completion endpoint. A base URL override covers local servers (ollama,
// lmstudio) and hosted clones (deepseek, groq, ...).
type OpenAIClient struct {
	client  *openai.Client
	name    string
	baseURL string
	callSeq atomic.Int64
}

// NewOpenAIClient builds a client for the given endpoint. name is the
// user-facing provider name ("openai", "ollama", ...), kept for logging and
// capability lookup.
func NewOpenAIClient(name, apiKey, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		name:    name,
		baseURL: baseURL,
	}
}

func (c *OpenAIClient) Name() string            { return c.name }
func (c *OpenAIClient) BaseURL() string         { return c.baseURL }
func (c *OpenAIClient) SupportsStreaming() bool { return true }
func (c *OpenAIClient) SupportsTools() bool     { return true }

// nextCallID synthesizes an id for servers that stream tool calls without
// one. The counter lives on the client so ids stay unique across every
// iteration of a session.
func (c *OpenAIClient) nextCallID() string {
	return fmt.Sprintf("call_%d", c.callSeq.Add(1))
}

// convertMessages translates canonical messages to the wire shape. The
// canonical shape is already OpenAI-style, so this is mostly a field-by-field
// copy with the empty-content workarounds the APIs require.
func convertMessages(msgs []agent.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case agent.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: m.Content,
			})
		case agent.RoleUser:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		case agent.RoleAssistant:
			content := m.Content
			if content == "" && len(m.ToolCalls) > 0 {
				// Empty assistant content serializes as null and is
				// rejected by several compatible servers.
				content = " "
			}
			var calls []openai.ToolCall
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.ArgsJSON(),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   content,
				ToolCalls: calls,
			})
		case agent.RoleTool:
			content := m.Content
			if content == "" {
				content = "{}"
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: m.ToolCallID,
				Content:    content,
			})
		}
	}
	return out
}

func convertTools(tools []agent.ToolSchema) ([]openai.Tool, error) {
	var out []openai.Tool
	for _, ts := range tools {
		var schema map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ts.Name,
				Description: ts.Description,
				Parameters:  schema,
			},
		})
	}
	return out, nil
}

// Stream opens a streaming completion and decodes it into canonical events.
// Tool-call argument fragments are forwarded as tool_args between a
// tool_start and the closing tool_end.
func (c *OpenAIClient) Stream(ctx context.Context, model string, msgs []agent.Message, tools []agent.ToolSchema, opts agent.ChatOptions) (<-chan agent.StreamEvent, <-chan error) {
	events := make(chan agent.StreamEvent, streamBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		wireTools, err := convertTools(tools)
		if err != nil {
			errs <- err
			return
		}

		req := openai.ChatCompletionRequest{
			Model:    model,
			Messages: convertMessages(msgs),
			Stream:   true,
			StreamOptions: &openai.StreamOptions{
				IncludeUsage: true,
			},
		}
		if len(wireTools) > 0 {
			req.Tools = wireTools
			req.ToolChoice = "auto"
		}
		if opts.MaxOutputTokens > 0 {
			req.MaxTokens = opts.MaxOutputTokens
		}
		if opts.Temperature > 0 {
			req.Temperature = opts.Temperature
		}

		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			status, retryAfter := extractErrorMetadata(err)
			errs <- agent.WrapProviderError(err, status, retryAfter)
			return
		}
		defer stream.Close()

		type call struct {
			id      string
			started bool
		}
		byIndex := make(map[int]*call)
		order := []int{}
		var stopReason agent.StopReason = agent.StopEnd
		var usage agent.Usage

		emit := func(ev agent.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			response, recvErr := stream.Recv()
			if recvErr != nil {
				if !errors.Is(recvErr, io.EOF) {
					status, retryAfter := extractErrorMetadata(recvErr)
					errs <- agent.WrapProviderError(recvErr, status, retryAfter)
					return
				}
				// Close every open call in emission order, then report
				// the stop reason and usage.
				sort.Ints(order)
				for _, idx := range order {
					if !emit(agent.StreamEvent{Type: agent.EventToolEnd, ID: byIndex[idx].id}) {
						return
					}
				}
				if usage.Total > 0 {
					if !emit(agent.StreamEvent{Type: agent.EventUsage, Usage: usage}) {
						return
					}
				}
				emit(agent.StreamEvent{Type: agent.EventStop, StopReason: stopReason})
				errs <- nil
				return
			}

			// The final usage chunk may carry no choices.
			if response.Usage != nil && response.Usage.TotalTokens > 0 {
				usage = agent.Usage{
					Prompt:     response.Usage.PromptTokens,
					Completion: response.Usage.CompletionTokens,
					Total:      response.Usage.TotalTokens,
				}
			}
			if len(response.Choices) == 0 {
				continue
			}
			choice := response.Choices[0]

			switch choice.FinishReason {
			case openai.FinishReasonToolCalls:
				stopReason = agent.StopToolCalls
			case openai.FinishReasonLength:
				stopReason = agent.StopLength
			case openai.FinishReasonContentFilter:
				stopReason = agent.StopContentFilter
			}

			if choice.Delta.Content != "" {
				if !emit(agent.StreamEvent{Type: agent.EventText, Text: choice.Delta.Content}) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				cur, ok := byIndex[idx]
				if !ok {
					cur = &call{}
					byIndex[idx] = cur
					order = append(order, idx)
				}
				if tc.ID != "" {
					cur.id = tc.ID
				}
				if cur.id == "" {
					cur.id = c.nextCallID()
				}
				if tc.Function.Name != "" && !cur.started {
					cur.started = true
					if !emit(agent.StreamEvent{Type: agent.EventToolStart, ID: cur.id, Name: tc.Function.Name}) {
						return
					}
				}
				if tc.Function.Arguments != "" {
					if !emit(agent.StreamEvent{Type: agent.EventToolArgs, ID: cur.id, Fragment: tc.Function.Arguments}) {
						return
					}
				}
			}
		}
	}()

	return events, errs
}
