package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"google.golang.org/genai"

	"github.com/clio-agent/clio/internal/agent"
)

// GeminiClient implements agent.Client against the Gemini API. Role mapping:
// assistant becomes "model", tool results become "user" contents carrying a
// functionResponse part; the system instruction travels in the generation
// config. Order and call/result pairing are preserved in both directions.
type GeminiClient struct {
	client  *genai.Client
	callSeq atomic.Int64
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Name() string            { return "gemini" }
func (c *GeminiClient) SupportsStreaming() bool { return true }
func (c *GeminiClient) SupportsTools() bool     { return true }

// nextCallID synthesizes an id when the API omits one. The counter lives on
// the client, not the stream, so ids stay unique across every iteration of a
// session and the executor's duplicate-id check holds.
func (c *GeminiClient) nextCallID(name string) string {
	return fmt.Sprintf("%s_%d", name, c.callSeq.Add(1))
}

// convertGeminiContents translates canonical messages to Gemini contents.
// System messages are skipped here; the caller folds them into the
// systemInstruction. A tool message looks up its call name from the
// preceding assistant via the tool_call_id.
func convertGeminiContents(msgs []agent.Message) []*genai.Content {
	callNames := make(map[string]string)
	for _, m := range msgs {
		for _, tc := range m.ToolCalls {
			callNames[tc.ID] = tc.Name
		}
	}

	var out []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case agent.RoleSystem:
			continue
		case agent.RoleUser:
			out = append(out, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		case agent.RoleAssistant:
			content := &genai.Content{Role: genai.RoleModel}
			if m.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: tc.Args,
					},
				})
			}
			if len(content.Parts) == 0 {
				content.Parts = append(content.Parts, &genai.Part{Text: " "})
			}
			out = append(out, content)
		case agent.RoleTool:
			var response map[string]any
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]any{"result": m.Content}
			}
			out = append(out, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     callNames[m.ToolCallID],
						Response: response,
					},
				}},
			})
		}
	}
	return out
}

// convertGeminiSchema maps a JSON schema object to Gemini's Schema type.
func convertGeminiSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}
	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = convertGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = convertGeminiSchema(items)
	}
	return schema
}

func convertGeminiTools(tools []agent.ToolSchema) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, ts := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schemaMap); err != nil {
			continue
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        ts.Name,
			Description: ts.Description,
			Parameters:  convertGeminiSchema(schemaMap),
		})
	}
	if len(declarations) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// Stream consumes the SSE stream and decodes it to canonical events. Gemini
// delivers complete function calls, so each emits tool_start then tool_end.
func (c *GeminiClient) Stream(ctx context.Context, model string, msgs []agent.Message, tools []agent.ToolSchema, opts agent.ChatOptions) (<-chan agent.StreamEvent, <-chan error) {
	events := make(chan agent.StreamEvent, streamBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		config := &genai.GenerateContentConfig{}
		if system := joinSystemMessages(msgs); system != "" {
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: system}},
			}
		}
		if opts.MaxOutputTokens > 0 {
			config.MaxOutputTokens = int32(opts.MaxOutputTokens)
		}
		if opts.Temperature > 0 {
			temperature := opts.Temperature
			config.Temperature = &temperature
		}
		config.Tools = convertGeminiTools(tools)

		emit := func(ev agent.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		stop := agent.StopEnd
		var usage agent.Usage

		for resp, err := range c.client.Models.GenerateContentStream(ctx, model, convertGeminiContents(msgs), config) {
			if err != nil {
				status, retryAfter := extractErrorMetadata(err)
				errs <- agent.WrapProviderError(err, status, retryAfter)
				return
			}
			if resp == nil {
				continue
			}
			if resp.UsageMetadata != nil {
				usage = agent.Usage{
					Prompt:     int(resp.UsageMetadata.PromptTokenCount),
					Completion: int(resp.UsageMetadata.CandidatesTokenCount),
					Total:      int(resp.UsageMetadata.TotalTokenCount),
				}
			}
			for _, candidate := range resp.Candidates {
				if candidate == nil || candidate.Content == nil {
					continue
				}
				switch candidate.FinishReason {
				case genai.FinishReasonMaxTokens:
					stop = agent.StopLength
				case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
					stop = agent.StopContentFilter
				}
				for _, part := range candidate.Content.Parts {
					if part == nil {
						continue
					}
					if part.Text != "" {
						evType := agent.EventText
						if part.Thought {
							evType = agent.EventThinking
						}
						if !emit(agent.StreamEvent{Type: evType, Text: part.Text}) {
							return
						}
					}
					if fc := part.FunctionCall; fc != nil {
						id := fc.ID
						if id == "" {
							id = c.nextCallID(fc.Name)
						}
						args, jsonErr := json.Marshal(fc.Args)
						if jsonErr != nil {
							args = []byte("{}")
						}
						stop = agent.StopToolCalls
						if !emit(agent.StreamEvent{Type: agent.EventToolStart, ID: id, Name: fc.Name}) {
							return
						}
						if !emit(agent.StreamEvent{
							Type:      agent.EventToolEnd,
							ID:        id,
							Name:      fc.Name,
							Arguments: string(args),
						}) {
							return
						}
					}
				}
			}
		}

		if usage.Total > 0 {
			if !emit(agent.StreamEvent{Type: agent.EventUsage, Usage: usage}) {
				return
			}
		}
		emit(agent.StreamEvent{Type: agent.EventStop, StopReason: stop})
		errs <- nil
	}()

	return events, errs
}
