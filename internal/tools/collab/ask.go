// Package collab implements ask_user, the blocking prompt through the
// interactive channel. The model pauses the turn until the human answers.
package collab

import (
	"context"
	"fmt"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/jsonutil"
)

// Channel is the user-collaboration contract: show a prompt, block until the
// user replies or the context is cancelled.
type Channel interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Tool bridges the model to the collaboration channel.
type Tool struct {
	channel Channel
}

func NewTool(channel Channel) *Tool {
	return &Tool{channel: channel}
}

func (t *Tool) Definition() agent.Tool {
	return agent.Tool{
		Name:        "ask_user",
		Description: "Asks the user a question and waits for their answer. Use this when a decision genuinely needs human input; the turn pauses until they reply.",
		SchemaJSON:  `{"type":"object","properties":{"question":{"type":"string","description":"The question to show the user"}},"required":["question"]}`,
		Category:    "collab",
		Timeout:     -1, // waiting on a human; the executor must not time this out
		Fn:          t.run,
	}
}

func (t *Tool) run(ctx context.Context, args map[string]any) (string, error) {
	question, ok := args["question"].(string)
	if !ok || question == "" {
		return "", fmt.Errorf("question must be a non-empty string")
	}
	answer, err := t.channel.Ask(ctx, question)
	if err != nil {
		return "", fmt.Errorf("failed to get user answer: %w", err)
	}
	return jsonutil.MarshalString(map[string]any{"question": question, "answer": answer})
}
