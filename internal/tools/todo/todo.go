// Package todo implements todo_list, the model's in-session task tracker.
// State lives in memory only; a new session starts with an empty list.
package todo

import (
	"context"
	"fmt"
	"sync"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/jsonutil"
)

// Item is one tracked task.
type Item struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Tool holds the session's todo list.
type Tool struct {
	mu    sync.Mutex
	items []Item
	next  int
}

func NewTool() *Tool {
	return &Tool{next: 1}
}

func (t *Tool) Definition() agent.Tool {
	return agent.Tool{
		Name:        "todo_list",
		Description: "Tracks tasks for this session. Operations: add (text), complete (id), list. Use it to keep multi-step work organized.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"operation": {"type":"string","enum":["add","complete","list"]},
				"text": {"type":"string","description":"add: the task description"},
				"id": {"type":"integer","description":"complete: the task id"}
			},
			"required": ["operation"]
		}`,
		Category: "todo",
		Fn:       t.run,
	}
}

func (t *Tool) run(ctx context.Context, args map[string]any) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	operation, _ := args["operation"].(string)
	switch operation {
	case "add":
		text, _ := args["text"].(string)
		if text == "" {
			return "", fmt.Errorf("add requires text")
		}
		item := Item{ID: t.next, Text: text}
		t.next++
		t.items = append(t.items, item)
		return jsonutil.MarshalString(map[string]any{"status": "added", "item": item})

	case "complete":
		id, ok := args["id"].(float64)
		if !ok {
			return "", fmt.Errorf("complete requires id")
		}
		for i := range t.items {
			if t.items[i].ID == int(id) {
				t.items[i].Done = true
				return jsonutil.MarshalString(map[string]any{"status": "completed", "item": t.items[i]})
			}
		}
		return "", fmt.Errorf("no todo item with id %d", int(id))

	case "list":
		open := 0
		for _, item := range t.items {
			if !item.Done {
				open++
			}
		}
		return jsonutil.MarshalString(map[string]any{"items": t.items, "open": open})

	default:
		return "", fmt.Errorf("unknown operation %q", operation)
	}
}
