// Package memoryops implements memory_ops, the model's interface to the
// short-term and long-term memory stores.
package memoryops

import (
	"context"
	"fmt"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/jsonutil"
	"github.com/clio-agent/clio/internal/memory"
)

// Tool routes memory operations to the scoped store.
type Tool struct {
	short memory.Store
	long  memory.Store
}

func NewTool(short, long memory.Store) *Tool {
	return &Tool{short: short, long: long}
}

func (t *Tool) Definition() agent.Tool {
	return agent.Tool{
		Name: "memory_ops",
		Description: "Stores and retrieves facts across the conversation. Operations: remember (key+value), recall (by key), " +
			"search (substring over keys and values), forget (by key). Scope 'short' lives for this session; 'long' persists across sessions.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"operation": {"type":"string","enum":["remember","recall","search","forget"]},
				"scope": {"type":"string","enum":["short","long"],"description":"Default short"},
				"key": {"type":"string","description":"remember/recall/forget: the memory key"},
				"value": {"type":"string","description":"remember: the fact to store"},
				"query": {"type":"string","description":"search: substring to look for"},
				"limit": {"type":"integer","minimum":1,"maximum":50,"description":"search: max results (default 10)"}
			},
			"required": ["operation"]
		}`,
		Category: "memory",
		Fn:       t.run,
	}
}

func (t *Tool) run(ctx context.Context, args map[string]any) (string, error) {
	operation, _ := args["operation"].(string)
	store := t.short
	scope := "short"
	if s, _ := args["scope"].(string); s == "long" {
		store = t.long
		scope = "long"
	}

	switch operation {
	case "remember":
		key, _ := args["key"].(string)
		value, _ := args["value"].(string)
		if key == "" || value == "" {
			return "", fmt.Errorf("remember requires key and value")
		}
		if err := store.Set(ctx, key, value); err != nil {
			return "", err
		}
		return jsonutil.MarshalString(map[string]any{"status": "stored", "scope": scope, "key": key})

	case "recall":
		key, _ := args["key"].(string)
		if key == "" {
			return "", fmt.Errorf("recall requires key")
		}
		entry, ok, err := store.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if !ok {
			return jsonutil.MarshalString(map[string]any{"found": false, "scope": scope, "key": key})
		}
		return jsonutil.MarshalString(map[string]any{
			"found": true, "scope": scope, "key": key, "value": entry.Value,
		})

	case "search":
		query, _ := args["query"].(string)
		if query == "" {
			return "", fmt.Errorf("search requires query")
		}
		limit := 10
		if v, ok := args["limit"].(float64); ok && v > 0 {
			limit = int(v)
		}
		entries, err := store.Search(ctx, query, limit)
		if err != nil {
			return "", err
		}
		results := make([]map[string]string, 0, len(entries))
		for _, e := range entries {
			results = append(results, map[string]string{"key": e.Key, "value": e.Value})
		}
		return jsonutil.MarshalString(map[string]any{
			"scope": scope, "query": query, "results": results, "count": len(results),
		})

	case "forget":
		key, _ := args["key"].(string)
		if key == "" {
			return "", fmt.Errorf("forget requires key")
		}
		if err := store.Delete(ctx, key); err != nil {
			return "", err
		}
		return jsonutil.MarshalString(map[string]any{"status": "forgotten", "scope": scope, "key": key})

	default:
		return "", fmt.Errorf("unknown operation %q", operation)
	}
}
