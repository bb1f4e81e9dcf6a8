// Package resultread implements read_tool_result, the model's window into
// payloads the executor spilled to the result store.
package resultread

import (
	"context"
	"fmt"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/jsonutil"
	"github.com/clio-agent/clio/internal/results"
)

const defaultLength = 8192

// Tool reads chunks of spilled results by id.
type Tool struct {
	store *results.Store
}

func NewTool(store *results.Store) *Tool {
	return &Tool{store: store}
}

func (t *Tool) Definition() agent.Tool {
	return agent.Tool{
		Name:        "read_tool_result",
		Description: "Reads a chunk of a stored tool result. Use the result_id from a {_stored:true} placeholder, with offset and length to page through large payloads.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"result_id": {"type":"string","description":"Id from the stored-result placeholder"},
				"offset": {"type":"integer","minimum":0,"description":"Byte offset to start reading at (default 0)"},
				"length": {"type":"integer","minimum":1,"description":"Bytes to read (default 8192)"}
			},
			"required": ["result_id"]
		}`,
		Category: "results",
		Fn:       t.run,
	}
}

func (t *Tool) run(ctx context.Context, args map[string]any) (string, error) {
	id, ok := args["result_id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("result_id must be a non-empty string")
	}
	offset := int64(0)
	if v, ok := args["offset"].(float64); ok {
		offset = int64(v)
	}
	length := int64(defaultLength)
	if v, ok := args["length"].(float64); ok && v > 0 {
		length = int64(v)
	}

	size, err := t.store.Size(id)
	if err != nil {
		return "", err
	}
	data, err := t.store.Get(id, offset, length)
	if err != nil {
		return "", err
	}

	return jsonutil.MarshalString(map[string]any{
		"result_id": id,
		"offset":    offset,
		"length":    len(data),
		"size":      size,
		"eof":       offset+int64(len(data)) >= size,
		"data":      jsonutil.Sanitize(string(data)),
	})
}
