// Package web implements web_fetch: bounded HTTP GET/POST for the model.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/jsonutil"
)

const (
	maxResponseBytes = 1 << 20 // 1 MiB
	fetchTimeout     = 30 * time.Second
)

// Tool performs HTTP requests on the model's behalf. Responses above the cap
// are truncated with a note rather than failed.
type Tool struct {
	client *http.Client
}

func NewTool() *Tool {
	return &Tool{client: &http.Client{Timeout: fetchTimeout}}
}

func (t *Tool) Definition() agent.Tool {
	return agent.Tool{
		Name:        "web_fetch",
		Description: "Fetches a URL over HTTP. Supports GET and POST with an optional body and content type. Responses are capped at 1 MiB and truncated beyond that.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"url": {"type":"string","description":"http or https URL"},
				"method": {"type":"string","enum":["GET","POST"],"description":"Default GET"},
				"body": {"type":"string","description":"POST: request body"},
				"content_type": {"type":"string","description":"POST: Content-Type header (default application/json)"}
			},
			"required": ["url"]
		}`,
		Category: "web",
		Timeout:  fetchTimeout + 15*time.Second,
		Fn:       t.run,
	}
}

func (t *Tool) run(ctx context.Context, args map[string]any) (string, error) {
	url, ok := args["url"].(string)
	if !ok {
		return "", fmt.Errorf("url must be a string")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("url must use http or https, got %q", url)
	}

	method := http.MethodGet
	if m, _ := args["method"].(string); strings.EqualFold(m, "POST") {
		method = http.MethodPost
	}

	var bodyReader io.Reader
	if method == http.MethodPost {
		body, _ := args["body"].(string)
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	if method == http.MethodPost {
		contentType, _ := args["content_type"].(string)
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// read one byte past the cap to detect truncation
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	truncated := false
	if len(data) > maxResponseBytes {
		data = data[:maxResponseBytes]
		truncated = true
	}

	body := jsonutil.Sanitize(string(data))
	if truncated {
		body += "\n\n[response truncated at 1 MiB]"
	}

	return jsonutil.MarshalString(map[string]any{
		"url":          url,
		"status":       resp.StatusCode,
		"content_type": resp.Header.Get("Content-Type"),
		"body":         body,
		"truncated":    truncated,
	})
}
