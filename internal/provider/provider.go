// Package provider adapts heterogeneous vendor protocols to the canonical
// streaming surface in internal/agent. The canonical shape is OpenAI-style
// chat completions; the Anthropic and Gemini adapters translate role mapping
// and tool blocks while preserving message order and call/result pairing.
package provider

import (
	"net/http"
	"strings"

	"github.com/clio-agent/clio/internal/agent"
)

const streamBuffer = 16

// extractErrorMetadata pulls an HTTP status and Retry-After hint out of an
// SDK error. SDKs wrap transport failures inconsistently, so this falls back
// to string inspection when no typed error is available.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	errStr := err.Error()
	var httpStatus int
	for _, probe := range []struct {
		needle string
		status int
	}{
		{"429", http.StatusTooManyRequests},
		{"500", http.StatusInternalServerError},
		{"502", http.StatusBadGateway},
		{"503", http.StatusServiceUnavailable},
		{"504", http.StatusGatewayTimeout},
		{"401", http.StatusUnauthorized},
		{"403", http.StatusForbidden},
		{"404", http.StatusNotFound},
		{"400", http.StatusBadRequest},
		{"402", http.StatusPaymentRequired},
	} {
		if strings.Contains(errStr, probe.needle) {
			httpStatus = probe.status
			break
		}
	}

	var retryAfter string
	lower := strings.ToLower(errStr)
	for _, marker := range []string{"retry-after", "retry after"} {
		if idx := strings.Index(lower, marker); idx != -1 {
			// The separator may be glued to the value or stand alone as
			// its own field ("Retry-After: 12").
			for _, field := range strings.Fields(errStr[idx+len(marker):]) {
				if field = strings.Trim(field, ":,"); field != "" {
					retryAfter = field
					break
				}
			}
			break
		}
	}
	return httpStatus, retryAfter
}

// joinSystemMessages concatenates consecutive system messages in order with a
// blank line, for providers that carry the system instruction out of band.
func joinSystemMessages(msgs []agent.Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == agent.RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
