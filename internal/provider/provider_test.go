package provider

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/clio-agent/clio/internal/agent"
)

func TestExtractErrorMetadata(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantRetry  string
	}{
		{
			name:       "rate limit with retry hint",
			err:        fmt.Errorf("status 429: rate limited, Retry-After: 12"),
			wantStatus: http.StatusTooManyRequests,
			wantRetry:  "12",
		},
		{
			name:       "retry hint glued to separator",
			err:        fmt.Errorf("429 too many requests, retry-after:3"),
			wantStatus: http.StatusTooManyRequests,
			wantRetry:  "3",
		},
		{
			name:       "server error",
			err:        fmt.Errorf("upstream returned 503"),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "auth failure",
			err:        fmt.Errorf("401 unauthorized"),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "plain network error",
			err:  fmt.Errorf("dial tcp: connection refused"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, retry := extractErrorMetadata(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if retry != tt.wantRetry {
				t.Errorf("retryAfter = %q, want %q", retry, tt.wantRetry)
			}
		})
	}
}

func TestJoinSystemMessages(t *testing.T) {
	msgs := []agent.Message{
		{Role: agent.RoleSystem, Content: "first"},
		{Role: agent.RoleUser, Content: "ignored"},
		{Role: agent.RoleSystem, Content: "second"},
	}
	if got := joinSystemMessages(msgs); got != "first\n\nsecond" {
		t.Fatalf("joined = %q", got)
	}
	if got := joinSystemMessages(nil); got != "" {
		t.Fatalf("joined empty = %q", got)
	}
}
