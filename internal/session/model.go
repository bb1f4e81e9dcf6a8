package session

import (
	"time"

	"github.com/clio-agent/clio/internal/agent"
)

// State is the persisted session document. Field names are the on-disk
// JSON contract; message order is insertion order and is never re-sorted.
type State struct {
	SessionID  string          `json:"session_id"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	WorkingDir string          `json:"working_directory"`
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Messages   []agent.Message `json:"messages"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	TokenRatio float64         `json:"token_ratio"`
}

// Meta is a lightweight representation for listing sessions.
type Meta struct {
	SessionID    string    `json:"session_id"`
	WorkingDir   string    `json:"working_directory"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}
