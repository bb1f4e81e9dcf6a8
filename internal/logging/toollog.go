package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/clio-agent/clio/internal/jsonutil"
)

// ToolRecord is one JSON line in the tool-operations log.
type ToolRecord struct {
	Timestamp         time.Time      `json:"timestamp"`
	SessionID         string         `json:"session_id"`
	ToolCallID        string         `json:"tool_call_id"`
	ToolName          string         `json:"tool_name"`
	Operation         string         `json:"operation"`
	Parameters        map[string]any `json:"parameters"`
	Output            string         `json:"output"`
	ActionDescription string         `json:"action_description"`
	SentToAI          bool           `json:"sent_to_ai"`
	Success           bool           `json:"success"`
	ExecutionTimeMS   int64          `json:"execution_time_ms"`
	Error             string         `json:"error,omitempty"`
}

// ToolLog appends tool-operation records to the daily log file. Each append
// takes an advisory lock so concurrent agent processes interleave whole
// records, never partial lines.
type ToolLog struct {
	dir string
	mu  sync.Mutex
}

func NewToolLog(dir string) *ToolLog {
	return &ToolLog{dir: dir}
}

// Append writes one record as a single JSON line.
func (l *ToolLog) Append(rec ToolRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	line, err := jsonutil.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal tool record: %w", err)
	}

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(l.dir, "tool_operations_"+rec.Timestamp.Format("2006-01-02")+".log")

	fl := flock.New(path + ".flock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("failed to lock tool log: %w", err)
	}
	defer fl.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open tool log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append tool record: %w", err)
	}
	return nil
}
