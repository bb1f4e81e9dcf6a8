package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestToolLogAppend(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "clio-logging-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	tl := NewToolLog(tmpDir)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := tl.Append(ToolRecord{
			Timestamp:       now,
			SessionID:       "sess_test",
			ToolCallID:      "c1",
			ToolName:        "file_operations",
			Operation:       "read_file",
			Parameters:      map[string]any{"path": "main.go"},
			Output:          "package main",
			SentToAI:        true,
			Success:         true,
			ExecutionTimeMS: 4,
		})
		require.NoError(t, err)
	}

	path := filepath.Join(tmpDir, "tool_operations_2026-08-26.log")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec ToolRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec), "each line must be standalone JSON")
		require.Equal(t, "file_operations", rec.ToolName)
		require.True(t, rec.Success)
		lines++
	}
	require.Equal(t, 3, lines)
}

func TestProcessStatsCapture(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "clio-logging-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	ps := NewProcessStats(tmpDir, "sess_test", zerolog.Nop())
	ps.Capture("session_start")
	ps.Capture("iteration_start")

	path := filepath.Join(tmpDir, "process_stats_"+time.Now().Format("2006-01-02")+".log")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var recs []StatsRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec StatsRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		recs = append(recs, rec)
	}

	require.Len(t, recs, 2)
	require.Equal(t, "session_start", recs[0].Phase)
	require.Equal(t, int64(0), recs[0].DeltaRSSKB, "first capture is the baseline")
	require.Equal(t, 1, recs[0].CaptureNum)
	require.Equal(t, 2, recs[1].CaptureNum)
	require.Positive(t, recs[0].RSSKB)
}
