package results

import (
	"bytes"
	"os"
	"testing"
)

func TestPutGetSize(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "clio-results-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store := NewStore(tmpDir)
	payload := []byte("the quick brown fox jumps over the lazy dog")

	id, err := store.Put(payload)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	size, err := store.Size(id)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != int64(len(payload)) {
		t.Errorf("expected size %d, got %d", len(payload), size)
	}

	got, err := store.Get(id, 0, size)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip mismatch: %q", got)
	}

	chunk, err := store.Get(id, 4, 5)
	if err != nil {
		t.Fatalf("Get chunk failed: %v", err)
	}
	if string(chunk) != "quick" {
		t.Errorf("expected %q, got %q", "quick", chunk)
	}
}

func TestGetPastEnd(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "clio-results-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store := NewStore(tmpDir)
	id, err := store.Put([]byte("short"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(id, 3, 100)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "rt" {
		t.Errorf("expected tail %q, got %q", "rt", got)
	}
}

func TestInvalidArguments(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "clio-results-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store := NewStore(tmpDir)
	id, err := store.Put([]byte("data"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	cases := []struct {
		name   string
		id     string
		offset int64
		length int64
	}{
		{"traversal id", "../escape", 0, 4},
		{"empty id", "", 0, 4},
		{"negative offset", id, -1, 4},
		{"zero length", id, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.Get(tc.id, tc.offset, tc.length); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := store.Size("missing-id"); err == nil {
		t.Error("expected error for unknown id")
	}
}
