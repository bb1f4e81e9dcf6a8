package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clio-agent/clio/internal/agent"
)

const (
	stateFile = "session.json"
	lockFile  = "session.lock"

	// DefaultTokenRatio seeds the rolling chars-per-token estimate for a new
	// session until real usage numbers refine it.
	DefaultTokenRatio = 2.5
)

// Store manages the on-disk session tree: one directory per session under
// <root>/sessions/<id>/ holding the state file and a lock sentinel.
type Store struct {
	basePath string
}

// NewStore creates a session store rooted at configPath, typically ".clio".
func NewStore(configPath string) *Store {
	return &Store{basePath: filepath.Join(configPath, "sessions")}
}

// Session is a live, lock-owning handle on one session. It implements
// agent.Conversation; all mutation happens in memory and hits disk only on
// Save.
type Session struct {
	store *Store
	dir   string
	lock  *dirLock
	state State
}

// Create assigns a fresh id, acquires the lock, and persists the initial
// empty state. On an id collision (two sessions created the same second) a
// short uuid suffix disambiguates.
func (s *Store) Create(workingDir, provider, model string) (*Session, error) {
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	id := "sess_" + time.Now().Format("20060102_150405")
	dir := filepath.Join(s.basePath, id)
	if _, err := os.Stat(dir); err == nil {
		id = id + "_" + uuid.NewString()[:8]
		dir = filepath.Join(s.basePath, id)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	lock, err := acquireDirLock(filepath.Join(dir, lockFile))
	if err != nil {
		return nil, err
	}

	absWD, err := filepath.Abs(workingDir)
	if err != nil {
		absWD = workingDir
	}
	now := time.Now()
	sess := &Session{
		store: s,
		dir:   dir,
		lock:  lock,
		state: State{
			SessionID:  id,
			CreatedAt:  now,
			UpdatedAt:  now,
			WorkingDir: absWD,
			Provider:   provider,
			Model:      model,
			Messages:   []agent.Message{},
			Metadata:   map[string]any{},
			TokenRatio: DefaultTokenRatio,
		},
	}
	if err := sess.Save(); err != nil {
		lock.release()
		return nil, err
	}
	return sess, nil
}

// Load opens an existing session and takes its lock. When another live
// process holds the lock this fails with an *AlreadyOwnedError.
func (s *Store) Load(id string) (*Session, error) {
	dir := filepath.Join(s.basePath, id)
	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", id, err)
	}
	if state.TokenRatio <= 0 {
		state.TokenRatio = DefaultTokenRatio
	}

	lock, err := acquireDirLock(filepath.Join(dir, lockFile))
	if err != nil {
		return nil, err
	}

	return &Session{store: s, dir: dir, lock: lock, state: state}, nil
}

// Delete removes a session directory, spilled results included. It refuses
// sessions owned by a live process.
func (s *Store) Delete(id string) error {
	dir := filepath.Join(s.basePath, id)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	lock, err := acquireDirLock(filepath.Join(dir, lockFile))
	if err != nil {
		return err
	}
	lock.release()
	return os.RemoveAll(dir)
}

// List returns metadata for every stored session, newest update first.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.basePath)
	if os.IsNotExist(err) {
		return []Meta{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions directory: %w", err)
	}

	var metas []Meta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.basePath, entry.Name(), stateFile))
		if err != nil {
			continue // skip unreadable sessions
		}
		var state State
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}
		metas = append(metas, Meta{
			SessionID:    state.SessionID,
			WorkingDir:   state.WorkingDir,
			Provider:     state.Provider,
			Model:        state.Model,
			CreatedAt:    state.CreatedAt,
			UpdatedAt:    state.UpdatedAt,
			MessageCount: len(state.Messages),
		})
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

func (c *Session) ID() string         { return c.state.SessionID }
func (c *Session) Dir() string        { return c.dir }
func (c *Session) WorkingDir() string { return c.state.WorkingDir }
func (c *Session) Provider() string   { return c.state.Provider }
func (c *Session) Model() string      { return c.state.Model }

// Messages returns the live message slice; callers must not re-order it.
func (c *Session) Messages() []agent.Message { return c.state.Messages }

// Append records a message in memory. Persistence is the caller's call, at
// turn boundaries and after each tool result.
func (c *Session) Append(m agent.Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	c.state.Messages = append(c.state.Messages, m)
}

func (c *Session) TokenRatio() float64 { return c.state.TokenRatio }

// ObserveUsage folds a provider-reported token count into the rolling
// chars-per-token ratio. Weighted 3:1 toward history to damp outliers.
func (c *Session) ObserveUsage(promptChars, promptTokens int) {
	if promptTokens <= 0 || promptChars <= 0 {
		return
	}
	observed := float64(promptChars) / float64(promptTokens)
	c.state.TokenRatio = (c.state.TokenRatio*3 + observed) / 4
}

// Save atomically replaces the state file: temp write, fsync, rename. A
// crash at any point leaves the previous valid file in place.
func (c *Session) Save() error {
	c.state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(c.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, stateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(c.dir, stateFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Close persists final state and releases the lock.
func (c *Session) Close() error {
	err := c.Save()
	c.lock.release()
	return err
}
