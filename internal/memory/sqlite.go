package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// LongTerm persists memory across sessions in a sqlite database.
type LongTerm struct {
	db *sql.DB
}

// OpenLongTerm opens (or creates) the long-term store at dbPath. WAL with a
// busy timeout handles a second agent process politely; sqlite favors one
// writer, so the pool is capped at one connection.
func OpenLongTerm(ctx context.Context, dbPath string) (*LongTerm, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping memory database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize memory schema: %w", err)
	}
	return &LongTerm{db: db}, nil
}

func (l *LongTerm) Set(ctx context.Context, key, value string) error {
	now := time.Now().Unix()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO memories (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now)
	if err != nil {
		return fmt.Errorf("failed to store memory %q: %w", key, err)
	}
	return nil
}

func (l *LongTerm) Get(ctx context.Context, key string) (Entry, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT key, value, created_at, updated_at FROM memories WHERE key = ?`, key)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read memory %q: %w", key, err)
	}
	return entry, true, nil
}

func (l *LongTerm) Delete(ctx context.Context, key string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM memories WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete memory %q: %w", key, err)
	}
	return nil
}

// Search matches the query as a case-insensitive substring of key or value,
// most recently updated first.
func (l *LongTerm) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := l.db.QueryContext(ctx, `
		SELECT key, value, created_at, updated_at FROM memories
		WHERE key LIKE ? ESCAPE '\' OR value LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC LIMIT ?`,
		pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory row: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (l *LongTerm) Close() error { return l.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var entry Entry
	var created, updated int64
	if err := row.Scan(&entry.Key, &entry.Value, &created, &updated); err != nil {
		return Entry{}, err
	}
	entry.CreatedAt = time.Unix(created, 0)
	entry.UpdatedAt = time.Unix(updated, 0)
	return entry, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
