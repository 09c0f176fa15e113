// Package sqlitecache stores score records in a single SQLite database.
// It implements scorer.Cache as an alternative to the per-file JSON cache.
package sqlitecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JohnPlummer/draft-ranker/scorer"
)

// FileName is the database file created inside the cache directory
const FileName = "scores.db"

const schema = `
CREATE TABLE IF NOT EXISTS scores (
	id         TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Cache is a scorer.Cache backed by SQLite
type Cache struct {
	db *sql.DB
}

// Open opens or creates the database at path
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlitecache: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitecache: open: %w", err)
	}
	// Every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitecache: exec %q: %w", stmt, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitecache: ping: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the record stored for id
func (c *Cache) Get(ctx context.Context, id string) (scorer.Record, bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, `SELECT record FROM scores WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return scorer.Record{}, false, nil
	}
	if err != nil {
		return scorer.Record{}, false, fmt.Errorf("sqlitecache: get %s: %w", id, err)
	}

	var rec scorer.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return scorer.Record{}, false, fmt.Errorf("%w: %s: %v", scorer.ErrCorruptEntry, id, err)
	}
	return rec, true, nil
}

// Put inserts or replaces the record for id
func (c *Cache) Put(ctx context.Context, id string, rec scorer.Record) error {
	data, err := scorer.EncodeRecord(rec)
	if err != nil {
		return fmt.Errorf("sqlitecache: encode %s: %w", id, err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO scores (id, record, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		id, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlitecache: put %s: %w", id, err)
	}
	return nil
}

// Delete removes the record for id
func (c *Cache) Delete(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM scores WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlitecache: delete %s: %w", id, err)
	}
	return nil
}

// Keys lists stored identities in lexical order
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id FROM scores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlitecache: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlitecache: keys: %w", err)
		}
		keys = append(keys, id)
	}
	return keys, rows.Err()
}

// Clear removes every record
func (c *Cache) Clear(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM scores`)
	if err != nil {
		return 0, fmt.Errorf("sqlitecache: clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlitecache: clear: %w", err)
	}
	return int(n), nil
}
