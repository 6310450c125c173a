// Package cache keeps compiled output keyed by everything that went into
// producing it, so re-running over unchanged sources skips the whole
// pipeline. Referenced image files are not part of the key, editing an image
// without touching the source or configuration serves stale output until the
// entry is pruned.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `CREATE TABLE IF NOT EXISTS results (
	key     TEXT PRIMARY KEY,
	created INTEGER NOT NULL,
	pages   INTEGER NOT NULL,
	data    BLOB NOT NULL
)`

// Entry is one cached compilation result.
type Entry struct {
	Key     string
	Created time.Time
	Pages   int
	Data    []byte
}

// Cache is a result store backed by a single SQLite database. All operations
// serialize on one connection, concurrent use is safe but not parallel.
type Cache struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	log  *zap.Logger
}

// Open creates or opens the database at path and prepares the schema. Use
// ":memory:" for a throwaway store.
func Open(path string, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var flags []sqlite.OpenFlags
	if path == ":memory:" {
		flags = []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenMemory}
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache database: %w", err)
	}
	if err := sqlitex.Execute(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare cache schema: %w", err)
	}
	return &Cache{conn: conn, log: log.Named("cache")}, nil
}

// Close releases the database connection. Safe on a nil cache.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Key derives the cache key for one compilation. Any change to the program
// version, output format, serialized configuration or source bytes produces
// a different key.
func Key(version, format string, cfg, src []byte) string {
	h := sha256.New()
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write(cfg)
	h.Write([]byte{0})
	h.Write(src)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the stored entry or nil when the key is not present.
func (c *Cache) Get(key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entry *Entry
	err := sqlitex.Execute(c.conn, `SELECT created, pages, data FROM results WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				e := &Entry{
					Key:     key,
					Created: time.Unix(stmt.ColumnInt64(0), 0),
					Pages:   int(stmt.ColumnInt64(1)),
					Data:    make([]byte, stmt.ColumnLen(2)),
				}
				stmt.ColumnBytes(2, e.Data)
				entry = e
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("unable to query cache: %w", err)
	}
	return entry, nil
}

// Put stores or replaces the entry for key.
func (c *Cache) Put(key string, pages int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := sqlitex.Execute(c.conn, `INSERT OR REPLACE INTO results (key, created, pages, data) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{key, time.Now().Unix(), pages, data}})
	if err != nil {
		return fmt.Errorf("unable to store cache entry: %w", err)
	}
	return nil
}

// Prune drops entries older than maxAge and returns how many were removed.
func (c *Cache) Prune(maxAge time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).Unix()
	err := sqlitex.Execute(c.conn, `DELETE FROM results WHERE created < ?`,
		&sqlitex.ExecOptions{Args: []any{cutoff}})
	if err != nil {
		return 0, fmt.Errorf("unable to prune cache: %w", err)
	}
	removed := c.conn.Changes()
	if removed > 0 {
		c.log.Debug("Cache pruned", zap.Int("removed", removed))
	}
	return removed, nil
}
