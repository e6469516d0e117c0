package session

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryStore keeps seen-file state for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]time.Time)}
}

func (m *MemoryStore) SeenMtime(path string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.seen[path]
	return t, ok, nil
}

func (m *MemoryStore) MarkSeen(path string, mtime time.Time) error {
	m.mu.Lock()
	m.seen[path] = mtime
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

const schema = `CREATE TABLE IF NOT EXISTS seen_files (
	path     TEXT PRIMARY KEY,
	mtime_ns INTEGER NOT NULL
)`

// SQLiteStore persists seen-file state so restarts do not re-analyze
// unchanged files.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the state database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize state db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SeenMtime(path string) (time.Time, bool, error) {
	var ns int64
	err := s.db.QueryRow(`SELECT mtime_ns FROM seen_files WHERE path = ?`, path).Scan(&ns)
	switch {
	case err == sql.ErrNoRows:
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, err
	}
	return time.Unix(0, ns), true, nil
}

func (s *SQLiteStore) MarkSeen(path string, mtime time.Time) error {
	_, err := s.db.Exec(`INSERT INTO seen_files (path, mtime_ns) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime_ns = excluded.mtime_ns`, path, mtime.UnixNano())
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
