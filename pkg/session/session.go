// Package session tracks a monitoring run: which files were already seen
// and the running counters.
package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

// StateStore remembers the last modification time seen for each path.
type StateStore interface {
	SeenMtime(path string) (time.Time, bool, error)
	MarkSeen(path string, mtime time.Time) error
	Close() error
}

// Session holds the state of one monitoring run. It is safe for concurrent
// readers; the sweep loop is the only writer.
type Session struct {
	watchDir string
	start    time.Time
	store    StateStore
	log      *logrus.Logger

	mu      sync.Mutex
	scanned int64
	threats int64
	alerts  int64
}

// New starts a session. A nil store keeps seen-file state in memory.
func New(watchDir string, store StateStore, log *logrus.Logger) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{
		watchDir: watchDir,
		start:    time.Now(),
		store:    store,
		log:      log,
	}
}

// WatchDirectory returns the directory monitored by this session.
func (s *Session) WatchDirectory() string {
	return s.watchDir
}

// StartTime returns when the session started.
func (s *Session) StartTime() time.Time {
	return s.start
}

// IsNewOrModified reports whether path has not been seen or has a newer
// mtime than when it was last seen. Store failures count as new.
func (s *Session) IsNewOrModified(path string, mtime time.Time) bool {
	seen, ok, err := s.store.SeenMtime(path)
	if err != nil {
		s.log.WithError(err).WithField("path", path).Warn("Failed to read seen-file state")
		return true
	}
	return !ok || mtime.After(seen)
}

// MarkSeen records mtime as the last seen modification time of path.
func (s *Session) MarkSeen(path string, mtime time.Time) {
	if err := s.store.MarkSeen(path, mtime); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("Failed to record seen-file state")
	}
}

func (s *Session) IncScanned() {
	s.mu.Lock()
	s.scanned++
	s.mu.Unlock()
}

func (s *Session) IncThreats() {
	s.mu.Lock()
	s.threats++
	s.mu.Unlock()
}

func (s *Session) IncAlerts() {
	s.mu.Lock()
	s.alerts++
	s.mu.Unlock()
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() types.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SessionStats{
		WatchDirectory:  s.watchDir,
		StartTime:       s.start,
		Duration:        time.Since(s.start),
		FilesScanned:    s.scanned,
		ThreatsDetected: s.threats,
		AlertsGenerated: s.alerts,
	}
}

// Close releases the state store.
func (s *Session) Close() error {
	return s.store.Close()
}
